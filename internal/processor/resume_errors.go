package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrResumeDownloadFailed = errors.New("下载简历失败")
	ErrExtractTextFailed    = errors.New("提取简历文本失败")
	ErrLLMExtractionFailed  = errors.New("LLM结构化抽取失败")
	ErrPersistFailed        = errors.New("持久化解析结果失败")
	ErrUpdateStatusFailed   = errors.New("更新简历状态失败")
	ErrDatabaseFailed       = errors.New("数据库操作失败")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	UploadUUID string
	Op         string
	BaseErr    error
	Detail     string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.UploadUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.UploadUUID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewDownloadError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "download",
		BaseErr:    ErrResumeDownloadFailed,
		Detail:     detail,
	}
}

func NewExtractError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "extract",
		BaseErr:    ErrExtractTextFailed,
		Detail:     detail,
	}
}

func NewLLMError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "llm",
		BaseErr:    ErrLLMExtractionFailed,
		Detail:     detail,
	}
}

func NewPersistError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "persist",
		BaseErr:    ErrPersistFailed,
		Detail:     detail,
	}
}

func NewUpdateError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "update",
		BaseErr:    ErrUpdateStatusFailed,
		Detail:     detail,
	}
}

func NewDatabaseError(uuid, detail string) error {
	return &ResumeProcessError{
		UploadUUID: uuid,
		Op:         "database",
		BaseErr:    ErrDatabaseFailed,
		Detail:     detail,
	}
}
