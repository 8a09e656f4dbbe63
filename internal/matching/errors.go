package matching

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidCatalog = errors.New("岗位目录配置无效")
	ErrRoleNotFound   = errors.New("未找到指定的岗位")
	ErrInvalidRole    = errors.New("岗位定义无效")
	ErrInvalidQuery   = errors.New("搜索查询无效")
)

// MatchError 包含详细错误信息的自定义错误
type MatchError struct {
	Role    string
	Op      string
	BaseErr error
	Detail  string
}

func (e *MatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 岗位:%s): %s", e.BaseErr, e.Op, e.Role, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 岗位:%s)", e.BaseErr, e.Op, e.Role)
}

func (e *MatchError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *MatchError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewCatalogError(role, detail string) error {
	return &MatchError{
		Role:    role,
		Op:      "load_catalog",
		BaseErr: ErrInvalidCatalog,
		Detail:  detail,
	}
}

func NewRoleNotFoundError(input string) error {
	return &MatchError{
		Role:    input,
		Op:      "resolve_role",
		BaseErr: ErrRoleNotFound,
	}
}

func NewInvalidRoleError(role, detail string) error {
	return &MatchError{
		Role:    role,
		Op:      "match_role",
		BaseErr: ErrInvalidRole,
		Detail:  detail,
	}
}

func NewInvalidQueryError(detail string) error {
	return &MatchError{
		Op:      "parse_query",
		BaseErr: ErrInvalidQuery,
		Detail:  detail,
	}
}
