package storage

import "time"

// ResumeUploadedMessage 简历上传事件消息，投递到解析消费者
type ResumeUploadedMessage struct {
	UploadUUID       string    `json:"upload_uuid"`            // 上传UUID，主键
	UploadedAt       time.Time `json:"uploaded_at"`            // 上传时间
	OriginalFilename string    `json:"original_filename"`      // 原始文件名
	FilePathOSS      string    `json:"file_path_oss"`          // MinIO中的对象键
	FileExt          string    `json:"file_ext"`               // 文件扩展名
	FileMD5          string    `json:"file_md5,omitempty"`     // 文件MD5，失败回滚去重记录时使用
	FileSize         int64     `json:"file_size,omitempty"`    // 文件大小
	ContentType      string    `json:"content_type,omitempty"` // 内容类型
}

// ResumeParsedMessage 简历解析完成事件消息，经发件箱中继发布
type ResumeParsedMessage struct {
	UploadUUID    string   `json:"upload_uuid"`           // 上传UUID
	CandidateID   string   `json:"candidate_id"`          // 解析归并后的候选人ID
	SkillCount    int      `json:"skill_count"`           // 抽取的技能数量
	Skills        []string `json:"skills,omitempty"`      // 规范化后的技能列表
	ParserVersion string   `json:"parser_version"`        // 解析链路版本
	ParsedAt      int64    `json:"parsed_at"`             // 解析完成时间戳
	Error         string   `json:"error,omitempty"`       // 错误信息
}
