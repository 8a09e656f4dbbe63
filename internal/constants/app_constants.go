package constants

import "time"

const (
	// DefaultParserVer 当前解析链路的默认版本标识
	DefaultParserVer = "groq-llm-v1"

	// MaxResumeFileSize 简历文件大小上限（10MB）
	MaxResumeFileSize = 10 * 1024 * 1024

	// 简历上传状态
	StatusPendingParsing = "PENDING_PARSING"
	StatusParsing        = "PARSING"
	StatusParsed         = "PARSED"
	StatusParseFailed    = "PARSE_FAILED"

	// 技能分类
	SkillCategoryProgramming = "programming"
	SkillCategoryFramework   = "framework"
	SkillCategoryTool        = "tool"
	SkillCategorySoftSkill   = "soft_skill"

	// 搜索结果缓存
	SearchResultCacheTTL = 30 * time.Minute
	SearchLockTTL        = 5 * time.Minute
)

// AllowedFileExtensions 允许上传的简历文件扩展名
var AllowedFileExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".md":   true,
}
