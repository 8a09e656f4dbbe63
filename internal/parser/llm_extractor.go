package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"resume-screening-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"
)

const extractionSystemPrompt = `You are an expert resume parser. Extract structured information and return ONLY valid JSON.`

// extractionPromptTemplate 简历信息抽取提示词，%s为简历文本
const extractionPromptTemplate = `Extract structured information from this resume text. Be accurate and precise.

RESUME TEXT:
%s

Extract these entities:
- name: Full name (only if clearly identified at top)
- email: Email address
- phone: Phone number in any format
- location: City/State/Country if mentioned
- skills: List of ALL technical skills, programming languages, tools, frameworks
- education: List of education entries with degree, institution, year, field_of_study
- experience: List of work experiences with job_title, company, duration, description, start_date, end_date
- experience_summary: Brief 1-2 line summary of total experience
- projects: List of notable projects with title, description, technologies_used, github_link, role, duration

IMPORTANT RULES:
1. For name: Only extract if it's clearly the candidate's name at the beginning
2. For skills: Include ALL technologies mentioned, even in experience descriptions
3. For education: Extract degree, institution, and year separately
4. For experience: Be thorough with job titles and companies

Return ONLY valid JSON with this exact structure:
{
    "name": "string",
    "email": "string",
    "phone": "string",
    "location": "string",
    "skills": ["string"],
    "education": [{"degree": "string", "institution": "string", "year": "string", "field_of_study": "string"}],
    "experience": [{"job_title": "string", "company": "string", "duration": "string", "description": "string", "start_date": "string", "end_date": "string"}],
    "experience_summary": "string",
    "projects": [{"title": "string", "description": "string", "technologies_used": "string", "github_link": "string", "role": "string", "duration": "string"}]
}

If you cannot find certain information, use empty strings or empty arrays.`

// 超长简历只取前12000字符，避免超出模型上下文
const maxResumeTextChars = 12000

// LLMResumeExtractor 基于LLM的简历结构化抽取器
type LLMResumeExtractor struct {
	llmModel   model.ToolCallingChatModel
	logger     *log.Logger
	validate   *validator.Validate
	timeout    time.Duration
	maxRetries int
	retryWait  time.Duration
}

// ExtractorOption 抽取器配置选项
type ExtractorOption func(*LLMResumeExtractor)

// WithTimeout 设置单次LLM调用超时
func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetry 设置重试次数和初始退避时间
func WithRetry(maxRetries int, wait time.Duration) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		if maxRetries >= 0 {
			e.maxRetries = maxRetries
		}
		if wait > 0 {
			e.retryWait = wait
		}
	}
}

// NewLLMResumeExtractor 创建简历抽取器
func NewLLMResumeExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...ExtractorOption) *LLMResumeExtractor {
	if logger == nil {
		logger = log.Default()
	}
	e := &LLMResumeExtractor{
		llmModel:   llmModel,
		logger:     logger,
		validate:   validator.New(),
		timeout:    60 * time.Second,
		maxRetries: 2,
		retryWait:  2 * time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// ExtractResume 从简历纯文本中抽取结构化信息
func (e *LLMResumeExtractor) ExtractResume(ctx context.Context, text string) (*types.ParsedResume, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("简历文本为空，无法抽取")
	}

	text = truncateAtRuneBoundary(text, maxResumeTextChars)

	userPrompt := fmt.Sprintf(extractionPromptTemplate, text)

	response, err := e.callLLM(ctx, extractionSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	parsed, err := e.parseResponse(response)
	if err != nil {
		return nil, err
	}

	if err := e.validate.Struct(parsed); err != nil {
		return nil, fmt.Errorf("抽取结果校验失败: %w", err)
	}

	return parsed, nil
}

// truncateAtRuneBoundary 把超长文本截断到maxBytes以内，
// 回退到UTF-8字符边界，避免把多字节字符切成半个
func truncateAtRuneBoundary(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// callLLM 调用LLM，可重试错误按指数退避重试
func (e *LLMResumeExtractor) callLLM(ctx context.Context, systemContent, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	retryDelay := e.retryWait

	var response *einoschema.Message
	var err error

	for retry := 0; retry <= e.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				e.logger.Printf("重试LLM调用 (第%d次)", retry)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err = e.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}

		if !isRetryableError(err) || retry >= e.maxRetries {
			e.logger.Printf("[LLMResumeExtractor] LLM调用最终失败: %v", err)
			return "", fmt.Errorf("LLM Generate failed: %w", err)
		}
	}

	return response.Content, nil
}

// parseResponse 解析LLM响应并补全空集合
func (e *LLMResumeExtractor) parseResponse(response string) (*types.ParsedResume, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		e.logger.Printf("无法从LLM响应中提取有效的JSON。原始响应: %s", response)
		return nil, fmt.Errorf("无法从LLM响应中提取有效的JSON")
	}

	var parsed types.ParsedResume
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %w", err)
	}

	// 保证集合字段非nil，下游无需判空
	if parsed.Skills == nil {
		parsed.Skills = []string{}
	}
	if parsed.Education == nil {
		parsed.Education = []types.ParsedEducation{}
	}
	if parsed.Experience == nil {
		parsed.Experience = []types.ParsedExperience{}
	}
	if parsed.Projects == nil {
		parsed.Projects = []types.ParsedProject{}
	}

	return &parsed, nil
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503")
}

// 从文本中提取JSON
func extractJSON(text string) string {
	// 优先提取 ```json ... ``` 代码块中的内容
	re := regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	matches := re.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// 回退：按大括号配对寻找JSON的开始和结束位置
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
