package parser

import (
	"context"
	"log"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用LLM模型模拟器
type MockLLMModel struct {
	// 模拟响应
	mockResponse string
	// 用于测试的错误
	Err error
	// 用于测试的调用次数
	CallCount int
}

// Generate 实现model.ChatModel接口
func (m *MockLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	return &schema.Message{
		Role:    "assistant",
		Content: m.mockResponse,
	}, nil
}

// Stream 实现model.ChatModel接口
func (m *MockLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

// BindTools 实现model.ChatModel接口
func (m *MockLLMModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

const mockExtractionResponse = `{
	"name": "John Smith",
	"email": "john.smith@example.com",
	"phone": "555-0101",
	"location": "Austin, TX",
	"skills": ["Python", "Django", "PostgreSQL", "Docker"],
	"education": [
		{
			"degree": "B.S.",
			"institution": "UT Austin",
			"year": "2018",
			"field_of_study": "Computer Science"
		}
	],
	"experience": [
		{
			"job_title": "Backend Engineer",
			"company": "Acme Corp",
			"duration": "3 years",
			"description": "Built internal APIs",
			"start_date": "2019-06",
			"end_date": "2022-06"
		}
	],
	"experience_summary": "3 years of backend development",
	"projects": []
}`

func TestExtractResumeWithMockModel(t *testing.T) {
	mockModel := &MockLLMModel{mockResponse: mockExtractionResponse}
	extractor := NewLLMResumeExtractor(mockModel, log.New(testWriter{t}, "[test] ", 0))

	parsed, err := extractor.ExtractResume(context.Background(), "John Smith resume text...")
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, "John Smith", parsed.Name)
	assert.Equal(t, "john.smith@example.com", parsed.Email)
	assert.Equal(t, []string{"Python", "Django", "PostgreSQL", "Docker"}, parsed.Skills)
	require.Len(t, parsed.Education, 1)
	assert.Equal(t, "UT Austin", parsed.Education[0].Institution)
	require.Len(t, parsed.Experience, 1)
	assert.Equal(t, "Backend Engineer", parsed.Experience[0].JobTitle)
	assert.NotNil(t, parsed.Projects, "缺省的切片字段应回填为空切片")
	assert.Equal(t, 1, mockModel.CallCount)
}

func TestExtractResumeWithMarkdownFence(t *testing.T) {
	mockModel := &MockLLMModel{
		mockResponse: "Here is the extracted data:\n```json\n" + mockExtractionResponse + "\n```\nDone.",
	}
	extractor := NewLLMResumeExtractor(mockModel, log.New(testWriter{t}, "[test] ", 0))

	parsed, err := extractor.ExtractResume(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", parsed.Name)
}

func TestExtractResumeEmptyText(t *testing.T) {
	extractor := NewLLMResumeExtractor(&MockLLMModel{}, log.New(testWriter{t}, "[test] ", 0))

	_, err := extractor.ExtractResume(context.Background(), "   \n  ")
	assert.Error(t, err)
}

func TestExtractResumeInvalidEmail(t *testing.T) {
	mockModel := &MockLLMModel{
		mockResponse: `{"name": "X", "email": "not-an-email", "skills": ["go"]}`,
	}
	extractor := NewLLMResumeExtractor(mockModel, log.New(testWriter{t}, "[test] ", 0))

	_, err := extractor.ExtractResume(context.Background(), "resume text")
	assert.Error(t, err, "非法邮箱应未通过结构校验")
}

func TestExtractResumeMissingSkills(t *testing.T) {
	mockModel := &MockLLMModel{
		mockResponse: `{"name": "X", "email": "x@example.com"}`,
	}
	extractor := NewLLMResumeExtractor(mockModel, log.New(testWriter{t}, "[test] ", 0))

	_, err := extractor.ExtractResume(context.Background(), "resume text")
	assert.Error(t, err, "缺少skills字段应未通过结构校验")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "纯JSON",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "markdown代码块",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "嵌入前后文本",
			input:    "some preamble {\"a\": {\"b\": 2}} trailing words",
			expected: `{"a": {"b": 2}}`,
		},
		{
			name:     "无JSON",
			input:    "no json here",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.input))
		})
	}
}

func TestTruncateAtRuneBoundary(t *testing.T) {
	// 截断点落在多字节字符中间时必须回退到字符边界
	text := strings.Repeat("a", 9) + "简历"
	for max := 9; max < len(text); max++ {
		got := truncateAtRuneBoundary(text, max)
		assert.LessOrEqual(t, len(got), max)
		assert.True(t, utf8.ValidString(got), "max=%d 截断产生非法UTF-8", max)
	}

	// 不超长时原样返回
	assert.Equal(t, "简历文本", truncateAtRuneBoundary("简历文本", 100))
	// 全是多字节续字节时允许退到空串
	assert.Equal(t, "", truncateAtRuneBoundary("简历", 2))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(context.DeadlineExceeded))
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(assert.AnError))
}

func TestExtractorOptions(t *testing.T) {
	extractor := NewLLMResumeExtractor(&MockLLMModel{}, nil,
		WithTimeout(5*time.Second),
		WithRetry(3, time.Second),
	)
	require.NotNil(t, extractor)
}

// testWriter 将日志输出转发到testing.T
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
