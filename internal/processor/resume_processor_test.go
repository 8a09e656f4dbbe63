package processor

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/constants"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStructurer 测试用的结构化抽取桩实现
type mockStructurer struct {
	result *types.ParsedResume
	err    error
}

func (m *mockStructurer) ExtractResume(ctx context.Context, text string) (*types.ParsedResume, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestNewResumeProcessorDefaults(t *testing.T) {
	rp := NewResumeProcessor(&Components{}, nil)
	require.NotNil(t, rp)
	assert.NotNil(t, rp.Config.Logger, "未注入Logger时应使用默认Logger")
	assert.False(t, rp.Config.Debug)
}

func TestNewResumeProcessorKeepsComponents(t *testing.T) {
	structurer := &mockStructurer{}
	rp := NewResumeProcessor(&Components{Structurer: structurer}, &Settings{
		Debug:  true,
		Logger: log.New(os.Stdout, "[test] ", log.LstdFlags),
	})
	assert.Same(t, structurer, rp.Structurer.(*mockStructurer))
	assert.True(t, rp.Config.Debug)
}

func TestHandleUploadedMessageInvalidJSON(t *testing.T) {
	rp := NewResumeProcessor(&Components{}, nil)
	cfg := &config.Config{}

	// 非法JSON应直接确认消息，避免毒消息无限重投
	ack := rp.HandleUploadedMessage(context.Background(), []byte("{not json"), cfg)
	assert.True(t, ack)
}

func TestHandleUploadedMessageMissingUUID(t *testing.T) {
	rp := NewResumeProcessor(&Components{}, nil)
	cfg := &config.Config{}

	ack := rp.HandleUploadedMessage(context.Background(), []byte(`{"original_filename":"a.pdf"}`), cfg)
	assert.True(t, ack, "缺少UUID的消息应被确认并丢弃")
}

func TestResumeProcessErrorWrapping(t *testing.T) {
	err := NewDownloadError("uuid-123", "connection refused")
	assert.True(t, errors.Is(err, ErrResumeDownloadFailed))
	assert.False(t, errors.Is(err, ErrLLMExtractionFailed))
	assert.Contains(t, err.Error(), "uuid-123")
	assert.Contains(t, err.Error(), "connection refused")

	var processErr *ResumeProcessError
	require.True(t, errors.As(err, &processErr))
	assert.Equal(t, "download", processErr.Op)
}

func TestCategorizeSkill(t *testing.T) {
	tests := []struct {
		skill    string
		expected string
	}{
		{"python", constants.SkillCategoryProgramming},
		{"go", constants.SkillCategoryProgramming},
		{"javascript", constants.SkillCategoryProgramming},
		{"typescript", constants.SkillCategoryProgramming},
		{"react", constants.SkillCategoryFramework},
		{"pytorch", constants.SkillCategoryFramework},
		{"docker", constants.SkillCategoryTool},
		{"kubernetes", constants.SkillCategoryTool},
		{"postgresql", constants.SkillCategoryTool},
		{"communication", constants.SkillCategorySoftSkill},
		// 复合词走包含式回退
		{"react native", constants.SkillCategoryFramework},
		{"java 8", constants.SkillCategoryProgramming},
		// 词表外的技能归软技能
		{"machine learning", constants.SkillCategorySoftSkill},
		{"some unknown skill", constants.SkillCategorySoftSkill},
	}

	for _, tt := range tests {
		t.Run(tt.skill, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeSkill(tt.skill))
		})
	}
}

// 分类函数接收的是规范化后的词，分支必须对规范形式可达
func TestCategorizeSkillAfterNormalize(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"JavaScript", constants.SkillCategoryProgramming},
		{"JS", constants.SkillCategoryProgramming},
		{"TypeScript", constants.SkillCategoryProgramming},
		{"K8s", constants.SkillCategoryTool},
		{"Postgres", constants.SkillCategoryTool},
		{"CI/CD", constants.SkillCategoryTool},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeSkill(matching.Normalize(tt.raw)))
		})
	}
}
