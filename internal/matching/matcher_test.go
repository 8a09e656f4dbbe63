package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMatchesExactAndSynonym 验证精确匹配与同义词链接匹配
func TestMatchesExactAndSynonym(t *testing.T) {
	tests := []struct {
		name     string
		required string
		held     string
		want     bool
	}{
		{"精确匹配", "python", "Python", true},
		{"同义词匹配", "javascript", "JS", true},
		{"同义词匹配反向", "js", "JavaScript", true},
		{"react变体", "react", "ReactJS", true},
		{"react点分变体", "react", "React.js", true},
		{"无关技能", "python", "java", false},
		{"双空", "", "", false},
		{"单空", "python", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.required, tt.held))
		})
	}
}

// TestMatchesSubstring 验证子串匹配及最小长度阈值
func TestMatchesSubstring(t *testing.T) {
	tests := []struct {
		name     string
		required string
		held     string
		want     bool
	}{
		{"持有技能包含查询词", "sql", "PostgreSQL", true},
		{"查询词包含持有技能", "machine learning engineer", "machine learning", true},
		{"阈值之下不匹配", "go", "google cloud", false},
		{"阈值之下反向也不匹配", "google cloud", "go", false},
		{"恰好达到阈值", "etl", "etl pipelines", true},
		{"短词精确匹配仍然成立", "go", "Go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.required, tt.held))
		})
	}
}

// TestMatchesCommutative 验证子串检查对required/held两侧对称
func TestMatchesCommutative(t *testing.T) {
	pairs := [][2]string{
		{"sql", "postgresql"},
		{"machine learning", "machine learning engineer"},
		{"react", "reactjs"},
		{"go", "google"},
		{"python", "java"},
	}

	for _, p := range pairs {
		assert.Equal(t, Matches(p[0], p[1]), Matches(p[1], p[0]),
			"Matches(%q, %q) 应与参数交换后结果一致", p[0], p[1])
	}
}
