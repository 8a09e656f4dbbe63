package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeBasic 验证大小写折叠、首尾空白与分隔符折叠
func TestNormalizeBasic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"小写折叠", "Python", "python"},
		{"首尾空白", "  SQL  ", "sql"},
		{"连字符折叠", "machine-learning", "machine learning"},
		{"下划线折叠", "machine_learning", "machine learning"},
		{"混合分隔符", "machine - _ learning", "machine learning"},
		{"点分隔符", "Node.JS", "node"},
		{"未知词原样通过", "Erlang", "erlang"},
		{"空输入", "", ""},
		{"纯空白输入", "   ", ""},
		{"加号保留", "C++", "c++"},
		{"井号保留", "C#", "c#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

// TestNormalizeSynonyms 验证同义词表归一
func TestNormalizeSynonyms(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"js", "javascript"},
		{"JS", "javascript"},
		{"ReactJS", "react"},
		{"React.js", "react"},
		{"react", "react"},
		{"NodeJS", "node"},
		{"Golang", "go"},
		{"k8s", "kubernetes"},
		{"ML", "machine learning"},
		{"Postgres", "postgresql"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

// TestNormalizeIdempotent 验证Normalize的幂等性：对同义词表中的
// 每个别名与规范形式，二次规范化结果必须与一次规范化一致
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"React.JS", "reactjs", "  Machine-Learning ", "js", "C++", "unknown skill"}
	for alias, canonical := range synonymTable {
		inputs = append(inputs, alias, canonical)
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "Normalize(%q) 应当幂等", in)
	}
}

// TestNormalizeCaseInsensitiveEquivalence 验证归一化等价：React.JS与reactjs同形
func TestNormalizeCaseInsensitiveEquivalence(t *testing.T) {
	assert.Equal(t, Normalize("reactjs"), Normalize("React.JS"))
}

// TestNormalizeAll 验证批量规范化的去重与顺序保持
func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"Python", "python", " PYTHON ", "SQL", "", "  ", "ReactJS", "react"})
	assert.Equal(t, []string{"python", "sql", "react"}, got)
}

// TestNormalizeKey 验证岗位键规范化
func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "data_scientist", NormalizeKey("Data Scientist"))
	assert.Equal(t, "data_scientist", NormalizeKey("data-scientist"))
	assert.Equal(t, "data_scientist", NormalizeKey("  DATA   SCIENTIST "))
	assert.Equal(t, "", NormalizeKey("  "))
}
