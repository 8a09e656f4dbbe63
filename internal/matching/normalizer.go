package matching

import (
	"regexp"
	"strings"
)

// 分隔符运行：空白、连字符、下划线、点、斜杠统一折叠为单个空格
var separatorRuns = regexp.MustCompile(`[\s\-_./]+`)

// synonymTable 技能同义词表，键为规范化后的别名，值为最终规范形式。
// 注意：所有值本身不得再作为键出现，否则破坏Normalize的幂等性。
var synonymTable = map[string]string{
	"js":                  "javascript",
	"ecmascript":          "javascript",
	"reactjs":             "react",
	"react js":            "react",
	"nodejs":              "node",
	"node js":             "node",
	"vuejs":               "vue",
	"vue js":              "vue",
	"ts":                  "typescript",
	"golang":              "go",
	"postgres":            "postgresql",
	"mssql":               "sql server",
	"ml":                  "machine learning",
	"dl":                  "deep learning",
	"ai":                  "artificial intelligence",
	"nlp":                 "natural language processing",
	"k8s":                 "kubernetes",
	"gcp":                 "google cloud",
	"amazon web services": "aws",
	"ci cd":               "cicd",
	"restful":             "rest",
	"rest api":            "rest",
	"html5":               "html",
	"css3":                "css",
	"springboot":          "spring boot",
	"dotnet":              "net",
}

// Normalize 将技能标记规范化为可比较的形式：
// 小写、去首尾空白、分隔符运行折叠为单个空格、同义词归一。
// 保证幂等：Normalize(Normalize(x)) == Normalize(x)。
// 未知词除大小写/分隔符处理外原样通过，空输入返回空字符串。
func Normalize(token string) string {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" {
		return ""
	}

	s = separatorRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if canonical, ok := synonymTable[s]; ok {
		// 规范形式自身也需要走一遍分隔符处理，保证幂等
		canonical = separatorRuns.ReplaceAllString(canonical, " ")
		return strings.TrimSpace(canonical)
	}

	return s
}

// NormalizeAll 规范化一组技能标记，丢弃规范化后为空的项，并按规范形式去重。
// 返回的切片保持首次出现的顺序，用于候选人持有技能集合的预处理。
func NormalizeAll(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// NormalizeKey 将用户输入的岗位标识规范化为目录键的形式：
// 小写，空白与连字符运行映射为下划线。
func NormalizeKey(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}
	return keySeparatorRuns.ReplaceAllString(s, "_")
}

var keySeparatorRuns = regexp.MustCompile(`[\s\-]+`)
