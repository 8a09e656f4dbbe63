package matching

import (
	"math"
	"regexp"
	"strings"
)

// CandidateSkills 评分引擎的输入单元：候选人标识与其持有的技能名列表。
// 技能名为提取时的原始文本，允许重复与近似重复，引擎内部会做规范化去重。
type CandidateSkills struct {
	CandidateID string
	Skills      []string
}

// MatchResult 单个候选人的匹配结果。按请求计算，不持久化。
type MatchResult struct {
	CandidateID string `json:"candidate_id"`
	// 岗位模式字段
	Score   int      `json:"score"`
	Matched []string `json:"matched_skills"`
	Missing []string `json:"missing_skills"`
	Tier    string   `json:"tier,omitempty"`
	// 自由文本模式字段
	IsMatch      bool     `json:"is_match"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// Engine 匹配评分引擎。无内部状态，除只读目录外不共享任何数据，
// 可被任意数量的并发请求安全使用。
type Engine struct {
	catalog *Catalog
}

// NewEngine 创建匹配评分引擎
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog 返回引擎使用的只读岗位目录
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// 查询词分隔符：逗号、加号、分号与空白
var queryTermSeparators = regexp.MustCompile(`[,+;\s]+`)

// ParseQueryTerms 将自由文本查询拆分为规范化的技能词列表。
// 空或纯空白的查询返回ErrInvalidQuery，由调用方转译为用户可纠正的输入错误。
func (e *Engine) ParseQueryTerms(query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewInvalidQueryError("查询内容不能为空")
	}

	raw := queryTermSeparators.Split(query, -1)
	terms := NormalizeAll(raw)
	if len(terms) == 0 {
		return nil, NewInvalidQueryError("查询未包含有效的技能词")
	}
	return terms, nil
}

// MatchRole 岗位模式评分：
// score = 被满足的所需技能权重之和 / 总权重 × 100，四舍五入到整数并截断到[0,100]。
// 每个所需技能至多被满足一次，持有技能的重复不会抬高分数。
// 空的持有技能集合得0分；所需技能为空的岗位返回ErrInvalidRole。
// 纯函数：相同输入必然得到相同输出，不修改任何入参。
func (e *Engine) MatchRole(role *JobRole, heldSkills []string) (*MatchResult, error) {
	if role == nil {
		return nil, NewInvalidRoleError("", "岗位不能为nil")
	}
	if len(role.RequiredSkills) == 0 {
		return nil, NewInvalidRoleError(role.Key, "岗位必须声明至少一个所需技能")
	}

	held := NormalizeAll(heldSkills)

	result := &MatchResult{
		Matched: make([]string, 0, len(role.RequiredSkills)),
		Missing: make([]string, 0, len(role.RequiredSkills)),
	}

	totalWeight := role.TotalWeight()
	var satisfiedWeight float64

	for _, required := range role.RequiredSkills {
		satisfied := false
		for _, h := range held {
			if MatchesNormalized(required.Token, h) {
				satisfied = true
				break
			}
		}
		if satisfied {
			satisfiedWeight += required.Weight
			result.Matched = append(result.Matched, required.Token)
		} else {
			result.Missing = append(result.Missing, required.Token)
		}
	}

	score := int(math.Round(satisfiedWeight / totalWeight * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	result.Score = score
	result.IsMatch = score > 0

	return result, nil
}

// MatchRoleAll 对候选人集合逐一执行岗位模式评分。
// 零分候选人同样保留在结果中，过滤策略由排序/传输层决定。
func (e *Engine) MatchRoleAll(role *JobRole, candidates []CandidateSkills) ([]*MatchResult, error) {
	results := make([]*MatchResult, 0, len(candidates))
	for _, cand := range candidates {
		r, err := e.MatchRole(role, cand.Skills)
		if err != nil {
			return nil, err
		}
		r.CandidateID = cand.CandidateID
		results = append(results, r)
	}
	return results, nil
}

// MatchQuery 自由文本模式：任一查询词与任一持有技能模糊匹配即视为命中（OR语义）。
// 命中的查询词记录在MatchedTerms中，按查询词的出现顺序排列。
func (e *Engine) MatchQuery(terms []string, heldSkills []string) *MatchResult {
	held := NormalizeAll(heldSkills)

	result := &MatchResult{
		MatchedTerms: make([]string, 0, len(terms)),
	}

	for _, term := range terms {
		for _, h := range held {
			if MatchesNormalized(term, h) {
				result.MatchedTerms = append(result.MatchedTerms, term)
				break
			}
		}
	}

	result.IsMatch = len(result.MatchedTerms) > 0
	return result
}

// MatchQueryAll 对候选人集合执行自由文本匹配
func (e *Engine) MatchQueryAll(terms []string, candidates []CandidateSkills) []*MatchResult {
	results := make([]*MatchResult, 0, len(candidates))
	for _, cand := range candidates {
		r := e.MatchQuery(terms, cand.Skills)
		r.CandidateID = cand.CandidateID
		results = append(results, r)
	}
	return results
}
