package matching

import "sort"

// Mode 排序阶段的运行模式
type Mode int

const (
	// RoleMode 岗位模式：按分数排序并分配层级
	RoleMode Mode = iota
	// QueryMode 自由文本模式：只有布尔命中，不分层
	QueryMode
)

// 层级标签
const (
	TierStrong   = "strong"
	TierModerate = "moderate"
	TierWeak     = "weak"
)

// 层级阈值：score >= 70为strong，40 <= score < 70为moderate，其余为weak
const (
	strongThreshold   = 70
	moderateThreshold = 40
)

// TierForScore 按分数返回定性层级标签
func TierForScore(score int) string {
	switch {
	case score >= strongThreshold:
		return TierStrong
	case score >= moderateThreshold:
		return TierModerate
	default:
		return TierWeak
	}
}

// Rank 对匹配结果排序：分数降序，相同分数按候选人ID升序，
// 保证相同输入下排序结果可复现。岗位模式下同时为每个结果分配层级。
// 不截断结果——分页由传输层决定。输入切片不被修改，返回新切片。
func Rank(results []*MatchResult, mode Mode) []*MatchResult {
	ranked := make([]*MatchResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})

	if mode == RoleMode {
		for _, r := range ranked {
			r.Tier = TierForScore(r.Score)
		}
	}

	return ranked
}
