package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTierForScore 验证层级阈值边界
func TestTierForScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, TierStrong},
		{70, TierStrong},
		{69, TierModerate},
		{50, TierModerate},
		{40, TierModerate},
		{39, TierWeak},
		{0, TierWeak},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score=%d", tt.score)
	}
}

// TestRankOrdering 验证分数降序排序与层级分配
func TestRankOrdering(t *testing.T) {
	results := []*MatchResult{
		{CandidateID: "c3", Score: 40},
		{CandidateID: "c1", Score: 100},
		{CandidateID: "c2", Score: 75},
		{CandidateID: "c4", Score: 10},
	}

	ranked := Rank(results, RoleMode)
	require.Len(t, ranked, 4)

	assert.Equal(t, "c1", ranked[0].CandidateID)
	assert.Equal(t, "c2", ranked[1].CandidateID)
	assert.Equal(t, "c3", ranked[2].CandidateID)
	assert.Equal(t, "c4", ranked[3].CandidateID)

	assert.Equal(t, TierStrong, ranked[0].Tier)
	assert.Equal(t, TierStrong, ranked[1].Tier)
	assert.Equal(t, TierModerate, ranked[2].Tier)
	assert.Equal(t, TierWeak, ranked[3].Tier)
}

// TestRankTieBreak 验证相同分数时按候选人ID升序的确定性排序
func TestRankTieBreak(t *testing.T) {
	results := []*MatchResult{
		{CandidateID: "c9", Score: 50},
		{CandidateID: "c2", Score: 50},
		{CandidateID: "c5", Score: 50},
	}

	ranked := Rank(results, RoleMode)
	assert.Equal(t, "c2", ranked[0].CandidateID)
	assert.Equal(t, "c5", ranked[1].CandidateID)
	assert.Equal(t, "c9", ranked[2].CandidateID)

	// 重复执行结果一致
	again := Rank(results, RoleMode)
	for i := range ranked {
		assert.Equal(t, ranked[i].CandidateID, again[i].CandidateID)
	}
}

// TestRankQueryModeNoTier 验证自由文本模式不分配层级
func TestRankQueryModeNoTier(t *testing.T) {
	results := []*MatchResult{
		{CandidateID: "c1", IsMatch: true, MatchedTerms: []string{"react"}},
		{CandidateID: "c2", IsMatch: false},
	}

	ranked := Rank(results, QueryMode)
	for _, r := range ranked {
		assert.Empty(t, r.Tier)
	}
}

// TestRankDoesNotTruncate 验证排序阶段不截断结果集
func TestRankDoesNotTruncate(t *testing.T) {
	results := make([]*MatchResult, 100)
	for i := range results {
		results[i] = &MatchResult{CandidateID: string(rune('a' + i%26)), Score: i}
	}

	ranked := Rank(results, RoleMode)
	assert.Len(t, ranked, 100)
	// 输入切片顺序未被修改
	assert.Equal(t, 0, results[0].Score)
}
