package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataScientistRole(t *testing.T) *JobRole {
	t.Helper()
	role, err := DefaultCatalog().GetRole("data_scientist")
	require.NoError(t, err)
	return role
}

// TestMatchRoleScenario 验证典型场景：Data Scientist要求
// {python, sql, machine_learning, statistics}统一权重，
// 候选人持有{Python, SQL}时得分50、层级moderate
func TestMatchRoleScenario(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)

	result, err := engine.MatchRole(role, []string{"Python", "SQL"})
	require.NoError(t, err)

	assert.Equal(t, 50, result.Score)
	assert.Equal(t, []string{"python", "sql"}, result.Matched)
	assert.Equal(t, []string{"machine learning", "statistics"}, result.Missing)
	assert.Equal(t, TierModerate, TierForScore(result.Score))
}

// TestMatchRoleEmptyHeldSkills 验证空持有技能集合得0分，所有所需技能均为缺失
func TestMatchRoleEmptyHeldSkills(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)

	result, err := engine.MatchRole(role, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Matched)
	assert.Len(t, result.Missing, len(role.RequiredSkills))
	assert.False(t, result.IsMatch)
}

// TestMatchRoleFullCoverage 验证持有技能为所需技能超集时得满分100
func TestMatchRoleFullCoverage(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)

	result, err := engine.MatchRole(role, []string{
		"Python", "SQL", "Machine-Learning", "Statistics", "Docker", "Linux",
	})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Missing)
	assert.Len(t, result.Matched, len(role.RequiredSkills))
}

// TestMatchRoleDuplicateHeldSkills 验证重复持有技能不抬高分数：
// 持有三次Python与持有一次得分必须一致
func TestMatchRoleDuplicateHeldSkills(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)

	once, err := engine.MatchRole(role, []string{"Python"})
	require.NoError(t, err)

	thrice, err := engine.MatchRole(role, []string{"Python", "python", " PYTHON "})
	require.NoError(t, err)

	assert.Equal(t, once.Score, thrice.Score)
	assert.Equal(t, once.Matched, thrice.Matched)
	assert.Equal(t, once.Missing, thrice.Missing)
}

// TestMatchRoleWeighted 验证加权评分
func TestMatchRoleWeighted(t *testing.T) {
	catalog, err := NewCatalog([]JobRole{
		{Key: "weighted", Title: "Weighted", RequiredSkills: []RoleSkill{
			{Token: "go", Weight: 3},
			{Token: "sql", Weight: 1},
		}},
	})
	require.NoError(t, err)
	engine := NewEngine(catalog)
	role, err := catalog.GetRole("weighted")
	require.NoError(t, err)

	// 只命中高权重技能: 3/4 = 75
	result, err := engine.MatchRole(role, []string{"Go"})
	require.NoError(t, err)
	assert.Equal(t, 75, result.Score)

	// 只命中低权重技能: 1/4 = 25
	result, err = engine.MatchRole(role, []string{"SQL"})
	require.NoError(t, err)
	assert.Equal(t, 25, result.Score)
}

// TestMatchRoleRounding 验证分数四舍五入到最近整数
func TestMatchRoleRounding(t *testing.T) {
	catalog, err := NewCatalog([]JobRole{
		{Key: "three", Title: "Three", RequiredSkills: []RoleSkill{
			{Token: "go"}, {Token: "sql"}, {Token: "redis"},
		}},
	})
	require.NoError(t, err)
	engine := NewEngine(catalog)
	role, err := catalog.GetRole("three")
	require.NoError(t, err)

	// 1/3 = 33.33... -> 33
	result, err := engine.MatchRole(role, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, 33, result.Score)

	// 2/3 = 66.66... -> 67
	result, err = engine.MatchRole(role, []string{"go", "sql"})
	require.NoError(t, err)
	assert.Equal(t, 67, result.Score)
}

// TestMatchRoleInvalidRole 验证零所需技能的岗位返回ErrInvalidRole
func TestMatchRoleInvalidRole(t *testing.T) {
	engine := NewEngine(DefaultCatalog())

	_, err := engine.MatchRole(&JobRole{Key: "empty", Title: "Empty"}, []string{"go"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = engine.MatchRole(nil, []string{"go"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

// TestMatchRoleDeterministic 验证评分为纯函数：相同输入多次计算结果一致
func TestMatchRoleDeterministic(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)
	held := []string{"Python", "Statistics", "ReactJS"}

	first, err := engine.MatchRole(role, held)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := engine.MatchRole(role, held)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// 入参未被修改
	assert.Equal(t, []string{"Python", "Statistics", "ReactJS"}, held)
}

// TestParseQueryTerms 验证自由文本查询的拆分与非法查询
func TestParseQueryTerms(t *testing.T) {
	engine := NewEngine(DefaultCatalog())

	terms, err := engine.ParseQueryTerms("react, node")
	require.NoError(t, err)
	assert.Equal(t, []string{"react", "node"}, terms)

	terms, err = engine.ParseQueryTerms("Python+SQL; docker")
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "sql", "docker"}, terms)

	_, err = engine.ParseQueryTerms("")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = engine.ParseQueryTerms("   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

// TestMatchQueryScenario 验证典型场景：查询"react, node"命中
// 持有{ReactJS, Express}的候选人，命中词记录为react
func TestMatchQueryScenario(t *testing.T) {
	engine := NewEngine(DefaultCatalog())

	terms, err := engine.ParseQueryTerms("react, node")
	require.NoError(t, err)

	result := engine.MatchQuery(terms, []string{"ReactJS", "Express"})
	assert.True(t, result.IsMatch)
	assert.Equal(t, []string{"react"}, result.MatchedTerms)
}

// TestMatchQueryNoMatch 验证零命中是有效结果而非错误
func TestMatchQueryNoMatch(t *testing.T) {
	engine := NewEngine(DefaultCatalog())

	result := engine.MatchQuery([]string{"rust"}, []string{"Python", "SQL"})
	assert.False(t, result.IsMatch)
	assert.Empty(t, result.MatchedTerms)
}

// TestMatchRoleAll 验证批量评分保留零分候选人
func TestMatchRoleAll(t *testing.T) {
	engine := NewEngine(DefaultCatalog())
	role := dataScientistRole(t)

	candidates := []CandidateSkills{
		{CandidateID: "c1", Skills: []string{"Python", "SQL"}},
		{CandidateID: "c2", Skills: []string{"Java"}},
	}

	results, err := engine.MatchRoleAll(role, candidates)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].CandidateID)
	assert.Equal(t, 50, results[0].Score)
	assert.Equal(t, "c2", results[1].CandidateID)
	assert.Equal(t, 0, results[1].Score)
}
