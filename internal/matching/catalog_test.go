package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewCatalogValidation 验证目录加载期校验：
// 零技能岗位、重复技能、重复键等错误必须在加载时暴露，而不是搜索时
func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name  string
		roles []JobRole
	}{
		{
			name:  "空目录",
			roles: nil,
		},
		{
			name: "零所需技能",
			roles: []JobRole{
				{Key: "empty_role", Title: "Empty Role"},
			},
		},
		{
			name: "岗位内技能重复",
			roles: []JobRole{
				{Key: "dup_role", Title: "Dup Role", RequiredSkills: []RoleSkill{
					{Token: "Python"}, {Token: "python"},
				}},
			},
		},
		{
			name: "规范化后技能重复",
			roles: []JobRole{
				{Key: "dup_norm", Title: "Dup Norm", RequiredSkills: []RoleSkill{
					{Token: "ReactJS"}, {Token: "react"},
				}},
			},
		},
		{
			name: "岗位键重复",
			roles: []JobRole{
				{Key: "r1", Title: "R1", RequiredSkills: []RoleSkill{{Token: "go"}}},
				{Key: "r1", Title: "R1 Again", RequiredSkills: []RoleSkill{{Token: "go"}}},
			},
		},
		{
			name: "负权重",
			roles: []JobRole{
				{Key: "neg", Title: "Neg", RequiredSkills: []RoleSkill{{Token: "go", Weight: -1}}},
			},
		},
		{
			name: "空键",
			roles: []JobRole{
				{Key: "  ", Title: "Blank", RequiredSkills: []RoleSkill{{Token: "go"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := NewCatalog(tt.roles)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Nil(t, catalog)
		})
	}
}

// TestNewCatalogDefaultWeights 验证未加权技能使用统一权重1
func TestNewCatalogDefaultWeights(t *testing.T) {
	catalog, err := NewCatalog([]JobRole{
		{Key: "mixed", Title: "Mixed", RequiredSkills: []RoleSkill{
			{Token: "go", Weight: 3},
			{Token: "sql"},
		}},
	})
	require.NoError(t, err)

	role, err := catalog.GetRole("mixed")
	require.NoError(t, err)
	assert.Equal(t, 3.0, role.RequiredSkills[0].Weight)
	assert.Equal(t, 1.0, role.RequiredSkills[1].Weight)
	assert.Equal(t, 4.0, role.TotalWeight())
}

// TestCatalogGetRoleNotFound 验证未知岗位键返回ErrRoleNotFound
func TestCatalogGetRoleNotFound(t *testing.T) {
	catalog := DefaultCatalog()

	role, err := catalog.GetRole("blockchain_engineer")
	assert.Nil(t, role)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

// TestCatalogResolveRole 验证按键、标题、规范化键三种方式解析岗位
func TestCatalogResolveRole(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name    string
		input   string
		wantKey string
	}{
		{"精确键", "data_scientist", "data_scientist"},
		{"展示标题", "Data Scientist", "data_scientist"},
		{"标题大小写不敏感", "data scientist", "data_scientist"},
		{"连字符变体", "Data-Scientist", "data_scientist"},
		{"后端标题", "Backend Developer", "backend_developer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := catalog.ResolveRole(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, role.Key)
		})
	}

	_, err := catalog.ResolveRole("blockchain engineer")
	assert.ErrorIs(t, err, ErrRoleNotFound)

	_, err = catalog.ResolveRole("   ")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

// TestCatalogListRolesOrder 验证ListRoles保持定义顺序
func TestCatalogListRolesOrder(t *testing.T) {
	catalog, err := NewCatalog([]JobRole{
		{Key: "b_role", Title: "B Role", RequiredSkills: []RoleSkill{{Token: "go"}}},
		{Key: "a_role", Title: "A Role", RequiredSkills: []RoleSkill{{Token: "go"}}},
	})
	require.NoError(t, err)

	summaries := catalog.ListRoles()
	require.Len(t, summaries, 2)
	assert.Equal(t, "b_role", summaries[0].Key)
	assert.Equal(t, "a_role", summaries[1].Key)
}

// TestLoadCatalogFile 验证从YAML文件加载目录
func TestLoadCatalogFile(t *testing.T) {
	content := `
roles:
  - key: data_scientist
    title: Data Scientist
    required_skills:
      - token: python
        weight: 2
      - token: sql
      - token: machine-learning
      - token: statistics
`
	tmpDir, err := os.MkdirTemp("", "catalog-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Len())

	role, err := catalog.GetRole("data_scientist")
	require.NoError(t, err)
	assert.Equal(t, "Data Scientist", role.Title)
	require.Len(t, role.RequiredSkills, 4)
	// 技能标记在加载时即被规范化
	assert.Equal(t, "machine learning", role.RequiredSkills[2].Token)
	assert.Equal(t, 2.0, role.RequiredSkills[0].Weight)
	assert.Equal(t, 1.0, role.RequiredSkills[1].Weight)
}

// TestLoadCatalogFileInvalid 验证坏文件与坏定义的加载错误
func TestLoadCatalogFileInvalid(t *testing.T) {
	_, err := LoadCatalogFile("/nonexistent/roles.yaml")
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	tmpDir, err := os.MkdirTemp("", "catalog-test-bad")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  - key: bad\n    title: Bad\n"), 0644))

	_, err = LoadCatalogFile(path)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
