package matching

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoleSkill 岗位要求的单个技能及其权重
type RoleSkill struct {
	Token  string  `yaml:"token" json:"token"`
	Weight float64 `yaml:"weight,omitempty" json:"weight"`
}

// JobRole 岗位定义：稳定键、展示标题、有序的所需技能列表
type JobRole struct {
	Key            string      `yaml:"key" json:"key"`
	Title          string      `yaml:"title" json:"title"`
	RequiredSkills []RoleSkill `yaml:"required_skills" json:"required_skills"`
}

// RoleSummary 岗位目录列表项
type RoleSummary struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// TotalWeight 返回岗位所有所需技能的权重之和
func (r *JobRole) TotalWeight() float64 {
	var total float64
	for _, s := range r.RequiredSkills {
		total += s.Weight
	}
	return total
}

// Catalog 岗位目录。进程启动时加载一次，此后只读，
// 可被任意数量的并发搜索请求安全共享。
type Catalog struct {
	order   []string            // 保持定义顺序的岗位键列表
	roles   map[string]*JobRole // 岗位键 -> 岗位定义
	byTitle map[string]string   // 小写标题 -> 岗位键
}

// catalogFile 岗位目录YAML文件的顶层结构
type catalogFile struct {
	Roles []JobRole `yaml:"roles"`
}

// NewCatalog 由岗位定义列表构建目录，并做加载期校验：
// 键/标题非空、键唯一、至少一个所需技能、同一岗位内技能规范化后无重复、权重非负。
// 未指定权重（零值）的技能使用统一权重1。
// 任何校验失败都返回ErrInvalidCatalog，调用方应据此中止启动。
func NewCatalog(roles []JobRole) (*Catalog, error) {
	if len(roles) == 0 {
		return nil, NewCatalogError("", "目录中至少需要定义一个岗位")
	}

	c := &Catalog{
		order:   make([]string, 0, len(roles)),
		roles:   make(map[string]*JobRole, len(roles)),
		byTitle: make(map[string]string, len(roles)),
	}

	for i := range roles {
		role := roles[i]
		if strings.TrimSpace(role.Key) == "" {
			return nil, NewCatalogError(role.Title, "岗位键不能为空")
		}
		if strings.TrimSpace(role.Title) == "" {
			return nil, NewCatalogError(role.Key, "岗位标题不能为空")
		}
		if _, exists := c.roles[role.Key]; exists {
			return nil, NewCatalogError(role.Key, "岗位键重复")
		}
		if len(role.RequiredSkills) == 0 {
			return nil, NewCatalogError(role.Key, "岗位必须声明至少一个所需技能")
		}

		seen := make(map[string]struct{}, len(role.RequiredSkills))
		normalized := make([]RoleSkill, 0, len(role.RequiredSkills))
		for _, s := range role.RequiredSkills {
			token := Normalize(s.Token)
			if token == "" {
				return nil, NewCatalogError(role.Key, fmt.Sprintf("所需技能 %q 规范化后为空", s.Token))
			}
			if _, dup := seen[token]; dup {
				return nil, NewCatalogError(role.Key, fmt.Sprintf("所需技能 %q 在岗位内重复", token))
			}
			seen[token] = struct{}{}

			weight := s.Weight
			if weight < 0 {
				return nil, NewCatalogError(role.Key, fmt.Sprintf("技能 %q 的权重不能为负", token))
			}
			if weight == 0 {
				weight = 1 // 未加权时的统一默认权重
			}
			normalized = append(normalized, RoleSkill{Token: token, Weight: weight})
		}

		stored := &JobRole{Key: role.Key, Title: role.Title, RequiredSkills: normalized}
		c.order = append(c.order, role.Key)
		c.roles[role.Key] = stored
		c.byTitle[strings.ToLower(role.Title)] = role.Key
	}

	return c, nil
}

// LoadCatalogFile 从YAML文件加载岗位目录
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewCatalogError("", fmt.Sprintf("读取岗位目录文件失败: %v", err))
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, NewCatalogError("", fmt.Sprintf("解析岗位目录文件失败: %v", err))
	}

	return NewCatalog(file.Roles)
}

// ListRoles 按定义顺序返回所有岗位的摘要
func (c *Catalog) ListRoles() []RoleSummary {
	out := make([]RoleSummary, 0, len(c.order))
	for _, key := range c.order {
		role := c.roles[key]
		out = append(out, RoleSummary{Key: role.Key, Title: role.Title})
	}
	return out
}

// GetRole 按岗位键精确查找，未找到时返回ErrRoleNotFound
func (c *Catalog) GetRole(key string) (*JobRole, error) {
	if role, ok := c.roles[key]; ok {
		return role, nil
	}
	return nil, NewRoleNotFoundError(key)
}

// ResolveRole 按用户输入解析岗位，依次尝试：
// 精确键匹配、标题的大小写不敏感匹配、规范化键匹配
// （空白/连字符映射为下划线，兼容用户直接输入展示标题或键的变体）。
func (c *Catalog) ResolveRole(input string) (*JobRole, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, NewRoleNotFoundError(input)
	}

	if role, ok := c.roles[trimmed]; ok {
		return role, nil
	}

	if key, ok := c.byTitle[strings.ToLower(trimmed)]; ok {
		return c.roles[key], nil
	}

	if role, ok := c.roles[NormalizeKey(trimmed)]; ok {
		return role, nil
	}

	return nil, NewRoleNotFoundError(input)
}

// Len 返回目录中的岗位数量
func (c *Catalog) Len() int {
	return len(c.order)
}

// DefaultCatalog 返回内置的默认岗位目录，配置文件缺省时使用。
// 技能均为统一权重。
func DefaultCatalog() *Catalog {
	roles := []JobRole{
		{
			Key:   "data_scientist",
			Title: "Data Scientist",
			RequiredSkills: []RoleSkill{
				{Token: "python"}, {Token: "sql"}, {Token: "machine learning"}, {Token: "statistics"},
			},
		},
		{
			Key:   "backend_developer",
			Title: "Backend Developer",
			RequiredSkills: []RoleSkill{
				{Token: "go"}, {Token: "sql"}, {Token: "rest"}, {Token: "docker"}, {Token: "redis"},
			},
		},
		{
			Key:   "frontend_developer",
			Title: "Frontend Developer",
			RequiredSkills: []RoleSkill{
				{Token: "javascript"}, {Token: "react"}, {Token: "html"}, {Token: "css"},
			},
		},
		{
			Key:   "fullstack_developer",
			Title: "Full Stack Developer",
			RequiredSkills: []RoleSkill{
				{Token: "javascript"}, {Token: "react"}, {Token: "node"}, {Token: "sql"}, {Token: "rest"},
			},
		},
		{
			Key:   "devops_engineer",
			Title: "DevOps Engineer",
			RequiredSkills: []RoleSkill{
				{Token: "docker"}, {Token: "kubernetes"}, {Token: "cicd"}, {Token: "linux"}, {Token: "aws"},
			},
		},
		{
			Key:   "machine_learning_engineer",
			Title: "Machine Learning Engineer",
			RequiredSkills: []RoleSkill{
				{Token: "python"}, {Token: "machine learning"}, {Token: "deep learning"}, {Token: "tensorflow"},
			},
		},
		{
			Key:   "mobile_developer",
			Title: "Mobile Developer",
			RequiredSkills: []RoleSkill{
				{Token: "kotlin"}, {Token: "swift"}, {Token: "android"}, {Token: "ios"},
			},
		},
		{
			Key:   "qa_engineer",
			Title: "QA Engineer",
			RequiredSkills: []RoleSkill{
				{Token: "selenium"}, {Token: "testing"}, {Token: "automation"}, {Token: "python"},
			},
		},
		{
			Key:   "data_engineer",
			Title: "Data Engineer",
			RequiredSkills: []RoleSkill{
				{Token: "python"}, {Token: "sql"}, {Token: "spark"}, {Token: "etl"}, {Token: "airflow"},
			},
		},
	}

	catalog, err := NewCatalog(roles)
	if err != nil {
		// 内置目录在编译期即固定，构建失败属于程序缺陷
		panic(fmt.Sprintf("内置岗位目录构建失败: %v", err))
	}
	return catalog
}
