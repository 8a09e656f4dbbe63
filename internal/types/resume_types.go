package types

// ParsedResume LLM抽取得到的简历结构化数据。
// 字段与抽取提示词中要求的JSON结构一一对应。
type ParsedResume struct {
	Name              string             `json:"name"`
	Email             string             `json:"email" validate:"omitempty,email"`
	Phone             string             `json:"phone"`
	Location          string             `json:"location"`
	Skills            []string           `json:"skills" validate:"required"`
	Education         []ParsedEducation  `json:"education"`
	Experience        []ParsedExperience `json:"experience"`
	ExperienceSummary string             `json:"experience_summary"`
	Projects          []ParsedProject    `json:"projects"`
}

// ParsedEducation 教育经历条目
type ParsedEducation struct {
	Degree       string `json:"degree"`
	Institution  string `json:"institution"`
	Year         string `json:"year"`
	FieldOfStudy string `json:"field_of_study"`
}

// ParsedExperience 工作经历条目
type ParsedExperience struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// ParsedProject 项目经历条目
type ParsedProject struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	TechnologiesUsed string `json:"technologies_used"`
	GithubLink       string `json:"github_link"`
	Role             string `json:"role"`
	Duration         string `json:"duration"`
}

// RankedCandidate 搜索结果中单个候选人的匹配评分
type RankedCandidate struct {
	CandidateID  string   `json:"candidate_id"`
	Name         string   `json:"name,omitempty"`
	Score        int      `json:"score"`
	Tier         string   `json:"tier,omitempty"`
	Matched      []string `json:"matched"`
	Missing      []string `json:"missing,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// RoleSearchResponse 按岗位搜索的分页响应
type RoleSearchResponse struct {
	RoleKey    string            `json:"role_key"`
	RoleTitle  string            `json:"role_title"`
	Cursor     int64             `json:"cursor"`
	NextCursor int64             `json:"next_cursor"`
	Size       int64             `json:"size"`
	TotalCount int64             `json:"total_count"`
	Candidates []RankedCandidate `json:"candidates"`
}

// QuerySearchResponse 自由文本搜索响应
type QuerySearchResponse struct {
	Query      string            `json:"query"`
	Terms      []string          `json:"terms"`
	Mode       string            `json:"mode"` // "role" 或 "query"
	TotalCount int               `json:"total_count"`
	Candidates []RankedCandidate `json:"candidates"`
}

// CandidateSummary 候选人列表项
type CandidateSummary struct {
	CandidateID       string   `json:"candidate_id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Filename          string   `json:"filename"`
	Skills            []string `json:"skills"`
	ExperienceSummary string   `json:"experience_summary"`
	UploadedAt        string   `json:"uploaded_at"`
}
