package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ResumeUpload 简历上传记录表，每次上传对应一行
type ResumeUpload struct {
	UploadUUID       string         `gorm:"type:char(36);primaryKey"`
	CandidateID      *string        `gorm:"type:char(36);index:idx_ru_candidate_id"` // 解析成功后回填
	OriginalFilename string         `gorm:"type:varchar(255)"`
	FilePathOSS      string         `gorm:"type:varchar(1024)"`
	ContentType      string         `gorm:"type:varchar(100)"`
	FileSize         int64          `gorm:"type:bigint"`
	FileMD5          string         `gorm:"type:char(32);index:idx_ru_file_md5"`
	ProcessingStatus string         `gorm:"type:varchar(50);default:'PENDING_PARSING';index:idx_ru_processing_status"`
	ParserVersion    string         `gorm:"type:varchar(50)"`
	ErrorDetail      string         `gorm:"type:text"`
	RawParsedJSON    datatypes.JSON `gorm:"type:json"` // LLM解析结果原文快照
	UploadedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ru_uploaded_at"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (ResumeUpload) TableName() string {
	return "resume_uploads"
}

// Candidate 候选人主表
type Candidate struct {
	CandidateID       string    `gorm:"type:char(36);primaryKey"`
	Name              string    `gorm:"type:varchar(255)"`
	Email             string    `gorm:"type:varchar(255);index:idx_candidates_email"`
	Phone             string    `gorm:"type:varchar(50)"`
	Location          string    `gorm:"type:varchar(255)"`
	ExperienceSummary string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Skills []Skill `gorm:"many2many:candidate_skills;foreignKey:CandidateID;joinForeignKey:CandidateID;references:SkillID;joinReferences:SkillID"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Skill 技能词表。技能名为规范化后的形式，全局唯一。
type Skill struct {
	SkillID   uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_skills_name_unique"`
	Category  string    `gorm:"type:varchar(50);index:idx_skills_category"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Skill) TableName() string {
	return "skills"
}

// Education 教育经历表
type Education struct {
	EducationID  uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID  string    `gorm:"type:char(36);not null;index:idx_edu_candidate_id"`
	Degree       string    `gorm:"type:varchar(255)"`
	Institution  string    `gorm:"type:varchar(255)"`
	Year         string    `gorm:"type:varchar(20)"`
	FieldOfStudy string    `gorm:"type:varchar(255)"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Education) TableName() string {
	return "educations"
}

// Experience 工作经历表
type Experience struct {
	ExperienceID uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID  string    `gorm:"type:char(36);not null;index:idx_exp_candidate_id"`
	JobTitle     string    `gorm:"type:varchar(255)"`
	Company      string    `gorm:"type:varchar(255)"`
	Duration     string    `gorm:"type:varchar(100)"`
	Description  string    `gorm:"type:text"`
	StartDate    string    `gorm:"type:varchar(50)"`
	EndDate      string    `gorm:"type:varchar(50)"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Experience) TableName() string {
	return "experiences"
}

// Project 项目经历表
type Project struct {
	ProjectID        uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID      string    `gorm:"type:char(36);not null;index:idx_proj_candidate_id"`
	Title            string    `gorm:"type:varchar(255)"`
	Description      string    `gorm:"type:text"`
	TechnologiesUsed string    `gorm:"type:text"`
	GithubLink       string    `gorm:"type:varchar(512)"`
	Role             string    `gorm:"type:varchar(255)"`
	Duration         string    `gorm:"type:varchar(100)"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Project) TableName() string {
	return "projects"
}

// ShortlistedCandidate 候选人入围名单表
type ShortlistedCandidate struct {
	ShortlistID uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID string    `gorm:"type:char(36);not null;uniqueIndex:uq_shortlist_candidate_role,priority:1"`
	RoleKey     string    `gorm:"type:varchar(100);not null;uniqueIndex:uq_shortlist_candidate_role,priority:2;index:idx_shortlist_role_key"`
	Score       int       `gorm:"type:int"`
	Notes       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ShortlistedCandidate) TableName() string {
	return "shortlisted_candidates"
}

// StructToJSON 将任意结构序列化为datatypes.JSON
func StructToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
