package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"
)

// CandidateHandler 候选人档案查询
type CandidateHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	logger  *log.Logger
}

// NewCandidateHandler 创建一个新的候选人处理器
func NewCandidateHandler(cfg *config.Config, storage *storage.Storage) *CandidateHandler {
	return &CandidateHandler{
		cfg:     cfg,
		storage: storage,
		logger:  log.New(os.Stdout, "[CandidateHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleListCandidates 分页列出候选人
// GET /api/v1/candidates?offset=0&limit=50
func (h *CandidateHandler) HandleListCandidates(ctx context.Context, c *app.RequestContext) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	candidates, total, err := h.storage.MySQL.ListCandidates(ctx, offset, limit)
	if err != nil {
		h.logger.Printf("查询候选人列表失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询候选人列表失败"})
		return
	}

	items := make([]types.CandidateSummary, 0, len(candidates))
	for _, cand := range candidates {
		skills := make([]string, 0, len(cand.Skills))
		for _, s := range cand.Skills {
			skills = append(skills, s.Name)
		}
		items = append(items, types.CandidateSummary{
			CandidateID:       cand.CandidateID,
			Name:              cand.Name,
			Email:             cand.Email,
			Skills:            skills,
			ExperienceSummary: cand.ExperienceSummary,
			UploadedAt:        cand.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"total":  total,
		"offset": offset,
		"limit":  limit,
		"data":   items,
	})
}

// HandleGetCandidate 查询单个候选人的完整档案
// GET /api/v1/candidates/:candidate_id
func (h *CandidateHandler) HandleGetCandidate(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Param("candidate_id")
	if candidateID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 不能为空"})
		return
	}

	candidate, err := h.storage.MySQL.GetCandidateByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "候选人不存在"})
			return
		}
		h.logger.Printf("查询候选人失败 %s: %v", candidateID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询候选人失败"})
		return
	}

	educations, err := h.storage.MySQL.GetCandidateEducations(ctx, candidateID)
	if err != nil {
		h.logger.Printf("查询教育经历失败 %s: %v", candidateID, err)
	}
	experiences, err := h.storage.MySQL.GetCandidateExperiences(ctx, candidateID)
	if err != nil {
		h.logger.Printf("查询工作经历失败 %s: %v", candidateID, err)
	}
	projects, err := h.storage.MySQL.GetCandidateProjects(ctx, candidateID)
	if err != nil {
		h.logger.Printf("查询项目经历失败 %s: %v", candidateID, err)
	}

	skills := make([]map[string]string, 0, len(candidate.Skills))
	for _, s := range candidate.Skills {
		skills = append(skills, map[string]string{
			"name":     s.Name,
			"category": s.Category,
		})
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id":       candidate.CandidateID,
		"name":               candidate.Name,
		"email":              candidate.Email,
		"phone":              candidate.Phone,
		"location":           candidate.Location,
		"experience_summary": candidate.ExperienceSummary,
		"skills":             skills,
		"education":          educations,
		"experience":         experiences,
		"projects":           projects,
	})
}

// HandleGetCandidateFile 获取候选人最近一次上传的原始简历文件
// GET /api/v1/candidates/:candidate_id/file
//
// 默认返回带有效期的预签名下载URL；?download=true 时直接回传文件内容。
func (h *CandidateHandler) HandleGetCandidateFile(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Param("candidate_id")
	if candidateID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 不能为空"})
		return
	}

	upload, err := h.storage.MySQL.GetLatestUploadForCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "候选人没有上传记录"})
			return
		}
		h.logger.Printf("查询候选人上传记录失败 %s: %v", candidateID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询上传记录失败"})
		return
	}

	if c.Query("download") == "true" {
		fileBytes, err := h.storage.MinIO.GetResumeFile(ctx, upload.FilePathOSS)
		if err != nil {
			h.logger.Printf("下载简历文件失败 %s: %v", upload.FilePathOSS, err)
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": "下载简历文件失败"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=\""+upload.OriginalFilename+"\"")
		c.Data(consts.StatusOK, upload.ContentType, fileBytes)
		return
	}

	url, err := h.storage.MinIO.GetPresignedURL(ctx, upload.FilePathOSS, 15*time.Minute)
	if err != nil {
		h.logger.Printf("生成预签名URL失败 %s: %v", upload.FilePathOSS, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "生成下载链接失败"})
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id": candidateID,
		"upload_uuid":  upload.UploadUUID,
		"filename":     upload.OriginalFilename,
		"url":          url,
		"expires_in":   int((15 * time.Minute).Seconds()),
	})
}
