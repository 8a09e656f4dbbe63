package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"
)

// ShortlistHandler 候选人入围名单管理
type ShortlistHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	engine  *matching.Engine
	logger  *log.Logger
}

// NewShortlistHandler 创建一个新的入围名单处理器
func NewShortlistHandler(cfg *config.Config, storage *storage.Storage, engine *matching.Engine) *ShortlistHandler {
	return &ShortlistHandler{
		cfg:     cfg,
		storage: storage,
		engine:  engine,
		logger:  log.New(os.Stdout, "[ShortlistHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// shortlistRequest 入围请求体
type shortlistRequest struct {
	CandidateID string `json:"candidate_id"`
	RoleKey     string `json:"role_key"`
	Score       int    `json:"score"`
	Notes       string `json:"notes"`
}

// HandleAddShortlisted 将候选人加入某岗位的入围名单
// POST /api/v1/shortlisted
func (h *ShortlistHandler) HandleAddShortlisted(ctx context.Context, c *app.RequestContext) {
	var req shortlistRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if req.CandidateID == "" || req.RoleKey == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 和 role_key 不能为空"})
		return
	}

	// 岗位必须存在于目录中
	role, err := h.engine.Catalog().GetRole(req.RoleKey)
	if err != nil {
		c.JSON(consts.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	// 候选人必须存在
	if _, err := h.storage.MySQL.GetCandidateByID(ctx, req.CandidateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "候选人不存在"})
			return
		}
		h.logger.Printf("查询候选人失败 %s: %v", req.CandidateID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询候选人失败"})
		return
	}

	entry := &models.ShortlistedCandidate{
		CandidateID: req.CandidateID,
		RoleKey:     role.Key,
		Score:       req.Score,
		Notes:       req.Notes,
	}
	if err := h.storage.MySQL.AddShortlisted(ctx, entry); err != nil {
		h.logger.Printf("写入入围记录失败 %s/%s: %v", req.CandidateID, role.Key, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "写入入围记录失败"})
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id": req.CandidateID,
		"role_key":     role.Key,
		"status":       "SHORTLISTED",
	})
}

// HandleListShortlisted 查询某岗位的入围名单
// GET /api/v1/shortlisted?role=backend_developer
func (h *ShortlistHandler) HandleListShortlisted(ctx context.Context, c *app.RequestContext) {
	roleKey := c.Query("role")
	if roleKey == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "role 不能为空"})
		return
	}

	role, err := h.engine.Catalog().GetRole(roleKey)
	if err != nil {
		c.JSON(consts.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	entries, err := h.storage.MySQL.ListShortlisted(ctx, role.Key)
	if err != nil {
		h.logger.Printf("查询入围名单失败 %s: %v", role.Key, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询入围名单失败"})
		return
	}

	items := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		item := map[string]interface{}{
			"candidate_id": entry.CandidateID,
			"role_key":     entry.RoleKey,
			"score":        entry.Score,
			"notes":        entry.Notes,
			"created_at":   entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.Candidate != nil {
			item["name"] = entry.Candidate.Name
			item["email"] = entry.Candidate.Email
		}
		items = append(items, item)
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"role_key":   role.Key,
		"role_title": role.Title,
		"total":      len(items),
		"data":       items,
	})
}

// HandleRemoveShortlisted 将候选人移出某岗位的入围名单
// DELETE /api/v1/shortlisted?candidate_id=xxx&role=backend_developer
func (h *ShortlistHandler) HandleRemoveShortlisted(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Query("candidate_id")
	roleKey := c.Query("role")
	if candidateID == "" || roleKey == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 和 role 不能为空"})
		return
	}

	affected, err := h.storage.MySQL.RemoveShortlisted(ctx, candidateID, roleKey)
	if err != nil {
		h.logger.Printf("移除入围记录失败 %s/%s: %v", candidateID, roleKey, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "移除入围记录失败"})
		return
	}
	if affected == 0 {
		c.JSON(consts.StatusNotFound, map[string]string{"error": "入围记录不存在"})
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id": candidateID,
		"role_key":     roleKey,
		"status":       "REMOVED",
	})
}
