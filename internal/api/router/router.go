package router

import (
	"context"
	"strings"

	"resume-screening-go/internal/api/handler"
	"resume-screening-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(
	h *server.Hertz,
	cfg *config.Config,
	resumeHandler *handler.ResumeHandler,
	searchHandler *handler.SearchHandler,
	candidateHandler *handler.CandidateHandler,
	shortlistHandler *handler.ShortlistHandler,
) {
	// 健康检查不走认证
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")

	// 配置了API密钥时启用keyauth认证
	if len(cfg.Server.APIKeys) > 0 {
		api.Use(apiKeyMiddleware(cfg.Server.APIKeys))
	}

	// 简历上传与上传记录
	api.POST("/resumes/upload", resumeHandler.HandleResumeUpload)
	api.GET("/resumes", resumeHandler.HandleListUploads)
	api.GET("/resumes/:upload_uuid", resumeHandler.HandleGetUpload)

	// 搜索
	api.GET("/search", searchHandler.HandleSearchByQuery)
	api.GET("/search/roles", searchHandler.HandleListRoles)
	api.GET("/search/by-role", searchHandler.HandleSearchByRole)

	// 候选人档案
	api.GET("/candidates", candidateHandler.HandleListCandidates)
	api.GET("/candidates/:candidate_id", candidateHandler.HandleGetCandidate)
	api.GET("/candidates/:candidate_id/file", candidateHandler.HandleGetCandidateFile)

	// 入围名单
	api.GET("/shortlisted", shortlistHandler.HandleListShortlisted)
	api.POST("/shortlisted", shortlistHandler.HandleAddShortlisted)
	api.DELETE("/shortlisted", shortlistHandler.HandleRemoveShortlisted)
}

// apiKeyMiddleware 基于keyauth的Bearer令牌认证
func apiKeyMiddleware(apiKeys []string) app.HandlerFunc {
	keySet := make(map[string]bool, len(apiKeys))
	for _, key := range apiKeys {
		if k := strings.TrimSpace(key); k != "" {
			keySet[k] = true
		}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			return keySet[key], nil
		}),
	)
}
