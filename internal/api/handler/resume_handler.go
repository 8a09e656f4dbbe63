package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/constants"
	"resume-screening-go/internal/logger"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"
)

// ResumeHandler 简历上传与上传记录查询
type ResumeHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	logger  *log.Logger
}

// NewResumeHandler 创建一个新的简历上传处理器
func NewResumeHandler(cfg *config.Config, storage *storage.Storage) *ResumeHandler {
	return &ResumeHandler{
		cfg:     cfg,
		storage: storage,
		logger:  log.New(os.Stdout, "[ResumeHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	UploadUUID string `json:"upload_uuid"`
	Status     string `json:"status"`
	// 命中去重时返回最初上传的UUID
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// HandleResumeUpload 处理简历上传请求
// POST /api/v1/resumes/upload (multipart/form-data, 字段名 file)
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "文件未找到"})
		return
	}

	// 1. 校验扩展名与文件大小
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !constants.AllowedFileExtensions[ext] {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": fmt.Sprintf("不支持的文件类型: %s", ext)})
		return
	}
	if fileHeader.Size > constants.MaxResumeFileSize {
		c.JSON(consts.StatusRequestEntityTooLarge, map[string]string{"error": "文件大小超过限制"})
		return
	}
	if fileHeader.Size == 0 {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "文件内容为空"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	// 2. 生成UUIDv7作为上传标识
	uuidV7, err := uuid.NewV7()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "生成上传UUID失败"})
		return
	}
	uploadUUID := uuidV7.String()

	// 3. 流式上传原始文件到MinIO，同时计算文件MD5
	objectKey, fileMD5Hex, err := h.storage.MinIO.UploadResumeFileStreaming(ctx, uploadUUID, ext, file, fileHeader.Size)
	if err != nil {
		logger.Error().Err(err).Str("upload_uuid", uploadUUID).Msg("上传简历到MinIO失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "上传简历文件失败"})
		return
	}

	// 4. 基于文件MD5去重
	exists, existingUUID, err := h.storage.Redis.CheckAndSetFileMD5(ctx, fileMD5Hex, uploadUUID)
	if err != nil {
		// 去重检查失败时继续流程，后续解析阶段是另一道防线
		logger.Warn().Err(err).Str("md5", fileMD5Hex).Msg("检查文件MD5重复性失败，跳过去重")
	} else if exists {
		logger.Info().
			Str("md5", fileMD5Hex).
			Str("filename", fileHeader.Filename).
			Str("duplicate_of", existingUUID).
			Msg("检测到重复的文件MD5，跳过处理")
		// 重复文件不入库，清理刚上传的对象
		if delErr := h.storage.MinIO.DeleteResumeFile(ctx, objectKey); delErr != nil {
			logger.Warn().Err(delErr).Str("object_key", objectKey).Msg("清理重复文件对象失败")
		}
		c.JSON(consts.StatusConflict, ResumeUploadResponse{
			UploadUUID:  "",
			Status:      "DUPLICATE_FILE_SKIPPED",
			DuplicateOf: existingUUID,
		})
		return
	}

	// 5. 写入上传记录
	now := time.Now()
	upload := &models.ResumeUpload{
		UploadUUID:       uploadUUID,
		OriginalFilename: fileHeader.Filename,
		FilePathOSS:      objectKey,
		ContentType:      storage.GetContentType(ext),
		FileSize:         fileHeader.Size,
		FileMD5:          fileMD5Hex,
		ProcessingStatus: constants.StatusPendingParsing,
		UploadedAt:       now,
	}
	if err := h.storage.MySQL.CreateResumeUpload(ctx, upload); err != nil {
		logger.Error().Err(err).Str("upload_uuid", uploadUUID).Msg("写入上传记录失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "写入上传记录失败"})
		return
	}

	// 6. 发布上传事件到解析队列
	message := storage.ResumeUploadedMessage{
		UploadUUID:       uploadUUID,
		UploadedAt:       now,
		OriginalFilename: fileHeader.Filename,
		FilePathOSS:      objectKey,
		FileExt:          ext,
		FileMD5:          fileMD5Hex,
		FileSize:         fileHeader.Size,
		ContentType:      storage.GetContentType(ext),
	}
	err = h.storage.RabbitMQ.PublishJSON(
		ctx,
		h.cfg.RabbitMQ.ResumeEventsExchange,
		h.cfg.RabbitMQ.UploadedRoutingKey,
		message,
		true, // 持久化
	)
	if err != nil {
		logger.Error().Err(err).Str("upload_uuid", uploadUUID).Msg("发布上传消息到RabbitMQ失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "发布解析任务失败"})
		return
	}

	c.JSON(consts.StatusOK, ResumeUploadResponse{
		UploadUUID: uploadUUID,
		Status:     "SUBMITTED_FOR_PARSING",
	})
}

// HandleGetUpload 查询单个上传记录的处理状态
// GET /api/v1/resumes/:upload_uuid
func (h *ResumeHandler) HandleGetUpload(ctx context.Context, c *app.RequestContext) {
	uploadUUID := c.Param("upload_uuid")
	if uploadUUID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "upload_uuid 不能为空"})
		return
	}

	upload, err := h.storage.MySQL.GetUploadByUUID(ctx, uploadUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "上传记录不存在"})
			return
		}
		h.logger.Printf("查询上传记录失败 %s: %v", uploadUUID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询上传记录失败"})
		return
	}

	resp := map[string]interface{}{
		"upload_uuid":       upload.UploadUUID,
		"original_filename": upload.OriginalFilename,
		"processing_status": upload.ProcessingStatus,
		"parser_version":    upload.ParserVersion,
		"uploaded_at":       upload.UploadedAt.Format(time.RFC3339),
	}
	if upload.CandidateID != nil {
		resp["candidate_id"] = *upload.CandidateID
	}
	if upload.ErrorDetail != "" {
		resp["error_detail"] = upload.ErrorDetail
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleListUploads 查询最近的上传记录
// GET /api/v1/resumes?limit=50
func (h *ResumeHandler) HandleListUploads(ctx context.Context, c *app.RequestContext) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	uploads, err := h.storage.MySQL.ListUploads(ctx, limit)
	if err != nil {
		h.logger.Printf("查询上传记录列表失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询上传记录失败"})
		return
	}

	items := make([]map[string]interface{}, 0, len(uploads))
	for _, upload := range uploads {
		item := map[string]interface{}{
			"upload_uuid":       upload.UploadUUID,
			"original_filename": upload.OriginalFilename,
			"processing_status": upload.ProcessingStatus,
			"uploaded_at":       upload.UploadedAt.Format(time.RFC3339),
		}
		if upload.CandidateID != nil {
			item["candidate_id"] = *upload.CandidateID
		}
		items = append(items, item)
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"total": len(items),
		"data":  items,
	})
}
