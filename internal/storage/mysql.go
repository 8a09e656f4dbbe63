package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/storage/models"
	"resume-screening-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-screening-go/storage/mysql")

// GormTracingPlugin GORM插件，向OpenTelemetry上报数据库操作span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", sqlStatement),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，供after回调使用
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

type gormSpanKey struct{}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// ErrRecordNotFound属于正常业务分支，不作为错误上报
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.SetAttributes(attribute.String("error.message", db.Error.Error()))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否跳过SkipHooks语句的追踪
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.ResumeUpload{},
		&models.Candidate{},
		&models.Skill{},
		&models.Education{},
		&models.Experience{},
		&models.Project{},
		&models.ShortlistedCandidate{},
		&models.OutboxMessage{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	log.Println("GORM数据库结构迁移成功")
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateResumeUpload 插入一条简历上传记录，主键冲突时幂等
func (m *MySQL) CreateResumeUpload(ctx context.Context, upload *models.ResumeUpload) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "upload_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"upload_uuid"}),
		}).Create(upload).Error
}

// UpdateUploadStatus 更新上传记录的处理状态
func (m *MySQL) UpdateUploadStatus(ctx context.Context, uploadUUID string, status string) error {
	return m.db.WithContext(ctx).Model(&models.ResumeUpload{}).
		Where("upload_uuid = ?", uploadUUID).
		Update("processing_status", status).Error
}

// MarkUploadFailed 将上传记录标记为解析失败并记录错误详情
func (m *MySQL) MarkUploadFailed(ctx context.Context, uploadUUID string, detail string) error {
	return m.db.WithContext(ctx).Model(&models.ResumeUpload{}).
		Where("upload_uuid = ?", uploadUUID).
		Updates(map[string]interface{}{
			"processing_status": "PARSE_FAILED",
			"error_detail":      detail,
		}).Error
}

// GetUploadByUUID 按上传UUID查询上传记录
func (m *MySQL) GetUploadByUUID(ctx context.Context, uploadUUID string) (*models.ResumeUpload, error) {
	var upload models.ResumeUpload
	if err := m.db.WithContext(ctx).Where("upload_uuid = ?", uploadUUID).First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListUploads 按上传时间倒序列出上传记录
func (m *MySQL) ListUploads(ctx context.Context, limit int) ([]models.ResumeUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	var uploads []models.ResumeUpload
	err := m.db.WithContext(ctx).Order("uploaded_at DESC").Limit(limit).Find(&uploads).Error
	return uploads, err
}

// NormalizeEmail 归一化邮箱作为候选人归并键：去首尾空白并转小写。
// 查找与落库都必须走这一键，否则大小写不同的同一邮箱会产生重复候选人。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindOrCreateCandidate 按邮箱查找候选人，未找到时创建。
// 邮箱为空时总是创建新候选人（无法做身份归并）。
func (m *MySQL) FindOrCreateCandidate(ctx context.Context, tx *gorm.DB, parsed *types.ParsedResume) (*models.Candidate, error) {
	email := NormalizeEmail(parsed.Email)

	ctx, span := mysqlTracer.Start(ctx, "FindOrCreateCandidate", trace.WithAttributes(
		attribute.String("candidate.email", email),
	))
	defer span.End()

	db := m.db
	if tx != nil {
		db = tx
	}

	if email != "" {
		var candidate models.Candidate
		err := db.WithContext(ctx).Where("email = ?", email).First(&candidate).Error
		if err == nil {
			span.SetAttributes(attribute.Bool("candidate.found", true), attribute.String("candidate.id", candidate.CandidateID))
			// 用最新解析结果刷新基本信息
			updates := map[string]interface{}{
				"name":               parsed.Name,
				"phone":              parsed.Phone,
				"location":           parsed.Location,
				"experience_summary": parsed.ExperienceSummary,
			}
			if err := db.WithContext(ctx).Model(&candidate).Updates(updates).Error; err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("更新候选人基本信息失败: %w", err)
			}
			return &candidate, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to query candidate")
			return nil, fmt.Errorf("查询候选人失败: %w", err)
		}
	}

	span.SetAttributes(attribute.Bool("candidate.found", false))

	newUUID, err := uuid.NewV7()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}

	newCandidate := &models.Candidate{
		CandidateID:       newUUID.String(),
		Name:              parsed.Name,
		Email:             email,
		Phone:             parsed.Phone,
		Location:          parsed.Location,
		ExperienceSummary: parsed.ExperienceSummary,
	}

	if err := db.WithContext(ctx).Create(newCandidate).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create candidate")
		return nil, fmt.Errorf("创建新候选人失败: %w", err)
	}

	span.SetAttributes(attribute.String("candidate.id", newCandidate.CandidateID))
	return newCandidate, nil
}

// ReplaceCandidateSkills 以解析结果重建候选人的技能关联。
// 技能名应已规范化；词表行按名字FirstOrCreate保证全局唯一。
func (m *MySQL) ReplaceCandidateSkills(ctx context.Context, tx *gorm.DB, candidateID string, skills []string, categorize func(string) string) error {
	db := m.db
	if tx != nil {
		db = tx
	}

	skillRows := make([]models.Skill, 0, len(skills))
	for _, name := range skills {
		var skill models.Skill
		category := ""
		if categorize != nil {
			category = categorize(name)
		}
		if err := db.WithContext(ctx).
			Where(models.Skill{Name: name}).
			Attrs(models.Skill{Category: category}).
			FirstOrCreate(&skill).Error; err != nil {
			return fmt.Errorf("写入技能词表 %q 失败: %w", name, err)
		}
		skillRows = append(skillRows, skill)
	}

	candidate := models.Candidate{CandidateID: candidateID}
	if err := db.WithContext(ctx).Model(&candidate).Association("Skills").Replace(skillRows); err != nil {
		return fmt.Errorf("重建候选人技能关联失败: %w", err)
	}
	return nil
}

// ReplaceCandidateProfile 在事务内重建候选人的教育/工作/项目经历
func (m *MySQL) ReplaceCandidateProfile(ctx context.Context, tx *gorm.DB, candidateID string, parsed *types.ParsedResume) error {
	db := m.db
	if tx != nil {
		db = tx
	}

	// 先清空旧数据再重建，避免重复累积
	if err := db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.Education{}).Error; err != nil {
		return fmt.Errorf("清理教育经历失败: %w", err)
	}
	if err := db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.Experience{}).Error; err != nil {
		return fmt.Errorf("清理工作经历失败: %w", err)
	}
	if err := db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.Project{}).Error; err != nil {
		return fmt.Errorf("清理项目经历失败: %w", err)
	}

	if len(parsed.Education) > 0 {
		rows := make([]models.Education, 0, len(parsed.Education))
		for _, e := range parsed.Education {
			rows = append(rows, models.Education{
				CandidateID:  candidateID,
				Degree:       e.Degree,
				Institution:  e.Institution,
				Year:         e.Year,
				FieldOfStudy: e.FieldOfStudy,
			})
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return fmt.Errorf("写入教育经历失败: %w", err)
		}
	}

	if len(parsed.Experience) > 0 {
		rows := make([]models.Experience, 0, len(parsed.Experience))
		for _, e := range parsed.Experience {
			rows = append(rows, models.Experience{
				CandidateID: candidateID,
				JobTitle:    e.JobTitle,
				Company:     e.Company,
				Duration:    e.Duration,
				Description: e.Description,
				StartDate:   e.StartDate,
				EndDate:     e.EndDate,
			})
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return fmt.Errorf("写入工作经历失败: %w", err)
		}
	}

	if len(parsed.Projects) > 0 {
		rows := make([]models.Project, 0, len(parsed.Projects))
		for _, p := range parsed.Projects {
			rows = append(rows, models.Project{
				CandidateID:      candidateID,
				Title:            p.Title,
				Description:      p.Description,
				TechnologiesUsed: p.TechnologiesUsed,
				GithubLink:       p.GithubLink,
				Role:             p.Role,
				Duration:         p.Duration,
			})
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return fmt.Errorf("写入项目经历失败: %w", err)
		}
	}

	return nil
}

// LoadAllCandidateSkills 加载全量候选人技能快照，供匹配引擎评分。
// 技能在入库前已规范化，这里直接透传。
func (m *MySQL) LoadAllCandidateSkills(ctx context.Context) ([]matching.CandidateSkills, error) {
	ctx, span := mysqlTracer.Start(ctx, "LoadAllCandidateSkills")
	defer span.End()

	var candidates []models.Candidate
	if err := m.db.WithContext(ctx).Preload("Skills").Find(&candidates).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("加载候选人技能快照失败: %w", err)
	}

	out := make([]matching.CandidateSkills, 0, len(candidates))
	for _, c := range candidates {
		skills := make([]string, 0, len(c.Skills))
		for _, s := range c.Skills {
			skills = append(skills, s.Name)
		}
		out = append(out, matching.CandidateSkills{
			CandidateID: c.CandidateID,
			Skills:      skills,
		})
	}

	span.SetAttributes(attribute.Int("candidates.count", len(out)))
	return out, nil
}

// ListCandidates 按创建时间倒序分页列出候选人（含技能）
func (m *MySQL) ListCandidates(ctx context.Context, offset, limit int) ([]models.Candidate, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := m.db.WithContext(ctx).Model(&models.Candidate{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计候选人数量失败: %w", err)
	}

	var candidates []models.Candidate
	err := m.db.WithContext(ctx).Preload("Skills").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	return candidates, total, nil
}

// GetCandidateNames 批量查询候选人姓名，返回candidateID到姓名的映射
func (m *MySQL) GetCandidateNames(ctx context.Context, candidateIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return names, nil
	}

	var rows []models.Candidate
	err := m.db.WithContext(ctx).Select("candidate_id", "name").
		Where("candidate_id IN ?", candidateIDs).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("批量查询候选人姓名失败: %w", err)
	}
	for _, row := range rows {
		names[row.CandidateID] = row.Name
	}
	return names, nil
}

// GetCandidateByID 查询单个候选人（含技能）
func (m *MySQL) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).Preload("Skills").
		Where("candidate_id = ?", candidateID).First(&candidate).Error
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// GetCandidateEducations 查询候选人的教育经历
func (m *MySQL) GetCandidateEducations(ctx context.Context, candidateID string) ([]models.Education, error) {
	var rows []models.Education
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Find(&rows).Error
	return rows, err
}

// GetCandidateExperiences 查询候选人的工作经历
func (m *MySQL) GetCandidateExperiences(ctx context.Context, candidateID string) ([]models.Experience, error) {
	var rows []models.Experience
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Find(&rows).Error
	return rows, err
}

// GetCandidateProjects 查询候选人的项目经历
func (m *MySQL) GetCandidateProjects(ctx context.Context, candidateID string) ([]models.Project, error) {
	var rows []models.Project
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Find(&rows).Error
	return rows, err
}

// GetLatestUploadForCandidate 查询候选人最近一次上传记录
func (m *MySQL) GetLatestUploadForCandidate(ctx context.Context, candidateID string) (*models.ResumeUpload, error) {
	var upload models.ResumeUpload
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).
		Order("uploaded_at DESC").First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// AddShortlisted 将候选人加入某岗位的入围名单，重复加入时幂等
func (m *MySQL) AddShortlisted(ctx context.Context, entry *models.ShortlistedCandidate) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "role_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "notes"}),
		}).Create(entry).Error
}

// ListShortlisted 列出入围名单，roleKey为空时返回全部
func (m *MySQL) ListShortlisted(ctx context.Context, roleKey string) ([]models.ShortlistedCandidate, error) {
	query := m.db.WithContext(ctx).Preload("Candidate").Order("score DESC, candidate_id ASC")
	if roleKey != "" {
		query = query.Where("role_key = ?", roleKey)
	}
	var rows []models.ShortlistedCandidate
	err := query.Find(&rows).Error
	return rows, err
}

// RemoveShortlisted 将候选人移出某岗位的入围名单
func (m *MySQL) RemoveShortlisted(ctx context.Context, candidateID, roleKey string) (int64, error) {
	result := m.db.WithContext(ctx).
		Where("candidate_id = ? AND role_key = ?", candidateID, roleKey).
		Delete(&models.ShortlistedCandidate{})
	return result.RowsAffected, result.Error
}
