package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/constants"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/parser"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/storage/models"
	"resume-screening-go/internal/tracing"
	"resume-screening-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("resume-screening-go/processor")

// ResumeStructurer 将简历纯文本抽取为结构化数据
type ResumeStructurer interface {
	ExtractResume(ctx context.Context, text string) (*types.ParsedResume, error)
}

// Components 聚合所有功能组件依赖，便于集中管理和测试替换
type Components struct {
	// 核心组件接口
	TextExtractor parser.TextExtractor // 简历文本提取接口
	Structurer    ResumeStructurer     // LLM结构化抽取接口
	Engine        *matching.Engine     // 匹配引擎（技能规范化、缓存失效用）

	// 存储层依赖
	Storage *storage.Storage // 聚合的存储服务
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Debug  bool        // 是否开启调试模式
	Logger *log.Logger // 日志记录器
}

// ResumeProcessor 简历解析流程的组件聚合类
type ResumeProcessor struct {
	TextExtractor parser.TextExtractor // 简历文本提取接口
	Structurer    ResumeStructurer     // LLM结构化抽取接口
	Engine        *matching.Engine     // 匹配引擎

	Storage *storage.Storage // 存储服务

	Config ComponentConfig // 组件配置
}

// ComponentConfig 组件配置
type ComponentConfig struct {
	Debug  bool        // 是否开启调试模式
	Logger *log.Logger // 日志记录器
}

// NewResumeProcessor 创建新的简历处理器，使用明确分离的组件和设置
func NewResumeProcessor(comp *Components, set *Settings) *ResumeProcessor {
	if set == nil {
		set = &Settings{}
	}
	if set.Logger == nil {
		set.Logger = log.New(os.Stdout, "[Processor] ", log.LstdFlags)
	}

	processor := &ResumeProcessor{
		TextExtractor: comp.TextExtractor,
		Structurer:    comp.Structurer,
		Engine:        comp.Engine,
		Storage:       comp.Storage,
		Config: ComponentConfig{
			Debug:  set.Debug,
			Logger: set.Logger,
		},
	}

	if processor.Storage == nil {
		processor.Config.Logger.Println("警告: ResumeProcessor 的 Storage 依赖未初始化。某些功能可能受限。")
	}

	return processor
}

// CreateProcessorFromConfig 从配置创建处理器组件集合
func CreateProcessorFromConfig(ctx context.Context, cfg *config.Config, storageManager *storage.Storage, engine *matching.Engine) (*ResumeProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	components := &Components{
		Storage: storageManager,
		Engine:  engine,
	}

	settings := &Settings{
		Debug:  cfg.Logger.Level == "debug",
		Logger: log.New(os.Stdout, "[Processor] ", log.LstdFlags),
	}

	// 创建文本提取器
	textExtractor, err := parser.NewResumeTextExtractor(ctx, log.New(os.Stdout, "[文本提取器] ", log.LstdFlags))
	if err != nil {
		return nil, fmt.Errorf("创建文本提取器失败: %w", err)
	}
	components.TextExtractor = textExtractor

	// 如果配置了API密钥，添加LLM抽取功能
	if cfg.Groq.APIKey != "" {
		settings.Logger.Println("检测到API密钥，配置LLM结构化抽取...")

		extractorModel, err := parser.NewGroqChatModel(
			cfg.Groq.APIKey,
			cfg.Groq.Model,
			cfg.Groq.APIURL,
			cfg.Groq.Temperature,
			cfg.Groq.MaxTokens,
		)
		if err != nil {
			return nil, fmt.Errorf("创建抽取LLM模型失败: %w", err)
		}
		extractorLogger := log.New(os.Stdout, "[LLMExtractor] ", log.LstdFlags)
		extractorOptions := []parser.ExtractorOption{
			parser.WithTimeout(config.GetDuration(cfg.Groq.ExtractionTimeout, 60*time.Second)),
		}
		if cfg.Groq.MaxRetries > 0 {
			extractorOptions = append(extractorOptions,
				parser.WithRetry(cfg.Groq.MaxRetries, time.Duration(cfg.Groq.RetryWaitSeconds)*time.Second))
		}
		components.Structurer = parser.NewLLMResumeExtractor(extractorModel, extractorLogger, extractorOptions...)
	}

	return NewResumeProcessor(components, settings), nil
}

// ProcessUploadedResume 接收上传消息，完成下载、文本提取、LLM抽取、落库的完整流程
// 数据库写操作在单个事务中执行，保证候选人档案与上传记录状态的原子性
func (rp *ResumeProcessor) ProcessUploadedResume(ctx context.Context, message storage.ResumeUploadedMessage, cfg *config.Config) error {
	if rp.Storage == nil {
		return fmt.Errorf("ResumeProcessor: Storage 未初始化")
	}
	if rp.TextExtractor == nil {
		return fmt.Errorf("ResumeProcessor: TextExtractor 未初始化")
	}
	if rp.Structurer == nil {
		return fmt.Errorf("ResumeProcessor: Structurer 未初始化")
	}

	ctx, span := tracer.Start(ctx, "ResumeProcessor.ProcessUploadedResume",
		trace.WithAttributes(
			attribute.String("upload_uuid", message.UploadUUID),
			attribute.String("file_ext", message.FileExt),
		),
	)
	defer span.End()

	// 1. 幂等性检查并锁定记录，更新状态为 PARSING
	if err := rp.claimUpload(ctx, message.UploadUUID); err != nil {
		if errors.Is(err, errAlreadyProcessed) {
			rp.logDebug("跳过已处理的上传 %s", message.UploadUUID)
			return nil
		}
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeDB,
			attribute.String("upload_uuid", message.UploadUUID))
		return err
	}

	// 2. 下载、提取文本、LLM结构化抽取（事务外的IO操作）
	parsed, err := rp.downloadAndStructure(ctx, message)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		rp.failUpload(ctx, message, err)
		return err
	}

	// 3. 技能规范化
	normalizedSkills := matching.NormalizeAll(parsed.Skills)
	span.SetAttributes(attribute.Int("skill_count", len(normalizedSkills)))

	// 4. 事务内持久化候选人档案并写入发件箱
	candidateID, err := rp.persistParsedResume(ctx, message, parsed, normalizedSkills, cfg)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		rp.failUpload(ctx, message, err)
		return err
	}

	// 5. 候选人数据已变更，失效所有岗位的搜索缓存
	rp.invalidateSearchCaches(ctx)

	rp.logDebug("上传任务 (简历 %s) 的处理已成功完成, 候选人: %s", message.UploadUUID, candidateID)
	return nil
}

// errAlreadyProcessed 表示该上传已处于终态或正被其他消费者处理
var errAlreadyProcessed = errors.New("上传已处理")

// claimUpload 在事务中锁定上传记录并将状态推进到 PARSING
// 只有 PENDING_PARSING 和 PARSE_FAILED 状态允许进入解析流程
func (rp *ResumeProcessor) claimUpload(ctx context.Context, uploadUUID string) error {
	return rp.Storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var upload models.ResumeUpload
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("upload_uuid = ?", uploadUUID).
			First(&upload).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rp.logInfo("claimUpload: 上传记录未找到 %s, 消息将被确认", uploadUUID)
				return errAlreadyProcessed
			}
			return NewDatabaseError(uploadUUID, err.Error())
		}

		switch upload.ProcessingStatus {
		case constants.StatusPendingParsing, constants.StatusParseFailed:
			// 允许进入解析
		default:
			rp.logDebug("claimUpload: 跳过状态为 %s 的上传 %s", upload.ProcessingStatus, uploadUUID)
			return errAlreadyProcessed
		}

		if err := tx.Model(&upload).Update("processing_status", constants.StatusParsing).Error; err != nil {
			return NewUpdateError(uploadUUID, fmt.Sprintf("更新状态为%s失败", constants.StatusParsing))
		}
		return nil
	})
}

// downloadAndStructure 从MinIO下载原始文件，提取纯文本并调用LLM结构化抽取
func (rp *ResumeProcessor) downloadAndStructure(ctx context.Context, message storage.ResumeUploadedMessage) (*types.ParsedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.downloadAndStructure")
	defer span.End()

	// 步骤 1: 从MinIO下载简历文件
	fileBytes, err := rp.Storage.MinIO.GetResumeFile(ctx, message.FilePathOSS)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		rp.logDebug("从MinIO下载简历 %s 失败: %v", message.UploadUUID, err)
		return nil, NewDownloadError(message.UploadUUID, err.Error())
	}
	span.AddEvent("file content downloaded")
	rp.logDebug("简历 %s 从MinIO下载成功，大小: %d bytes", message.UploadUUID, len(fileBytes))

	// 步骤 2: 提取纯文本
	text, err := rp.TextExtractor.ExtractText(ctx, fileBytes, message.OriginalFilename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		rp.logDebug("提取简历文本失败 for %s: %v", message.UploadUUID, err)
		return nil, NewExtractError(message.UploadUUID, err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewExtractError(message.UploadUUID, "提取的文本为空")
	}
	span.AddEvent("text extracted")
	rp.logDebug("成功提取文本 for %s, 长度: %d", message.UploadUUID, len(text))

	// 步骤 3: LLM结构化抽取
	parsed, err := rp.Structurer.ExtractResume(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		rp.logDebug("LLM结构化抽取失败 for %s: %v", message.UploadUUID, err)
		return nil, NewLLMError(message.UploadUUID, err.Error())
	}
	span.AddEvent("resume structured")
	rp.logDebug("LLM结构化抽取成功 for %s, 技能数: %d", message.UploadUUID, len(parsed.Skills))

	return parsed, nil
}

// persistParsedResume 在单个事务中落库候选人档案、回填上传记录并写入发件箱
func (rp *ResumeProcessor) persistParsedResume(ctx context.Context, message storage.ResumeUploadedMessage, parsed *types.ParsedResume, normalizedSkills []string, cfg *config.Config) (string, error) {
	var candidateID string

	err := rp.Storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 查找或创建候选人（按邮箱归并）
		candidate, err := rp.Storage.MySQL.FindOrCreateCandidate(ctx, tx, parsed)
		if err != nil {
			rp.logInfo("查找或创建候选人失败 for %s: %v", message.UploadUUID, err)
			return NewPersistError(message.UploadUUID, fmt.Sprintf("查找或创建候选人失败: %v", err))
		}
		candidateID = candidate.CandidateID

		// 2. 替换候选人技能（规范化形式入库）
		if err := rp.Storage.MySQL.ReplaceCandidateSkills(ctx, tx, candidateID, normalizedSkills, CategorizeSkill); err != nil {
			rp.logInfo("替换候选人技能失败 for %s: %v", message.UploadUUID, err)
			return NewPersistError(message.UploadUUID, fmt.Sprintf("替换候选人技能失败: %v", err))
		}

		// 3. 替换教育/工作/项目经历
		if err := rp.Storage.MySQL.ReplaceCandidateProfile(ctx, tx, candidateID, parsed); err != nil {
			rp.logInfo("替换候选人档案失败 for %s: %v", message.UploadUUID, err)
			return NewPersistError(message.UploadUUID, fmt.Sprintf("替换候选人档案失败: %v", err))
		}

		// 4. 回填上传记录
		rawJSON, err := models.StructToJSON(parsed)
		if err != nil {
			return NewPersistError(message.UploadUUID, fmt.Sprintf("序列化解析结果失败: %v", err))
		}
		if err := tx.Model(&models.ResumeUpload{}).
			Where("upload_uuid = ?", message.UploadUUID).
			Updates(map[string]interface{}{
				"candidate_id":      candidateID,
				"raw_parsed_json":   rawJSON,
				"processing_status": constants.StatusParsed,
				"parser_version":    cfg.ActiveParserVersion,
				"error_detail":      "",
			}).Error; err != nil {
			rp.logInfo("回填上传记录失败 for %s: %v", message.UploadUUID, err)
			return NewUpdateError(message.UploadUUID, "回填上传记录失败")
		}

		// 5. [Outbox] 将解析完成事件写入发件箱表，由中继异步发布
		parsedMessage := storage.ResumeParsedMessage{
			UploadUUID:    message.UploadUUID,
			CandidateID:   candidateID,
			SkillCount:    len(normalizedSkills),
			Skills:        normalizedSkills,
			ParserVersion: cfg.ActiveParserVersion,
			ParsedAt:      time.Now().Unix(),
		}
		payloadBytes, err := json.Marshal(parsedMessage)
		if err != nil {
			rp.logInfo("序列化 outbox payload 失败 for %s: %v", message.UploadUUID, err)
			return NewUpdateError(message.UploadUUID, "序列化 outbox payload 失败")
		}

		outboxEntry := models.OutboxMessage{
			AggregateID:      message.UploadUUID,
			EventType:        "resume.parsed",
			Payload:          string(payloadBytes),
			TargetExchange:   cfg.RabbitMQ.ResumeEventsExchange,
			TargetRoutingKey: cfg.RabbitMQ.ParsedRoutingKey,
		}
		if err := tx.Create(&outboxEntry).Error; err != nil {
			rp.logInfo("插入 outbox 记录失败 for %s: %v", message.UploadUUID, err)
			return NewUpdateError(message.UploadUUID, "插入 outbox 记录失败")
		}

		return nil
	})

	if err != nil {
		return "", err
	}
	return candidateID, nil
}

// failUpload 将上传标记为 PARSE_FAILED 并回滚文件MD5去重记录，
// 以便同一文件修复后可以重新上传
func (rp *ResumeProcessor) failUpload(ctx context.Context, message storage.ResumeUploadedMessage, cause error) {
	if err := rp.Storage.MySQL.MarkUploadFailed(ctx, message.UploadUUID, cause.Error()); err != nil {
		rp.logInfo("标记上传 %s 为失败状态时出错: %v", message.UploadUUID, err)
	}
	if message.FileMD5 != "" && rp.Storage.Redis != nil {
		if err := rp.Storage.Redis.RemoveFileMD5(ctx, message.FileMD5); err != nil {
			rp.logInfo("回滚文件MD5去重记录失败 for %s: %v", message.UploadUUID, err)
		}
	}
}

// invalidateSearchCaches 失效所有岗位的搜索结果缓存
func (rp *ResumeProcessor) invalidateSearchCaches(ctx context.Context) {
	if rp.Storage.Redis == nil || rp.Engine == nil {
		return
	}
	roles := rp.Engine.Catalog().ListRoles()
	roleKeys := make([]string, 0, len(roles))
	for _, role := range roles {
		roleKeys = append(roleKeys, role.Key)
	}
	if err := rp.Storage.Redis.InvalidateRoleSearchCache(ctx, roleKeys...); err != nil {
		rp.logInfo("失效搜索缓存失败: %v", err)
	}
}

// HandleUploadedMessage 消息队列消费入口
// 返回true表示确认消息，返回false表示重新入队
func (rp *ResumeProcessor) HandleUploadedMessage(ctx context.Context, body []byte, cfg *config.Config) bool {
	var message storage.ResumeUploadedMessage
	if err := json.Unmarshal(body, &message); err != nil {
		rp.logInfo("反序列化上传消息失败，丢弃消息: %v", err)
		return true
	}
	if message.UploadUUID == "" {
		rp.logInfo("上传消息缺少UUID，丢弃消息")
		return true
	}

	err := rp.ProcessUploadedResume(ctx, message, cfg)
	if err == nil {
		return true
	}

	// 基础设施类错误重新入队，业务类失败已标记 PARSE_FAILED，确认消息
	if errors.Is(err, ErrResumeDownloadFailed) || errors.Is(err, ErrDatabaseFailed) {
		rp.logInfo("处理上传 %s 遇到基础设施错误，消息重新入队: %v", message.UploadUUID, err)
		return false
	}
	rp.logInfo("处理上传 %s 失败，已标记失败状态: %v", message.UploadUUID, err)
	return true
}

// CategorizeSkill 按规范化技能词推断技能分类。
// 入参必须是 matching.Normalize 之后的规范形式（js→javascript、k8s→kubernetes 等），
// 分支只列规范词；复合词走包含式回退，都不命中归入软技能。
func CategorizeSkill(normalized string) string {
	switch normalized {
	case "python", "go", "java", "javascript", "typescript", "c++", "c#", "rust", "ruby", "php", "scala", "kotlin", "swift", "sql", "html", "css", "bash", "r":
		return constants.SkillCategoryProgramming
	case "react", "vue", "angular", "node", "django", "flask", "fastapi", "spring", "spring boot", "rails", "express", "nextjs", "pytorch", "tensorflow", "sklearn", "pandas", "numpy", "gin", "laravel":
		return constants.SkillCategoryFramework
	case "docker", "kubernetes", "aws", "google cloud", "azure", "terraform", "jenkins", "git", "linux", "nginx", "kafka", "rabbitmq", "redis", "mysql", "postgresql", "mongodb", "elasticsearch", "grafana", "prometheus", "ansible", "cicd":
		return constants.SkillCategoryTool
	case "communication", "leadership", "teamwork", "agile", "scrum", "mentoring", "problem solving":
		return constants.SkillCategorySoftSkill
	}

	// 复合词回退，如 react native 归框架、java 8 归编程语言
	switch {
	case containsAny(normalized, "python", "java", "c++", "c#", "ruby", "php", "swift", "kotlin"):
		return constants.SkillCategoryProgramming
	case containsAny(normalized, "react", "angular", "vue", "django", "flask", "spring", "express"):
		return constants.SkillCategoryFramework
	case containsAny(normalized, "docker", "kubernetes", "aws", "azure", "git", "jenkins"):
		return constants.SkillCategoryTool
	default:
		return constants.SkillCategorySoftSkill
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// logDebug 调试日志输出
func (rp *ResumeProcessor) logDebug(format string, v ...interface{}) {
	if rp.Config.Debug && rp.Config.Logger != nil {
		rp.Config.Logger.Printf(format, v...)
	}
}

// logInfo 信息日志输出
func (rp *ResumeProcessor) logInfo(format string, v ...interface{}) {
	if rp.Config.Logger != nil {
		rp.Config.Logger.Printf(format, v...)
	}
}
