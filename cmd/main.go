package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-screening-go/internal/api/handler"
	"resume-screening-go/internal/api/router"
	"resume-screening-go/internal/config"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/outbox"
	"resume-screening-go/internal/processor"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/tracing"

	appCoreLogger "resume-screening-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var (
	serviceName = "resume-screening-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	shutdownTracing, err := tracing.InitProvider(ctx, &cfg.Tracing, serviceName)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("关闭链路追踪失败: %v", err)
		}
	}()

	// 存储层
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 消息队列拓扑
	if storageManager.RabbitMQ != nil {
		if err := storageManager.RabbitMQ.SetupResumeEventsTopology(); err != nil {
			glog.Fatalf("初始化RabbitMQ拓扑失败: %v", err)
		}
		glog.Info("RabbitMQ拓扑初始化成功")
	}

	// 岗位目录与匹配引擎。目录配置错误在启动期即失败。
	catalog, err := loadCatalog(cfg)
	if err != nil {
		glog.Fatalf("加载岗位目录失败: %v", err)
	}
	engine := matching.NewEngine(catalog)
	glog.Infof("岗位目录加载成功，共 %d 个岗位", catalog.Len())

	// 发件箱消息中继
	relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
	messageRelay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger)
	messageRelay.Start()
	glog.Info("消息中继服务已启动")

	// 简历解析处理器
	resumeProcessor, err := processor.CreateProcessorFromConfig(ctx, cfg, storageManager, engine)
	if err != nil {
		glog.Fatalf("初始化ResumeProcessor失败: %v", err)
	}
	glog.Info("ResumeProcessor初始化成功")

	// 启动解析消费者
	if storageManager.RabbitMQ != nil {
		prefetch := cfg.RabbitMQ.PrefetchCount
		if prefetch <= 0 {
			prefetch = 10
		}
		glog.Infof("启动简历解析消费者，预取数: %d", prefetch)
		_, err := storageManager.RabbitMQ.StartConsumer(cfg.RabbitMQ.RawResumeQueue, prefetch, func(data []byte) bool {
			return resumeProcessor.HandleUploadedMessage(ctx, data, cfg)
		})
		if err != nil {
			glog.Fatalf("启动简历解析消费者失败: %v", err)
		}
	}

	// HTTP 处理器
	resumeHandler := handler.NewResumeHandler(cfg, storageManager)
	searchHandler := handler.NewSearchHandler(cfg, storageManager, engine)
	candidateHandler := handler.NewCandidateHandler(cfg, storageManager)
	shortlistHandler := handler.NewShortlistHandler(cfg, storageManager, engine)

	// HTTP 服务器
	serverTracer, serverTracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(serverTracerCfg))

	router.RegisterRoutes(h, cfg, resumeHandler, searchHandler, candidateHandler, shortlistHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	messageRelay.Stop()
	glog.Info("消息中继服务已停止")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并桥接到Hertz的日志接口
func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
}

// loadCatalog 加载岗位目录：配置了roles_file时从YAML加载，否则使用内置目录
func loadCatalog(cfg *config.Config) (*matching.Catalog, error) {
	if cfg.Catalog.RolesFile != "" {
		return matching.LoadCatalogFile(cfg.Catalog.RolesFile)
	}
	return matching.DefaultCatalog(), nil
}
