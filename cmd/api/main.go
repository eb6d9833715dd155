package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tokentruth/internal/api"
	"tokentruth/internal/config"
	"tokentruth/internal/pipeline"

	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
	port       = flag.Int("port", 0, "API 服务端口（0表示使用配置文件中的端口）")
	verbose    = flag.Bool("verbose", false, "详细输出")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// 自动检测并加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("加载配置失败: %v", err)
	}

	// 创建分析服务
	service, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Fatalf("创建分析服务失败: %v", err)
	}
	defer service.Close()

	listenPort := *port
	if listenPort == 0 {
		listenPort = 8080
		if cfg.API != nil && cfg.API.Port > 0 {
			listenPort = cfg.API.Port
		}
	}

	server := api.NewServer(cfg, service, logger, listenPort)

	// 数据库配置源可用时挂接管理端点
	if dsn := os.Getenv("TRUTH_DB_DSN"); dsn != "" {
		dbConfig, err := config.NewDatabaseConfig(dsn, logger)
		if err != nil {
			logger.Warnf("连接配置数据库失败，管理端点不可用: %v", err)
		} else {
			defer dbConfig.Close()
			server.SetConfigManager(api.NewConfigManager(dbConfig, logger))
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("启动服务器失败: %v", err)
		}
	}()

	logger.Infof("API服务器已启动，监听端口: %d", listenPort)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("正在关闭服务器...")
	if err := server.Stop(); err != nil {
		logger.Errorf("关闭服务器失败: %v", err)
	}

	logger.Info("服务器已关闭")
}
