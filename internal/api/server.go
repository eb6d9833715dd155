package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tokentruth/internal/config"
	"tokentruth/internal/errors"
	"tokentruth/internal/pipeline"
	"tokentruth/pkg/models"
)

// Server 分析服务的HTTP入口
type Server struct {
	service    *pipeline.Service
	cfg        *config.Config
	logger     *logrus.Logger
	logManager *LogManager
	configMgr  *ConfigManager
	server     *http.Server
	port       int
}

// NewServer 创建API服务器
func NewServer(cfg *config.Config, service *pipeline.Service, logger *logrus.Logger, port int) *Server {
	logManager := NewLogManager(1000) // 最多保存1000条日志
	logger.AddHook(NewLogHook(logManager))

	return &Server{
		service:    service,
		cfg:        cfg,
		logger:     logger,
		logManager: logManager,
		port:       port,
	}
}

// SetConfigManager 挂接数据库配置管理端点
func (s *Server) SetConfigManager(cm *ConfigManager) {
	s.configMgr = cm
}

// Start 启动API服务器
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Infof("API服务器启动在端口 %d", s.port)
	return s.server.ListenAndServe()
}

// Stop 停止API服务器
func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		// 三路分析
		api.POST("/analyze", s.analyze)
		api.GET("/liquidity/:chain/:address", s.analyzeLiquidity)
		api.GET("/sentiment/:symbol", s.analyzeSentiment)
		api.POST("/decision", s.makeDecision)

		// 历史归档
		api.GET("/reports/:symbol/latest", s.latestReport)

		// 运行状态
		api.GET("/stats", s.getStats)
		api.GET("/config", s.getConfig)
		api.GET("/nodes", s.getNodes)

		// 日志管理
		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.clearLogs)
	}

	// 数据库配置管理（仅在postgres配置源可用时挂接）
	if s.configMgr != nil {
		admin := router.Group("/api/v1/admin")
		{
			admin.GET("/config/:type", s.configMgr.GetConfig)
			admin.PUT("/config/:type", s.configMgr.UpdateConfig)
			admin.GET("/nodes", s.configMgr.GetChainNodes)
			admin.POST("/nodes", s.configMgr.AddChainNode)
			admin.PUT("/nodes/:id", s.configMgr.UpdateChainNode)
			admin.DELETE("/nodes/:id", s.configMgr.DeleteChainNode)
			admin.GET("/kafka/topics", s.configMgr.GetKafkaTopics)
			admin.PUT("/kafka/topics/:id", s.configMgr.UpdateKafkaTopic)
		}
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "tokentruth-api",
	})
}

// analyze 执行合约事实分析
func (s *Server) analyze(c *gin.Context) {
	var req models.TruthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rpt, err := s.service.Analyze(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rpt)
}

// analyzeLiquidity 流动性情报
func (s *Server) analyzeLiquidity(c *gin.Context) {
	chain := c.Param("chain")
	address := c.Param("address")

	snapshot := s.service.Liquidity(c.Request.Context(), chain, address)
	c.JSON(http.StatusOK, snapshot)
}

// analyzeSentiment 社媒情绪
func (s *Server) analyzeSentiment(c *gin.Context) {
	symbol := c.Param("symbol")

	snapshot := s.service.Sentiment(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, snapshot)
}

// makeDecision 三路合并上架决策
func (s *Server) makeDecision(c *gin.Context) {
	var req models.TruthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dec, err := s.service.Decide(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dec)
}

// latestReport 查询代币最近一次报告摘要
func (s *Server) latestReport(c *gin.Context) {
	symbol := c.Param("symbol")

	summary, err := s.service.LastReportFor(symbol)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("代币 %s 没有历史报告", symbol)})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// getStats 运行统计
func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Stats())
}

// getConfig 当前生效配置
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config": s.cfg,
	})
}

// getNodes 已配置的RPC节点
func (s *Server) getNodes(c *gin.Context) {
	if s.cfg == nil || s.cfg.Chains == nil || len(s.cfg.Chains.Nodes) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"nodes": []gin.H{},
			"total": 0,
		})
		return
	}

	var nodes []gin.H
	for _, node := range s.cfg.Chains.Nodes {
		nodes = append(nodes, gin.H{
			"chain":    node.Chain,
			"name":     node.Name,
			"url":      node.URL,
			"priority": node.Priority,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// getLogs 分页查询内存日志
func (s *Server) getLogs(c *gin.Context) {
	level := c.Query("level")

	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	pageSize := 20
	if ps, err := strconv.Atoi(c.Query("pageSize")); err == nil && ps > 0 {
		pageSize = ps
	}

	logs, total := s.logManager.GetLogsWithPagination(level, page, pageSize)

	c.JSON(http.StatusOK, gin.H{
		"logs":     logs,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
		"level":    level,
	})
}

// clearLogs 清空内存日志
func (s *Server) clearLogs(c *gin.Context) {
	s.logManager.ClearLogs()

	c.JSON(http.StatusOK, gin.H{
		"message": "日志已清空",
	})
}

// writeError 把错误分类映射到HTTP状态码
func (s *Server) writeError(c *gin.Context, err error) {
	var truthErr *errors.TruthError
	if stderrors.As(err, &truthErr) {
		status := http.StatusBadGateway
		switch truthErr.Code {
		case errors.CodeInvalidRequest:
			status = http.StatusBadRequest
		case errors.CodeRateLimited:
			status = http.StatusTooManyRequests
		case errors.CodeUpstreamTimeout:
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error": truthErr.Message,
			"code":  truthErr.Code,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
