package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tokentruth/internal/archive"
	"tokentruth/internal/config"
	"tokentruth/internal/connection"
	"tokentruth/internal/decision"
	"tokentruth/internal/fetcher"
	"tokentruth/internal/liquidity"
	"tokentruth/internal/logging"
	"tokentruth/internal/output"
	"tokentruth/internal/report"
	"tokentruth/internal/sentiment"
	"tokentruth/internal/shutdown"
	"tokentruth/internal/truth"
	"tokentruth/internal/validation"
	"tokentruth/pkg/models"
)

// 流水线常量
const (
	DefaultRequestTimeout  = 45 * time.Second // 整批分析超时
	DefaultShutdownTimeout = 30 * time.Second // 优雅停机超时
)

// Service 分析流水线
// 把请求验证、事实取数、报告装配、外围情报、上架决策、归档与输出串成一条链。
type Service struct {
	cfg            *config.Config
	validator      *validation.Validator
	pool           *connection.ChainPool
	fetcher        *fetcher.Fetcher
	assembler      *report.Assembler
	liquidity      *liquidity.Analyzer
	sentiment      *sentiment.Analyzer
	decider        *decision.Engine
	journal        *archive.Journal
	sink           output.Output
	shutdownMgr    *shutdown.GracefulShutdown
	logger         *logrus.Logger
	audit          *logging.StructuredLogger
	requestTimeout time.Duration
}

// New 创建分析流水线
func New(cfg *config.Config, logger *logrus.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if logger == nil {
		return nil, fmt.Errorf("日志器不能为空")
	}

	var nodes []*config.NodeConfig
	if cfg.Chains != nil {
		nodes = cfg.Chains.Nodes
	}

	pool := connection.NewChainPool(nodes, logger)
	if err := pool.Initialize(); err != nil {
		// EVM节点全部不可用时Solana与浏览器路径仍可工作
		logger.Warnf("链连接池初始化失败: %v，EVM事实读取将降级", err)
	}

	weights := truth.DefaultScoringWeights()
	if cfg.Scoring != nil {
		weights = *cfg.Scoring
	}

	requestTimeout := DefaultRequestTimeout
	if cfg.Fetcher != nil && cfg.Fetcher.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.Fetcher.RequestTimeout); err == nil {
			requestTimeout = d
		}
	}

	var journal *archive.Journal
	if cfg.Archive == nil || cfg.Archive.Enabled {
		path := ""
		if cfg.Archive != nil {
			path = cfg.Archive.Path
		}
		var err error
		journal, err = archive.NewJournal(path, logger)
		if err != nil {
			logger.Warnf("初始化分析归档失败: %v，将不记录历史报告", err)
			journal = nil
		}
	}

	sink, err := output.NewOutput(cfg.Output, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化输出器失败: %w", err)
	}

	// 审计日志独立于运行日志，按请求维度输出结构化记录
	audit, err := logging.NewStructuredLogger(cfg.Logging)
	if err != nil {
		logger.Warnf("初始化审计日志失败: %v，审计记录将不可用", err)
		audit = nil
	}

	s := &Service{
		cfg:            cfg,
		validator:      validation.NewValidator(logger, false),
		pool:           pool,
		fetcher:        fetcher.New(cfg, pool, logger),
		assembler:      report.NewAssembler(weights, logger),
		liquidity:      liquidity.NewAnalyzer(cfg.Providers, logger),
		sentiment:      sentiment.NewAnalyzer(cfg.Providers, logger),
		decider:        decision.NewEngine(cfg.Decision, logger),
		journal:        journal,
		sink:           sink,
		shutdownMgr:    shutdown.NewGracefulShutdown(DefaultShutdownTimeout, logger),
		logger:         logger,
		audit:          audit,
		requestTimeout: requestTimeout,
	}

	s.registerShutdownHandlers()

	return s, nil
}

// registerShutdownHandlers 注册停机清理函数，输出器先冲刷，连接池最后关
func (s *Service) registerShutdownHandlers() {
	s.shutdownMgr.RegisterShutdownFunc("output", func(ctx context.Context) error {
		return s.sink.Close()
	}, shutdown.OrderFlushOutputs)

	if s.journal != nil {
		s.shutdownMgr.RegisterShutdownFunc("archive", func(ctx context.Context) error {
			return s.journal.Close()
		}, shutdown.OrderCloseArchive)
	}

	s.shutdownMgr.RegisterShutdownFunc("connection_pool", func(ctx context.Context) error {
		return s.pool.Close()
	}, shutdown.OrderCloseConnections)
}

// Analyze 执行一次完整的合约事实分析
// 单实例失败记入报告的errors区，不会让整批请求失败。
func (s *Service) Analyze(ctx context.Context, req *models.TruthRequest) (*models.TruthReport, error) {
	result := s.validator.ValidateRequest(req)
	if !result.Valid {
		if len(result.Errors) > 0 {
			return nil, result.Errors[0]
		}
		return nil, fmt.Errorf("请求验证失败")
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	fetched := s.fetcher.FetchAll(ctx, req)
	rpt := s.assembler.Assemble(req, fetched)

	// 验证阶段的警告（如地址校验和）一并带入报告
	rpt.Warnings = append(rpt.Warnings, result.Warnings...)

	if s.journal != nil {
		if err := s.journal.Record(rpt); err != nil {
			s.logger.Errorf("归档报告 %s 失败: %v", rpt.RequestID, err)
		}
	}

	if err := s.sink.WriteReport(rpt); err != nil {
		s.logger.Errorf("输出报告 %s 失败: %v", rpt.RequestID, err)
	}

	if s.audit != nil {
		logging.NewRequestLogger(s.audit, rpt.RequestID, req.Token.Symbol).Info("分析完成",
			"instances", len(req.Instances),
			"proven", len(rpt.Data.Proven.Instances),
			"errors", len(rpt.Errors))
	}

	return rpt, nil
}

// Liquidity 单独执行流动性情报分析
func (s *Service) Liquidity(ctx context.Context, chain, address string) *models.LiquiditySnapshot {
	return s.liquidity.Analyze(ctx, chain, address)
}

// Sentiment 单独执行社媒情绪分析
func (s *Service) Sentiment(ctx context.Context, symbol string) *models.SentimentSnapshot {
	return s.sentiment.Analyze(ctx, symbol)
}

// Decide 执行三路完整分析并给出上架决策
// 决策目标是请求中的第一个实例，其余实例参与跨链等价性推断。
func (s *Service) Decide(ctx context.Context, req *models.TruthRequest) (*models.FinalDecision, error) {
	rpt, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	target := req.Instances[0]
	liq := s.liquidity.Analyze(ctx, target.Chain, target.Address)
	sent := s.sentiment.Analyze(ctx, req.Token.Symbol)

	dec := s.decider.Decide(target.Chain, target.Address, rpt, liq, sent)

	if err := s.sink.WriteDecision(dec); err != nil {
		s.logger.Errorf("输出决策 %s:%s 失败: %v", dec.Chain, dec.TokenAddress, err)
	}

	if s.audit != nil {
		logging.NewInstanceLogger(s.audit, dec.Chain, dec.TokenAddress).Info("上架决策完成",
			"decision", string(dec.Decision),
			"overall_risk_score", dec.OverallRiskScore)
	}

	return dec, nil
}

// LastReportFor 查询代币符号的最近一次报告摘要
func (s *Service) LastReportFor(symbol string) (*archive.Summary, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("分析归档未启用")
	}
	return s.journal.LastReportFor(symbol)
}

// Stats 汇总归档与连接池的运行统计
func (s *Service) Stats() map[string]interface{} {
	stats := make(map[string]interface{})
	if s.journal != nil {
		stats["archive"] = s.journal.GetStats()
	}
	stats["connections"] = s.pool.GetStats()
	return stats
}

// ShutdownManager 返回停机管理器，供服务入口挂接信号处理
func (s *Service) ShutdownManager() *shutdown.GracefulShutdown {
	return s.shutdownMgr
}

// Close 关闭流水线持有的全部资源
func (s *Service) Close() {
	s.shutdownMgr.Shutdown()
}
