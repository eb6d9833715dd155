package sentiment

import (
	"context"
	"fmt"
	"time"

	"tokentruth/internal/config"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// 情绪风险标志ID
const (
	FlagLowAttention      = "LOW_ATTENTION"
	FlagNegativeSentiment = "NEGATIVE_SENTIMENT"
	FlagNoSocialData      = "NO_SOCIAL_DATA"
)

// 风险阈值
const (
	lowAttentionThreshold      = 3    // 24小时新闻篇数下限
	negativeSentimentThreshold = -0.3 // 触发负面情绪标志的分数
)

// unknownRiskScore 数据不可用时的中间风险分
const unknownRiskScore = 50

// flagWeights 各标志参与评分的数值权重
var flagWeights = map[string]int{
	FlagNegativeSentiment: 6,
	FlagLowAttention:      4,
	FlagNoSocialData:      3,
}

func flagSeverity(weight int) models.Severity {
	switch {
	case weight >= 8:
		return models.SeverityHigh
	case weight >= 6:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Analyzer 社媒叙事分析器
type Analyzer struct {
	client *Client
	logger *logrus.Logger
}

// NewAnalyzer 创建社媒分析器
func NewAnalyzer(cfg *config.ProvidersConfig, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		client: NewClient(cfg, logger),
		logger: logger,
	}
}

// Analyze 生成代币符号的社媒情绪快照
// CryptoPanic不可用时不报错：返回NO_SOCIAL_DATA标志、风险分50的降级快照。
func (a *Analyzer) Analyze(ctx context.Context, symbol string) *models.SentimentSnapshot {
	news24h, err := a.client.GetNews(ctx, symbol, 24*time.Hour)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("CryptoPanic数据不可用，社媒分析降级为未知")
		return a.unknownSnapshot(symbol, err.Error())
	}

	snapshot := &models.SentimentSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		RiskFlags: []models.RiskFlag{},
	}

	count24h := len(news24h)
	snapshot.NewsCount24h = &count24h

	// 7天窗口失败不致命，仅损失基线计数
	if news7d, err := a.client.GetNews(ctx, symbol, 7*24*time.Hour); err == nil {
		count7d := len(news7d)
		snapshot.NewsCount7d = &count7d
	}

	summary := SummarizeVotes(news24h)
	snapshot.SentimentScore = summary.Score
	snapshot.PositiveVotes = summary.Positive
	snapshot.NegativeVotes = summary.Negative

	if count24h < lowAttentionThreshold {
		snapshot.RiskFlags = append(snapshot.RiskFlags, models.RiskFlag{
			ID:        FlagLowAttention,
			Severity:  flagSeverity(flagWeights[FlagLowAttention]),
			Rationale: fmt.Sprintf("only %d news articles in the past 24h", count24h),
		})
	}

	if summary.Score != nil && *summary.Score < negativeSentimentThreshold {
		snapshot.RiskFlags = append(snapshot.RiskFlags, models.RiskFlag{
			ID:        FlagNegativeSentiment,
			Severity:  flagSeverity(flagWeights[FlagNegativeSentiment]),
			Rationale: fmt.Sprintf("sentiment score %.2f, negative votes dominant", *summary.Score),
		})
	}

	snapshot.RiskScore = a.riskScore(snapshot.RiskFlags, summary.Score)

	a.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"news_24h":   count24h,
		"risk_score": snapshot.RiskScore,
		"flags":      len(snapshot.RiskFlags),
	}).Info("社媒情绪分析完成")

	return snapshot
}

// unknownSnapshot 上游失败时的降级快照
func (a *Analyzer) unknownSnapshot(symbol, reason string) *models.SentimentSnapshot {
	return &models.SentimentSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		RiskFlags: []models.RiskFlag{
			{
				ID:        FlagNoSocialData,
				Severity:  flagSeverity(flagWeights[FlagNoSocialData]),
				Rationale: reason,
			},
		},
		RiskScore: unknownRiskScore,
	}
}

// riskScore 计算0-100叙事风险分，0为正面安全，100为严重负面
func (a *Analyzer) riskScore(flags []models.RiskFlag, score *float64) int {
	total := 0
	for _, flag := range flags {
		total += flagWeights[flag.ID] * 2
	}

	if score != nil {
		switch s := *score; {
		case s < -0.5:
			total += 20
		case s < 0:
			total += 10
		case s > 0.5:
			total -= 10
		}
	}

	if total > 100 {
		return 100
	}
	if total < 0 {
		return 0
	}
	return total
}
