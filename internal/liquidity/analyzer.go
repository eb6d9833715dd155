package liquidity

import (
	"context"
	"fmt"
	"time"

	"tokentruth/internal/config"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// 流动性风险标志ID
const (
	FlagLowLiquidity      = "LOW_LIQUIDITY"
	FlagLowVolume         = "LOW_VOLUME"
	FlagConcentratedPools = "CONCENTRATED_POOLS"
	FlagHighSlippage      = "HIGH_SLIPPAGE"
	FlagNoCEXSupport      = "NO_CEX_SUPPORT"
)

// 风险阈值
const (
	lowLiquidityThresholdUSD  = 100_000
	lowVolumeThresholdUSD     = 50_000
	concentrationThresholdPct = 80
	highSlippageThresholdPct  = 5 // $10k交易的滑点阈值
	cexSupportThresholdUSD    = 500_000
)

// unknownRiskScore 数据不可用时的中间风险分
const unknownRiskScore = 50

// flagWeights 各标志参与评分的数值权重，与报告里的文字级别分开维护
var flagWeights = map[string]int{
	FlagLowLiquidity:      9,
	FlagHighSlippage:      8,
	FlagLowVolume:         7,
	FlagConcentratedPools: 6,
	FlagNoCEXSupport:      6,
}

// flagSeverity 数值权重到报告级别的映射
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

// Analyzer 流动性情报分析器
type Analyzer struct {
	client *Client
	logger *logrus.Logger
}

// NewAnalyzer 创建流动性分析器
func NewAnalyzer(cfg *config.ProvidersConfig, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		client: NewClient(cfg, logger),
		logger: logger,
	}
}

// Analyze 生成代币在指定链上的流动性快照
// DexScreener不可用时不报错：返回各项为未知、风险分50的降级快照。
func (a *Analyzer) Analyze(ctx context.Context, chain, address string) *models.LiquiditySnapshot {
	pairs, err := a.client.TokenPairs(ctx, chain, address)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"chain":   chain,
			"address": address,
			"error":   err.Error(),
		}).Warn("DexScreener数据不可用，流动性分析降级为未知")
		return a.unknownSnapshot(chain, address)
	}

	snapshot := &models.LiquiditySnapshot{
		Chain:     chain,
		Address:   address,
		Timestamp: time.Now().UTC(),
		PoolCount: len(pairs),
		RiskFlags: []models.RiskFlag{},
	}

	totalLiquidity, topPool := liquidityStats(pairs)
	volume24h := volumeStats(pairs)

	if len(pairs) > 0 {
		snapshot.TotalLiquidityUSD = &totalLiquidity
		snapshot.TopPoolLiquidityUSD = &topPool
		snapshot.Volume24hUSD = &volume24h

		if totalLiquidity > 0 {
			topPct := round2(topPool / totalLiquidity * 100)
			snapshot.TopPoolPercentage = &topPct

			ratio := round3(volume24h / totalLiquidity)
			snapshot.VolumeLiquidityRatio = &ratio

			snapshot.SlippageEstimates = map[string]float64{
				"1k":   EstimateSlippage(totalLiquidity, 1_000),
				"10k":  EstimateSlippage(totalLiquidity, 10_000),
				"100k": EstimateSlippage(totalLiquidity, 100_000),
			}
		}
	}

	snapshot.RiskFlags = a.evaluateFlags(snapshot)
	snapshot.RiskScore = a.riskScore(snapshot)

	a.logger.WithFields(logrus.Fields{
		"chain":      chain,
		"address":    address,
		"pools":      snapshot.PoolCount,
		"risk_score": snapshot.RiskScore,
		"flags":      len(snapshot.RiskFlags),
	}).Info("流动性分析完成")

	return snapshot
}

// unknownSnapshot 上游失败时的降级快照
func (a *Analyzer) unknownSnapshot(chain, address string) *models.LiquiditySnapshot {
	return &models.LiquiditySnapshot{
		Chain:     chain,
		Address:   address,
		Timestamp: time.Now().UTC(),
		RiskFlags: []models.RiskFlag{},
		RiskScore: unknownRiskScore,
	}
}

// evaluateFlags 按阈值规则表生成风险标志，未知字段不触发任何标志
func (a *Analyzer) evaluateFlags(s *models.LiquiditySnapshot) []models.RiskFlag {
	flags := make([]models.RiskFlag, 0, 4)

	addFlag := func(id, rationale string) {
		flags = append(flags, models.RiskFlag{
			ID:        id,
			Severity:  flagSeverity(flagWeights[id]),
			Rationale: rationale,
		})
	}

	if s.TotalLiquidityUSD != nil && *s.TotalLiquidityUSD < lowLiquidityThresholdUSD {
		addFlag(FlagLowLiquidity,
			fmt.Sprintf("total DEX liquidity $%.0f below $%d", *s.TotalLiquidityUSD, lowLiquidityThresholdUSD))
	}

	if s.TopPoolPercentage != nil && *s.TopPoolPercentage > concentrationThresholdPct {
		addFlag(FlagConcentratedPools,
			fmt.Sprintf("%.1f%% of liquidity in a single pool (threshold %d%%)", *s.TopPoolPercentage, concentrationThresholdPct))
	}

	if s.Volume24hUSD != nil && *s.Volume24hUSD < lowVolumeThresholdUSD {
		addFlag(FlagLowVolume,
			fmt.Sprintf("24h volume $%.0f below $%d", *s.Volume24hUSD, lowVolumeThresholdUSD))
	}

	if slip10k, ok := s.SlippageEstimates["10k"]; ok && slip10k > highSlippageThresholdPct {
		addFlag(FlagHighSlippage,
			fmt.Sprintf("estimated %.2f%% slippage for a $10k trade (threshold %d%%)", slip10k, highSlippageThresholdPct))
	}

	if s.TotalLiquidityUSD != nil && *s.TotalLiquidityUSD < cexSupportThresholdUSD {
		addFlag(FlagNoCEXSupport, "no CEX listings detected and low DEX liquidity")
	}

	return flags
}

// riskScore 计算0-100流动性风险分，0为流动性极佳，100为几乎不可交易
func (a *Analyzer) riskScore(s *models.LiquiditySnapshot) int {
	score := 0
	for _, flag := range s.RiskFlags {
		score += flagWeights[flag.ID] * 2
	}

	if s.TotalLiquidityUSD != nil {
		switch liquidity := *s.TotalLiquidityUSD; {
		case liquidity < 50_000:
			score += 30
		case liquidity < 100_000:
			score += 20
		case liquidity < 500_000:
			score += 10
		case liquidity > 5_000_000:
			score -= 10
		}
	}

	if s.Volume24hUSD != nil {
		switch volume := *s.Volume24hUSD; {
		case volume < 10_000:
			score += 15
		case volume < 50_000:
			score += 10
		}
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// liquidityStats 汇总总流动性与最大池流动性
func liquidityStats(pairs []Pair) (total, top float64) {
	for _, p := range pairs {
		total += p.LiquidityUSD
		if p.LiquidityUSD > top {
			top = p.LiquidityUSD
		}
	}
	return total, top
}

// volumeStats 汇总24小时成交量
func volumeStats(pairs []Pair) float64 {
	var total float64
	for _, p := range pairs {
		total += p.Volume24hUSD
	}
	return total
}
