package decision

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tokentruth/internal/config"
	"tokentruth/internal/liquidity"
	"tokentruth/internal/truth"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// 决策阈值
const (
	doNotListThreshold      = 70
	listWithLimitsThreshold = 40
	blockingUnknownsLimit   = 3
)

// unknownContractScore 目标实例缺失已证实记录时的合约风险分
const unknownContractScore = 50

// notCriticalSuffix 标记不阻断自动决策的未知项
const notCriticalSuffix = "(not critical)"

// criticalFlags 直接阻断上架的标志
var criticalFlags = map[string]bool{
	truth.FlagUnverifiedSource: true,
	truth.FlagProxyUpgradeable: true,
	truth.FlagFreezePrivilege:  true,
}

// warningFlags 要求限仓上架的标志
var warningFlags = map[string]bool{
	truth.FlagMintPrivilege:    true,
	truth.FlagProxyNoTimelock:  true,
	truth.FlagFeeMutable:       true,
	liquidity.FlagLowLiquidity: true,
	liquidity.FlagHighSlippage: true,
}

// contractFlagWeights 合约风险标志的评分权重
var contractFlagWeights = map[string]int{
	truth.FlagUnverifiedSource: 8,
	truth.FlagFreezePrivilege:  8,
	truth.FlagProxyUpgradeable: 7,
	truth.FlagMintPrivilege:    6,
	truth.FlagProxyNoTimelock:  5,
	truth.FlagFeeMutable:       5,
}

// severityFallbackWeights 未登记标志按级别折算的权重
var severityFallbackWeights = map[models.Severity]int{
	models.SeverityCritical: 9,
	models.SeverityHigh:     7,
	models.SeverityMedium:   5,
	models.SeverityLow:      3,
}

// Engine 上架决策引擎，汇总合约、流动性、叙事三路分析
type Engine struct {
	contractWeight  float64
	liquidityWeight float64
	sentimentWeight float64
	logger          *logrus.Logger
}

// NewEngine 创建决策引擎，权重未配置时使用0.50/0.35/0.15
func NewEngine(cfg *config.DecisionConfig, logger *logrus.Logger) *Engine {
	engine := &Engine{
		contractWeight:  0.50,
		liquidityWeight: 0.35,
		sentimentWeight: 0.15,
		logger:          logger,
	}
	if cfg != nil && cfg.ContractWeight+cfg.LiquidityWeight+cfg.SentimentWeight > 0 {
		engine.contractWeight = cfg.ContractWeight
		engine.liquidityWeight = cfg.LiquidityWeight
		engine.sentimentWeight = cfg.SentimentWeight
	}
	return engine
}

// Decide 合并三路分析并给出最终上架建议
// report中找不到chain:address的已证实实例时，合约侧按未知处理。
func (e *Engine) Decide(chain, address string, report *models.TruthReport,
	liq *models.LiquiditySnapshot, sent *models.SentimentSnapshot) *models.FinalDecision {

	instance := findInstance(report, chain, address)

	allFlags := make([]models.RiskFlag, 0, 8)
	if instance != nil {
		allFlags = append(allFlags, instance.RiskFlags...)
	}
	if liq != nil {
		allFlags = append(allFlags, liq.RiskFlags...)
	}
	if sent != nil {
		allFlags = append(allFlags, sent.RiskFlags...)
	}

	contractScore := unknownContractScore
	if instance != nil {
		contractScore = contractRiskScore(instance.RiskFlags)
	}

	liquidityScore := 50
	if liq != nil {
		liquidityScore = liq.RiskScore
	}

	sentimentScore := 50
	if sent != nil {
		sentimentScore = sent.RiskScore
	}

	overall := int(float64(contractScore)*e.contractWeight +
		float64(liquidityScore)*e.liquidityWeight +
		float64(sentimentScore)*e.sentimentWeight)

	unknowns := e.collectUnknowns(instance, liq, sent)
	hint, reasoning := e.determine(overall, allFlags, unknowns)

	decision := &models.FinalDecision{
		TokenAddress:       address,
		Chain:              chain,
		Timestamp:          time.Now().UTC(),
		ContractRiskScore:  contractScore,
		LiquidityRiskScore: liquidityScore,
		NarrativeRiskScore: sentimentScore,
		OverallRiskScore:   overall,
		AllRiskFlags:       allFlags,
		Decision:           hint,
		Reasoning:          reasoning,
		CriticalUnknowns:   unknowns,
	}
	if report != nil {
		decision.Symbol = report.Token.Symbol
	}

	e.logger.WithFields(logrus.Fields{
		"chain":    chain,
		"address":  address,
		"decision": hint,
		"overall":  overall,
		"flags":    len(allFlags),
		"unknowns": len(unknowns),
	}).Info("上架决策生成完成")

	return decision
}

// contractRiskScore 按标志权重折算0-100合约风险分
// 权重和按满分50归一化，未登记的标志按级别取回退权重。
func contractRiskScore(flags []models.RiskFlag) int {
	total := 0
	for _, flag := range flags {
		if weight, known := contractFlagWeights[flag.ID]; known {
			total += weight
		} else {
			total += severityFallbackWeights[flag.Severity]
		}
	}

	score := total * 100 / 50
	if score > 100 {
		return 100
	}
	return score
}

// collectUnknowns 收集影响决策的未知数据点
func (e *Engine) collectUnknowns(instance *models.ProvenInstance,
	liq *models.LiquiditySnapshot, sent *models.SentimentSnapshot) []string {

	unknowns := make([]string, 0, 4)

	if instance == nil {
		unknowns = append(unknowns,
			"contract verification status unknown",
			"contract upgradeability unknown",
			"mint capability unknown")
	} else {
		if instance.Upgradeability.IsProxy == nil {
			unknowns = append(unknowns, "contract upgradeability unknown")
		}
		if instance.Controls.CanMint == nil {
			unknowns = append(unknowns, "mint capability unknown: source code or token metadata unavailable")
		}
	}

	if liq == nil || liq.TotalLiquidityUSD == nil {
		unknowns = append(unknowns, "total liquidity unknown")
	}
	if liq == nil || liq.Volume24hUSD == nil {
		unknowns = append(unknowns, "trading volume unknown")
	}

	if sent == nil || sent.NewsCount24h == nil {
		unknowns = append(unknowns, "social/news data unavailable "+notCriticalSuffix)
	}

	return unknowns
}

// determine 按未知项、关键标志、总分、警告标志的优先序裁决
func (e *Engine) determine(overall int, flags []models.RiskFlag, unknowns []string) (models.DecisionHint, string) {
	blocking := 0
	for _, u := range unknowns {
		if !strings.Contains(u, notCriticalSuffix) {
			blocking++
		}
	}

	if blocking >= blockingUnknownsLimit {
		return models.DecisionNeedsReview,
			fmt.Sprintf("too many critical unknowns (%d), manual review required", blocking)
	}

	criticalPresent := presentFlags(flags, criticalFlags)
	if len(criticalPresent) > 0 {
		return models.DecisionDoNotList,
			fmt.Sprintf("critical risk flags detected: %s", strings.Join(criticalPresent, ", "))
	}

	if overall >= doNotListThreshold {
		return models.DecisionDoNotList,
			fmt.Sprintf("overall risk score %d/100 exceeds threshold %d", overall, doNotListThreshold)
	}

	warningPresent := presentFlags(flags, warningFlags)
	if len(warningPresent) > 0 || overall >= listWithLimitsThreshold {
		detail := "none specific"
		if len(warningPresent) > 0 {
			detail = strings.Join(warningPresent, ", ")
		}
		return models.DecisionListWithLimits,
			fmt.Sprintf("moderate risk (score %d/100), list with reduced position limits, flags: %s", overall, detail)
	}

	return models.DecisionList,
		fmt.Sprintf("low risk assessment (score %d/100), safe for standard listing", overall)
}

// presentFlags 返回命中集合的标志ID，去重后按字典序
func presentFlags(flags []models.RiskFlag, set map[string]bool) []string {
	seen := make(map[string]bool)
	present := make([]string, 0, len(flags))
	for _, flag := range flags {
		if set[flag.ID] && !seen[flag.ID] {
			seen[flag.ID] = true
			present = append(present, flag.ID)
		}
	}
	sort.Strings(present)
	return present
}

// findInstance 在报告的已证实区查找目标实例
func findInstance(report *models.TruthReport, chain, address string) *models.ProvenInstance {
	if report == nil {
		return nil
	}
	for i := range report.Data.Proven.Instances {
		instance := &report.Data.Proven.Instances[i]
		if strings.EqualFold(instance.Chain, chain) && strings.EqualFold(instance.Address, address) {
			return instance
		}
	}
	return nil
}
