package models

import "time"

// InstanceError 单实例分析失败记录（不会中断整批请求）
type InstanceError struct {
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Code      string    `json:"code"` // UPSTREAM_ERROR/UPSTREAM_TIMEOUT/RATE_LIMITED/PARSE_ERROR/INVALID_REQUEST
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"` // 出错的数据提供方
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence 数据来源证据
type Evidence struct {
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	Ref       string    `json:"ref,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// ProvenSection 已证实事实区
type ProvenSection struct {
	Instances []ProvenInstance `json:"instances"`
}

// InferredSection 推断结论区
type InferredSection struct {
	CrossChainEquivalence []CrossChainPair `json:"cross_chain_equivalence"`
}

// TruthData PROVEN与INFERRED分区的数据主体
type TruthData struct {
	Proven   ProvenSection   `json:"proven"`
	Inferred InferredSection `json:"inferred"`
}

// TruthReport 合约事实分析报告
type TruthReport struct {
	RequestID string          `json:"request_id"`
	Token     TokenInfo       `json:"token"`
	AsOf      time.Time       `json:"as_of"`
	Data      TruthData       `json:"data"`
	Evidence  []Evidence      `json:"evidence"`
	Warnings  []string        `json:"warnings"`
	Errors    []InstanceError `json:"errors"`
}

// LiquiditySnapshot 流动性快照（外围路径）
type LiquiditySnapshot struct {
	Chain               string             `json:"chain"`
	Address             string             `json:"address"`
	Timestamp           time.Time          `json:"timestamp"`
	TotalLiquidityUSD   *float64           `json:"total_liquidity_usd,omitempty"`
	TopPoolLiquidityUSD *float64           `json:"top_pool_liquidity_usd,omitempty"`
	PoolCount           int                `json:"pool_count"`
	TopPoolPercentage   *float64           `json:"top_pool_percentage,omitempty"`
	Volume24hUSD        *float64           `json:"volume_24h_usd,omitempty"`
	VolumeLiquidityRatio *float64          `json:"volume_to_liquidity_ratio,omitempty"`
	SlippageEstimates   map[string]float64 `json:"slippage_estimates,omitempty"` // 交易规模 -> 预估滑点%
	RiskFlags           []RiskFlag         `json:"risk_flags"`
	RiskScore           int                `json:"risk_score"` // 0-100
}

// SentimentSnapshot 社媒情绪快照（外围路径）
type SentimentSnapshot struct {
	Symbol            string     `json:"symbol"`
	Timestamp         time.Time  `json:"timestamp"`
	NewsCount24h      *int       `json:"news_count_24h,omitempty"`
	NewsCount7d       *int       `json:"news_count_7d,omitempty"`
	SentimentScore    *float64   `json:"sentiment_score,omitempty"` // [-1, 1]
	PositiveVotes     int        `json:"positive_votes"`
	NegativeVotes     int        `json:"negative_votes"`
	RiskFlags         []RiskFlag `json:"risk_flags"`
	RiskScore         int        `json:"risk_score"` // 0-100
}

// DecisionHint 上架决策建议
type DecisionHint string

const (
	DecisionList           DecisionHint = "LIST"
	DecisionListWithLimits DecisionHint = "LIST_WITH_LIMITS"
	DecisionDoNotList      DecisionHint = "DO_NOT_LIST"
	DecisionNeedsReview    DecisionHint = "NEEDS_REVIEW"
)

// FinalDecision 三路分析合并后的最终决策
type FinalDecision struct {
	TokenAddress       string       `json:"token_address"`
	Chain              string       `json:"chain"`
	Symbol             string       `json:"symbol,omitempty"`
	Timestamp          time.Time    `json:"timestamp"`
	ContractRiskScore  int          `json:"contract_risk_score"`
	LiquidityRiskScore int          `json:"liquidity_risk_score"`
	NarrativeRiskScore int          `json:"narrative_risk_score"`
	OverallRiskScore   int          `json:"overall_risk_score"`
	AllRiskFlags       []RiskFlag   `json:"all_risk_flags"`
	Decision           DecisionHint `json:"decision"`
	Reasoning          string       `json:"decision_reasoning"`
	CriticalUnknowns   []string     `json:"critical_unknowns"`
}
