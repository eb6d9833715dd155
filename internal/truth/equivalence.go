package truth

import (
	"fmt"
	"math"
	"sort"

	"tokentruth/pkg/models"
)

// ScoringWeights 相似度加权方案
// 权重是可调策略而非固定契约：阈值行为(0.8/0.5)是对外承诺，
// 各分项权重通过配置暴露，默认值见DefaultScoringWeights。
type ScoringWeights struct {
	ProxyAgreement  float64 `mapstructure:"proxy_agreement" json:"proxy_agreement"`
	ProxyTypeBonus  float64 `mapstructure:"proxy_type_bonus" json:"proxy_type_bonus"`
	Capabilities    float64 `mapstructure:"capabilities" json:"capabilities"`
	RiskFlagOverlap float64 `mapstructure:"risk_flag_overlap" json:"risk_flag_overlap"`
	Verification    float64 `mapstructure:"verification" json:"verification"`

	ProvenThreshold float64 `mapstructure:"proven_threshold" json:"proven_threshold"`
	LikelyThreshold float64 `mapstructure:"likely_threshold" json:"likely_threshold"`
}

// DefaultScoringWeights 默认加权方案
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ProxyAgreement:  0.25,
		ProxyTypeBonus:  0.10,
		Capabilities:    0.40,
		RiskFlagOverlap: 0.25,
		Verification:    0.10,
		ProvenThreshold: 0.8,
		LikelyThreshold: 0.5,
	}
}

// Scorer 跨链等价性评分器
type Scorer struct {
	weights ScoringWeights
}

// NewScorer 创建评分器（weights为零值时使用默认方案）
func NewScorer(weights ScoringWeights) *Scorer {
	if weights == (ScoringWeights{}) {
		weights = DefaultScoringWeights()
	}
	return &Scorer{weights: weights}
}

// ScoreEquivalence 对全部已分类实例计算两两相似度
// 少于2个实例时返回空集（不是错误）。每一对的评分只依赖该对
// 的两条ProvenInstance，与请求顺序和其它实例无关。
func (s *Scorer) ScoreEquivalence(instances []models.ProvenInstance) []models.CrossChainPair {
	if len(instances) < 2 {
		return nil
	}

	pairs := make([]models.CrossChainPair, 0, len(instances)*(len(instances)-1)/2)
	for i := 0; i < len(instances); i++ {
		for j := i + 1; j < len(instances); j++ {
			pairs = append(pairs, s.scorePair(&instances[i], &instances[j]))
		}
	}
	return pairs
}

// scorePair 计算一对实例的加权一致性得分
// 对称性保证：所有分项与reason文本都按规范化顺序构造，
// score(A,B)与score(B,A)的置信度和reason内容完全一致。
func (s *Scorer) scorePair(a, b *models.ProvenInstance) models.CrossChainPair {
	// reason文本中引用双方时按key排序，消除参数顺序依赖
	first, second := a, b
	if first.Key() > second.Key() {
		first, second = second, first
	}

	var confidence float64
	reasons := make([]string, 0, 6)

	confidence += s.scoreProxyTerm(first, second, &reasons)
	confidence += s.scoreCapabilityTerm(first, second, &reasons)
	confidence += s.scoreRiskFlagTerm(first, second, &reasons)
	confidence += s.scoreVerificationTerm(first, second, &reasons)

	// 钳制到[0,1]并保留4位小数，保证阈值边界判定不受浮点累加误差影响
	confidence = math.Round(confidence*1e4) / 1e4
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}

	label := models.LabelUnknown
	switch {
	case confidence >= s.weights.ProvenThreshold:
		label = models.LabelProvenSameAsset
	case confidence >= s.weights.LikelyThreshold:
		label = models.LabelLikelySameAsset
	}

	return models.CrossChainPair{
		Pair:       [2]string{a.Key(), b.Key()}, // 按请求顺序报告
		Confidence: confidence,
		Label:      label,
		Reasons:    reasons,
	}
}

// scoreProxyTerm 代理状态一致性分项
func (s *Scorer) scoreProxyTerm(a, b *models.ProvenInstance, reasons *[]string) float64 {
	ua, ub := a.Upgradeability, b.Upgradeability

	if ua.IsProxy == nil || ub.IsProxy == nil {
		*reasons = append(*reasons, "proxy state not comparable: upgradeability unknown on at least one chain (+0.00)")
		return 0
	}

	if *ua.IsProxy != *ub.IsProxy {
		*reasons = append(*reasons, fmt.Sprintf("proxy state differs: %s=%s, %s=%s (-%.2f weighted)",
			a.Chain, proxyWord(*ua.IsProxy), b.Chain, proxyWord(*ub.IsProxy), s.weights.ProxyAgreement))
		return 0
	}

	score := s.weights.ProxyAgreement

	if *ua.IsProxy {
		if ua.ProxyType == ub.ProxyType {
			score += s.weights.ProxyTypeBonus
			*reasons = append(*reasons, fmt.Sprintf("both proxies: %s (+%.2f)", ua.ProxyType, score))
		} else {
			*reasons = append(*reasons, fmt.Sprintf("both proxies but type differs: %s vs %s (+%.2f)",
				ua.ProxyType, ub.ProxyType, score))
		}
	} else {
		*reasons = append(*reasons, fmt.Sprintf("both non-proxy (+%.2f)", score))
	}

	return score
}

// scoreCapabilityTerm 能力集Jaccard相似度分项
// 只统计双方都非未知的字段，并按可比字段占比缩放；
// 可比字段不足2个时该项贡献0并记录证据不足。
func (s *Scorer) scoreCapabilityTerm(a, b *models.ProvenInstance, reasons *[]string) float64 {
	type capPair struct {
		name string
		av   *bool
		bv   *bool
	}

	caps := []capPair{
		{"can_mint", a.Controls.CanMint, b.Controls.CanMint},
		{"can_burn", a.Controls.CanBurn, b.Controls.CanBurn},
		{"can_pause", a.Controls.CanPause, b.Controls.CanPause},
		{"can_blacklist_or_freeze", a.Controls.CanBlacklistOrFreeze, b.Controls.CanBlacklistOrFreeze},
		{"fee_controls", a.Controls.FeeControls, b.Controls.FeeControls},
		{"owner_or_admin", a.Controls.OwnerOrAdmin, b.Controls.OwnerOrAdmin},
	}

	comparable := 0
	intersection := 0
	union := 0
	mismatches := make([]string, 0)

	for _, c := range caps {
		if c.av == nil || c.bv == nil {
			continue
		}
		comparable++

		if *c.av || *c.bv {
			union++
			if *c.av && *c.bv {
				intersection++
			}
		}
		if *c.av != *c.bv {
			mismatches = append(mismatches, c.name)
		}
	}

	if comparable < 2 {
		*reasons = append(*reasons, "insufficient capability evidence: fewer than 2 comparable fields (+0.00)")
		return 0
	}

	// 双方能力全为false视为完全一致
	jaccard := 1.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	scale := float64(comparable) / float64(len(caps))
	score := s.weights.Capabilities * jaccard * scale

	if len(mismatches) == 0 {
		*reasons = append(*reasons, fmt.Sprintf("capability sets agree on %d/%d comparable fields (+%.2f)",
			comparable, len(caps), score))
	} else {
		sort.Strings(mismatches)
		for _, name := range mismatches {
			*reasons = append(*reasons, fmt.Sprintf("capability mismatch: %s differs (-weighted)", name))
		}
		*reasons = append(*reasons, fmt.Sprintf("capability similarity %.2f over %d comparable fields (+%.2f)",
			jaccard, comparable, score))
	}

	return score
}

// scoreRiskFlagTerm 风险标志ID重合度分项（Jaccard）
func (s *Scorer) scoreRiskFlagTerm(a, b *models.ProvenInstance, reasons *[]string) float64 {
	setA := flagIDSet(a.RiskFlags)
	setB := flagIDSet(b.RiskFlags)

	intersection := 0
	for id := range setA {
		if setB[id] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	// 双方都没有任何标志视为风险画像一致
	jaccard := 1.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	score := s.weights.RiskFlagOverlap * jaccard
	if jaccard == 1.0 {
		*reasons = append(*reasons, fmt.Sprintf("risk profiles match: %d shared flag(s) (+%.2f)", intersection, score))
	} else {
		*reasons = append(*reasons, fmt.Sprintf("risk profiles overlap %d/%d flag id(s) (+%.2f)", intersection, union, score))
	}

	return score
}

// scoreVerificationTerm 验证状态一致性分项
func (s *Scorer) scoreVerificationTerm(a, b *models.ProvenInstance, reasons *[]string) float64 {
	if a.Verification.Verified != b.Verification.Verified {
		*reasons = append(*reasons, fmt.Sprintf("verification status differs: %s=%t, %s=%t (-%.2f weighted)",
			a.Chain, a.Verification.Verified, b.Chain, b.Verification.Verified, s.weights.Verification))
		return 0
	}

	score := s.weights.Verification
	*reasons = append(*reasons, fmt.Sprintf("verification status agrees: verified=%t (+%.2f)",
		a.Verification.Verified, score))
	return score
}

func flagIDSet(flags []models.RiskFlag) map[string]bool {
	set := make(map[string]bool, len(flags))
	for _, f := range flags {
		set[f.ID] = true
	}
	return set
}

func proxyWord(isProxy bool) string {
	if isProxy {
		return "proxy"
	}
	return "non-proxy"
}
