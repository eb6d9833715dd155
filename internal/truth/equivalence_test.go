package truth

import (
	"testing"

	"tokentruth/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allFalseControls() models.Controls {
	return models.Controls{
		CanMint:              models.Bool(false),
		CanBurn:              models.Bool(false),
		CanPause:             models.Bool(false),
		CanBlacklistOrFreeze: models.Bool(false),
		FeeControls:          models.Bool(false),
		OwnerOrAdmin:         models.Bool(false),
	}
}

func nonProxyInstance(chain, address string) models.ProvenInstance {
	return models.ProvenInstance{
		Chain:        chain,
		Address:      address,
		Type:         "erc20",
		Verification: models.Verification{Verified: true},
		Upgradeability: models.Upgradeability{
			IsProxy:   models.Bool(false),
			ProxyType: models.ProxyNone,
		},
		Controls:  allFalseControls(),
		RiskFlags: []models.RiskFlag{},
	}
}

func TestScoreEquivalence_IdenticalNonProxies(t *testing.T) {
	// 双方均非代理、六项能力一致、标志集一致、均已验证 ⇒ 置信度恰为1.0
	a := nonProxyInstance("ethereum", ethAddr)
	b := nonProxyInstance("bsc", bscAddr)

	pairs := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})

	require.Len(t, pairs, 1)
	pair := pairs[0]
	assert.Equal(t, [2]string{a.Key(), b.Key()}, pair.Pair)
	assert.Equal(t, 1.0, pair.Confidence)
	assert.Equal(t, models.LabelProvenSameAsset, pair.Label)
	assert.NotEmpty(t, pair.Reasons)
}

func TestScoreEquivalence_ProxyAndCapabilityMismatch(t *testing.T) {
	// 一方透明代理且can_mint=true，另一方非代理can_mint=false，
	// 均已验证，标志集无重合 ⇒ 置信度<0.5 ⇒ unknown
	a := nonProxyInstance("ethereum", ethAddr)
	a.Upgradeability = models.Upgradeability{
		IsProxy:   models.Bool(true),
		ProxyType: models.ProxyEIP1967Transparent,
	}
	a.Controls.CanMint = models.Bool(true)
	a.RiskFlags = []models.RiskFlag{
		{ID: FlagMintPrivilege, Severity: models.SeverityHigh},
		{ID: FlagProxyUpgradeable, Severity: models.SeverityMedium},
		{ID: FlagProxyNoTimelock, Severity: models.SeverityHigh},
	}
	b := nonProxyInstance("bsc", bscAddr)

	pairs := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})

	require.Len(t, pairs, 1)
	pair := pairs[0]
	assert.Less(t, pair.Confidence, 0.5)
	assert.Equal(t, models.LabelUnknown, pair.Label)

	joined := ""
	for _, r := range pair.Reasons {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "proxy state differs")
	assert.Contains(t, joined, "can_mint differs")
}

func TestScoreEquivalence_Symmetric(t *testing.T) {
	a := nonProxyInstance("ethereum", ethAddr)
	a.Controls.CanMint = models.Bool(true)
	a.RiskFlags = []models.RiskFlag{{ID: FlagMintPrivilege, Severity: models.SeverityHigh}}
	b := nonProxyInstance("bsc", bscAddr)
	b.Verification.Verified = false

	scorer := NewScorer(ScoringWeights{})
	ab := scorer.ScoreEquivalence([]models.ProvenInstance{a, b})[0]
	ba := scorer.ScoreEquivalence([]models.ProvenInstance{b, a})[0]

	assert.Equal(t, ab.Confidence, ba.Confidence)
	assert.Equal(t, ab.Label, ba.Label)
	assert.ElementsMatch(t, ab.Reasons, ba.Reasons)

	// pair字段保持请求顺序
	assert.Equal(t, [2]string{a.Key(), b.Key()}, ab.Pair)
	assert.Equal(t, [2]string{b.Key(), a.Key()}, ba.Pair)
}

func TestScoreEquivalence_ProvenBoundaryInclusive(t *testing.T) {
	// 能力Jaccard 0.5（can_burn不一致）：0.25 + 0.40*0.5 + 0.25 + 0.10 = 0.80
	a := nonProxyInstance("ethereum", ethAddr)
	a.Controls.CanMint = models.Bool(true)
	a.Controls.CanBurn = models.Bool(true)
	a.RiskFlags = []models.RiskFlag{{ID: FlagMintPrivilege, Severity: models.SeverityHigh}}
	b := nonProxyInstance("bsc", bscAddr)
	b.Controls.CanMint = models.Bool(true)
	b.RiskFlags = []models.RiskFlag{{ID: FlagMintPrivilege, Severity: models.SeverityHigh}}

	pair := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})[0]

	assert.Equal(t, 0.8, pair.Confidence)
	assert.Equal(t, models.LabelProvenSameAsset, pair.Label) // 下界含0.8本身
}

func TestScoreEquivalence_LikelyBoundaryInclusive(t *testing.T) {
	// 能力全未知（贡献0），标志Jaccard 3/5：0.25 + 0 + 0.25*0.6 + 0.10 = 0.50
	a := nonProxyInstance("ethereum", ethAddr)
	a.Controls = models.Controls{}
	a.RiskFlags = []models.RiskFlag{
		{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"},
	}
	b := nonProxyInstance("bsc", bscAddr)
	b.Controls = models.Controls{}
	b.RiskFlags = []models.RiskFlag{
		{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "E"},
	}

	pair := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})[0]

	assert.Equal(t, 0.5, pair.Confidence)
	assert.Equal(t, models.LabelLikelySameAsset, pair.Label)
}

func TestScoreEquivalence_InsufficientCapabilityEvidence(t *testing.T) {
	// 可比能力字段不足2个时该项贡献0并注明证据不足
	a := nonProxyInstance("ethereum", ethAddr)
	a.Controls = models.Controls{CanMint: models.Bool(false)}
	b := nonProxyInstance("bsc", bscAddr)
	b.Controls = models.Controls{CanMint: models.Bool(false)}

	pair := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})[0]

	// 0.25 + 0 + 0.25 + 0.10 = 0.60
	assert.Equal(t, 0.6, pair.Confidence)
	joined := ""
	for _, r := range pair.Reasons {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "insufficient capability evidence")
}

func TestScoreEquivalence_UnknownProxyStateNotPenalized(t *testing.T) {
	// 一方代理状态未知时该项贡献0，不按不一致扣分
	a := nonProxyInstance("ethereum", ethAddr)
	a.Upgradeability = models.Upgradeability{ProxyType: models.ProxyNone} // IsProxy为nil
	b := nonProxyInstance("bsc", bscAddr)

	pair := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{a, b})[0]

	// 0 + 0.40 + 0.25 + 0.10 = 0.75
	assert.Equal(t, 0.75, pair.Confidence)
	assert.Equal(t, models.LabelLikelySameAsset, pair.Label)
}

func TestScoreEquivalence_SingleInstance(t *testing.T) {
	pairs := NewScorer(ScoringWeights{}).ScoreEquivalence([]models.ProvenInstance{
		nonProxyInstance("ethereum", ethAddr),
	})

	assert.Empty(t, pairs)
}

func TestScoreEquivalence_ThreeInstances(t *testing.T) {
	instances := []models.ProvenInstance{
		nonProxyInstance("ethereum", ethAddr),
		nonProxyInstance("bsc", bscAddr),
		nonProxyInstance("polygon", "0x3333333333333333333333333333333333333333"),
	}

	pairs := NewScorer(ScoringWeights{}).ScoreEquivalence(instances)

	require.Len(t, pairs, 3) // C(3,2)
	for _, p := range pairs {
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
	}
}

func TestScoreEquivalence_CustomWeights(t *testing.T) {
	// 权重是可配置策略：加大验证项权重应改变得分
	weights := DefaultScoringWeights()
	weights.Verification = 0.30
	weights.Capabilities = 0.20

	a := nonProxyInstance("ethereum", ethAddr)
	b := nonProxyInstance("bsc", bscAddr)

	pair := NewScorer(weights).ScoreEquivalence([]models.ProvenInstance{a, b})[0]

	// 0.25 + 0.20 + 0.25 + 0.30 = 1.00
	assert.Equal(t, 1.0, pair.Confidence)
}
