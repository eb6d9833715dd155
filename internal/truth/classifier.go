package truth

import (
	"time"

	"tokentruth/pkg/models"
)

// FetchOutcome 采集层对单实例的采集结果：原始事实或结构化错误，二者其一
type FetchOutcome struct {
	Facts *models.RawInstanceFacts
	Err   *models.InstanceError
}

// Classify 按请求逐实例编排能力提取、升级性判定与风险标志生成
// 各实例相互独立：采集失败的实例只产生一条错误记录，不中断整批。
// 纯函数，无I/O、无跨请求状态；同样的输入必然产生同样的输出。
func Classify(requests []models.ChainInstanceRequest, outcomes map[string]FetchOutcome) ([]models.ProvenInstance, []models.InstanceError) {
	proven := make([]models.ProvenInstance, 0, len(requests))
	errs := make([]models.InstanceError, 0)

	for _, req := range requests {
		outcome, ok := outcomes[req.Key()]
		if !ok || (outcome.Facts == nil && outcome.Err == nil) {
			errs = append(errs, models.InstanceError{
				Chain:     req.Chain,
				Address:   req.Address,
				Code:      "UPSTREAM_ERROR",
				Message:   "raw facts were not supplied for this instance",
				Retryable: true,
				Timestamp: time.Now(),
			})
			continue
		}

		if outcome.Err != nil {
			errs = append(errs, *outcome.Err)
			continue
		}

		proven = append(proven, classifyInstance(req, outcome.Facts))
	}

	return proven, errs
}

// classifyInstance 构建单实例的已证实记录
func classifyInstance(req models.ChainInstanceRequest, facts *models.RawInstanceFacts) models.ProvenInstance {
	verification := models.Verification{
		Verified:   facts.Verified != nil && *facts.Verified,
		Explorer:   facts.Explorer,
		SourceHash: facts.SourceHash,
	}

	controls := models.Controls{}
	if verification.Verified {
		verification.ABIAvailable = models.Bool(facts.ABIFunctions != nil)
		controls = ExtractCapabilities(facts)
	}
	// 未验证时abi_available与controls保持未知，绝不默认为false

	upgradeability := DetectUpgradeability(facts)

	return models.ProvenInstance{
		Chain:   req.Chain,
		Address: req.Address,
		Type:    req.Type,

		Verification: verification,
		CodeIdentity: models.CodeIdentity{
			RuntimeCodeHash: facts.RuntimeCodeHash,
			Deployer:        facts.Deployer,
			CreationTx:      facts.CreationTx,
		},
		Upgradeability: upgradeability,
		Controls:       controls,
		RiskFlags:      GenerateRiskFlags(controls, upgradeability, verification),
	}
}
