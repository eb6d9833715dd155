package truth

import (
	"strings"

	"tokentruth/pkg/models"
)

// 能力签名字典：函数名中出现任一子串即判定具备该能力。
// 匹配不区分大小写，各能力独立判定，不因先命中而短路。
var capabilityPatterns = map[string][]string{
	"can_mint":                {"mint"},
	"can_burn":                {"burn"},
	"can_pause":               {"pause"},
	"can_blacklist_or_freeze": {"blacklist", "freeze"},
	"fee_controls":            {"setfee", "updatefee"},
	"owner_or_admin":          {"owner", "setadmin", "changeadmin"},
}

// ExtractCapabilities 从ABI函数名列表/权限字段提取六项能力集
// 证据缺失时所有能力为未知（nil），绝不默认为false——
// 没有证据不等于证明不存在。
func ExtractCapabilities(facts *models.RawInstanceFacts) models.Controls {
	switch facts.Family {
	case models.FamilySolana:
		return extractSolanaCapabilities(facts.Solana)
	default:
		return extractEVMCapabilities(facts.ABIFunctions)
	}
}

// extractEVMCapabilities 基于ABI函数名的模式匹配
func extractEVMCapabilities(functions []string) models.Controls {
	if len(functions) == 0 {
		// ABI不可用或为空，全部未知
		return models.Controls{}
	}

	normalized := make([]string, len(functions))
	for i, fn := range functions {
		normalized[i] = strings.ToLower(fn)
	}

	match := func(patterns []string) *bool {
		for _, fn := range normalized {
			for _, pattern := range patterns {
				if strings.Contains(fn, pattern) {
					return models.Bool(true)
				}
			}
		}
		return models.Bool(false)
	}

	// 各字段独立判定
	return models.Controls{
		CanMint:              match(capabilityPatterns["can_mint"]),
		CanBurn:              match(capabilityPatterns["can_burn"]),
		CanPause:             match(capabilityPatterns["can_pause"]),
		CanBlacklistOrFreeze: match(capabilityPatterns["can_blacklist_or_freeze"]),
		FeeControls:          match(capabilityPatterns["fee_controls"]),
		OwnerOrAdmin:         match(capabilityPatterns["owner_or_admin"]),
	}
}

// extractSolanaCapabilities 基于SPL mint账户权限字段的判定
func extractSolanaCapabilities(facts *models.SolanaFacts) models.Controls {
	if facts == nil {
		// 账户数据不可用，全部未知
		return models.Controls{}
	}

	hasMintAuthority := facts.MintAuthority != ""
	hasFreezeAuthority := facts.FreezeAuthority != ""

	return models.Controls{
		// 非空mint authority即具备增发能力
		CanMint: models.Bool(hasMintAuthority),
		// SPL代币持有者始终可销毁自己的代币
		CanBurn: models.Bool(true),
		// SPL标准没有全局暂停机制
		CanPause: models.Bool(false),
		// 非空freeze authority即具备冻结能力
		CanBlacklistOrFreeze: models.Bool(hasFreezeAuthority),
		// SPL标准转账不收费
		FeeControls:  models.Bool(false),
		OwnerOrAdmin: models.Bool(hasMintAuthority || facts.UpgradeAuthority != ""),
	}
}
