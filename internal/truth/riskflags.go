package truth

import (
	"fmt"

	"tokentruth/pkg/models"
)

// 风险标志ID
const (
	FlagMintPrivilege    = "MINT_PRIVILEGE"
	FlagFreezePrivilege  = "FREEZE_PRIVILEGE"
	FlagProxyUpgradeable = "PROXY_UPGRADEABLE"
	FlagProxyNoTimelock  = "PROXY_NO_TIMELOCK"
	FlagFeeMutable       = "FEE_MUTABLE"
	FlagUnverifiedSource = "UNVERIFIED_SOURCE"
)

// GenerateRiskFlags 由能力集与升级性状态生成风险标志
// 纯函数规则表，各规则独立判定，同一事实集可产出零到多条标志。
// 未知值字段绝不触发标志——证据缺失既不是无风险也不是有风险。
// 说明文本逐字引用触发字段，便于审计回溯。
func GenerateRiskFlags(controls models.Controls, upgradeability models.Upgradeability, verification models.Verification) []models.RiskFlag {
	flags := make([]models.RiskFlag, 0, 4)

	if isTrue(controls.CanMint) {
		flags = append(flags, models.RiskFlag{
			ID:        FlagMintPrivilege,
			Severity:  models.SeverityHigh,
			Rationale: "can_mint = true: contract exposes a mint capability",
		})
	}

	if isTrue(controls.CanBlacklistOrFreeze) {
		flags = append(flags, models.RiskFlag{
			ID:        FlagFreezePrivilege,
			Severity:  models.SeverityHigh,
			Rationale: "can_blacklist_or_freeze = true: accounts can be frozen or blacklisted",
		})
	}

	if isTrue(upgradeability.IsProxy) {
		flags = append(flags, models.RiskFlag{
			ID:        FlagProxyUpgradeable,
			Severity:  models.SeverityMedium,
			Rationale: fmt.Sprintf("is_proxy = true: upgradeable proxy (%s)", upgradeability.ProxyType),
		})

		if !upgradeability.TimelockDetected {
			flags = append(flags, models.RiskFlag{
				ID:        FlagProxyNoTimelock,
				Severity:  models.SeverityHigh,
				Rationale: "is_proxy = true and timelock_detected = false (heuristic: admin address does not resolve to contract code)",
			})
		}
	}

	if isTrue(controls.FeeControls) {
		flags = append(flags, models.RiskFlag{
			ID:        FlagFeeMutable,
			Severity:  models.SeverityMedium,
			Rationale: "fee_controls = true: transfer fees can be changed by an admin",
		})
	}

	if !verification.Verified {
		flags = append(flags, models.RiskFlag{
			ID:        FlagUnverifiedSource,
			Severity:  models.SeverityMedium,
			Rationale: "verification.verified = false: source code not verified on explorer",
		})
	}

	return flags
}

// isTrue 三态判定：仅在明确为true时成立
func isTrue(v *bool) bool {
	return v != nil && *v
}
