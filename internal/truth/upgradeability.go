package truth

import (
	"strings"

	"tokentruth/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// EIP-1967 canonical slots
	// implementation: keccak256("eip1967.proxy.implementation") - 1
	// admin:          keccak256("eip1967.proxy.admin") - 1
	EIP1967ImplementationSlot = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	EIP1967AdminSlot          = "0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103"

	// EIP-1822 proxiable slot: keccak256("PROXIABLE")
	EIP1822ProxiableSlot = "0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7"

	// 字节码异常小且含delegatecall时按最小代理处理的阈值
	minimalProxyCodeSize = 100
)

// DetectUpgradeability 从存储槽读数与字节码形态分类代理模式
// 判定顺序：EIP-1967实现槽 → EIP-1822槽 → 字节码启发式 → 非代理。
// timelock_detected是启发式结论（管理地址存在合约代码），
// 下游必须在风险标志说明文本中保留这一不确定性。
func DetectUpgradeability(facts *models.RawInstanceFacts) models.Upgradeability {
	switch facts.Family {
	case models.FamilySolana:
		return detectSolanaUpgradeability(facts.Solana)
	default:
		return detectEVMUpgradeability(facts.EVM)
	}
}

func detectEVMUpgradeability(facts *models.EVMFacts) models.Upgradeability {
	if facts == nil || !facts.SlotsRead {
		// 链不支持槽内省，升级性降级为未知
		return models.Upgradeability{ProxyType: models.ProxyNone}
	}

	// (1) EIP-1967实现槽非零 → transparent或UUPS，由admin槽是否填充区分
	if impl := slotAddress(facts.ImplementationSlot); impl != "" {
		result := models.Upgradeability{
			IsProxy:               models.Bool(true),
			ImplementationAddress: impl,
		}

		if admin := slotAddress(facts.AdminSlot); admin != "" {
			result.ProxyType = models.ProxyEIP1967Transparent
			result.AdminAddress = admin
			result.UpgradeAuthority = admin
			result.TimelockDetected = facts.AdminHasCode != nil && *facts.AdminHasCode
		} else {
			// admin槽为空：升级逻辑在实现合约内（UUPS）
			result.ProxyType = models.ProxyUUPS
		}
		return result
	}

	// (2) EIP-1822槽非零
	if impl := slotAddress(facts.ProxiableSlot); impl != "" {
		return models.Upgradeability{
			IsProxy:               models.Bool(true),
			ProxyType:             models.ProxyEIP1822,
			ImplementationAddress: impl,
		}
	}

	// (3) 字节码异常小且含delegatecall模式 → 未知类型代理
	if facts.CodeSize > 0 && facts.CodeSize < minimalProxyCodeSize && facts.HasDelegateCall {
		return models.Upgradeability{
			IsProxy:   models.Bool(true),
			ProxyType: models.ProxyUnknown,
		}
	}

	// (4) 非代理
	return models.Upgradeability{
		IsProxy:   models.Bool(false),
		ProxyType: models.ProxyNone,
	}
}

func detectSolanaUpgradeability(facts *models.SolanaFacts) models.Upgradeability {
	if facts == nil {
		return models.Upgradeability{ProxyType: models.ProxyNone}
	}

	// Solana不使用代理模式，升级性体现在程序的upgrade authority上
	return models.Upgradeability{
		IsProxy:          models.Bool(false),
		ProxyType:        models.ProxyNone,
		UpgradeAuthority: facts.UpgradeAuthority,
	}
}

// slotAddress 从32字节存储槽值中提取非零地址（低20字节）
// 槽值为空、非法或全零时返回空串。
func slotAddress(slotValue string) string {
	if slotValue == "" {
		return ""
	}

	cleaned := strings.TrimPrefix(strings.ToLower(slotValue), "0x")
	if len(cleaned) > 64 {
		return ""
	}

	// 左侧补齐到32字节
	padded := strings.Repeat("0", 64-len(cleaned)) + cleaned
	hash := common.HexToHash("0x" + padded)
	addr := common.BytesToAddress(hash.Bytes()[12:])

	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}
