package truth

import (
	"testing"

	"tokentruth/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testImplAddr  = "0x000000000000000000000000abcdefabcdefabcdefabcdefabcdefabcdefabcd"
	testAdminAddr = "0x0000000000000000000000001234567890123456789012345678901234567890"
	zeroSlot      = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

func TestDetectUpgradeability_TransparentProxy(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:          true,
			ImplementationSlot: testImplAddr,
			AdminSlot:          testAdminAddr,
			AdminHasCode:       models.Bool(true),
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.True(t, *up.IsProxy)
	assert.Equal(t, models.ProxyEIP1967Transparent, up.ProxyType)
	assert.Equal(t, common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd").Hex(), up.ImplementationAddress)
	assert.Equal(t, common.HexToAddress("0x1234567890123456789012345678901234567890").Hex(), up.AdminAddress)
	assert.True(t, up.TimelockDetected) // admin地址有合约代码
	assert.Equal(t, up.AdminAddress, up.UpgradeAuthority)
}

func TestDetectUpgradeability_TransparentProxyEOAAdmin(t *testing.T) {
	// admin是外部账户时不认为存在timelock
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:          true,
			ImplementationSlot: testImplAddr,
			AdminSlot:          testAdminAddr,
			AdminHasCode:       models.Bool(false),
		},
	}

	up := DetectUpgradeability(facts)

	assert.Equal(t, models.ProxyEIP1967Transparent, up.ProxyType)
	assert.False(t, up.TimelockDetected)
}

func TestDetectUpgradeability_UUPS(t *testing.T) {
	// implementation槽非零但admin槽为空 ⇒ UUPS
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:          true,
			ImplementationSlot: testImplAddr,
			AdminSlot:          zeroSlot,
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.True(t, *up.IsProxy)
	assert.Equal(t, models.ProxyUUPS, up.ProxyType)
	assert.Empty(t, up.AdminAddress)
	assert.False(t, up.TimelockDetected)
}

func TestDetectUpgradeability_EIP1822(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:          true,
			ImplementationSlot: zeroSlot,
			ProxiableSlot:      testImplAddr,
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.True(t, *up.IsProxy)
	assert.Equal(t, models.ProxyEIP1822, up.ProxyType)
}

func TestDetectUpgradeability_UnknownProxy(t *testing.T) {
	// 标准槽位全空但代码极短且含delegatecall ⇒ 未知代理模式
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:       true,
			CodeSize:        45,
			HasDelegateCall: true,
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.True(t, *up.IsProxy)
	assert.Equal(t, models.ProxyUnknown, up.ProxyType)
	assert.Empty(t, up.ImplementationAddress)
}

func TestDetectUpgradeability_NotProxy(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:       true,
			CodeSize:        12000,
			HasDelegateCall: false,
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.False(t, *up.IsProxy)
	assert.Equal(t, models.ProxyNone, up.ProxyType)
}

func TestDetectUpgradeability_LargeDelegateCallContract(t *testing.T) {
	// delegatecall出现在大合约里（如钻石模式之外的普通库调用）不足以判定代理
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead:       true,
			CodeSize:        8000,
			HasDelegateCall: true,
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.False(t, *up.IsProxy)
}

func TestDetectUpgradeability_SlotsUnreadable(t *testing.T) {
	// 槽位无法读取时代理状态未知，不能断言非代理
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		EVM: &models.EVMFacts{
			SlotsRead: false,
		},
	}

	up := DetectUpgradeability(facts)

	assert.Nil(t, up.IsProxy)
	assert.Equal(t, models.ProxyNone, up.ProxyType)
}

func TestDetectUpgradeability_Solana(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilySolana,
		Solana: &models.SolanaFacts{
			UpgradeAuthority: "upgr4deAuth0r1ty1111111111111111111111111111",
		},
	}

	up := DetectUpgradeability(facts)

	require.NotNil(t, up.IsProxy)
	assert.False(t, *up.IsProxy) // Solana无EVM式代理概念
	assert.Equal(t, "upgr4deAuth0r1ty1111111111111111111111111111", up.UpgradeAuthority)
}
