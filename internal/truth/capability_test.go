package truth

import (
	"testing"

	"tokentruth/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCapabilities_EVMFullABI(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		ABIFunctions: []string{
			"mint", "burnFrom", "pause", "unpause",
			"setFeeRecipient", "owner", "transferOwnership",
		},
	}

	controls := ExtractCapabilities(facts)

	require.NotNil(t, controls.CanMint)
	assert.True(t, *controls.CanMint)
	require.NotNil(t, controls.CanBurn)
	assert.True(t, *controls.CanBurn) // burnFrom 包含 burn 子串
	require.NotNil(t, controls.CanPause)
	assert.True(t, *controls.CanPause)
	require.NotNil(t, controls.FeeControls)
	assert.True(t, *controls.FeeControls)
	require.NotNil(t, controls.OwnerOrAdmin)
	assert.True(t, *controls.OwnerOrAdmin)
	require.NotNil(t, controls.CanBlacklistOrFreeze)
	assert.False(t, *controls.CanBlacklistOrFreeze)
}

func TestExtractCapabilities_CaseInsensitive(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family:       models.FamilyEVM,
		ABIFunctions: []string{"MINT", "addToBlackList", "SetFee"},
	}

	controls := ExtractCapabilities(facts)

	require.NotNil(t, controls.CanMint)
	assert.True(t, *controls.CanMint)
	require.NotNil(t, controls.CanBlacklistOrFreeze)
	assert.True(t, *controls.CanBlacklistOrFreeze)
	require.NotNil(t, controls.FeeControls)
	assert.True(t, *controls.FeeControls)
}

func TestExtractCapabilities_MissingABI(t *testing.T) {
	// 函数列表不可得时所有能力字段必须是unknown，不是false
	facts := &models.RawInstanceFacts{
		Family:       models.FamilyEVM,
		ABIFunctions: nil,
	}

	controls := ExtractCapabilities(facts)

	assert.Nil(t, controls.CanMint)
	assert.Nil(t, controls.CanBurn)
	assert.Nil(t, controls.CanPause)
	assert.Nil(t, controls.CanBlacklistOrFreeze)
	assert.Nil(t, controls.FeeControls)
	assert.Nil(t, controls.OwnerOrAdmin)
}

func TestExtractCapabilities_EmptyABI(t *testing.T) {
	// 空列表（已获取但无函数）同样全部unknown
	facts := &models.RawInstanceFacts{
		Family:       models.FamilyEVM,
		ABIFunctions: []string{},
	}

	controls := ExtractCapabilities(facts)

	assert.Nil(t, controls.CanMint)
	assert.Nil(t, controls.CanBurn)
	assert.Nil(t, controls.CanPause)
	assert.Nil(t, controls.CanBlacklistOrFreeze)
	assert.Nil(t, controls.FeeControls)
	assert.Nil(t, controls.OwnerOrAdmin)
}

func TestExtractCapabilities_NoPrivileges(t *testing.T) {
	// 标准ERC20只有转账类函数时，所有能力应为确定的false
	facts := &models.RawInstanceFacts{
		Family: models.FamilyEVM,
		ABIFunctions: []string{
			"transfer", "transferFrom", "approve", "allowance",
			"balanceOf", "totalSupply", "decimals", "symbol", "name",
		},
	}

	controls := ExtractCapabilities(facts)

	require.NotNil(t, controls.CanMint)
	assert.False(t, *controls.CanMint)
	require.NotNil(t, controls.CanBurn)
	assert.False(t, *controls.CanBurn)
	require.NotNil(t, controls.CanPause)
	assert.False(t, *controls.CanPause)
	require.NotNil(t, controls.CanBlacklistOrFreeze)
	assert.False(t, *controls.CanBlacklistOrFreeze)
	require.NotNil(t, controls.FeeControls)
	assert.False(t, *controls.FeeControls)
	require.NotNil(t, controls.OwnerOrAdmin)
	assert.False(t, *controls.OwnerOrAdmin)
}

func TestExtractCapabilities_SolanaMint(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family: models.FamilySolana,
		Solana: &models.SolanaFacts{
			MintAuthority:   "So11111111111111111111111111111111111111112",
			FreezeAuthority: "",
		},
	}

	controls := ExtractCapabilities(facts)

	require.NotNil(t, controls.CanMint)
	assert.True(t, *controls.CanMint) // mint authority 存在
	require.NotNil(t, controls.CanBurn)
	assert.True(t, *controls.CanBurn) // SPL 持有者总是可以burn
	require.NotNil(t, controls.CanBlacklistOrFreeze)
	assert.False(t, *controls.CanBlacklistOrFreeze)
	require.NotNil(t, controls.CanPause)
	assert.False(t, *controls.CanPause)
	require.NotNil(t, controls.OwnerOrAdmin)
	assert.True(t, *controls.OwnerOrAdmin)
}

func TestExtractCapabilities_SolanaRenounced(t *testing.T) {
	// mint/freeze authority 都已放弃
	facts := &models.RawInstanceFacts{
		Family: models.FamilySolana,
		Solana: &models.SolanaFacts{
			MintAuthority:   "",
			FreezeAuthority: "",
		},
	}

	controls := ExtractCapabilities(facts)

	require.NotNil(t, controls.CanMint)
	assert.False(t, *controls.CanMint)
	require.NotNil(t, controls.CanBlacklistOrFreeze)
	assert.False(t, *controls.CanBlacklistOrFreeze)
	require.NotNil(t, controls.OwnerOrAdmin)
	assert.False(t, *controls.OwnerOrAdmin)
}

func TestExtractCapabilities_SolanaMissingAccount(t *testing.T) {
	// mint账户数据不可得时全部unknown
	facts := &models.RawInstanceFacts{
		Family: models.FamilySolana,
		Solana: nil,
	}

	controls := ExtractCapabilities(facts)

	assert.Nil(t, controls.CanMint)
	assert.Nil(t, controls.CanBurn)
	assert.Nil(t, controls.CanBlacklistOrFreeze)
	assert.Nil(t, controls.OwnerOrAdmin)
}
