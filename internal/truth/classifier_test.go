package truth

import (
	"testing"
	"time"

	"tokentruth/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ethAddr = "0x1111111111111111111111111111111111111111"
	bscAddr = "0x2222222222222222222222222222222222222222"
)

func verifiedEVMFacts(functions []string) *models.RawInstanceFacts {
	return &models.RawInstanceFacts{
		Family:       models.FamilyEVM,
		Verified:     models.Bool(true),
		Explorer:     "etherscan",
		ABIFunctions: functions,
		EVM: &models.EVMFacts{
			SlotsRead: true,
			CodeSize:  9000,
		},
	}
}

func TestClassify_VerifiedInstance(t *testing.T) {
	requests := []models.ChainInstanceRequest{
		{Chain: "ethereum", Address: ethAddr, Type: "erc20"},
	}
	outcomes := map[string]FetchOutcome{
		"ethereum:" + ethAddr: {Facts: verifiedEVMFacts([]string{"mint", "transfer", "owner"})},
	}

	proven, errs := Classify(requests, outcomes)

	require.Len(t, proven, 1)
	assert.Empty(t, errs)

	inst := proven[0]
	assert.Equal(t, "ethereum", inst.Chain)
	assert.Equal(t, ethAddr, inst.Address)
	assert.True(t, inst.Verification.Verified)
	require.NotNil(t, inst.Verification.ABIAvailable)
	assert.True(t, *inst.Verification.ABIAvailable)
	require.NotNil(t, inst.Controls.CanMint)
	assert.True(t, *inst.Controls.CanMint)
	require.NotNil(t, inst.Upgradeability.IsProxy)
	assert.False(t, *inst.Upgradeability.IsProxy)
	assert.Contains(t, flagIDs(inst.RiskFlags), FlagMintPrivilege)
}

func TestClassify_UnverifiedInstance(t *testing.T) {
	// 未验证 ⇒ abi_available与全部能力保持未知，仅保留UNVERIFIED_SOURCE
	facts := &models.RawInstanceFacts{
		Family:       models.FamilyEVM,
		Verified:     models.Bool(false),
		ABIFunctions: []string{"mint"}, // 未验证来源的反编译结果不作为能力证据
		EVM:          &models.EVMFacts{SlotsRead: true, CodeSize: 5000},
	}
	requests := []models.ChainInstanceRequest{
		{Chain: "ethereum", Address: ethAddr, Type: "erc20"},
	}
	outcomes := map[string]FetchOutcome{
		"ethereum:" + ethAddr: {Facts: facts},
	}

	proven, errs := Classify(requests, outcomes)

	require.Len(t, proven, 1)
	assert.Empty(t, errs)

	inst := proven[0]
	assert.False(t, inst.Verification.Verified)
	assert.Nil(t, inst.Verification.ABIAvailable)
	assert.Nil(t, inst.Controls.CanMint)
	assert.Equal(t, []string{FlagUnverifiedSource}, flagIDs(inst.RiskFlags))
}

func TestClassify_PartialFailure(t *testing.T) {
	// 一个实例采集失败不中断整批
	requests := []models.ChainInstanceRequest{
		{Chain: "ethereum", Address: ethAddr, Type: "erc20"},
		{Chain: "bsc", Address: bscAddr, Type: "erc20"},
	}
	outcomes := map[string]FetchOutcome{
		"ethereum:" + ethAddr: {Facts: verifiedEVMFacts([]string{"transfer"})},
		"bsc:" + bscAddr: {Err: &models.InstanceError{
			Chain:     "bsc",
			Address:   bscAddr,
			Code:      "UPSTREAM_TIMEOUT",
			Message:   "explorer request timed out",
			Retryable: true,
			Timestamp: time.Now(),
		}},
	}

	proven, errs := Classify(requests, outcomes)

	require.Len(t, proven, 1)
	assert.Equal(t, "ethereum", proven[0].Chain)
	require.Len(t, errs, 1)
	assert.Equal(t, "bsc", errs[0].Chain)
	assert.Equal(t, "UPSTREAM_TIMEOUT", errs[0].Code)
	assert.True(t, errs[0].Retryable)
}

func TestClassify_MissingOutcome(t *testing.T) {
	requests := []models.ChainInstanceRequest{
		{Chain: "ethereum", Address: ethAddr, Type: "erc20"},
	}

	proven, errs := Classify(requests, map[string]FetchOutcome{})

	assert.Empty(t, proven)
	require.Len(t, errs, 1)
	assert.Equal(t, "UPSTREAM_ERROR", errs[0].Code)
	assert.True(t, errs[0].Retryable)
}

func TestClassify_Independence(t *testing.T) {
	// 实例分类只依赖自身事实：加入第二个实例不改变第一个的结果
	requests := []models.ChainInstanceRequest{
		{Chain: "ethereum", Address: ethAddr, Type: "erc20"},
	}
	outcomes := map[string]FetchOutcome{
		"ethereum:" + ethAddr: {Facts: verifiedEVMFacts([]string{"mint", "pause"})},
	}

	alone, _ := Classify(requests, outcomes)

	requests = append(requests, models.ChainInstanceRequest{Chain: "bsc", Address: bscAddr, Type: "erc20"})
	outcomes["bsc:"+bscAddr] = FetchOutcome{Facts: verifiedEVMFacts([]string{"transfer"})}

	together, _ := Classify(requests, outcomes)

	require.Len(t, together, 2)
	assert.Equal(t, alone[0], together[0])
}

func TestClassify_SolanaInstance(t *testing.T) {
	facts := &models.RawInstanceFacts{
		Family:   models.FamilySolana,
		Verified: models.Bool(true),
		Solana: &models.SolanaFacts{
			MintAuthority:   "auth11111111111111111111111111111111111111",
			FreezeAuthority: "auth11111111111111111111111111111111111111",
		},
	}
	requests := []models.ChainInstanceRequest{
		{Chain: "solana", Address: "So11111111111111111111111111111111111111112", Type: "spl"},
	}
	outcomes := map[string]FetchOutcome{
		requests[0].Key(): {Facts: facts},
	}

	proven, errs := Classify(requests, outcomes)

	require.Len(t, proven, 1)
	assert.Empty(t, errs)

	inst := proven[0]
	require.NotNil(t, inst.Controls.CanMint)
	assert.True(t, *inst.Controls.CanMint)
	require.NotNil(t, inst.Controls.CanBlacklistOrFreeze)
	assert.True(t, *inst.Controls.CanBlacklistOrFreeze)
	ids := flagIDs(inst.RiskFlags)
	assert.Contains(t, ids, FlagMintPrivilege)
	assert.Contains(t, ids, FlagFreezePrivilege)
}
