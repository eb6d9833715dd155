package validation

import (
	"testing"

	"tokentruth/internal/errors"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validEVMAddr    = "0x1234567890abcdef1234567890abcdef12345678"
	validSolanaAddr = "So11111111111111111111111111111111111111112"
)

func TestNewValidator(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, true)

	assert.NotNil(t, validator)
	assert.True(t, validator.strictMode)
	assert.NotNil(t, validator.rules)
	assert.Equal(t, 2, len(validator.rules)) // 默认注册的规则数量
}

func TestValidateInstance_ValidEVM(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: validEVMAddr,
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.NotNil(t, result)
	assert.True(t, result.Valid)
	assert.Equal(t, "chain_instance", result.DataType)
	assert.Empty(t, result.Errors)
}

func TestValidateInstance_ValidSolana(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "solana",
		Address: validSolanaAddr,
		Type:    "spl",
	}

	result := validator.ValidateInstance(inst)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInstance_UnsupportedChain(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "dogecoin", // 不支持的链
		Address: validEVMAddr,
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errors.CodeInvalidRequest, result.Errors[0].Code)
	assert.False(t, result.Errors[0].Retryable) // 调用方错误不重试
}

func TestValidateInstance_InvalidEVMAddress(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: "not_an_address", // 无效地址
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errors.CodeInvalidRequest, result.Errors[0].Code)
	assert.Equal(t, "ethereum", result.Errors[0].Chain)
}

func TestValidateInstance_InvalidSolanaAddress(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "solana",
		Address: "0OIl+invalid", // 含base58非法字符
		Type:    "spl",
	}

	result := validator.ValidateInstance(inst)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errors.CodeInvalidRequest, result.Errors[0].Code)
}

func TestValidateInstance_TypeChainMismatch(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: validEVMAddr,
		Type:    "spl", // EVM链配SPL类型
	}

	result := validator.ValidateInstance(inst)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "erc20")
}

func TestValidateInstance_ZeroAddress(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: "0x0000000000000000000000000000000000000000",
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "零地址")
}

func TestValidateRequest_Valid(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	req := &models.TruthRequest{
		Token: models.TokenInfo{Symbol: "USDX", Name: "USD Example"},
		Instances: []models.ChainInstanceRequest{
			{Chain: "ethereum", Address: validEVMAddr, Type: "erc20"},
			{Chain: "bsc", Address: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", Type: "erc20"},
			{Chain: "solana", Address: validSolanaAddr, Type: "spl"},
		},
	}

	result := validator.ValidateRequest(req)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateRequest_NilRequest(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	result := validator.ValidateRequest(nil)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestValidateRequest_EmptyInstances(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	req := &models.TruthRequest{
		Token:     models.TokenInfo{Symbol: "USDX"},
		Instances: []models.ChainInstanceRequest{},
	}

	result := validator.ValidateRequest(req)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "至少需要一个")
}

func TestValidateRequest_DuplicateInstances(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	req := &models.TruthRequest{
		Token: models.TokenInfo{Symbol: "USDX"},
		Instances: []models.ChainInstanceRequest{
			{Chain: "ethereum", Address: validEVMAddr, Type: "erc20"},
			{Chain: "Ethereum", Address: validEVMAddr, Type: "erc20"}, // 链名大小写不同仍视为重复
		},
	}

	result := validator.ValidateRequest(req)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "重复的链实例")
}

func TestValidateRequest_EmptySymbol(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, false)

	req := &models.TruthRequest{
		Token: models.TokenInfo{Symbol: "  "},
		Instances: []models.ChainInstanceRequest{
			{Chain: "ethereum", Address: validEVMAddr, Type: "erc20"},
		},
	}

	result := validator.ValidateRequest(req)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "代币符号")
}

func TestValidateRequest_CollectsAllErrors(t *testing.T) {
	// 多个无效实例的错误全部收集，不在首错中断
	logger := logrus.New()
	validator := NewValidator(logger, false)

	req := &models.TruthRequest{
		Token: models.TokenInfo{Symbol: "USDX"},
		Instances: []models.ChainInstanceRequest{
			{Chain: "dogecoin", Address: validEVMAddr, Type: "erc20"},
			{Chain: "ethereum", Address: "bad", Type: "erc20"},
		},
	}

	result := validator.ValidateRequest(req)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidateInstance_ChecksumWarning(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, true) // 严格模式

	// 混合大小写但校验和错误的地址
	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: "0x1234567890Abcdef1234567890abcdef12345678",
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.True(t, result.Valid) // 校验和不匹配只告警不拒绝
	assert.NotEmpty(t, result.Warnings)
}

func TestValidateInstance_LowercaseNoWarning(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, true)

	inst := &models.ChainInstanceRequest{
		Chain:   "ethereum",
		Address: validEVMAddr, // 全小写，无校验和信息
		Type:    "erc20",
	}

	result := validator.ValidateInstance(inst)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestIsBase58Address(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid mint address", validSolanaAddr, true},
		{"valid 32 chars", "11111111111111111111111111111111", true},
		{"too short", "abc", false},
		{"contains zero", "0o111111111111111111111111111111111", false},
		{"contains plus", "So1111111111111111111111111111111111111+112", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isBase58Address(tt.address))
		})
	}
}
