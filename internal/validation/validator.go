package validation

import (
	"fmt"
	"regexp"
	"strings"

	"tokentruth/internal/errors"
	"tokentruth/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Validator 请求验证器
type Validator struct {
	logger     *logrus.Logger
	strictMode bool // 严格模式
	rules      map[string]ValidationRule
}

// ValidationRule 验证规则接口
type ValidationRule interface {
	Validate(data interface{}) error
	Name() string
	Description() string
}

// ValidationResult 验证结果
type ValidationResult struct {
	Valid    bool                 `json:"valid"`
	Errors   []*errors.TruthError `json:"errors,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
	DataType string               `json:"data_type"`
}

// NewValidator 创建请求验证器
func NewValidator(logger *logrus.Logger, strictMode bool) *Validator {
	v := &Validator{
		logger:     logger,
		strictMode: strictMode,
		rules:      make(map[string]ValidationRule),
	}

	// 注册默认验证规则
	v.registerDefaultRules()

	return v
}

// registerDefaultRules 注册默认验证规则
func (v *Validator) registerDefaultRules() {
	// 链实例验证规则
	v.AddRule(NewInstanceValidationRule())

	// 代币信息验证规则
	v.AddRule(NewTokenValidationRule())
}

// AddRule 添加验证规则
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules[rule.Name()] = rule
	v.logger.Debugf("已注册验证规则: %s", rule.Name())
}

// ValidateRequest 验证完整分析请求
// 所有实例逐个校验，错误全部收集后一次返回，不在首错中断。
func (v *Validator) ValidateRequest(req *models.TruthRequest) *ValidationResult {
	if req == nil {
		return &ValidationResult{
			Valid:    false,
			Errors:   []*errors.TruthError{invalidRequest("请求为空")},
			DataType: "truth_request",
		}
	}

	result := &ValidationResult{
		Valid:    true,
		DataType: "truth_request",
		Errors:   make([]*errors.TruthError, 0),
		Warnings: make([]string, 0),
	}

	if rule, exists := v.rules["token"]; exists {
		if err := rule.Validate(&req.Token); err != nil {
			v.appendError(result, err, "TOKEN_VALIDATION_FAILED", "代币信息验证失败")
		}
	}

	if len(req.Instances) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, invalidRequest("至少需要一个链实例"))
	}

	seen := make(map[string]bool, len(req.Instances))
	for i := range req.Instances {
		inst := &req.Instances[i]

		instResult := v.ValidateInstance(inst)
		if !instResult.Valid {
			result.Valid = false
			result.Errors = append(result.Errors, instResult.Errors...)
		}
		result.Warnings = append(result.Warnings, instResult.Warnings...)

		key := inst.Key()
		if seen[key] {
			result.Valid = false
			result.Errors = append(result.Errors,
				invalidRequest(fmt.Sprintf("重复的链实例: %s", key)).WithInstance(inst.Chain, inst.Address))
		}
		seen[key] = true
	}

	if !result.Valid {
		v.logger.WithFields(logrus.Fields{
			"symbol":      req.Token.Symbol,
			"error_count": len(result.Errors),
		}).Debug("分析请求验证未通过")
	}

	return result
}

// ValidateInstance 验证单个链实例请求
func (v *Validator) ValidateInstance(inst *models.ChainInstanceRequest) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		DataType: "chain_instance",
		Errors:   make([]*errors.TruthError, 0),
		Warnings: make([]string, 0),
	}

	if inst == nil {
		result.Valid = false
		result.Errors = append(result.Errors, invalidRequest("链实例为空"))
		return result
	}

	if err := v.validateInstanceBasics(inst); err != nil {
		result.Valid = false
		if truthErr, ok := err.(*errors.TruthError); ok {
			result.Errors = append(result.Errors, truthErr.WithInstance(inst.Chain, inst.Address))
		} else {
			result.Errors = append(result.Errors, errors.WrapError(err,
				errors.ErrorTypeValidation, errors.SeverityLow,
				errors.CodeInvalidRequest, "链实例验证失败").WithInstance(inst.Chain, inst.Address))
		}
		return result
	}

	if rule, exists := v.rules["chain_instance"]; exists {
		if err := rule.Validate(inst); err != nil {
			v.appendError(result, err, errors.CodeInvalidRequest, "链实例规则验证失败")
		}
	}

	// 严格模式下混合大小写地址校验和不匹配时告警
	if v.strictMode && inst.Family() == models.FamilyEVM {
		if warn := checksumWarning(inst.Address); warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
	}

	return result
}

// validateInstanceBasics 基础字段验证
func (v *Validator) validateInstanceBasics(inst *models.ChainInstanceRequest) error {
	chain := strings.ToLower(strings.TrimSpace(inst.Chain))
	if chain == "" {
		return invalidRequest("chain不能为空")
	}

	family, supported := models.ChainFamilyOf(chain)
	if !supported {
		return invalidRequest(fmt.Sprintf("不支持的链: %s（支持: %s）",
			inst.Chain, strings.Join(models.SupportedChains(), ", ")))
	}

	address := strings.TrimSpace(inst.Address)
	if address == "" {
		return invalidRequest("address不能为空")
	}

	switch family {
	case models.FamilyEVM:
		if !common.IsHexAddress(address) {
			return invalidRequest(fmt.Sprintf("无效的EVM地址: %s", address))
		}
	case models.FamilySolana:
		if !isBase58Address(address) {
			return invalidRequest(fmt.Sprintf("无效的Solana地址: %s", address))
		}
	}

	if inst.Type != "" {
		expected := expectedTokenType(family)
		if inst.Type != expected {
			return invalidRequest(fmt.Sprintf("代币类型 %s 与链 %s 不匹配（期望 %s）",
				inst.Type, chain, expected))
		}
	}

	return nil
}

// appendError 将任意错误归一为TruthError后追加
func (v *Validator) appendError(result *ValidationResult, err error, code, message string) {
	result.Valid = false
	if truthErr, ok := err.(*errors.TruthError); ok {
		result.Errors = append(result.Errors, truthErr)
		return
	}
	result.Errors = append(result.Errors, errors.WrapError(err,
		errors.ErrorTypeValidation, errors.SeverityLow, code, message))
}

func invalidRequest(message string) *errors.TruthError {
	return errors.NewTruthError(errors.ErrorTypeValidation, errors.SeverityLow,
		errors.CodeInvalidRequest, message)
}

// expectedTokenType 链家族对应的代币标准
func expectedTokenType(family models.ChainFamily) string {
	if family == models.FamilySolana {
		return "spl"
	}
	return "erc20"
}

// base58字符集（不含0、O、I、l），Solana地址长度32-44
var base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

func isBase58Address(address string) bool {
	return base58Pattern.MatchString(address)
}

// checksumWarning EIP-55校验和检查
// 全小写/全大写地址不携带校验和信息，只对混合大小写地址比对。
func checksumWarning(address string) string {
	body := strings.TrimPrefix(address, "0x")
	lower := strings.ToLower(body)
	upper := strings.ToUpper(body)
	if body == lower || body == upper {
		return ""
	}

	checksummed := common.HexToAddress(address).Hex()
	if checksummed != address {
		return fmt.Sprintf("地址 %s 的EIP-55校验和不匹配（期望 %s）", address, checksummed)
	}
	return ""
}

// InstanceValidationRule 链实例验证规则
type InstanceValidationRule struct{}

// NewInstanceValidationRule 创建链实例验证规则
func NewInstanceValidationRule() *InstanceValidationRule {
	return &InstanceValidationRule{}
}

func (r *InstanceValidationRule) Name() string {
	return "chain_instance"
}

func (r *InstanceValidationRule) Description() string {
	return "校验链实例的链、地址与代币类型"
}

func (r *InstanceValidationRule) Validate(data interface{}) error {
	inst, ok := data.(*models.ChainInstanceRequest)
	if !ok {
		return invalidRequest("数据类型不是ChainInstanceRequest")
	}

	// EVM零地址不可能是代币合约
	if inst.Family() == models.FamilyEVM &&
		common.IsHexAddress(inst.Address) &&
		common.HexToAddress(inst.Address) == (common.Address{}) {
		return invalidRequest("零地址不是有效的代币合约")
	}

	return nil
}

// TokenValidationRule 代币信息验证规则
type TokenValidationRule struct{}

// NewTokenValidationRule 创建代币信息验证规则
func NewTokenValidationRule() *TokenValidationRule {
	return &TokenValidationRule{}
}

func (r *TokenValidationRule) Name() string {
	return "token"
}

func (r *TokenValidationRule) Description() string {
	return "校验代币符号与名称"
}

const maxSymbolLength = 32

func (r *TokenValidationRule) Validate(data interface{}) error {
	token, ok := data.(*models.TokenInfo)
	if !ok {
		return invalidRequest("数据类型不是TokenInfo")
	}

	if strings.TrimSpace(token.Symbol) == "" {
		return invalidRequest("代币符号不能为空")
	}
	if len(token.Symbol) > maxSymbolLength {
		return invalidRequest(fmt.Sprintf("代币符号过长: %d > %d", len(token.Symbol), maxSymbolLength))
	}

	return nil
}
