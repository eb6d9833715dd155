package abi

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"tokentruth/internal/errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Function 已解析的合约函数
type Function struct {
	Name            string   `json:"name"`
	Inputs          []string `json:"inputs"`           // 规范化的参数类型列表
	StateMutability string   `json:"state_mutability"` // view/pure/nonpayable/payable
	Selector        string   `json:"selector"`         // 0x前缀的4字节选择器
}

// Signature 规范化函数签名，如 transfer(address,uint256)
func (f *Function) Signature() string {
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.Inputs, ","))
}

// abiEntry 浏览器返回的ABI条目
type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	StateMutability string     `json:"stateMutability"`
	Inputs          []abiInput `json:"inputs"`
}

type abiInput struct {
	Type       string     `json:"type"`
	Components []abiInput `json:"components"` // tuple参数
}

// Parser ABI解析器
// 浏览器返回的ABI JSON解析为函数列表，选择器结果带缓存。
type Parser struct {
	logger *logrus.Logger

	mu            sync.RWMutex
	selectorCache map[string]string // 签名 -> 选择器
}

// NewParser 创建ABI解析器
func NewParser(logger *logrus.Logger) *Parser {
	return &Parser{
		logger:        logger,
		selectorCache: make(map[string]string),
	}
}

// Parse 解析ABI JSON为函数列表
// 只保留type为function的条目，
// constructor/event/fallback/receive与能力判定无关。
func (p *Parser) Parse(abiJSON string) ([]Function, error) {
	abiJSON = strings.TrimSpace(abiJSON)
	if abiJSON == "" || abiJSON == "Contract source code not verified" {
		return nil, errors.NewTruthError(errors.ErrorTypeParse, errors.SeverityLow,
			errors.CodeParseError, "ABI不可用")
	}

	var entries []abiEntry
	if err := json.Unmarshal([]byte(abiJSON), &entries); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityLow,
			errors.CodeParseError, "解析ABI JSON失败")
	}

	functions := make([]Function, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != "function" || entry.Name == "" {
			continue
		}

		inputs := make([]string, 0, len(entry.Inputs))
		for _, input := range entry.Inputs {
			inputs = append(inputs, canonicalType(input))
		}

		fn := Function{
			Name:            entry.Name,
			Inputs:          inputs,
			StateMutability: entry.StateMutability,
		}
		fn.Selector = p.SelectorFor(fn.Signature())
		functions = append(functions, fn)
	}

	return functions, nil
}

// FunctionNames 提取函数名列表（保持ABI中的出现顺序）
func (p *Parser) FunctionNames(functions []Function) []string {
	names := make([]string, 0, len(functions))
	for _, fn := range functions {
		names = append(names, fn.Name)
	}
	return names
}

// SelectorFor 计算规范化签名的4字节选择器
func (p *Parser) SelectorFor(signature string) string {
	p.mu.RLock()
	if selector, exists := p.selectorCache[signature]; exists {
		p.mu.RUnlock()
		return selector
	}
	p.mu.RUnlock()

	hash := crypto.Keccak256([]byte(signature))
	selector := "0x" + fmt.Sprintf("%x", hash[:4])

	p.mu.Lock()
	p.selectorCache[signature] = selector
	p.mu.Unlock()

	return selector
}

// NameForSelector 从已知选择器表反查函数签名
// 未验证源码的合约只能拿到字节码里的选择器，靠这张表兜底识别。
func (p *Parser) NameForSelector(selector string) string {
	if name, exists := wellKnownSelectors[strings.ToLower(selector)]; exists {
		return name
	}
	return ""
}

// CacheSize 获取选择器缓存大小
func (p *Parser) CacheSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.selectorCache)
}

// ClearCache 清理选择器缓存
func (p *Parser) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectorCache = make(map[string]string)
}

// canonicalType 规范化参数类型（tuple展开为组件元组）
func canonicalType(input abiInput) string {
	if !strings.HasPrefix(input.Type, "tuple") {
		return input.Type
	}

	components := make([]string, 0, len(input.Components))
	for _, component := range input.Components {
		components = append(components, canonicalType(component))
	}

	// tuple[] / tuple[N] 保留数组后缀
	suffix := strings.TrimPrefix(input.Type, "tuple")
	return "(" + strings.Join(components, ",") + ")" + suffix
}

// wellKnownSelectors 常见代币函数选择器
var wellKnownSelectors = map[string]string{
	"0xa9059cbb": "transfer(address,uint256)",
	"0x095ea7b3": "approve(address,uint256)",
	"0x23b872dd": "transferFrom(address,address,uint256)",
	"0x70a08231": "balanceOf(address)",
	"0xdd62ed3e": "allowance(address,address)",
	"0x06fdde03": "name()",
	"0x95d89b41": "symbol()",
	"0x313ce567": "decimals()",
	"0x18160ddd": "totalSupply()",
	"0x40c10f19": "mint(address,uint256)",
	"0x42966c68": "burn(uint256)",
	"0x8456cb59": "pause()",
	"0x3f4ba83a": "unpause()",
	"0x8da5cb5b": "owner()",
	"0xf2fde38b": "transferOwnership(address)",
	"0x715018a6": "renounceOwnership()",
}
