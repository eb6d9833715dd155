package models

import (
	"fmt"
	"sort"
	"strings"
)

// ChainFamily 链家族（EVM系 / Solana系）
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
)

// 支持的链到链家族的映射
var chainFamilies = map[string]ChainFamily{
	"ethereum":  FamilyEVM,
	"bsc":       FamilyEVM,
	"polygon":   FamilyEVM,
	"arbitrum":  FamilyEVM,
	"optimism":  FamilyEVM,
	"avalanche": FamilyEVM,
	"solana":    FamilySolana,
}

// ChainFamilyOf 返回链对应的链家族
func ChainFamilyOf(chain string) (ChainFamily, bool) {
	family, ok := chainFamilies[strings.ToLower(chain)]
	return family, ok
}

// SupportedChains 返回所有支持的链名称（字典序）
func SupportedChains() []string {
	chains := make([]string, 0, len(chainFamilies))
	for chain := range chainFamilies {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// TokenInfo 代币元信息
type TokenInfo struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name,omitempty"`
}

// ChainInstanceRequest 单条链上的代币实例请求（不可变输入）
type ChainInstanceRequest struct {
	Chain   string `json:"chain" binding:"required"`   // 链名称: ethereum, bsc, solana等
	Address string `json:"address" binding:"required"` // 合约/账户地址
	Type    string `json:"type" binding:"required"`    // 代币标准: erc20, spl
}

// Key 返回实例的唯一标识 "chain:address"
func (r *ChainInstanceRequest) Key() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(r.Chain), r.Address)
}

// Family 返回该实例所属的链家族
func (r *ChainInstanceRequest) Family() ChainFamily {
	family, _ := ChainFamilyOf(r.Chain)
	return family
}

// AnalyzeOptions 分析选项
type AnalyzeOptions struct {
	FetchVerifiedSource bool `json:"fetch_verified_source"`
	FetchABI            bool `json:"fetch_abi_or_idl"`
	DetectProxy         bool `json:"detect_proxy_or_upgradeability"`
	ExtractControls     bool `json:"extract_controls"`
	ComputeCodeHash     bool `json:"compute_code_hash"`
}

// DefaultAnalyzeOptions 默认分析选项
func DefaultAnalyzeOptions() AnalyzeOptions {
	return AnalyzeOptions{
		FetchVerifiedSource: true,
		FetchABI:            true,
		DetectProxy:         true,
		ExtractControls:     true,
		ComputeCodeHash:     false,
	}
}

// TruthRequest 合约事实分析请求
type TruthRequest struct {
	Token     TokenInfo              `json:"token" binding:"required"`
	Instances []ChainInstanceRequest `json:"instances" binding:"required,min=1"`
	Options   AnalyzeOptions         `json:"options"`
}
