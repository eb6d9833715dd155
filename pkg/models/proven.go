package models

// ProxyType 代理模式分类
type ProxyType string

const (
	ProxyNone             ProxyType = "NONE"
	ProxyEIP1967Transparent ProxyType = "EIP1967_TRANSPARENT"
	ProxyUUPS             ProxyType = "UUPS"
	ProxyEIP1822          ProxyType = "EIP1822"
	ProxyUnknown          ProxyType = "UNKNOWN_PROXY"
)

// Severity 风险标志严重级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Verification 合约验证状态（PROVEN）
type Verification struct {
	Verified     bool   `json:"verified"`
	Explorer     string `json:"explorer,omitempty"`
	ABIAvailable *bool  `json:"abi_available,omitempty"` // 未验证时为nil（未知）
	SourceHash   string `json:"source_hash,omitempty"`
}

// CodeIdentity 代码身份（PROVEN）
type CodeIdentity struct {
	RuntimeCodeHash string `json:"runtime_code_hash,omitempty"`
	Deployer        string `json:"deployer,omitempty"`
	CreationTx      string `json:"creation_tx,omitempty"`
}

// Upgradeability 升级性判定结果（PROVEN，timelock为启发式）
// 不变量：IsProxy为false时，ImplementationAddress与AdminAddress必须为空。
type Upgradeability struct {
	IsProxy               *bool     `json:"is_proxy,omitempty"` // nil表示链不支持槽内省，降级为未知
	ProxyType             ProxyType `json:"proxy_type"`
	ImplementationAddress string    `json:"implementation_address,omitempty"`
	AdminAddress          string    `json:"admin_address,omitempty"`
	TimelockDetected      bool      `json:"timelock_detected"`
	UpgradeAuthority      string    `json:"upgrade_authority,omitempty"`
}

// Controls 六项管理能力（三态：true/false/未知）
type Controls struct {
	CanMint             *bool `json:"can_mint,omitempty"`
	CanBurn             *bool `json:"can_burn,omitempty"`
	CanPause            *bool `json:"can_pause,omitempty"`
	CanBlacklistOrFreeze *bool `json:"can_blacklist_or_freeze,omitempty"`
	FeeControls         *bool `json:"fee_controls,omitempty"`
	OwnerOrAdmin        *bool `json:"owner_or_admin,omitempty"`
}

// RiskFlag 风险标志
type RiskFlag struct {
	ID        string   `json:"id"`
	Severity  Severity `json:"severity"`
	Rationale string   `json:"rationale"`
}

// ProvenInstance 单链实例的已证实记录
// 与一个ChainInstanceRequest一一对应，按请求独立构建。
type ProvenInstance struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Type    string `json:"type"`

	Verification   Verification   `json:"verification"`
	CodeIdentity   CodeIdentity   `json:"code_identity"`
	Upgradeability Upgradeability `json:"upgradeability"`
	Controls       Controls       `json:"controls"`
	RiskFlags      []RiskFlag     `json:"risk_flags"`
}

// Key 返回实例标识 "chain:address"
func (p *ProvenInstance) Key() string {
	return p.Chain + ":" + p.Address
}

// EquivalenceLabel 跨链等价性标签
type EquivalenceLabel string

const (
	LabelProvenSameAsset EquivalenceLabel = "proven_same_asset"
	LabelLikelySameAsset EquivalenceLabel = "likely_same_asset"
	LabelUnknown         EquivalenceLabel = "unknown"
)

// CrossChainPair 一对实例的跨链等价性推断（INFERRED，每次请求重新计算）
type CrossChainPair struct {
	Pair       [2]string        `json:"pair"` // 按请求顺序报告
	Confidence float64          `json:"confidence"`
	Label      EquivalenceLabel `json:"label"`
	Reasons    []string         `json:"reasons"`
}
