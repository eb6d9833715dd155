package models

// RawInstanceFacts 外部采集层提供的单实例原始事实
// 按链家族打标的变体结构：共享字段 + EVM/Solana 专有字段。
// 可空字段表示"未知"，采集层绝不猜测填充。
type RawInstanceFacts struct {
	Family ChainFamily `json:"family"`

	// 验证状态
	Verified        *bool  `json:"verified,omitempty"`         // nil表示无法确认
	Explorer        string `json:"explorer,omitempty"`         // etherscan/bscscan/solscan等
	SourceAvailable bool   `json:"source_available"`           // 源码是否可获取
	SourceHash      string `json:"source_hash,omitempty"`      // sha256:...
	ABIFunctions    []string `json:"abi_functions,omitempty"`  // 函数名列表，nil表示不可用

	// 代码身份
	RuntimeCodeHash string `json:"runtime_code_hash,omitempty"` // keccak256:...
	Deployer        string `json:"deployer,omitempty"`
	CreationTx      string `json:"creation_tx,omitempty"`

	// 链家族专有事实
	EVM    *EVMFacts    `json:"evm,omitempty"`
	Solana *SolanaFacts `json:"solana,omitempty"`
}

// EVMFacts EVM链专有的原始事实
type EVMFacts struct {
	// EIP-1967/EIP-1822 存储槽读取结果（32字节hex，空串表示未读取）
	ImplementationSlot string `json:"implementation_slot,omitempty"`
	AdminSlot          string `json:"admin_slot,omitempty"`
	ProxiableSlot      string `json:"proxiable_slot,omitempty"`

	// 是否成功读取过存储槽（RPC不支持时保持false，升级性降级为未知）
	SlotsRead bool `json:"slots_read"`

	// 字节码形态信号
	CodeSize        int  `json:"code_size"`
	HasDelegateCall bool `json:"has_delegatecall"`

	// 管理地址是否存在合约代码（timelock启发式依据）
	AdminHasCode *bool `json:"admin_has_code,omitempty"`
}

// SolanaFacts Solana链专有的原始事实
type SolanaFacts struct {
	MintAuthority    string `json:"mint_authority,omitempty"`    // 空串表示已放弃
	FreezeAuthority  string `json:"freeze_authority,omitempty"`  // 空串表示未设置
	UpgradeAuthority string `json:"upgrade_authority,omitempty"` // 程序升级权限
	OwnerProgram     string `json:"owner_program,omitempty"`     // 持有mint账户的代币程序
	Decimals         *int   `json:"decimals,omitempty"`
	Initialized      *bool  `json:"initialized,omitempty"`
}

// Bool 布尔指针辅助函数（构造三态字段）
func Bool(v bool) *bool {
	return &v
}
