package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"

	"tokentruth/internal/errors"
	"tokentruth/pkg/models"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

const (
	// SPL Mint账户的最小长度
	splMintAccountSize = 82

	bpfLoaderUpgradeable = "BPFLoaderUpgradeab1e11111111111111111111111"
	bpfLoader2           = "BPFLoader2111111111111111111111111111111111"

	// UpgradeableLoaderState布局：u32变体标签开头
	// Program变体：标签(4) + programdata地址(32)
	// ProgramData变体：标签(4) + slot(8) + authority option(1) [+ authority(32)]
	loaderStateProgram     = 2
	loaderStateProgramData = 3
	programAccountSize     = 36
	programDataHeaderSize  = 13
)

// SolanaClient Solana JSON-RPC客户端
type SolanaClient struct {
	rpcURL string
	client *http.Client
	logger *logrus.Logger
}

// NewSolanaClient 创建Solana客户端
func NewSolanaClient(rpcURL string, client *http.Client, logger *logrus.Logger) *SolanaClient {
	if rpcURL == "" {
		rpcURL = "https://api.mainnet-beta.solana.com"
	}
	return &SolanaClient{
		rpcURL: rpcURL,
		client: client,
		logger: logger,
	}
}

// rpcRequest JSON-RPC请求体
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse JSON-RPC响应体
type rpcResponse struct {
	Result *struct {
		Value *accountInfo `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// accountInfo getAccountInfo返回的账户数据
type accountInfo struct {
	Data     []string `json:"data"` // [base64数据, 编码名]
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

// ReadMintFacts 读取SPL代币mint账户的原始事实
func (s *SolanaClient) ReadMintFacts(ctx context.Context, address string) (*models.SolanaFacts, error) {
	account, err := s.getAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, errors.NewTruthError(errors.ErrorTypeRPC, errors.SeverityMedium,
			errors.CodeUpstreamError, "Solana账户不存在").WithInstance("solana", address)
	}

	facts, err := parseMintAccount(account)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "解析SPL mint账户失败").WithInstance("solana", address)
	}
	facts.OwnerProgram = account.Owner

	return facts, nil
}

// ProgramUpgradeAuthority 检查Solana程序是否可升级并解析升级权限
// BPFLoader2持有的程序不可升级；upgradeable loader持有的程序追查其
// ProgramData账户，option=0表示权限已放弃，authority返回空串。
// upgradeable为nil表示owner不是已知的loader，无法判定。
func (s *SolanaClient) ProgramUpgradeAuthority(ctx context.Context, programID string) (upgradeable *bool, authority string, err error) {
	account, err := s.getAccountInfo(ctx, programID)
	if err != nil {
		return nil, "", err
	}
	if account == nil {
		return nil, "", nil
	}

	switch account.Owner {
	case bpfLoaderUpgradeable:
		authority = s.resolveUpgradeAuthority(ctx, account, programID)
		return models.Bool(true), authority, nil
	case bpfLoader2:
		return models.Bool(false), "", nil
	default:
		return nil, "", nil
	}
}

// resolveUpgradeAuthority 从Program账户跳到ProgramData账户取升级权限
// 解析失败不致命，可升级性已由loader确定，只损失authority信息。
func (s *SolanaClient) resolveUpgradeAuthority(ctx context.Context, program *accountInfo, programID string) string {
	data, err := decodeAccountData(program)
	if err != nil || len(data) < programAccountSize || binary.LittleEndian.Uint32(data[0:4]) != loaderStateProgram {
		s.logger.Debugf("程序 %s 的Program账户无法解析，升级权限未知", programID)
		return ""
	}
	programData := base58.Encode(data[4:36])

	account, err := s.getAccountInfo(ctx, programData)
	if err != nil || account == nil {
		s.logger.Debugf("程序 %s 的ProgramData账户 %s 不可读，升级权限未知", programID, programData)
		return ""
	}

	data, err = decodeAccountData(account)
	if err != nil || len(data) < programDataHeaderSize || binary.LittleEndian.Uint32(data[0:4]) != loaderStateProgramData {
		s.logger.Debugf("程序 %s 的ProgramData账户无法解析，升级权限未知", programID)
		return ""
	}

	// option=0：升级权限已放弃，程序实际不可再升级
	if data[12] != 1 || len(data) < programDataHeaderSize+32 {
		return ""
	}
	return base58.Encode(data[13:45])
}

// decodeAccountData 取账户数据的base64段
func decodeAccountData(account *accountInfo) ([]byte, error) {
	if len(account.Data) == 0 {
		return nil, fmt.Errorf("账户数据为空")
	}
	return base64.StdEncoding.DecodeString(account.Data[0])
}

// getAccountInfo 调用getAccountInfo RPC（base64编码）
func (s *SolanaClient) getAccountInfo(ctx context.Context, address string) (*accountInfo, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []interface{}{
			address,
			map[string]string{"encoding": "base64"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSerialization, errors.SeverityMedium,
			errors.CodeUpstreamError, "构造Solana RPC请求失败").WithInstance("solana", address)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeRPC, errors.SeverityMedium,
			errors.CodeUpstreamError, "构造Solana RPC请求失败").WithInstance("solana", address)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium,
				errors.CodeUpstreamTimeout, "Solana RPC请求超时").WithInstance("solana", address)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeRPC, errors.SeverityMedium,
			errors.CodeUpstreamError, "Solana RPC请求失败").WithInstance("solana", address)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewTruthError(errors.ErrorTypeRateLimit, errors.SeverityMedium,
			errors.CodeRateLimited, "Solana RPC限流").WithInstance("solana", address)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "解析Solana RPC响应失败").WithInstance("solana", address)
	}

	if rpcResp.Error != nil {
		return nil, errors.NewTruthError(errors.ErrorTypeRPC, errors.SeverityMedium,
			errors.CodeUpstreamError, fmt.Sprintf("Solana RPC错误: %s", rpcResp.Error.Message)).
			WithInstance("solana", address)
	}

	if rpcResp.Result == nil {
		return nil, nil
	}
	return rpcResp.Result.Value, nil
}

// parseMintAccount 解析SPL Token Mint账户结构
// 布局（spl_token::state::Mint）：
//
//	0-4    mint_authority_option (u32 LE)
//	4-36   mint_authority (pubkey)
//	36-44  supply (u64 LE)
//	44     decimals (u8)
//	45     is_initialized (bool)
//	46-50  freeze_authority_option (u32 LE)
//	50-82  freeze_authority (pubkey)
func parseMintAccount(account *accountInfo) (*models.SolanaFacts, error) {
	if len(account.Data) == 0 {
		return nil, fmt.Errorf("账户数据为空")
	}

	data, err := base64.StdEncoding.DecodeString(account.Data[0])
	if err != nil {
		return nil, fmt.Errorf("解码账户数据失败: %w", err)
	}

	if len(data) < splMintAccountSize {
		return nil, fmt.Errorf("mint账户数据长度 %d 小于 %d", len(data), splMintAccountSize)
	}

	facts := &models.SolanaFacts{}

	if binary.LittleEndian.Uint32(data[0:4]) == 1 {
		facts.MintAuthority = base58.Encode(data[4:36])
	}

	decimals := int(data[44])
	facts.Decimals = &decimals
	facts.Initialized = models.Bool(data[45] == 1)

	if binary.LittleEndian.Uint32(data[46:50]) == 1 {
		facts.FreezeAuthority = base58.Encode(data[50:82])
	}

	return facts, nil
}
