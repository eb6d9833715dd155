package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"tokentruth/internal/connection"
	"tokentruth/internal/errors"
	"tokentruth/internal/truth"
	"tokentruth/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// delegatecall操作码
const opDelegateCall = 0xf4

// EVMReader 从EVM节点读取链上原始事实
type EVMReader struct {
	pool   *connection.ChainPool
	logger *logrus.Logger
}

// NewEVMReader 创建EVM事实读取器
func NewEVMReader(pool *connection.ChainPool, logger *logrus.Logger) *EVMReader {
	return &EVMReader{pool: pool, logger: logger}
}

// ReadFacts 读取单个EVM实例的链上事实
// 字节码读取失败视为实例级失败；存储槽读取失败只降级SlotsRead，
// 升级性判定随之退化为未知而不是报错。
func (r *EVMReader) ReadFacts(ctx context.Context, chain, address string, opts models.AnalyzeOptions) (*models.EVMFacts, string, error) {
	lease, err := r.pool.Acquire(chain)
	if err != nil {
		return nil, "", errors.WrapError(err, errors.ErrorTypeRPC, errors.SeverityMedium,
			errors.CodeUpstreamError, "获取节点连接失败").WithInstance(chain, address)
	}
	defer lease.Close()

	client := lease.Client()
	contractAddr := common.HexToAddress(address)

	code, err := client.CodeAt(ctx, contractAddr, nil)
	if err != nil {
		return nil, "", r.rpcError(err, chain, address, "读取合约字节码失败")
	}

	facts := &models.EVMFacts{
		CodeSize:        len(code),
		HasDelegateCall: hasDelegateCall(code),
	}

	var codeHash string
	if opts.ComputeCodeHash && len(code) > 0 {
		codeHash = fmt.Sprintf("keccak256:%x", crypto.Keccak256(code))
	}

	if opts.DetectProxy {
		r.readProxySlots(ctx, lease, chain, address, facts)
	}

	return facts, codeHash, nil
}

// readProxySlots 读取EIP-1967/1822存储槽
// 三个槽必须全部读取成功才算SlotsRead，避免只读到一半时误判代理类型。
func (r *EVMReader) readProxySlots(ctx context.Context, lease *connection.Lease, chain, address string, facts *models.EVMFacts) {
	client := lease.Client()
	contractAddr := common.HexToAddress(address)

	slots := []struct {
		key  string
		dest *string
	}{
		{truth.EIP1967ImplementationSlot, &facts.ImplementationSlot},
		{truth.EIP1967AdminSlot, &facts.AdminSlot},
		{truth.EIP1822ProxiableSlot, &facts.ProxiableSlot},
	}

	for _, slot := range slots {
		value, err := client.StorageAt(ctx, contractAddr, common.HexToHash(slot.key), nil)
		if err != nil {
			r.logger.Warnf("链 %s 地址 %s 读取存储槽失败: %v", chain, address, err)
			facts.SlotsRead = false
			facts.ImplementationSlot = ""
			facts.AdminSlot = ""
			facts.ProxiableSlot = ""
			return
		}
		*slot.dest = fmt.Sprintf("0x%x", value)
	}
	facts.SlotsRead = true

	// timelock启发式：管理槽指向的地址有合约代码
	if admin := slotToAddress(facts.AdminSlot); admin != (common.Address{}) {
		adminCode, err := client.CodeAt(ctx, admin, nil)
		if err != nil {
			r.logger.Debugf("链 %s 读取管理地址代码失败: %v", chain, err)
			return
		}
		facts.AdminHasCode = models.Bool(len(adminCode) > 0)
	}
}

// rpcError RPC失败归一为结构化错误
func (r *EVMReader) rpcError(err error, chain, address, message string) *errors.TruthError {
	if isTimeout(err) {
		return errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium,
			errors.CodeUpstreamTimeout, message).WithInstance(chain, address)
	}
	return errors.WrapError(err, errors.ErrorTypeRPC, errors.SeverityMedium,
		errors.CodeUpstreamError, message).WithInstance(chain, address)
}

// hasDelegateCall 扫描字节码中的delegatecall操作码
// 纯字节扫描，PUSH数据里的0xf4会误报；只作最小代理的辅助信号。
func hasDelegateCall(code []byte) bool {
	for _, op := range code {
		if op == opDelegateCall {
			return true
		}
	}
	return false
}

// slotToAddress 从32字节槽值提取低20字节地址
func slotToAddress(slotValue string) common.Address {
	cleaned := strings.TrimPrefix(strings.ToLower(slotValue), "0x")
	value, ok := new(big.Int).SetString(cleaned, 16)
	if !ok || value.Sign() == 0 {
		return common.Address{}
	}
	return common.BigToAddress(value)
}
