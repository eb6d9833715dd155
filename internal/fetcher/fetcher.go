package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tokentruth/internal/abi"
	"tokentruth/internal/config"
	"tokentruth/internal/connection"
	"tokentruth/internal/errors"
	"tokentruth/internal/retry"
	"tokentruth/internal/truth"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// Result 一次批量采集的产物
// 每个请求实例在Outcomes里恰好出现一次：原始事实或结构化错误。
type Result struct {
	Outcomes map[string]truth.FetchOutcome
	Evidence []models.Evidence
	Warnings []string
}

// Fetcher 外部事实采集器
// 每个实例一个goroutine，带独立超时；单实例失败不影响其他实例。
type Fetcher struct {
	explorer *ExplorerClient
	evm      *EVMReader
	solana   *SolanaClient
	parser   *abi.Parser
	retrier  *retry.Retrier
	logger   *logrus.Logger

	workers         int
	instanceTimeout time.Duration
}

// New 创建采集器
func New(cfg *config.Config, pool *connection.ChainPool, logger *logrus.Logger) *Fetcher {
	instanceTimeout := 15 * time.Second
	workers := 4
	retryLimit := 3
	if cfg.Fetcher != nil {
		if d, err := time.ParseDuration(cfg.Fetcher.InstanceTimeout); err == nil && d > 0 {
			instanceTimeout = d
		}
		if cfg.Fetcher.Workers > 0 {
			workers = cfg.Fetcher.Workers
		}
		if cfg.Fetcher.RetryLimit > 0 {
			retryLimit = cfg.Fetcher.RetryLimit
		}
	}

	retryConfig := *retry.NetworkRetryConfig
	retryConfig.MaxAttempts = retryLimit

	solanaRPC := ""
	if cfg.Chains != nil {
		for _, node := range cfg.Chains.Nodes {
			if node.Chain == "solana" && node.URL != "" {
				solanaRPC = node.URL
				break
			}
		}
	}

	httpClient := &http.Client{Timeout: instanceTimeout}

	return &Fetcher{
		explorer:        NewExplorerClient(cfg.Explorers, instanceTimeout, logger),
		evm:             NewEVMReader(pool, logger),
		solana:          NewSolanaClient(solanaRPC, httpClient, logger),
		parser:          abi.NewParser(logger),
		retrier:         retry.NewRetrier(&retryConfig, logger),
		logger:          logger,
		workers:         workers,
		instanceTimeout: instanceTimeout,
	}
}

// FetchAll 并发采集整批请求的原始事实，所有实例完成后返回
func (f *Fetcher) FetchAll(ctx context.Context, req *models.TruthRequest) *Result {
	result := &Result{
		Outcomes: make(map[string]truth.FetchOutcome, len(req.Instances)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, f.workers)

	for _, instance := range req.Instances {
		wg.Add(1)
		go func(inst models.ChainInstanceRequest) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			instCtx, cancel := context.WithTimeout(ctx, f.instanceTimeout)
			defer cancel()

			facts, evidence, warnings, instErr := f.fetchInstance(instCtx, inst, req.Options)

			mu.Lock()
			defer mu.Unlock()
			if instErr != nil {
				result.Outcomes[inst.Key()] = truth.FetchOutcome{Err: instErr}
			} else {
				result.Outcomes[inst.Key()] = truth.FetchOutcome{Facts: facts}
			}
			result.Evidence = append(result.Evidence, evidence...)
			result.Warnings = append(result.Warnings, warnings...)
		}(instance)
	}

	wg.Wait()
	return result
}

// fetchInstance 采集单实例的原始事实
func (f *Fetcher) fetchInstance(ctx context.Context, inst models.ChainInstanceRequest, opts models.AnalyzeOptions) (*models.RawInstanceFacts, []models.Evidence, []string, *models.InstanceError) {
	switch inst.Family() {
	case models.FamilyEVM:
		return f.fetchEVMInstance(ctx, inst, opts)
	case models.FamilySolana:
		return f.fetchSolanaInstance(ctx, inst)
	default:
		return nil, nil, nil, &models.InstanceError{
			Chain:     inst.Chain,
			Address:   inst.Address,
			Code:      errors.CodeInvalidRequest,
			Message:   fmt.Sprintf("不支持的链: %s", inst.Chain),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}
}

// fetchEVMInstance 采集EVM实例
// 浏览器失败只降级验证状态为未知并留警告；RPC失败才算实例失败。
func (f *Fetcher) fetchEVMInstance(ctx context.Context, inst models.ChainInstanceRequest, opts models.AnalyzeOptions) (*models.RawInstanceFacts, []models.Evidence, []string, *models.InstanceError) {
	facts := &models.RawInstanceFacts{Family: models.FamilyEVM}
	var evidence []models.Evidence
	var warnings []string

	if opts.FetchVerifiedSource || opts.FetchABI {
		var info *SourceInfo
		err := f.retrier.Execute(ctx, "explorer_getsourcecode", func() error {
			var fetchErr error
			info, fetchErr = f.explorer.GetContractSource(ctx, inst.Chain, inst.Address)
			return fetchErr
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: 浏览器数据不可用，验证状态降级为未知 (%v)", inst.Key(), err))
		} else {
			facts.Verified = models.Bool(info.Verified)
			facts.Explorer = info.Explorer
			facts.SourceAvailable = info.Verified
			facts.SourceHash = info.SourceHash

			evidence = append(evidence, models.Evidence{
				Provider:  info.Explorer,
				Timestamp: time.Now().UTC(),
				Ref:       inst.Key(),
				Note:      "contract source lookup",
			})

			if opts.FetchABI && info.ABI != "" {
				functions, parseErr := f.parser.Parse(info.ABI)
				if parseErr != nil {
					warnings = append(warnings, fmt.Sprintf("%s: ABI解析失败 (%v)", inst.Key(), parseErr))
				} else {
					facts.ABIFunctions = f.parser.FunctionNames(functions)
				}
			}
		}
	}

	var evmFacts *models.EVMFacts
	var codeHash string
	err := f.retrier.Execute(ctx, "evm_read_facts", func() error {
		var readErr error
		evmFacts, codeHash, readErr = f.evm.ReadFacts(ctx, inst.Chain, inst.Address, opts)
		return readErr
	})
	if err != nil {
		return nil, evidence, warnings, toInstanceError(inst, "evm_rpc", err)
	}

	facts.EVM = evmFacts
	facts.RuntimeCodeHash = codeHash

	evidence = append(evidence, models.Evidence{
		Provider:  inst.Chain + "_rpc",
		Timestamp: time.Now().UTC(),
		Ref:       inst.Key(),
		Note:      "bytecode and storage slot reads",
	})

	return facts, evidence, warnings, nil
}

// fetchSolanaInstance 采集Solana SPL实例
func (f *Fetcher) fetchSolanaInstance(ctx context.Context, inst models.ChainInstanceRequest) (*models.RawInstanceFacts, []models.Evidence, []string, *models.InstanceError) {
	var solFacts *models.SolanaFacts
	err := f.retrier.Execute(ctx, "solana_read_mint", func() error {
		var readErr error
		solFacts, readErr = f.solana.ReadMintFacts(ctx, inst.Address)
		return readErr
	})
	if err != nil {
		return nil, nil, nil, toInstanceError(inst, "solana_rpc", err)
	}

	// mint的行为受其所属代币程序约束：程序可升级且权限未放弃时记录升级权限
	var warnings []string
	if solFacts.OwnerProgram != "" {
		upgradeable, authority, upErr := f.solana.ProgramUpgradeAuthority(ctx, solFacts.OwnerProgram)
		if upErr != nil {
			warnings = append(warnings, fmt.Sprintf("%s: 代币程序升级性检查失败 (%v)", inst.Key(), upErr))
		} else if upgradeable != nil && *upgradeable {
			solFacts.UpgradeAuthority = authority
		}
	}

	facts := &models.RawInstanceFacts{
		Family: models.FamilySolana,
		// mint账户解析成功即视为链上可验证
		Verified: models.Bool(true),
		Explorer: "solana_rpc",
		Solana:   solFacts,
	}

	evidence := []models.Evidence{{
		Provider:  "solana_rpc",
		Timestamp: time.Now().UTC(),
		Ref:       inst.Key(),
		Note:      "SPL mint account parse",
	}}

	return facts, evidence, warnings, nil
}

// toInstanceError 归一为报告中的实例错误记录
func toInstanceError(inst models.ChainInstanceRequest, source string, err error) *models.InstanceError {
	instErr := &models.InstanceError{
		Chain:     inst.Chain,
		Address:   inst.Address,
		Code:      errors.CodeUpstreamError,
		Message:   err.Error(),
		Source:    source,
		Retryable: true,
		Timestamp: time.Now(),
	}

	var truthErr *errors.TruthError
	if stderrors.As(err, &truthErr) {
		instErr.Code = truthErr.Code
		instErr.Message = truthErr.Message
		instErr.Retryable = truthErr.Retryable
		if truthErr.Cause != nil {
			instErr.Message = fmt.Sprintf("%s: %v", truthErr.Message, truthErr.Cause)
		}
	} else if isTimeout(err) {
		instErr.Code = errors.CodeUpstreamTimeout
	}

	return instErr
}
