package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tokentruth/internal/config"
	"tokentruth/internal/errors"

	"github.com/sirupsen/logrus"
)

// SourceInfo 浏览器返回的合约源码信息
type SourceInfo struct {
	Verified        bool
	Explorer        string
	ABI             string // 原始ABI JSON，未验证时为空
	ContractName    string
	CompilerVersion string
	SourceHash      string // sha256:...，源码可用时填充
}

// ExplorerClient Etherscan风格的区块浏览器客户端
type ExplorerClient struct {
	endpoints map[string]*config.ExplorerEndpoint
	client    *http.Client
	logger    *logrus.Logger
}

// NewExplorerClient 创建浏览器客户端
func NewExplorerClient(cfg *config.ExplorersConfig, timeout time.Duration, logger *logrus.Logger) *ExplorerClient {
	endpoints := make(map[string]*config.ExplorerEndpoint)
	if cfg != nil {
		for chain, endpoint := range cfg.Endpoints {
			endpoints[strings.ToLower(chain)] = endpoint
		}
	}

	return &ExplorerClient{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// explorerEnvelope Etherscan响应信封
type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// sourceCodeResult getsourcecode的单条结果
type sourceCodeResult struct {
	SourceCode      string `json:"SourceCode"`
	ABI             string `json:"ABI"`
	ContractName    string `json:"ContractName"`
	CompilerVersion string `json:"CompilerVersion"`
}

// GetContractSource 获取合约源码与验证状态
// 未验证的合约不是错误：返回Verified=false的SourceInfo。
func (e *ExplorerClient) GetContractSource(ctx context.Context, chain, address string) (*SourceInfo, error) {
	endpoint, exists := e.endpoints[strings.ToLower(chain)]
	if !exists || endpoint.BaseURL == "" {
		return nil, errors.NewTruthError(errors.ErrorTypeExplorer, errors.SeverityMedium,
			errors.CodeUpstreamError, fmt.Sprintf("链 %s 没有配置浏览器端点", chain)).
			WithInstance(chain, address)
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)
	if endpoint.APIKey != "" {
		params.Set("apikey", endpoint.APIKey)
	}

	requestURL := endpoint.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeExplorer, errors.SeverityMedium,
			errors.CodeUpstreamError, "构造浏览器请求失败").WithInstance(chain, address)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.transportError(err, chain, address)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewTruthError(errors.ErrorTypeRateLimit, errors.SeverityMedium,
			errors.CodeRateLimited, "浏览器API限流").WithInstance(chain, address)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTruthError(errors.ErrorTypeExplorer, errors.SeverityMedium,
			errors.CodeUpstreamError, fmt.Sprintf("浏览器API返回状态 %d", resp.StatusCode)).
			WithInstance(chain, address)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeExplorer, errors.SeverityMedium,
			errors.CodeUpstreamError, "读取浏览器响应失败").WithInstance(chain, address)
	}

	var envelope explorerEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "解析浏览器响应失败").WithInstance(chain, address)
	}

	// Etherscan把限流塞在message或result字符串里
	if strings.Contains(strings.ToLower(envelope.Message), "rate limit") ||
		strings.Contains(strings.ToLower(string(envelope.Result)), "rate limit") {
		return nil, errors.NewTruthError(errors.ErrorTypeRateLimit, errors.SeverityMedium,
			errors.CodeRateLimited, "浏览器API限流").WithInstance(chain, address)
	}

	if envelope.Status != "1" {
		// 合约未找到或未验证
		return &SourceInfo{Verified: false, Explorer: endpoint.Name}, nil
	}

	var results []sourceCodeResult
	if err := json.Unmarshal(envelope.Result, &results); err != nil || len(results) == 0 {
		return nil, errors.NewTruthError(errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "浏览器结果格式异常").WithInstance(chain, address)
	}

	result := results[0]
	info := &SourceInfo{
		Verified:        result.SourceCode != "",
		Explorer:        endpoint.Name,
		ContractName:    result.ContractName,
		CompilerVersion: result.CompilerVersion,
	}

	if result.SourceCode != "" {
		hash := sha256.Sum256([]byte(result.SourceCode))
		info.SourceHash = fmt.Sprintf("sha256:%x", hash)
	}

	if result.ABI != "" && result.ABI != "Contract source code not verified" {
		info.ABI = result.ABI
	}

	return info, nil
}

// transportError 区分超时与其他传输失败
func (e *ExplorerClient) transportError(err error, chain, address string) *errors.TruthError {
	if isTimeout(err) {
		return errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium,
			errors.CodeUpstreamTimeout, "浏览器API请求超时").WithInstance(chain, address)
	}
	return errors.WrapError(err, errors.ErrorTypeExplorer, errors.SeverityMedium,
		errors.CodeUpstreamError, "浏览器API请求失败").WithInstance(chain, address)
}

// isTimeout 判断错误是否为超时
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
