package liquidity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"tokentruth/internal/config"
	"tokentruth/internal/errors"

	"github.com/sirupsen/logrus"
)

// slippageAmplification 恒定乘积AMM滑点近似的放大系数
const slippageAmplification = 1.5

// dexChainIDs 链名到DexScreener chainId的映射
var dexChainIDs = map[string]string{
	"ethereum":  "ethereum",
	"bsc":       "bsc",
	"polygon":   "polygon",
	"arbitrum":  "arbitrum",
	"optimism":  "optimism",
	"avalanche": "avalanche",
}

// Pair 单个DEX交易对的流动性数据
type Pair struct {
	ChainID      string
	DexID        string
	PairAddress  string
	LiquidityUSD float64
	Volume24hUSD float64
}

// Client DexScreener API客户端
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient 创建DexScreener客户端
func NewClient(cfg *config.ProvidersConfig, logger *logrus.Logger) *Client {
	baseURL := "https://api.dexscreener.com/latest/dex"
	timeout := 10 * time.Second

	if cfg != nil {
		if cfg.DexScreenerURL != "" {
			baseURL = strings.TrimRight(cfg.DexScreenerURL, "/")
		}
		if cfg.Timeout != "" {
			if d, err := time.ParseDuration(cfg.Timeout); err == nil {
				timeout = d
			}
		}
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// pairsResponse /dex/tokens/{address}的响应体
type pairsResponse struct {
	Pairs []struct {
		ChainID     string `json:"chainId"`
		DexID       string `json:"dexId"`
		PairAddress string `json:"pairAddress"`
		Liquidity   struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
	} `json:"pairs"`
}

// TokenPairs 拉取代币在指定链上的全部DEX交易对
func (c *Client) TokenPairs(ctx context.Context, chain, address string) ([]Pair, error) {
	chainID, supported := dexChainIDs[strings.ToLower(chain)]
	if !supported {
		return nil, errors.NewTruthError(errors.ErrorTypeMarketData, errors.SeverityLow,
			errors.CodeInvalidRequest, fmt.Sprintf("DexScreener不支持链 %s", chain)).
			WithInstance(chain, address)
	}

	requestURL := c.baseURL + "/tokens/" + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMarketData, errors.SeverityMedium,
			errors.CodeUpstreamError, "构造DexScreener请求失败").WithInstance(chain, address)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium,
				errors.CodeUpstreamTimeout, "DexScreener请求超时").WithInstance(chain, address)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeMarketData, errors.SeverityMedium,
			errors.CodeUpstreamError, "DexScreener请求失败").WithInstance(chain, address)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewTruthError(errors.ErrorTypeRateLimit, errors.SeverityMedium,
			errors.CodeRateLimited, "DexScreener API限流").WithInstance(chain, address)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTruthError(errors.ErrorTypeMarketData, errors.SeverityMedium,
			errors.CodeUpstreamError, fmt.Sprintf("DexScreener返回状态 %d", resp.StatusCode)).
			WithInstance(chain, address)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMarketData, errors.SeverityMedium,
			errors.CodeUpstreamError, "读取DexScreener响应失败").WithInstance(chain, address)
	}

	var parsed pairsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "解析DexScreener响应失败").WithInstance(chain, address)
	}

	pairs := make([]Pair, 0, len(parsed.Pairs))
	for _, p := range parsed.Pairs {
		if !strings.EqualFold(p.ChainID, chainID) {
			continue
		}
		pairs = append(pairs, Pair{
			ChainID:      p.ChainID,
			DexID:        p.DexID,
			PairAddress:  p.PairAddress,
			LiquidityUSD: p.Liquidity.USD,
			Volume24hUSD: p.Volume.H24,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"chain":   chain,
		"address": address,
		"pairs":   len(pairs),
	}).Debug("DexScreener交易对拉取完成")

	return pairs, nil
}

// EstimateSlippage 用恒定乘积AMM近似估算给定交易规模的滑点百分比
// 零流动性视为无限滑点，返回100。结果随交易规模单调不减。
func EstimateSlippage(liquidityUSD, tradeSizeUSD float64) float64 {
	if liquidityUSD <= 0 {
		return 100.0
	}
	raw := (tradeSizeUSD / liquidityUSD) * slippageAmplification * 100
	return math.Min(100.0, round2(raw))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

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

