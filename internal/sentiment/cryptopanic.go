package sentiment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tokentruth/internal/config"
	"tokentruth/internal/errors"

	"github.com/sirupsen/logrus"
)

// fullConfidenceArticles 情绪置信度在达到该篇数时取满
const fullConfidenceArticles = 20

// Votes CryptoPanic文章的用户投票
type Votes struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Liked    int `json:"liked"`
	Disliked int `json:"disliked"`
	Toxic    int `json:"toxic"`
}

// NewsItem 单篇新闻
type NewsItem struct {
	Title        string
	PublishedAt  time.Time
	SourceDomain string
	Votes        Votes
}

// VoteSummary 投票聚合结果
type VoteSummary struct {
	Score      *float64 // [-1, 1]，无文章时为nil
	Positive   int      // 正面占优的文章数
	Negative   int
	Neutral    int
	Confidence float64 // 按样本量折算，20篇以上取满
}

// Client CryptoPanic新闻API客户端
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient 创建CryptoPanic客户端
func NewClient(cfg *config.ProvidersConfig, logger *logrus.Logger) *Client {
	baseURL := "https://cryptopanic.com/api/v1/posts/"
	apiKey := ""
	timeout := 15 * time.Second

	if cfg != nil {
		if cfg.CryptoPanicURL != "" {
			baseURL = cfg.CryptoPanicURL
		}
		apiKey = cfg.CryptoPanicKey
		if cfg.Timeout != "" {
			if d, err := time.ParseDuration(cfg.Timeout); err == nil {
				timeout = d
			}
		}
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// postsResponse CryptoPanic /posts/响应体
type postsResponse struct {
	Results []struct {
		Title       string `json:"title"`
		PublishedAt string `json:"published_at"`
		Source      struct {
			Domain string `json:"domain"`
		} `json:"source"`
		Votes Votes `json:"votes"`
	} `json:"results"`
}

// GetNews 拉取代币符号在回看窗口内的新闻
func (c *Client) GetNews(ctx context.Context, symbol string, window time.Duration) ([]NewsItem, error) {
	if c.apiKey == "" {
		return nil, errors.NewTruthError(errors.ErrorTypeSentiment, errors.SeverityLow,
			errors.CodeUpstreamError, "CryptoPanic API key未配置")
	}

	params := url.Values{}
	params.Set("auth_token", c.apiKey)
	params.Set("currencies", strings.ToUpper(symbol))
	params.Set("public", "true")

	requestURL := strings.TrimRight(c.baseURL, "/") + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSentiment, errors.SeverityMedium,
			errors.CodeUpstreamError, "构造CryptoPanic请求失败")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium,
				errors.CodeUpstreamTimeout, "CryptoPanic请求超时")
		}
		return nil, errors.WrapError(err, errors.ErrorTypeSentiment, errors.SeverityMedium,
			errors.CodeUpstreamError, "CryptoPanic请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewTruthError(errors.ErrorTypeRateLimit, errors.SeverityMedium,
			errors.CodeRateLimited, "CryptoPanic API限流")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTruthError(errors.ErrorTypeSentiment, errors.SeverityMedium,
			errors.CodeUpstreamError, fmt.Sprintf("CryptoPanic返回状态 %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSentiment, errors.SeverityMedium,
			errors.CodeUpstreamError, "读取CryptoPanic响应失败")
	}

	var parsed postsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.SeverityMedium,
			errors.CodeParseError, "解析CryptoPanic响应失败")
	}

	cutoff := time.Now().UTC().Add(-window)
	items := make([]NewsItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.PublishedAt == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, r.PublishedAt)
		if err != nil {
			continue
		}
		if publishedAt.Before(cutoff) {
			continue
		}
		items = append(items, NewsItem{
			Title:        r.Title,
			PublishedAt:  publishedAt,
			SourceDomain: r.Source.Domain,
			Votes:        r.Votes,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"window":   window.String(),
		"articles": len(items),
	}).Debug("CryptoPanic新闻拉取完成")

	return items, nil
}

// SummarizeVotes 逐篇按投票倾向分类后聚合出[-1,1]情绪分
// 每篇文章按正负投票多数归类，得分 = (正面篇数-负面篇数)/总篇数。
func SummarizeVotes(items []NewsItem) VoteSummary {
	if len(items) == 0 {
		return VoteSummary{}
	}

	var positive, negative, neutral int
	for _, item := range items {
		positiveVotes := item.Votes.Positive + item.Votes.Liked
		negativeVotes := item.Votes.Negative + item.Votes.Disliked + item.Votes.Toxic

		switch {
		case positiveVotes > negativeVotes:
			positive++
		case negativeVotes > positiveVotes:
			negative++
		default:
			neutral++
		}
	}

	total := len(items)
	score := round3(float64(positive-negative) / float64(total))
	confidence := round3(math.Min(1.0, float64(total)/fullConfidenceArticles))

	return VoteSummary{
		Score:      &score,
		Positive:   positive,
		Negative:   negative,
		Neutral:    neutral,
		Confidence: confidence,
	}
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
