package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokentruth/internal/config"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testArticle struct {
	title     string
	age       time.Duration
	votes     Votes
	sourceDom string
}

func newsServer(t *testing.T, articles []testArticle) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("auth_token"))
		assert.NotEmpty(t, r.URL.Query().Get("currencies"))

		results := make([]map[string]interface{}, 0, len(articles))
		for _, a := range articles {
			results = append(results, map[string]interface{}{
				"title":        a.title,
				"published_at": time.Now().UTC().Add(-a.age).Format(time.RFC3339),
				"source":       map[string]string{"domain": a.sourceDom},
				"votes":        a.votes,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}))
}

func newTestAnalyzer(serverURL string) *Analyzer {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.ProvidersConfig{
		CryptoPanicURL: serverURL,
		CryptoPanicKey: "test-key",
		Timeout:        "5s",
	}
	return NewAnalyzer(cfg, logger)
}

func TestAnalyze_PositiveCoverage(t *testing.T) {
	articles := make([]testArticle, 0, 4)
	for i := 0; i < 4; i++ {
		articles = append(articles, testArticle{
			title:     fmt.Sprintf("token rallies %d", i),
			age:       2 * time.Hour,
			votes:     Votes{Positive: 5, Liked: 2},
			sourceDom: "example.com",
		})
	}
	server := newsServer(t, articles)
	defer server.Close()

	snapshot := newTestAnalyzer(server.URL).Analyze(context.Background(), "abc")

	require.NotNil(t, snapshot.NewsCount24h)
	assert.Equal(t, 4, *snapshot.NewsCount24h)
	require.NotNil(t, snapshot.SentimentScore)
	assert.Equal(t, 1.0, *snapshot.SentimentScore)
	assert.Equal(t, 4, snapshot.PositiveVotes)
	assert.Empty(t, snapshot.RiskFlags)
	// 正面情绪扣减后不低于0
	assert.Equal(t, 0, snapshot.RiskScore)
}

func TestAnalyze_NegativeCoverage(t *testing.T) {
	articles := make([]testArticle, 0, 5)
	for i := 0; i < 5; i++ {
		articles = append(articles, testArticle{
			title:     fmt.Sprintf("token exploit report %d", i),
			age:       3 * time.Hour,
			votes:     Votes{Negative: 4, Toxic: 1},
			sourceDom: "example.com",
		})
	}
	server := newsServer(t, articles)
	defer server.Close()

	snapshot := newTestAnalyzer(server.URL).Analyze(context.Background(), "abc")

	require.NotNil(t, snapshot.SentimentScore)
	assert.Equal(t, -1.0, *snapshot.SentimentScore)
	assert.Equal(t, 5, snapshot.NegativeVotes)

	require.Len(t, snapshot.RiskFlags, 1)
	assert.Equal(t, FlagNegativeSentiment, snapshot.RiskFlags[0].ID)
	assert.Equal(t, models.SeverityMedium, snapshot.RiskFlags[0].Severity)

	// 标志权重6*2 + 强负面情绪调整20
	assert.Equal(t, 32, snapshot.RiskScore)
}

func TestAnalyze_LowAttention(t *testing.T) {
	server := newsServer(t, []testArticle{
		{title: "quiet day", age: time.Hour, sourceDom: "example.com"},
	})
	defer server.Close()

	snapshot := newTestAnalyzer(server.URL).Analyze(context.Background(), "abc")

	require.Len(t, snapshot.RiskFlags, 1)
	assert.Equal(t, FlagLowAttention, snapshot.RiskFlags[0].ID)
	assert.Equal(t, 8, snapshot.RiskScore)
}

func TestAnalyze_WindowFiltering(t *testing.T) {
	// 48小时前的文章不计入24小时窗口，但计入7天窗口
	server := newsServer(t, []testArticle{
		{title: "recent", age: time.Hour, votes: Votes{Positive: 1}, sourceDom: "a.com"},
		{title: "recent too", age: 2 * time.Hour, votes: Votes{Positive: 1}, sourceDom: "b.com"},
		{title: "recent three", age: 3 * time.Hour, votes: Votes{Positive: 1}, sourceDom: "c.com"},
		{title: "old", age: 48 * time.Hour, votes: Votes{Positive: 1}, sourceDom: "d.com"},
	})
	defer server.Close()

	snapshot := newTestAnalyzer(server.URL).Analyze(context.Background(), "abc")

	require.NotNil(t, snapshot.NewsCount24h)
	assert.Equal(t, 3, *snapshot.NewsCount24h)
	require.NotNil(t, snapshot.NewsCount7d)
	assert.Equal(t, 4, *snapshot.NewsCount7d)
}

func TestAnalyze_MissingAPIKey(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	analyzer := NewAnalyzer(&config.ProvidersConfig{}, logger)

	snapshot := analyzer.Analyze(context.Background(), "abc")

	assert.Nil(t, snapshot.NewsCount24h)
	assert.Nil(t, snapshot.SentimentScore)
	require.Len(t, snapshot.RiskFlags, 1)
	assert.Equal(t, FlagNoSocialData, snapshot.RiskFlags[0].ID)
	assert.Equal(t, unknownRiskScore, snapshot.RiskScore)
}

func TestAnalyze_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	snapshot := newTestAnalyzer(server.URL).Analyze(context.Background(), "abc")

	require.Len(t, snapshot.RiskFlags, 1)
	assert.Equal(t, FlagNoSocialData, snapshot.RiskFlags[0].ID)
	assert.Equal(t, unknownRiskScore, snapshot.RiskScore)
}

func TestSummarizeVotes_Empty(t *testing.T) {
	summary := SummarizeVotes(nil)

	assert.Nil(t, summary.Score)
	assert.Equal(t, 0.0, summary.Confidence)
}

func TestSummarizeVotes_Mixed(t *testing.T) {
	items := []NewsItem{
		{Votes: Votes{Positive: 3, Liked: 1}},            // 正面
		{Votes: Votes{Negative: 2, Disliked: 1}},         // 负面
		{Votes: Votes{Positive: 2, Negative: 1, Toxic: 1}}, // 2 vs 2 中性
		{Votes: Votes{Positive: 1}},                      // 正面
	}

	summary := SummarizeVotes(items)

	require.NotNil(t, summary.Score)
	assert.Equal(t, 0.25, *summary.Score)
	assert.Equal(t, 2, summary.Positive)
	assert.Equal(t, 1, summary.Negative)
	assert.Equal(t, 1, summary.Neutral)
	assert.Equal(t, 0.2, summary.Confidence) // 4篇/20
}

func TestSummarizeVotes_ConfidenceCap(t *testing.T) {
	items := make([]NewsItem, 30)
	summary := SummarizeVotes(items)

	assert.Equal(t, 1.0, summary.Confidence)
}
