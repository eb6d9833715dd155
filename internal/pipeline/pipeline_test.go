package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tokentruth/internal/config"
	"tokentruth/internal/errors"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verifiedSourceResponse = `{
	"status": "1",
	"message": "OK",
	"result": [{
		"SourceCode": "contract Token {}",
		"ABI": "[{\"type\":\"function\",\"name\":\"transfer\",\"inputs\":[{\"type\":\"address\"},{\"type\":\"uint256\"}],\"stateMutability\":\"nonpayable\"}]",
		"ContractName": "Token",
		"CompilerVersion": "v0.8.20"
	}]
}`

func newTestService(t *testing.T, explorerURL string) *Service {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	// 不配置EVM节点，链上读数路径降级
	cfg.Chains.Nodes = nil
	cfg.Explorers.Endpoints = map[string]*config.ExplorerEndpoint{
		"ethereum": {Name: "etherscan", BaseURL: explorerURL, APIKey: "test-key"},
	}
	cfg.Output.Directory = filepath.Join(dir, "outputs")
	cfg.Archive.Path = filepath.Join(dir, "reports.db")
	cfg.Providers.DexScreenerURL = "http://127.0.0.1:1"
	cfg.Providers.CryptoPanicURL = "http://127.0.0.1:1"
	cfg.Fetcher.InstanceTimeout = "5s"
	cfg.Fetcher.RequestTimeout = "15s"

	service, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(service.Close)

	return service
}

func analyzeRequest() *models.TruthRequest {
	return &models.TruthRequest{
		Token: models.TokenInfo{Symbol: "ABC"},
		Instances: []models.ChainInstanceRequest{
			{Chain: "ethereum", Address: "0x1234567890123456789012345678901234567890", Type: "erc20"},
		},
		Options: models.DefaultAnalyzeOptions(),
	}
}

func TestAnalyze_DegradedWithoutNodes(t *testing.T) {
	explorer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(verifiedSourceResponse))
	}))
	defer explorer.Close()

	service := newTestService(t, explorer.URL)

	rpt, err := service.Analyze(context.Background(), analyzeRequest())
	require.NoError(t, err)

	// 浏览器路径成功但EVM RPC不可用：实例失败记入errors区，整批不报错
	assert.NotEmpty(t, rpt.RequestID)
	assert.Empty(t, rpt.Data.Proven.Instances)
	require.Len(t, rpt.Errors, 1)
	assert.Equal(t, "ethereum", rpt.Errors[0].Chain)

	// 报告落盘
	entries, err := os.ReadDir(service.cfg.Output.Directory)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestAnalyze_InvalidRequest(t *testing.T) {
	service := newTestService(t, "http://127.0.0.1:1")

	req := analyzeRequest()
	req.Instances[0].Address = "not-an-address"

	_, err := service.Analyze(context.Background(), req)

	require.Error(t, err)
	truthErr, ok := err.(*errors.TruthError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidRequest, truthErr.Code)
}

func TestDecide_AllPathsDegraded(t *testing.T) {
	explorer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(verifiedSourceResponse))
	}))
	defer explorer.Close()

	service := newTestService(t, explorer.URL)

	dec, err := service.Decide(context.Background(), analyzeRequest())
	require.NoError(t, err)

	// 合约侧无已证实实例、流动性与社媒都不可用，未知项过多须人工审核
	assert.Equal(t, models.DecisionNeedsReview, dec.Decision)
	assert.Equal(t, 50, dec.ContractRiskScore)
	assert.Equal(t, 50, dec.LiquidityRiskScore)
	assert.Equal(t, 50, dec.NarrativeRiskScore)
}

func TestStats(t *testing.T) {
	service := newTestService(t, "http://127.0.0.1:1")

	stats := service.Stats()

	assert.Contains(t, stats, "archive")
	assert.Contains(t, stats, "connections")
}
