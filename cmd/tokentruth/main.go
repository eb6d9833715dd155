package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tokentruth/internal/config"
	"tokentruth/internal/pipeline"
	"tokentruth/pkg/models"
)

var (
	// 基础参数
	symbol    string
	tokenName string
	chains    []string
	addresses []string
	types     []string

	// 决策参数
	withDecision bool

	// 高级参数
	configFile string
	verbose    bool
	skipSource bool
	codeHash   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tokentruth",
		Short: "代币合约事实分析工具",
		Long:  `多链代币合约事实分析工具，采集链上与浏览器证据，产出可验证的事实报告与上架决策`,
		RunE:  run,
	}

	// 基础参数
	rootCmd.Flags().StringVar(&symbol, "symbol", "", "代币符号（必填）")
	rootCmd.Flags().StringVar(&tokenName, "name", "", "代币名称")
	rootCmd.Flags().StringSliceVar(&chains, "chain", nil, "链名称，可重复（如 ethereum,bsc,solana）")
	rootCmd.Flags().StringSliceVar(&addresses, "address", nil, "合约/账户地址，与--chain一一对应")
	rootCmd.Flags().StringSliceVar(&types, "type", nil, "代币标准，与--chain一一对应（erc20, spl）")

	// 决策参数
	rootCmd.Flags().BoolVar(&withDecision, "decision", false, "合并流动性与社媒情报，产出上架决策")

	// 高级参数
	rootCmd.Flags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "详细输出")
	rootCmd.Flags().BoolVar(&skipSource, "skip-source", false, "跳过验证源码抓取")
	rootCmd.Flags().BoolVar(&codeHash, "code-hash", false, "计算链上字节码哈希")

	// 归档查询子命令
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "查看分析归档",
	}
	archiveCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "查看归档统计",
		RunE:  showArchiveStats,
	})
	archiveCmd.AddCommand(&cobra.Command{
		Use:   "last <symbol>",
		Short: "查看代币最近一次报告摘要",
		Args:  cobra.ExactArgs(1),
		RunE:  showLastReport,
	})

	rootCmd.AddCommand(archiveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	req, err := buildRequest()
	if err != nil {
		return err
	}

	service, err := newService(logger)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()

	var result interface{}
	if withDecision {
		result, err = service.Decide(ctx, req)
	} else {
		result, err = service.Analyze(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("分析失败: %w", err)
	}

	return printJSON(result)
}

// buildRequest 把命令行参数组装为分析请求
func buildRequest() (*models.TruthRequest, error) {
	if symbol == "" {
		return nil, fmt.Errorf("必须指定 --symbol")
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("必须至少指定一个 --chain")
	}
	if len(addresses) != len(chains) {
		return nil, fmt.Errorf("--address 数量必须与 --chain 一致")
	}

	instances := make([]models.ChainInstanceRequest, 0, len(chains))
	for i, chain := range chains {
		tokenType := defaultTokenType(chain)
		if i < len(types) && types[i] != "" {
			tokenType = types[i]
		}
		instances = append(instances, models.ChainInstanceRequest{
			Chain:   chain,
			Address: addresses[i],
			Type:    tokenType,
		})
	}

	options := models.DefaultAnalyzeOptions()
	if skipSource {
		options.FetchVerifiedSource = false
	}
	if codeHash {
		options.ComputeCodeHash = true
	}

	return &models.TruthRequest{
		Token:     models.TokenInfo{Symbol: symbol, Name: tokenName},
		Instances: instances,
		Options:   options,
	}, nil
}

// defaultTokenType 按链家族推断默认代币标准
func defaultTokenType(chain string) string {
	if family, ok := models.ChainFamilyOf(chain); ok && family == models.FamilySolana {
		return "spl"
	}
	return "erc20"
}

// showArchiveStats 显示归档统计
func showArchiveStats(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	service, err := newService(logger)
	if err != nil {
		return err
	}
	defer service.Close()

	stats := service.Stats()

	fmt.Println("分析归档统计")
	fmt.Println(strings.Repeat("=", 50))
	return printJSON(stats)
}

// showLastReport 显示代币最近一次报告摘要
func showLastReport(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	service, err := newService(logger)
	if err != nil {
		return err
	}
	defer service.Close()

	summary, err := service.LastReportFor(args[0])
	if err != nil {
		return fmt.Errorf("查询归档失败: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("代币 %s 没有历史报告", args[0])
	}

	return printJSON(summary)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr) // 报告走stdout，日志走stderr
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func newService(logger *logrus.Logger) (*pipeline.Service, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	service, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("创建分析服务失败: %w", err)
	}
	return service, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
