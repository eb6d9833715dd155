package config

import (
	"fmt"
	"os"

	"tokentruth/internal/logging"
	"tokentruth/internal/truth"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 主配置
type Config struct {
	Chains    *ChainsConfig         `mapstructure:"chains"`
	Explorers *ExplorersConfig      `mapstructure:"explorers"`
	Fetcher   *FetcherConfig        `mapstructure:"fetcher"`
	Scoring   *truth.ScoringWeights `mapstructure:"scoring"`
	Decision  *DecisionConfig       `mapstructure:"decision"`
	Providers *ProvidersConfig      `mapstructure:"providers"`
	Output    *OutputConfig         `mapstructure:"output"`
	Archive   *ArchiveConfig        `mapstructure:"archive"`
	API       *APIConfig            `mapstructure:"api"`
	Logging   *logging.LogConfig    `mapstructure:"logging"`
}

// ChainsConfig 链RPC配置
type ChainsConfig struct {
	Nodes []*NodeConfig `mapstructure:"nodes"`
}

// NodeConfig RPC节点配置
type NodeConfig struct {
	Chain     string `mapstructure:"chain"`
	Name      string `mapstructure:"name"`
	URL       string `mapstructure:"url"`
	RateLimit int    `mapstructure:"rate_limit"`
	Priority  int    `mapstructure:"priority"`
}

// ExplorersConfig 区块浏览器API配置
type ExplorersConfig struct {
	Endpoints map[string]*ExplorerEndpoint `mapstructure:"endpoints"` // 按链名索引
}

// ExplorerEndpoint 单链浏览器端点
type ExplorerEndpoint struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// FetcherConfig 采集器配置
type FetcherConfig struct {
	Workers         int    `mapstructure:"workers"`
	RetryLimit      int    `mapstructure:"retry_limit"`
	InstanceTimeout string `mapstructure:"instance_timeout"` // 单实例超时
	RequestTimeout  string `mapstructure:"request_timeout"`  // 整批超时
}

// DecisionConfig 上币决策权重
type DecisionConfig struct {
	ContractWeight  float64 `mapstructure:"contract_weight"`
	LiquidityWeight float64 `mapstructure:"liquidity_weight"`
	SentimentWeight float64 `mapstructure:"sentiment_weight"`
}

// ProvidersConfig 外围数据源配置
type ProvidersConfig struct {
	DexScreenerURL string `mapstructure:"dexscreener_url"`
	CryptoPanicURL string `mapstructure:"cryptopanic_url"`
	CryptoPanicKey string `mapstructure:"cryptopanic_key"`
	Timeout        string `mapstructure:"timeout"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format    string       `mapstructure:"format"`
	Directory string       `mapstructure:"directory"`
	Compress  bool         `mapstructure:"compress"`
	Kafka     *KafkaConfig `mapstructure:"kafka"`
}

// ArchiveConfig 报告归档配置
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// APIConfig HTTP服务配置
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoadConfig 加载配置（自动检测配置源）
func LoadConfig(configPath string) (*Config, error) {
	// 首先尝试从环境变量获取数据库配置
	dbDSN := os.Getenv("TRUTH_DB_DSN")
	if dbDSN != "" {
		logger := logrus.New()
		dbConfig, err := NewDatabaseConfig(dbDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		defer dbConfig.Close()

		config, err := dbConfig.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("从数据库加载配置失败: %w", err)
		}

		logger.Info("已从数据库加载配置")
		return config, nil
	}

	// 检查是否存在数据库配置文件
	dbConfigFile := "configs/database.yaml"
	if _, err := os.Stat(dbConfigFile); err == nil {
		dbViper := viper.New()
		dbViper.SetConfigFile(dbConfigFile)
		dbViper.SetConfigType("yaml")

		if err := dbViper.ReadInConfig(); err == nil {
			dbDSN := dbViper.GetString("database.dsn")
			if dbDSN != "" {
				logger := logrus.New()
				dbConfig, err := NewDatabaseConfig(dbDSN, logger)
				if err == nil {
					defer dbConfig.Close()

					config, err := dbConfig.LoadConfig()
					if err == nil {
						logger.Info("已从数据库加载配置")
						return config, nil
					}
				}
			}
		}
	}

	// 如果数据库配置不可用，回退到YAML文件
	return LoadConfigFromFile(configPath)
}

// LoadConfigFromFile 从文件加载配置
// 文件未覆盖的评分权重使用默认方案，保证阈值行为始终有定义。
func LoadConfigFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyScoringDefaults(&config)

	return &config, nil
}

// applyScoringDefaults 补齐未配置的评分权重与阈值
func applyScoringDefaults(config *Config) {
	defaults := truth.DefaultScoringWeights()

	if config.Scoring == nil {
		config.Scoring = &defaults
		return
	}
	if config.Scoring.ProvenThreshold == 0 {
		config.Scoring.ProvenThreshold = defaults.ProvenThreshold
	}
	if config.Scoring.LikelyThreshold == 0 {
		config.Scoring.LikelyThreshold = defaults.LikelyThreshold
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	scoring := truth.DefaultScoringWeights()

	return &Config{
		Chains: &ChainsConfig{
			Nodes: []*NodeConfig{
				{
					Chain:     "ethereum",
					Name:      "local_node",
					URL:       "", // 需要在YAML配置或数据库中指定
					RateLimit: 1000,
					Priority:  1,
				},
			},
		},
		Explorers: &ExplorersConfig{
			Endpoints: map[string]*ExplorerEndpoint{
				"ethereum": {
					Name:    "etherscan",
					BaseURL: "https://api.etherscan.io/api",
				},
				"bsc": {
					Name:    "bscscan",
					BaseURL: "https://api.bscscan.com/api",
				},
				"polygon": {
					Name:    "polygonscan",
					BaseURL: "https://api.polygonscan.com/api",
				},
			},
		},
		Fetcher: &FetcherConfig{
			Workers:         4,
			RetryLimit:      3,
			InstanceTimeout: "15s",
			RequestTimeout:  "45s",
		},
		Scoring: &scoring,
		Decision: &DecisionConfig{
			ContractWeight:  0.50,
			LiquidityWeight: 0.35,
			SentimentWeight: 0.15,
		},
		Providers: &ProvidersConfig{
			DexScreenerURL: "https://api.dexscreener.com/latest/dex",
			CryptoPanicURL: "https://cryptopanic.com/api/v1/posts/",
			Timeout:        "10s",
		},
		Output: &OutputConfig{
			Format:    "file",
			Directory: "./outputs",
			Compress:  false,
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topics: map[string]string{
					"reports":   "token_truth_reports",
					"decisions": "token_truth_decisions",
				},
			},
		},
		Archive: &ArchiveConfig{
			Enabled: true,
			Path:    "./data/reports.db",
		},
		API: &APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: &logging.LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			Rotation:   false,
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}
