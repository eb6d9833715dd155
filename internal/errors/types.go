package errors

import (
	"fmt"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 网络相关错误
	ErrorTypeNetwork ErrorType = iota
	ErrorTypeConnection
	ErrorTypeTimeout
	ErrorTypeRateLimit

	// 上游数据源错误
	ErrorTypeExplorer
	ErrorTypeRPC
	ErrorTypeParse

	// 请求与数据错误
	ErrorTypeValidation
	ErrorTypeSerialization

	// 系统相关错误
	ErrorTypeSystem
	ErrorTypeFileIO
	ErrorTypeConfig
	ErrorTypeStorage

	// 外部服务错误
	ErrorTypeMarketData
	ErrorTypeSentiment
	ErrorTypeKafka
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// 对外错误码：采集层每次失败归一到这五类之一
const (
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeUpstreamTimeout = "UPSTREAM_TIMEOUT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeParseError      = "PARSE_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
)

// TruthError 自定义错误类型
type TruthError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   interface{}            `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"cause,omitempty"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component"`
	Chain     string                 `json:"chain,omitempty"`
	Address   string                 `json:"address,omitempty"`
}

// Error 实现error接口
func (e *TruthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *TruthError) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断是否可重试
func (e *TruthError) IsRetryable() bool {
	return e.Retryable
}

// WithContext 添加上下文信息
func (e *TruthError) WithContext(key string, value interface{}) *TruthError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithInstance 添加链实例定位信息
func (e *TruthError) WithInstance(chain, address string) *TruthError {
	e.Chain = chain
	e.Address = address
	return e
}

// WithComponent 标记产生错误的组件
func (e *TruthError) WithComponent(component string) *TruthError {
	e.Component = component
	return e
}

// NewTruthError 创建新的错误
func NewTruthError(errorType ErrorType, severity ErrorSeverity, code, message string) *TruthError {
	return &TruthError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: determineRetryable(errorType, code),
	}
}

// WrapError 包装现有错误
func WrapError(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *TruthError {
	return &TruthError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Retryable: determineRetryable(errorType, code),
	}
}

// determineRetryable 根据错误类型判断是否可重试
// INVALID_REQUEST是调用方错误，任何类型下都不重试。
func determineRetryable(errorType ErrorType, code string) bool {
	if code == CodeInvalidRequest {
		return false
	}

	switch errorType {
	case ErrorTypeNetwork, ErrorTypeConnection, ErrorTypeTimeout:
		return true
	case ErrorTypeRateLimit:
		return true
	case ErrorTypeExplorer, ErrorTypeRPC:
		return true
	case ErrorTypeParse:
		// 上游返回畸形数据多为瞬时故障（截断响应、网关错误页）
		return true
	case ErrorTypeMarketData, ErrorTypeSentiment:
		return true
	case ErrorTypeKafka:
		return true
	default:
		return false
	}
}

// 预定义错误
var (
	// 网络错误
	ErrUpstreamTimeout = NewTruthError(
		ErrorTypeTimeout,
		SeverityMedium,
		CodeUpstreamTimeout,
		"上游请求超时",
	)

	ErrConnectionFailed = NewTruthError(
		ErrorTypeConnection,
		SeverityHigh,
		"CONNECTION_FAILED",
		"连接失败",
	)

	ErrRateLimited = NewTruthError(
		ErrorTypeRateLimit,
		SeverityMedium,
		CodeRateLimited,
		"请求频率超限",
	)

	// 上游数据源错误
	ErrExplorerFailed = NewTruthError(
		ErrorTypeExplorer,
		SeverityMedium,
		CodeUpstreamError,
		"区块浏览器API调用失败",
	)

	ErrRPCFailed = NewTruthError(
		ErrorTypeRPC,
		SeverityMedium,
		CodeUpstreamError,
		"链RPC调用失败",
	)

	ErrParseFailed = NewTruthError(
		ErrorTypeParse,
		SeverityMedium,
		CodeParseError,
		"上游响应解析失败",
	)

	// 请求错误
	ErrInvalidRequest = NewTruthError(
		ErrorTypeValidation,
		SeverityLow,
		CodeInvalidRequest,
		"请求参数无效",
	)

	// 数据错误
	ErrSerializationFailed = NewTruthError(
		ErrorTypeSerialization,
		SeverityMedium,
		"SERIALIZATION_FAILED",
		"数据序列化失败",
	)

	// 系统错误
	ErrFileIOFailed = NewTruthError(
		ErrorTypeFileIO,
		SeverityHigh,
		"FILE_IO_FAILED",
		"文件操作失败",
	)

	ErrConfigInvalid = NewTruthError(
		ErrorTypeConfig,
		SeverityCritical,
		"CONFIG_INVALID",
		"配置无效",
	)

	ErrArchiveFailed = NewTruthError(
		ErrorTypeStorage,
		SeverityHigh,
		"ARCHIVE_FAILED",
		"报告归档失败",
	)

	// 外部服务错误
	ErrKafkaProduceFailed = NewTruthError(
		ErrorTypeKafka,
		SeverityHigh,
		"KAFKA_PRODUCE_FAILED",
		"Kafka消息发送失败",
	)
)

// 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeNetwork:       "Network",
	ErrorTypeConnection:    "Connection",
	ErrorTypeTimeout:       "Timeout",
	ErrorTypeRateLimit:     "RateLimit",
	ErrorTypeExplorer:      "Explorer",
	ErrorTypeRPC:           "RPC",
	ErrorTypeParse:         "Parse",
	ErrorTypeValidation:    "Validation",
	ErrorTypeSerialization: "Serialization",
	ErrorTypeSystem:        "System",
	ErrorTypeFileIO:        "FileIO",
	ErrorTypeConfig:        "Config",
	ErrorTypeStorage:       "Storage",
	ErrorTypeMarketData:    "MarketData",
	ErrorTypeSentiment:     "Sentiment",
	ErrorTypeKafka:         "Kafka",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

// 严重级别字符串映射
var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}

// ErrorStats 错误统计
type ErrorStats struct {
	TotalErrors       int                   `json:"total_errors"`
	ErrorsByType      map[ErrorType]int     `json:"errors_by_type"`
	ErrorsBySeverity  map[ErrorSeverity]int `json:"errors_by_severity"`
	ErrorsByComponent map[string]int        `json:"errors_by_component"`
	RecentErrors      []*TruthError         `json:"recent_errors"`
	LastError         *TruthError           `json:"last_error"`
	LastErrorTime     time.Time             `json:"last_error_time"`
}

// NewErrorStats 创建错误统计
func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ErrorsByType:      make(map[ErrorType]int),
		ErrorsBySeverity:  make(map[ErrorSeverity]int),
		ErrorsByComponent: make(map[string]int),
		RecentErrors:      make([]*TruthError, 0),
	}
}

// RecordError 记录错误
func (es *ErrorStats) RecordError(err *TruthError) {
	es.TotalErrors++
	es.ErrorsByType[err.Type]++
	es.ErrorsBySeverity[err.Severity]++
	if err.Component != "" {
		es.ErrorsByComponent[err.Component]++
	}

	es.LastError = err
	es.LastErrorTime = err.Timestamp

	// 保留最近100个错误
	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > 100 {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate 获取错误率（错误/小时）
func (es *ErrorStats) GetErrorRate(duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-duration)
	recentCount := 0

	for _, err := range es.RecentErrors {
		if err.Timestamp.After(cutoff) {
			recentCount++
		}
	}

	hours := duration.Hours()
	if hours == 0 {
		return float64(recentCount)
	}

	return float64(recentCount) / hours
}
