package report

import (
	"time"

	"tokentruth/internal/fetcher"
	"tokentruth/internal/truth"
	"tokentruth/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Assembler 将采集结果装配成完整的分析报告
// 分类与评分都是纯函数，装配器只负责编排与信封字段。
type Assembler struct {
	scorer *truth.Scorer
	logger *logrus.Logger
}

// NewAssembler 创建报告装配器
func NewAssembler(weights truth.ScoringWeights, logger *logrus.Logger) *Assembler {
	return &Assembler{
		scorer: truth.NewScorer(weights),
		logger: logger,
	}
}

// Assemble 装配单次请求的分析报告
func (a *Assembler) Assemble(req *models.TruthRequest, fetched *fetcher.Result) *models.TruthReport {
	proven, instanceErrors := truth.Classify(req.Instances, fetched.Outcomes)

	pairs := a.scorer.ScoreEquivalence(proven)
	if pairs == nil {
		pairs = []models.CrossChainPair{}
	}

	warnings := append([]string{}, fetched.Warnings...)
	if len(req.Instances) >= 2 && len(proven) < 2 {
		warnings = append(warnings,
			"cross-chain equivalence not computed: fewer than 2 instances classified successfully")
	}

	report := &models.TruthReport{
		RequestID: uuid.NewString(),
		Token:     req.Token,
		AsOf:      time.Now().UTC(),
		Data: models.TruthData{
			Proven:   models.ProvenSection{Instances: proven},
			Inferred: models.InferredSection{CrossChainEquivalence: pairs},
		},
		Evidence: append([]models.Evidence{}, fetched.Evidence...),
		Warnings: warnings,
		Errors:   append([]models.InstanceError{}, instanceErrors...),
	}

	a.logger.WithFields(logrus.Fields{
		"request_id": report.RequestID,
		"symbol":     req.Token.Symbol,
		"instances":  len(proven),
		"errors":     len(instanceErrors),
		"pairs":      len(pairs),
	}).Info("分析报告装配完成")

	return report
}
