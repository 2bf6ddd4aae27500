// Image quality metrics used to score every operation against its input
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gocv.io/x/gocv"
)

var (
	ErrEmptyImage   = errors.New("empty images")
	ErrSizeMismatch = errors.New("image dimensions mismatch")
)

// Metric defines the interface for quality metrics
type Metric interface {
	// Calculate computes the metric value
	Calculate(original, processed gocv.Mat) (float64, error)

	GetName() string
	GetDescription() string

	// GetRange returns the practical value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate better quality
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with every default metric registered
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("psnr", NewPSNR())
	e.Register("ssim", NewSSIM())
	e.Register("mse", NewMSE())
	e.Register("f_measure", NewFMeasure())
	e.Register("contrast_ratio", NewContrastRatio())
	e.Register("sharpness", NewSharpness())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names lists the registered metric names in lexical order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, original, processed gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(original, processed)
}

// CalculateAll calculates every registered metric, skipping those that fail
func (e *Evaluator) CalculateAll(original, processed gocv.Mat) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(original, processed); err == nil {
			results[name] = value
		}
	}
	return results
}

func (e *Evaluator) CalculatePSNR(original, processed gocv.Mat) (float64, error) {
	return e.Calculate("psnr", original, processed)
}

func (e *Evaluator) CalculateSSIM(original, processed gocv.Mat) (float64, error) {
	return e.Calculate("ssim", original, processed)
}

// EvaluateStep scores one operation. PSNR and SSIM are always attempted;
// segmentation, smoothing and morphology steps get one extra metric each.
func (e *Evaluator) EvaluateStep(before, after gocv.Mat, stepName string) map[string]float64 {
	metrics := make(map[string]float64)

	if psnr, err := e.CalculatePSNR(before, after); err == nil {
		metrics["psnr"] = psnr
	}
	if ssim, err := e.CalculateSSIM(before, after); err == nil {
		metrics["ssim"] = ssim
	}

	switch stepName {
	case "threshold", "adaptive_threshold", "otsu", "niblack", "sauvola":
		if fMeasure, err := e.Calculate("f_measure", before, after); err == nil {
			metrics["f_measure"] = fMeasure
		}
	case "mean", "gaussian", "median", "bilateral", "wiener":
		if contrast, err := e.Calculate("contrast_ratio", before, after); err == nil {
			metrics["contrast_preservation"] = contrast
		}
	case "erosion", "dilation", "opening", "closing", "sharpen":
		if sharpness, err := e.Calculate("sharpness", before, after); err == nil {
			metrics["edge_preservation"] = sharpness
		}
	}

	return metrics
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Range        [2]float64 `json:"range"`
	HigherBetter bool       `json:"higher_better"`
}

func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo, len(e.metrics))
	for name, metric := range e.metrics {
		lo, hi := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{lo, hi},
			HigherBetter: metric.IsHigherBetter(),
		}
	}
	return info
}

// QualityReport contains comprehensive quality assessment
type QualityReport struct {
	OverallScore float64            `json:"overall_score"`
	Metrics      map[string]float64 `json:"metrics"`
	Analysis     QualityAnalysis    `json:"analysis"`
	Timestamp    string             `json:"timestamp"`
}

// QualityAnalysis provides interpretation of metrics
type QualityAnalysis struct {
	QualityLevel string   `json:"quality_level"` // "excellent", "good", "fair", "poor"
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
}

// GenerateReport scores processed against original
func (e *Evaluator) GenerateReport(original, processed gocv.Mat) QualityReport {
	metrics := e.CalculateAll(original, processed)

	return QualityReport{
		OverallScore: e.calculateOverallScore(metrics),
		Metrics:      metrics,
		Analysis:     e.analyzeQuality(metrics),
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
	}
}

// calculateOverallScore is a weighted average of normalized metrics, in percent.
func (e *Evaluator) calculateOverallScore(metrics map[string]float64) float64 {
	// Ratio metrics are centred on 1 and do not normalize onto a score.
	weights := map[string]float64{
		"psnr":      0.4,
		"ssim":      0.4,
		"f_measure": 0.2,
	}

	totalWeight := 0.0
	weightedSum := 0.0
	for name, weight := range weights {
		if value, exists := metrics[name]; exists {
			weightedSum += e.normalizeMetric(name, value) * weight
			totalWeight += weight
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return (weightedSum / totalWeight) * 100
}

// normalizeMetric maps a metric value to 0..1, inverting lower-is-better metrics.
func (e *Evaluator) normalizeMetric(name string, value float64) float64 {
	metric, exists := e.metrics[name]
	if !exists {
		return 0
	}

	lo, hi := metric.GetRange()
	if hi == lo {
		return 1.0
	}
	value = min(max(value, lo), hi)

	normalized := (value - lo) / (hi - lo)
	if !metric.IsHigherBetter() {
		normalized = 1.0 - normalized
	}
	return normalized
}

func (e *Evaluator) analyzeQuality(metrics map[string]float64) QualityAnalysis {
	analysis := QualityAnalysis{
		QualityLevel: QualityLevel(e.calculateOverallScore(metrics)),
		Issues:       make([]string, 0),
		Suggestions:  make([]string, 0),
	}

	if psnr, exists := metrics["psnr"]; exists && psnr < 20 {
		analysis.Issues = append(analysis.Issues, "Low PSNR indicates heavy distortion")
		analysis.Suggestions = append(analysis.Suggestions, "Use milder parameters or a higher JPEG quality")
	}
	if ssim, exists := metrics["ssim"]; exists && ssim < 0.7 {
		analysis.Issues = append(analysis.Issues, "Low SSIM indicates poor structural similarity")
		analysis.Suggestions = append(analysis.Suggestions, "Adjust processing parameters to preserve image structure")
	}
	if fMeasure, exists := metrics["f_measure"]; exists && fMeasure < 0.8 {
		analysis.Issues = append(analysis.Issues, "Low F-measure indicates poor foreground/background separation")
		analysis.Suggestions = append(analysis.Suggestions, "Try a local threshold or a different window size")
	}

	return analysis
}

// QualityLevel buckets an overall score.
func QualityLevel(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}
