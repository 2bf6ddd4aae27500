package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/metrics"
)

// Step is one algorithm application with its parameters
type Step struct {
	Algorithm  string                 `yaml:"algorithm"`
	Parameters map[string]interface{} `yaml:"params,omitempty"`
}

func (s Step) String() string {
	if len(s.Parameters) == 0 {
		return s.Algorithm
	}
	parts := make([]string, 0, len(s.Parameters))
	for k, v := range s.Parameters {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return s.Algorithm + ":" + strings.Join(parts, ",")
}

// ParseStep reads "name" or "name:key=value,key=value". Values parse as
// numbers, then the literals true and false, and otherwise stay strings.
func ParseStep(spec string) (Step, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(spec), ":")
	step := Step{Algorithm: strings.TrimSpace(name), Parameters: map[string]interface{}{}}
	if step.Algorithm == "" {
		return Step{}, fmt.Errorf("empty step %q", spec)
	}
	if !algorithms.IsValidAlgorithm(step.Algorithm) {
		return Step{}, fmt.Errorf("%w: %s", algorithms.ErrUnknownAlgorithm, step.Algorithm)
	}

	for _, pair := range strings.Split(rest, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return Step{}, fmt.Errorf("step %s: parameter %q is not key=value", step.Algorithm, pair)
		}
		step.Parameters[strings.TrimSpace(key)] = parseValue(strings.TrimSpace(raw))
	}

	if err := algorithms.ValidateParameters(step.Algorithm, step.Parameters); err != nil {
		return Step{}, fmt.Errorf("step %s: %w", step.Algorithm, err)
	}
	return step, nil
}

func parseValue(raw string) interface{} {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// NormalizeParams converts integer values, as decoded from YAML, to the
// float64 the algorithms expect.
func NormalizeParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case uint64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}

// RunSteps applies steps in order to a copy of input and returns the final
// image with per-step metrics keyed "<algorithm>_<metric>".
func RunSteps(ctx context.Context, input gocv.Mat, steps []Step, eval *metrics.Evaluator) (gocv.Mat, map[string]float64, error) {
	current := input.Clone()
	scores := make(map[string]float64)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			current.Close()
			return gocv.NewMat(), nil, err
		}

		result, err := algorithms.Apply(step.Algorithm, current, NormalizeParams(step.Parameters))
		if err != nil {
			current.Close()
			return gocv.NewMat(), nil, fmt.Errorf("step %d (%s): %w", i+1, step.Algorithm, err)
		}

		if eval != nil {
			for k, v := range eval.EvaluateStep(current, result, step.Algorithm) {
				scores[fmt.Sprintf("%s_%s", step.Algorithm, k)] = v
			}
		}

		current.Close()
		current = result
	}
	return current, scores, nil
}
