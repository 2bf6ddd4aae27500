package algorithms

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// descriptor carries the metadata shared by every algorithm. Embedding it
// gives an algorithm everything but Apply.
type descriptor struct {
	name        string
	description string
	params      []ParameterInfo
}

func (d descriptor) GetName() string {
	return d.name
}

func (d descriptor) GetDescription() string {
	return d.description
}

func (d descriptor) GetParameterInfo() []ParameterInfo {
	out := make([]ParameterInfo, len(d.params))
	copy(out, d.params)
	return out
}

func (d descriptor) GetDefaultParams() map[string]interface{} {
	defaults := make(map[string]interface{}, len(d.params))
	for _, p := range d.params {
		defaults[p.Name] = p.Default
	}
	return defaults
}

// Validate checks numeric ranges, enum options and value types against the
// parameter table. Unknown keys are ignored.
func (d descriptor) Validate(params map[string]interface{}) error {
	for _, p := range d.params {
		val, ok := params[p.Name]
		if !ok {
			continue
		}

		switch p.Type {
		case "int", "float":
			v, ok := val.(float64)
			if !ok {
				return fmt.Errorf("%s must be a number", p.Name)
			}
			if math.IsNaN(v) {
				return fmt.Errorf("%s must be a number", p.Name)
			}
			lo, hasLo := p.Min.(float64)
			hi, hasHi := p.Max.(float64)
			if (hasLo && v < lo) || (hasHi && v > hi) {
				return fmt.Errorf("%s must be between %g and %g", p.Name, lo, hi)
			}
		case "bool":
			if _, ok := val.(bool); !ok {
				return fmt.Errorf("%s must be true or false", p.Name)
			}
		case "enum":
			v, ok := val.(string)
			if !ok {
				return fmt.Errorf("%s must be one of %v", p.Name, p.Options)
			}
			found := false
			for _, option := range p.Options {
				if option == v {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%s must be one of %v", p.Name, p.Options)
			}
		}
	}
	return nil
}

func intParam(params map[string]interface{}, name string, def int) int {
	if val, ok := params[name]; ok {
		if v, ok := val.(float64); ok {
			return int(v)
		}
	}
	return def
}

func floatParam(params map[string]interface{}, name string, def float64) float64 {
	if val, ok := params[name]; ok {
		if v, ok := val.(float64); ok {
			return v
		}
	}
	return def
}

func stringParam(params map[string]interface{}, name, def string) string {
	if val, ok := params[name]; ok {
		if v, ok := val.(string); ok {
			return v
		}
	}
	return def
}

func boolParam(params map[string]interface{}, name string, def bool) bool {
	if val, ok := params[name]; ok {
		if v, ok := val.(bool); ok {
			return v
		}
	}
	return def
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// oddKernel forces a kernel size to the next odd value, as OpenCV requires.
func oddKernel(size int) int {
	if size < 1 {
		return 1
	}
	if size%2 == 0 {
		return size + 1
	}
	return size
}

func intInfo(name string, lo, hi, def float64, description string) ParameterInfo {
	return ParameterInfo{Name: name, Type: "int", Min: lo, Max: hi, Default: def, Description: description}
}

func floatInfo(name string, lo, hi, def float64, description string) ParameterInfo {
	return ParameterInfo{Name: name, Type: "float", Min: lo, Max: hi, Default: def, Description: description}
}

func enumInfo(name string, options []string, def, description string) ParameterInfo {
	return ParameterInfo{Name: name, Type: "enum", Options: options, Default: def, Description: description}
}

func boolInfo(name string, def bool, description string) ParameterInfo {
	return ParameterInfo{Name: name, Type: "bool", Default: def, Description: description}
}
