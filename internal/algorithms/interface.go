// Single-image operation registry used by the editor page and the CLI
package algorithms

import (
	"errors"
	"fmt"
	"sort"

	"gocv.io/x/gocv"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrEmptyInput       = errors.New("input image is empty")
)

// Algorithm defines the interface for image processing algorithms
type Algorithm interface {
	Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error)
	GetDefaultParams() map[string]interface{}
	GetName() string
	GetDescription() string
	Validate(params map[string]interface{}) error
	GetParameterInfo() []ParameterInfo
}

// ParameterInfo describes a parameter for UI generation
type ParameterInfo struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type" yaml:"type"` // "int", "float", "bool", "enum"
	Min         interface{} `json:"min,omitempty" yaml:"min,omitempty"`
	Max         interface{} `json:"max,omitempty" yaml:"max,omitempty"`
	Default     interface{} `json:"default" yaml:"default"`
	Description string      `json:"description" yaml:"description"`
	Options     []string    `json:"options,omitempty" yaml:"options,omitempty"` // For enum type
}

const (
	CategoryBasic        = "Basic"
	CategoryGeometry     = "Geometry"
	CategoryFilters      = "Filters"
	CategoryEdges        = "Edges"
	CategoryFrequency    = "Frequency"
	CategoryEnhancement  = "Enhancement"
	CategoryMorphology   = "Morphology"
	CategorySegmentation = "Segmentation"
	CategoryRestoration  = "Restoration"
)

var (
	algorithms = make(map[string]Algorithm)
	categories = make(map[string][]string)
)

func Register(name, category string, algorithm Algorithm) {
	if _, exists := algorithms[name]; !exists {
		categories[category] = append(categories[category], name)
	}
	algorithms[name] = algorithm
}

func Get(name string) (Algorithm, bool) {
	algorithm, exists := algorithms[name]
	return algorithm, exists
}

func Apply(name string, input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	algorithm, exists := algorithms[name]
	if !exists {
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	if err := algorithm.Validate(params); err != nil {
		return gocv.NewMat(), fmt.Errorf("%s: %w", name, err)
	}

	return algorithm.Apply(input, params)
}

func ValidateParameters(name string, params map[string]interface{}) error {
	algorithm, exists := algorithms[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}

	return algorithm.Validate(params)
}

func IsValidAlgorithm(name string) bool {
	_, exists := algorithms[name]
	return exists
}

// Names returns every registered algorithm id in lexical order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryOrder is the order pages and the CLI list categories in.
var CategoryOrder = []string{
	CategoryBasic,
	CategoryGeometry,
	CategoryFilters,
	CategoryEdges,
	CategoryFrequency,
	CategoryEnhancement,
	CategoryMorphology,
	CategorySegmentation,
	CategoryRestoration,
}

func GetAlgorithmsByCategory() map[string][]string {
	result := make(map[string][]string, len(categories))
	for category, names := range categories {
		result[category] = append([]string(nil), names...)
	}
	return result
}

func init() {
	Register("grayscale", CategoryBasic, NewGrayscale())
	Register("negative", CategoryBasic, NewNegative())
	Register("color_scale", CategoryBasic, NewColorScale())
	Register("brightness", CategoryBasic, NewBrightness())
	Register("contrast", CategoryBasic, NewContrast())
	Register("color_filter", CategoryBasic, NewColorFilter())
	Register("border", CategoryBasic, NewBorder())

	Register("scale", CategoryGeometry, NewScale())
	Register("translate", CategoryGeometry, NewTranslate())
	Register("crop", CategoryGeometry, NewCrop())
	Register("flip", CategoryGeometry, NewFlip())
	Register("rotate", CategoryGeometry, NewRotate())

	Register("mean", CategoryFilters, NewMeanFilter())
	Register("gaussian", CategoryFilters, NewGaussianFilter())
	Register("median", CategoryFilters, NewMedianFilter())
	Register("bilateral", CategoryFilters, NewBilateralFilter())
	Register("sharpen", CategoryFilters, NewSharpen())

	Register("sobel", CategoryEdges, NewSobel())
	Register("canny", CategoryEdges, NewCanny())
	Register("laplacian", CategoryEdges, NewLaplacian())

	Register("fft_spectrum", CategoryFrequency, NewFFTSpectrum())
	Register("low_pass", CategoryFrequency, NewFrequencyPass(false))
	Register("high_pass", CategoryFrequency, NewFrequencyPass(true))

	Register("histogram_equalization", CategoryEnhancement, NewHistogramEqualization())
	Register("contrast_stretching", CategoryEnhancement, NewContrastStretching())
	Register("gamma", CategoryEnhancement, NewGamma())

	Register("erosion", CategoryMorphology, NewErosion())
	Register("dilation", CategoryMorphology, NewDilation())
	Register("opening", CategoryMorphology, NewOpening())
	Register("closing", CategoryMorphology, NewClosing())

	Register("threshold", CategorySegmentation, NewGlobalThreshold())
	Register("adaptive_threshold", CategorySegmentation, NewAdaptiveThreshold())
	Register("otsu", CategorySegmentation, NewMultiOtsu())
	Register("niblack", CategorySegmentation, NewNiblack())
	Register("sauvola", CategorySegmentation, NewSauvola())

	Register("wiener", CategoryRestoration, NewWiener())
}
