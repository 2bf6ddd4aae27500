// Parameter form generated from algorithm ParameterInfo
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/algorithms"
)

// ParamForm edits one algorithm's parameters. Values are float64 for
// numeric parameters, bool for flags and string for enums.
type ParamForm struct {
	container *fyne.Container
	values    map[string]interface{}
}

func NewParamForm() *ParamForm {
	return &ParamForm{
		container: container.NewVBox(),
		values:    make(map[string]interface{}),
	}
}

func (pf *ParamForm) Container() fyne.CanvasObject {
	return pf.container
}

// Values returns a copy of the current parameter values.
func (pf *ParamForm) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(pf.values))
	for k, v := range pf.values {
		out[k] = v
	}
	return out
}

// Build replaces the form with widgets for params, set to their defaults.
func (pf *ParamForm) Build(params []algorithms.ParameterInfo) {
	pf.container.RemoveAll()
	pf.values = make(map[string]interface{}, len(params))

	if len(params) == 0 {
		pf.container.Add(widget.NewLabel("No configurable parameters for this algorithm"))
		return
	}
	for _, param := range params {
		pf.values[param.Name] = param.Default
		pf.container.Add(widget.NewLabelWithStyle(param.Name, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
		pf.container.Add(pf.widgetFor(param))
		if param.Description != "" {
			desc := widget.NewLabel(param.Description)
			desc.Wrapping = fyne.TextWrapWord
			desc.Importance = widget.LowImportance
			pf.container.Add(desc)
		}
	}
	pf.container.Refresh()
}

func (pf *ParamForm) widgetFor(param algorithms.ParameterInfo) fyne.CanvasObject {
	name := param.Name
	switch param.Type {
	case "int", "float":
		lo, _ := param.Min.(float64)
		hi, _ := param.Max.(float64)
		def, _ := param.Default.(float64)
		format, step := "%.2f", 0.01
		if param.Type == "int" {
			format, step = "%.0f", 1
		} else if hi-lo > 10 {
			step = 1
		}

		valueLabel := widget.NewLabel(fmt.Sprintf(format, def))
		slider := widget.NewSlider(lo, hi)
		slider.Step = step
		slider.SetValue(def)
		slider.OnChanged = func(value float64) {
			valueLabel.SetText(fmt.Sprintf(format, value))
			pf.values[name] = value
		}
		return container.NewBorder(nil, nil, nil, valueLabel, slider)

	case "bool":
		def, _ := param.Default.(bool)
		check := widget.NewCheck("", func(checked bool) {
			pf.values[name] = checked
		})
		check.SetChecked(def)
		return check

	case "enum":
		sel := widget.NewSelect(param.Options, func(selected string) {
			pf.values[name] = selected
		})
		if def, ok := param.Default.(string); ok {
			sel.SetSelected(def)
		}
		return sel
	}
	return widget.NewLabel("Unsupported parameter type " + param.Type)
}
