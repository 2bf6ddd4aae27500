package gui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

var (
	viewSize      = fyne.NewSize(480, 360)
	thumbViewSize = fyne.NewSize(200, 150)
)

// basePage carries what every page has: its card text and a status label
type basePage struct {
	app         *Application
	title       string
	description string
	icon        fyne.Resource
	status      *widget.Label
	content     fyne.CanvasObject
}

func newBasePage(app *Application, title, description string, icon fyne.Resource) basePage {
	status := widget.NewLabel("")
	status.Wrapping = fyne.TextWrapWord
	return basePage{
		app:         app,
		title:       title,
		description: description,
		icon:        icon,
		status:      status,
	}
}

func (p *basePage) Title() string              { return p.title }
func (p *basePage) Description() string        { return p.description }
func (p *basePage) Icon() fyne.Resource        { return p.icon }
func (p *basePage) Content() fyne.CanvasObject { return p.content }

// layout puts controls in a scrolling side panel next to views, with the
// status label under the controls.
func (p *basePage) layout(controls fyne.CanvasObject, views fyne.CanvasObject) {
	side := container.NewBorder(nil, widget.NewCard("Status", "", p.status), nil, nil,
		container.NewVScroll(controls))
	split := container.NewHSplit(side, views)
	split.SetOffset(0.28)
	p.content = split
}

// sliderRow is a labelled slider that shows its value with format.
func sliderRow(label string, lo, hi, step, value float64, format string, onChange func(float64)) fyne.CanvasObject {
	valueLabel := widget.NewLabel(fmt.Sprintf(format, value))
	slider := widget.NewSlider(lo, hi)
	slider.Step = step
	slider.SetValue(value)
	slider.OnChanged = func(v float64) {
		valueLabel.SetText(fmt.Sprintf(format, v))
		onChange(v)
	}
	return container.NewVBox(widget.NewLabel(label), container.NewBorder(nil, nil, nil, valueLabel, slider))
}

// formatScores renders metrics sorted by name; PSNR of identical images
// shows as inf.
func formatScores(scores map[string]float64) string {
	if len(scores) == 0 {
		return "No metrics (image size changed)"
	}
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		v := scores[name]
		switch {
		case math.IsInf(v, 1):
			lines = append(lines, fmt.Sprintf("%s: inf", strings.ToUpper(name)))
		case name == "psnr":
			lines = append(lines, fmt.Sprintf("PSNR: %.2f dB", v))
		default:
			lines = append(lines, fmt.Sprintf("%s: %.4f", strings.ToUpper(name), v))
		}
	}
	return strings.Join(lines, "\n")
}
