// Editor page: apply registered algorithms one at a time with undo
package gui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/metrics"
)

type editorPage struct {
	basePage

	byCategory      map[string][]string
	categorySelect  *widget.Select
	algorithmSelect *widget.Select
	descLabel       *widget.Label
	form            *ParamForm
	metricsLabel    *widget.Label
	applyButton     *widget.Button
	opacity         float64

	original *ImageView
	current  *ImageView
}

func newEditorPage(app *Application) *editorPage {
	p := &editorPage{
		basePage: newBasePage(app, "Editor",
			"Apply single-image operations by category: basic edits, geometry, filters, edges, frequency, enhancement, morphology, segmentation and restoration.",
			theme.DocumentCreateIcon()),
		byCategory: algorithms.GetAlgorithmsByCategory(),
		form:       NewParamForm(),
		original:   NewImageView(viewSize),
		current:    NewImageView(viewSize),
		opacity:    1,
	}
	p.initializeUI()
	return p
}

func (p *editorPage) initializeUI() {
	var categories []string
	for _, c := range algorithms.CategoryOrder {
		if len(p.byCategory[c]) > 0 {
			categories = append(categories, c)
		}
	}

	p.descLabel = widget.NewLabel("")
	p.descLabel.Wrapping = fyne.TextWrapWord
	p.metricsLabel = widget.NewLabel("")

	p.algorithmSelect = widget.NewSelect(nil, p.onAlgorithmSelected)
	p.algorithmSelect.PlaceHolder = "Choose an algorithm..."
	p.categorySelect = widget.NewSelect(categories, p.onCategorySelected)
	p.categorySelect.PlaceHolder = "Choose a category..."

	p.applyButton = widget.NewButtonWithIcon("Apply", theme.ConfirmIcon(), p.apply)
	p.applyButton.Importance = widget.HighImportance
	p.applyButton.Disable()

	controls := container.NewVBox(
		widget.NewCard("Algorithm", "", container.NewVBox(p.categorySelect, p.algorithmSelect, p.descLabel)),
		widget.NewCard("Parameters", "", p.form.Container()),
		sliderRow("Strength", 0, 1, 0.05, p.opacity, "%.2f", func(v float64) { p.opacity = v }),
		p.applyButton,
		container.NewGridWithColumns(2,
			widget.NewButtonWithIcon("Undo", theme.ContentUndoIcon(), p.app.Undo),
			widget.NewButtonWithIcon("Reset", theme.ViewRefreshIcon(), p.app.Reset),
		),
		widget.NewButtonWithIcon("Quality Report", theme.InfoIcon(), p.report),
		widget.NewCard("Quality Metrics", "", p.metricsLabel),
	)

	views := container.NewVSplit(
		widget.NewCard("Original", "", p.original),
		widget.NewCard("Current", "", p.current),
	)
	p.layout(controls, views)

	if len(categories) > 0 {
		p.categorySelect.SetSelected(categories[0])
	}
}

func (p *editorPage) onCategorySelected(category string) {
	p.algorithmSelect.Options = p.byCategory[category]
	p.algorithmSelect.ClearSelected()
	if len(p.algorithmSelect.Options) > 0 {
		p.algorithmSelect.SetSelected(p.algorithmSelect.Options[0])
	}
	p.algorithmSelect.Refresh()
}

func (p *editorPage) onAlgorithmSelected(name string) {
	algorithm, ok := algorithms.Get(name)
	if !ok {
		p.applyButton.Disable()
		return
	}
	p.descLabel.SetText(algorithm.GetDescription())
	p.form.Build(algorithm.GetParameterInfo())
	p.applyButton.Enable()
}

func (p *editorPage) apply() {
	name := p.algorithmSelect.Selected
	if name == "" {
		p.status.SetText("Choose an algorithm first")
		return
	}
	params := p.form.Values()
	opacity := p.opacity
	var scores map[string]float64
	p.app.run(p.status, "Applying "+name, func(ctx context.Context) (string, error) {
		var err error
		if opacity < 1 {
			scores, err = p.app.pipeline.ApplyLayer(ctx, core.Layer{Algorithm: name, Parameters: params, Opacity: opacity})
		} else {
			scores, err = p.app.pipeline.ApplyAlgorithm(ctx, name, params)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Applied %s", name), nil
	}, func() {
		p.metricsLabel.SetText(formatScores(scores))
	})
}

// report scores the working image against the original.
func (p *editorPage) report() {
	var report metrics.QualityReport
	p.app.run(p.status, "Scoring", func(ctx context.Context) (string, error) {
		session := p.app.pipeline.Session()
		original, err := session.Original()
		if err != nil {
			return "", err
		}
		defer original.Close()
		current, err := session.Current()
		if err != nil {
			return "", err
		}
		defer current.Close()
		if original.Cols() != current.Cols() || original.Rows() != current.Rows() {
			return "", fmt.Errorf("%w: the working image no longer matches the original size", metrics.ErrSizeMismatch)
		}
		report = metrics.NewEvaluator().GenerateReport(original, current)
		return fmt.Sprintf("Quality %s (%.0f%%)", report.Analysis.QualityLevel, report.OverallScore), nil
	}, func() {
		p.metricsLabel.SetText(formatScores(report.Metrics))
	})
}

func (p *editorPage) ImageChanged(current image.Image) {
	p.current.SetImage(current)
	if current == nil {
		p.original.SetImage(nil)
		return
	}
	original, err := p.app.pipeline.Session().Original()
	if err != nil {
		return
	}
	defer original.Close()
	img, err := imageio.ToImage(original)
	if err != nil {
		return
	}
	p.original.SetImage(img)
}

var _ Page = (*editorPage)(nil)
