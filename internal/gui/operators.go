// Operators page: arithmetic, bitwise and blending with a second image
package gui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/operators"
)

type operatorsPage struct {
	basePage

	opts         operators.Options
	opSelect     *widget.Select
	metricsLabel *widget.Label

	current   *ImageView
	secondary *ImageView
}

func newOperatorsPage(app *Application) *operatorsPage {
	p := &operatorsPage{
		basePage: newBasePage(app, "Operators",
			"Combine the working image with a second image: add, subtract, multiply, divide, AND, OR, XOR, NOT, blend and overlay.",
			theme.ContentAddIcon()),
		opts:      app.cfg.Operators,
		current:   NewImageView(viewSize),
		secondary: NewImageView(viewSize),
	}
	p.initializeUI()
	return p
}

func (p *operatorsPage) initializeUI() {
	names := make([]string, 0, len(operators.All()))
	for _, op := range operators.All() {
		names = append(names, string(op))
	}
	p.opSelect = widget.NewSelect(names, nil)
	p.opSelect.SetSelected(string(operators.Add))
	p.metricsLabel = widget.NewLabel("")

	blend := container.NewVBox(
		sliderRow("Alpha (working image weight)", 0, 1, 0.05, p.opts.Alpha, "%.2f", func(v float64) { p.opts.Alpha = v }),
		sliderRow("Beta (second image weight)", 0, 1, 0.05, p.opts.Beta, "%.2f", func(v float64) { p.opts.Beta = v }),
		sliderRow("Gamma (added offset)", -100, 100, 1, p.opts.Gamma, "%.0f", func(v float64) { p.opts.Gamma = v }),
		sliderRow("Divide brightness", 1, 10, 0.5, p.opts.Brightness, "%.1f", func(v float64) { p.opts.Brightness = v }),
	)

	apply := widget.NewButtonWithIcon("Apply", theme.ConfirmIcon(), p.apply)
	apply.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Second Image", "", widget.NewButtonWithIcon("Load...", theme.FolderOpenIcon(), p.loadSecondary)),
		widget.NewCard("Operator", "", p.opSelect),
		widget.NewCard("Blend", "", blend),
		apply,
		widget.NewCard("Quality Metrics", "", p.metricsLabel),
	)
	views := container.NewGridWithColumns(2,
		widget.NewCard("Working Image", "", p.current),
		widget.NewCard("Second Image", "", p.secondary),
	)
	p.layout(controls, views)
}

func (p *operatorsPage) loadSecondary() {
	loadSecondary(p.app, p.status)
}

func (p *operatorsPage) apply() {
	op, err := operators.Parse(p.opSelect.Selected)
	if err != nil {
		p.status.SetText("Error: " + err.Error())
		return
	}
	opts := p.opts
	var scores map[string]float64
	p.app.run(p.status, "Applying "+string(op), func(ctx context.Context) (string, error) {
		var err error
		scores, err = p.app.pipeline.ApplyOperator(ctx, op, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Applied %s", op), nil
	}, func() {
		p.metricsLabel.SetText(formatScores(scores))
	})
}

func (p *operatorsPage) ImageChanged(current image.Image) {
	p.current.SetImage(current)
	p.secondary.SetImage(secondaryThumbnail(p.app))
}

// loadSecondary asks for a file and stores it as the session's second image.
func loadSecondary(app *Application, status *widget.Label) {
	app.menuHandler.chooseImage(func(path string) {
		app.run(status, "Loading second image", func(context.Context) (string, error) {
			mat, err := app.loader.Load(path)
			if err != nil {
				return "", err
			}
			defer mat.Close()
			if err := app.pipeline.Session().SetSecondary(mat); err != nil {
				return "", err
			}
			return "Second image: " + path, nil
		}, nil)
	})
}

func secondaryThumbnail(app *Application) image.Image {
	mat, err := app.pipeline.Session().Secondary()
	if err != nil {
		return nil
	}
	defer mat.Close()
	return app.thumbnail(mat)
}
