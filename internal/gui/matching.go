// Matching page: ORB feature matches between the working and second image
package gui

import (
	"context"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/matching"
)

type matchingPage struct {
	basePage

	opts         matching.Options
	summaryLabel *widget.Label

	current   *ImageView
	secondary *ImageView
	result    *ImageView
}

func newMatchingPage(app *Application) *matchingPage {
	p := &matchingPage{
		basePage: newBasePage(app, "Matching",
			"Detect ORB features in the working image and a second image and draw the best matches. The working image is left unchanged.",
			theme.SearchIcon()),
		opts:      app.cfg.Matching,
		current:   NewImageView(thumbViewSize),
		secondary: NewImageView(thumbViewSize),
		result:    NewImageView(viewSize),
	}
	p.initializeUI()
	return p
}

func (p *matchingPage) initializeUI() {
	p.summaryLabel = widget.NewLabel("")
	p.summaryLabel.Wrapping = fyne.TextWrapWord

	match := widget.NewButtonWithIcon("Match", theme.ConfirmIcon(), p.match)
	match.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Second Image", "", widget.NewButtonWithIcon("Load...", theme.FolderOpenIcon(), func() {
			loadSecondary(p.app, p.status)
		})),
		sliderRow("Matches drawn", 1, 100, 1, float64(p.opts.MaxMatches), "%.0f", func(v float64) { p.opts.MaxMatches = int(v) }),
		match,
		widget.NewCard("Result", "", p.summaryLabel),
	)
	inputs := container.NewGridWithColumns(2,
		widget.NewCard("Working Image", "", p.current),
		widget.NewCard("Second Image", "", p.secondary),
	)
	views := container.NewVSplit(inputs, widget.NewCard("Matches", "", p.result))
	p.layout(controls, views)
}

func (p *matchingPage) match() {
	opts := p.opts
	var (
		summary string
		drawn   image.Image
	)
	p.app.run(p.status, "Matching", func(ctx context.Context) (string, error) {
		res, err := p.app.pipeline.Match(ctx, opts)
		if err != nil {
			return "", err
		}
		defer res.Close()
		if drawn, err = imageio.ToImage(res.Image); err != nil {
			return "", err
		}
		summary = res.Summary()
		return "Matching done", nil
	}, func() {
		p.result.SetImage(drawn)
		p.summaryLabel.SetText(summary)
	})
}

func (p *matchingPage) ImageChanged(current image.Image) {
	p.current.SetImage(current)
	p.secondary.SetImage(secondaryThumbnail(p.app))
}
