// Background removal page
package gui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/background"
)

type backgroundPage struct {
	basePage

	opts    background.Options
	current *ImageView
}

func newBackgroundPage(app *Application) *backgroundPage {
	p := &backgroundPage{
		basePage: newBasePage(app, "Background",
			"Whiten the background of scans and photos by thresholding or two-cluster k-means, optionally making it transparent.",
			theme.ColorPaletteIcon()),
		opts:    app.cfg.Background,
		current: NewImageView(viewSize),
	}
	p.initializeUI()
	return p
}

func (p *backgroundPage) initializeUI() {
	method := widget.NewRadioGroup([]string{string(background.Threshold), string(background.KMeans)}, func(selected string) {
		if m, err := background.ParseMethod(selected); err == nil {
			p.opts.Method = m
		}
	})
	method.SetSelected(string(p.opts.Method))

	transparent := widget.NewCheck("Make background transparent", func(checked bool) {
		p.opts.Transparent = checked
	})
	transparent.SetChecked(p.opts.Transparent)

	remove := widget.NewButtonWithIcon("Remove Background", theme.ConfirmIcon(), p.remove)
	remove.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Method", "", method),
		transparent,
		sliderRow("White level", 128, 255, 1, float64(p.opts.WhiteLevel), "%.0f", func(v float64) { p.opts.WhiteLevel = int(v) }),
		remove,
	)
	p.layout(controls, widget.NewCard("Working Image", "", p.current))
}

func (p *backgroundPage) remove() {
	opts := p.opts
	p.app.run(p.status, "Removing background", func(ctx context.Context) (string, error) {
		if _, err := p.app.pipeline.RemoveBackground(ctx, opts); err != nil {
			return "", err
		}
		return fmt.Sprintf("Background removed (%s)", opts.Method), nil
	}, nil)
}

func (p *backgroundPage) ImageChanged(current image.Image) {
	p.current.SetImage(current)
}
