// Compression page: RLE or DCT round trip with a size and quality report
package gui

import (
	"context"
	"fmt"
	"image"
	"os"

	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/compression"
)

type compressionPage struct {
	basePage

	opts        compression.Options
	method      compression.Method
	reportLabel *widget.Label
	saveButton  *widget.Button
	jpeg        []byte

	before *ImageView
	after  *ImageView
}

func newCompressionPage(app *Application) *compressionPage {
	p := &compressionPage{
		basePage: newBasePage(app, "Compression",
			"Compress the working image losslessly with run-length coding or lossily with the DCT, and compare sizes, PSNR and SSIM.",
			theme.DownloadIcon()),
		opts:   app.cfg.Compression,
		method: compression.RLE,
		before: NewImageView(viewSize),
		after:  NewImageView(viewSize),
	}
	p.initializeUI()
	return p
}

func (p *compressionPage) initializeUI() {
	method := widget.NewRadioGroup([]string{"RLE (lossless)", "DCT (lossy)"}, func(selected string) {
		if selected == "DCT (lossy)" {
			p.method = compression.DCT
		} else {
			p.method = compression.RLE
		}
	})
	method.SetSelected("RLE (lossless)")

	p.reportLabel = widget.NewLabel("")
	p.saveButton = widget.NewButtonWithIcon("Save JPEG...", theme.DocumentSaveIcon(), p.saveJPEG)
	p.saveButton.Disable()

	compress := widget.NewButtonWithIcon("Compress", theme.ConfirmIcon(), p.compress)
	compress.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Method", "", method),
		sliderRow("JPEG quality", 1, 100, 1, float64(p.opts.Quality), "%.0f", func(v float64) { p.opts.Quality = int(v) }),
		sliderRow("DCT coefficients kept", 0.05, 1, 0.05, p.opts.KeepFraction, "%.2f", func(v float64) { p.opts.KeepFraction = v }),
		compress,
		widget.NewCard("Report", "", p.reportLabel),
		p.saveButton,
	)
	views := container.NewGridWithColumns(2,
		widget.NewCard("Before", "", p.before),
		widget.NewCard("After", "", p.after),
	)
	p.layout(controls, views)
}

func (p *compressionPage) compress() {
	method, opts := p.method, p.opts
	var (
		summary string
		jpeg    []byte
		before  image.Image
	)
	p.app.run(p.status, "Compressing", func(ctx context.Context) (string, error) {
		current, err := p.app.pipeline.Session().Current()
		if err != nil {
			return "", err
		}
		before = p.app.thumbnail(current)
		current.Close()

		res, err := p.app.pipeline.Compress(ctx, method, opts)
		if err != nil {
			return "", err
		}
		defer res.Close()
		summary = res.Summary()
		jpeg = res.JPEG
		return fmt.Sprintf("Compressed with %s, ratio %.2fx", method, res.Ratio), nil
	}, func() {
		p.before.SetImage(before)
		p.reportLabel.SetText(summary)
		p.jpeg = jpeg
		p.saveButton.Enable()
	})
}

func (p *compressionPage) saveJPEG() {
	if len(p.jpeg) == 0 {
		return
	}
	data := p.jpeg
	p.app.menuHandler.chooseSavePath("compressed.jpg", []string{".jpg", ".jpeg"}, func(path string) {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			p.app.showError("Failed to Save JPEG", err)
			return
		}
		p.status.SetText("Saved " + path)
	})
}

func (p *compressionPage) ImageChanged(current image.Image) {
	p.after.SetImage(current)
}
