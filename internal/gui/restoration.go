// Restoration page: mark damaged regions, or load a mask, and inpaint them
package gui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/restoration"
)

type restorationPage struct {
	basePage

	opts        restoration.Options
	regions     *core.Regions
	marksLabel  *widget.Label
	maskLabel   *widget.Label
	view        *ImageView
	maskPreview *ImageView
}

func newRestorationPage(app *Application) *restorationPage {
	regions := core.NewRegions()
	p := &restorationPage{
		basePage: newBasePage(app, "Restoration",
			"Repair scratches, stains and missing areas: mark them on the image or load a mask, then inpaint.",
			theme.MediaReplayIcon()),
		opts:        app.cfg.Restoration,
		regions:     regions,
		view:        NewMarkingView(viewSize, regions, app.logger),
		maskPreview: NewImageView(thumbViewSize),
	}
	p.initializeUI()
	return p
}

func (p *restorationPage) initializeUI() {
	p.marksLabel = widget.NewLabel("0 marked regions")
	p.maskLabel = widget.NewLabel("No mask loaded")
	p.view.SetRegionsChangedCallback(func(n int) {
		p.marksLabel.SetText(fmt.Sprintf("%d marked regions", n))
	})

	tool := widget.NewRadioGroup([]string{ToolRect, ToolStroke}, func(selected string) {
		if selected == "" {
			selected = ToolNone
		}
		p.view.SetTool(selected)
	})
	tool.Horizontal = true
	tool.SetSelected(ToolRect)

	method := widget.NewRadioGroup([]string{string(restoration.Telea), string(restoration.NavierStokes)}, func(selected string) {
		if m, err := restoration.ParseMethod(selected); err == nil {
			p.opts.Method = m
		}
	})
	method.SetSelected(string(p.opts.Method))

	inpaint := widget.NewButtonWithIcon("Inpaint", theme.ConfirmIcon(), p.inpaint)
	inpaint.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Marks", "", container.NewVBox(
			tool,
			sliderRow("Brush width", 1, 50, 1, 9, "%.0f", func(v float64) { p.view.SetBrush(int(v)) }),
			p.marksLabel,
			container.NewGridWithColumns(2,
				widget.NewButtonWithIcon("Undo Mark", theme.ContentUndoIcon(), func() {
					p.regions.Undo()
					p.view.RefreshRegions()
				}),
				widget.NewButtonWithIcon("Clear", theme.DeleteIcon(), p.clearMarks),
			),
		)),
		widget.NewCard("Mask", "", container.NewVBox(
			p.maskLabel,
			p.maskPreview,
			container.NewGridWithColumns(2,
				widget.NewButtonWithIcon("Load...", theme.FolderOpenIcon(), p.loadMask),
				widget.NewButtonWithIcon("Clear", theme.DeleteIcon(), p.clearMask),
			),
		)),
		widget.NewCard("Method", "", method),
		sliderRow("Radius", 1, 20, 1, p.opts.Radius, "%.0f", func(v float64) { p.opts.Radius = v }),
		inpaint,
	)
	p.layout(controls, widget.NewCard("Working Image", "Drag to mark damaged areas", p.view))
}

func (p *restorationPage) clearMarks() {
	p.regions.Clear()
	p.view.RefreshRegions()
}

func (p *restorationPage) loadMask() {
	p.app.menuHandler.chooseImage(func(path string) {
		p.app.run(p.status, "Loading mask", func(context.Context) (string, error) {
			mat, err := p.app.loader.Load(path)
			if err != nil {
				return "", err
			}
			defer mat.Close()
			if err := p.app.pipeline.Session().SetMask(mat); err != nil {
				return "", err
			}
			return "Mask: " + path, nil
		}, func() {
			p.maskLabel.SetText(path)
		})
	})
}

func (p *restorationPage) clearMask() {
	p.app.pipeline.Session().ClearMask()
	p.maskLabel.SetText("No mask loaded")
	p.maskPreview.SetImage(nil)
}

// inpaint repairs the marked regions when there are any, otherwise the
// loaded mask. Marks drawn while it runs are kept.
func (p *restorationPage) inpaint() {
	opts := p.opts
	submitted := p.regions.Snapshot()
	useRegions := submitted.Len() > 0
	p.app.run(p.status, "Inpainting", func(ctx context.Context) (string, error) {
		var err error
		if useRegions {
			_, err = p.app.pipeline.InpaintRegions(ctx, submitted, opts)
		} else {
			_, err = p.app.pipeline.Inpaint(ctx, opts)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Inpainted with %s, radius %.0f", opts.Method, opts.Radius), nil
	}, func() {
		if useRegions {
			p.regions.RemoveAll(submitted)
			p.view.RefreshRegions()
		}
	})
}

func (p *restorationPage) ImageChanged(current image.Image) {
	p.view.SetImage(current)
	if current == nil {
		p.clearMarks()
	}

	mask, err := p.app.pipeline.Session().Mask()
	if err != nil {
		p.maskPreview.SetImage(nil)
		return
	}
	defer mask.Close()
	p.maskPreview.SetImage(p.app.thumbnail(mask))
}
