// Stitching page: collect an ordered image list and join it into a panorama
package gui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/batch"
	"sona-picture-processing/internal/stitching"
	"sona-picture-processing/internal/system"
)

type stitchingPage struct {
	basePage

	opts       stitching.Options
	grid       *fyne.Container
	countLabel *widget.Label
	result     *ImageView
}

func newStitchingPage(app *Application) *stitchingPage {
	p := &stitchingPage{
		basePage: newBasePage(app, "Stitching",
			"Join an ordered list of overlapping photos or scans into one panorama.",
			theme.ViewFullScreenIcon()),
		opts:   app.cfg.Stitching,
		grid:   container.NewGridWrap(fyne.NewSize(thumbViewSize.Width, thumbViewSize.Height)),
		result: NewImageView(viewSize),
	}
	p.initializeUI()
	return p
}

func (p *stitchingPage) initializeUI() {
	p.countLabel = widget.NewLabel("No images")

	mode := widget.NewRadioGroup([]string{string(stitching.Panorama), string(stitching.Scans)}, func(selected string) {
		if m, err := stitching.ParseMode(selected); err == nil {
			p.opts.Mode = m
		}
	})
	mode.SetSelected(string(p.opts.Mode))

	stitch := widget.NewButtonWithIcon("Stitch", theme.ConfirmIcon(), p.stitch)
	stitch.Importance = widget.HighImportance

	controls := container.NewVBox(
		widget.NewCard("Images", "", container.NewVBox(
			p.countLabel,
			widget.NewButtonWithIcon("Add Image...", theme.ContentAddIcon(), p.addImage),
			widget.NewButtonWithIcon("Add Folder...", theme.FolderOpenIcon(), p.addFolder),
			widget.NewButtonWithIcon("Clear", theme.DeleteIcon(), p.clear),
		)),
		widget.NewCard("Mode", "", mode),
		sliderRow("Max input width", 400, 4000, 100, float64(p.opts.MaxWidth), "%.0f", func(v float64) { p.opts.MaxWidth = int(v) }),
		stitch,
	)
	views := container.NewVSplit(
		widget.NewCard("Image List", "", container.NewVScroll(p.grid)),
		widget.NewCard("Working Image", "", p.result),
	)
	p.layout(controls, views)
}

func (p *stitchingPage) addImage() {
	p.app.menuHandler.chooseImage(func(path string) {
		p.app.run(p.status, "Adding image", func(context.Context) (string, error) {
			mat, err := p.app.loader.Load(path)
			if err != nil {
				return "", err
			}
			defer mat.Close()
			if err := p.app.pipeline.Session().AddToList(mat); err != nil {
				return "", err
			}
			return "Added " + path, nil
		}, p.refreshList)
	})
}

// addFolder appends every readable image in a folder, in name order.
func (p *stitchingPage) addFolder() {
	p.app.menuHandler.chooseFolder(func(dir string) {
		p.app.run(p.status, "Adding folder", func(ctx context.Context) (string, error) {
			paths, err := batch.ListInputs(dir, batch.DefaultPattern)
			if err != nil {
				return "", err
			}
			mats, err := p.app.loader.LoadAll(ctx, paths, system.Workers(p.app.cfg.Workers))
			if err != nil {
				return "", err
			}
			defer func() {
				for _, m := range mats {
					m.Close()
				}
			}()
			session := p.app.pipeline.Session()
			for _, m := range mats {
				if err := session.AddToList(m); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("Added %d images from %s", len(mats), dir), nil
		}, p.refreshList)
	})
}

func (p *stitchingPage) clear() {
	p.app.pipeline.Session().ClearList()
	p.refreshList()
	p.status.SetText("Image list cleared")
}

func (p *stitchingPage) stitch() {
	opts := p.opts
	p.app.run(p.status, "Stitching", func(ctx context.Context) (string, error) {
		if err := p.app.pipeline.Stitch(ctx, opts); err != nil {
			return "", err
		}
		meta := p.app.pipeline.Session().Metadata()
		return fmt.Sprintf("Panorama %dx%d", meta.Width, meta.Height), nil
	}, nil)
}

// refreshList redraws the thumbnail grid. UI thread only.
func (p *stitchingPage) refreshList() {
	list := p.app.pipeline.Session().List()
	defer func() {
		for _, m := range list {
			m.Close()
		}
	}()

	p.grid.RemoveAll()
	for _, m := range list {
		img := p.app.thumbnail(m)
		if img == nil {
			continue
		}
		thumb := canvas.NewImageFromImage(img)
		thumb.FillMode = canvas.ImageFillContain
		p.grid.Add(thumb)
	}
	p.grid.Refresh()
	p.countLabel.SetText(fmt.Sprintf("%d images", len(list)))
}

func (p *stitchingPage) ImageChanged(current image.Image) {
	p.result.SetImage(current)
}
