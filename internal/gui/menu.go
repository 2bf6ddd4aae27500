// Menu handler for application actions
package gui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
)

// MenuHandler handles menu actions and the file dialogs pages share
type MenuHandler struct {
	app *Application
}

func NewMenuHandler(app *Application) *MenuHandler {
	return &MenuHandler{app: app}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mh.openImage),
		fyne.NewMenuItem("Save Image...", mh.saveImage),
		fyne.NewMenuItem("Quick Save", mh.quickSave),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Copy as Data URI", mh.copyDataURI),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mh.app.Undo),
		fyne.NewMenuItem("Reset to Original", mh.app.Reset),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, editMenu, helpMenu)
}

// chooseImage shows an open dialog limited to readable formats and calls
// onPath with the chosen file.
func (mh *MenuHandler) chooseImage(onPath func(path string)) {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			mh.app.showError("File Dialog Error", err)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		onPath(reader.URI().Path())
	}, mh.app.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(imageio.ReadFormats()))
	fileDialog.Show()
}

func (mh *MenuHandler) chooseFolder(onPath func(path string)) {
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			mh.app.showError("Folder Dialog Error", err)
			return
		}
		if dir == nil {
			return
		}
		onPath(dir.Path())
	}, mh.app.window)
}

// chooseSavePath shows a save dialog limited to extensions.
func (mh *MenuHandler) chooseSavePath(name string, extensions []string, onPath func(path string)) {
	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			mh.app.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		// The loader writes by path, so the dialog writer is only closed.
		writer.Close()
		onPath(path)
	}, mh.app.window)

	fileDialog.SetFileName(name)
	fileDialog.SetFilter(storage.NewExtensionFileFilter(extensions))
	fileDialog.Show()
}

func (mh *MenuHandler) openImage() {
	mh.app.logger.Info("Opening file dialog for image selection")
	mh.chooseImage(func(path string) {
		mh.app.run(mh.app.statusLabel, "Loading "+path, func(context.Context) (string, error) {
			if err := mh.app.LoadImageFromPath(path); err != nil {
				return "", err
			}
			return "Loaded: " + path, nil
		}, nil)
	})
}

func (mh *MenuHandler) saveImage() {
	if !mh.app.pipeline.Session().HasImage() {
		mh.app.showError("No Image", core.ErrNoImage)
		return
	}

	mh.chooseSavePath("processed_image.png", imageio.WriteFormats(), func(path string) {
		if !imageio.IsWritable(path) {
			mh.app.showError("Unsupported Format", fmt.Errorf("cannot write %s", path))
			return
		}
		if err := mh.app.SaveCurrentImage(path); err != nil {
			mh.app.showError("Failed to Save Image", err)
			return
		}
		mh.app.updateStatusMessage("Saved: " + path)
	})
}

func (mh *MenuHandler) quickSave() {
	path, err := mh.app.QuickSave()
	if err != nil {
		mh.app.showError("Failed to Save Image", err)
		return
	}
	mh.app.showInfo("Image Saved", fmt.Sprintf("Image saved to:\n%s", path))
}

// copyDataURI puts the working image on the clipboard as a PNG data URI.
func (mh *MenuHandler) copyDataURI() {
	current, err := mh.app.pipeline.Session().Current()
	if err != nil {
		mh.app.showError("No Image", err)
		return
	}
	defer current.Close()

	uri, err := imageio.DataURI(current)
	if err != nil {
		mh.app.showError("Copy Failed", err)
		return
	}
	mh.app.window.Clipboard().SetContent(uri)
	mh.app.updateStatusMessage("Copied image as data URI")
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel(appTitle),
		widget.NewSeparator(),
		widget.NewLabel("Editing, enhancement, segmentation and restoration,"),
		widget.NewLabel("two-image operators, compression, feature matching"),
		widget.NewLabel("and panorama stitching, with PSNR/SSIM after every step."),
		widget.NewSeparator(),
		widget.NewLabel("Built with Go, Fyne and OpenCV"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.app.window)
	aboutDialog.Resize(fyne.NewSize(400, 260))
	aboutDialog.Show()
}
