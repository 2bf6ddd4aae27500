// Main window: a home page of cards plus one tab per tool page, sharing a
// single working session
package gui

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/config"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
)

const appTitle = "Sona Picture Processing"

// Page is one tab of the main window
type Page interface {
	Title() string
	Description() string
	Icon() fyne.Resource
	Content() fyne.CanvasObject
	// ImageChanged runs on the UI thread after the working image changed;
	// current is nil when no image is loaded.
	ImageChanged(current image.Image)
}

type Application struct {
	app       fyne.App
	window    fyne.Window
	logger    logrus.FieldLogger
	debugMode bool

	cfg      *config.Config
	pipeline *core.Pipeline
	loader   *imageio.ImageLoader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	menuHandler *MenuHandler
	tabs        *container.AppTabs
	pages       []Page
	statusLabel *widget.Label
	infoLabel   *widget.Label
}

func NewApplication(app fyne.App, cfg *config.Config, pipeline *core.Pipeline, loader *imageio.ImageLoader, logger logrus.FieldLogger, debugMode bool) *Application {
	window := app.NewWindow(appTitle)
	window.Resize(fyne.NewSize(1400, 900))
	window.CenterOnScreen()

	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		app:       app,
		window:    window,
		logger:    logger,
		debugMode: debugMode,
		cfg:       cfg,
		pipeline:  pipeline,
		loader:    loader,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.initializeGUI()
	a.setupLayout()
	return a
}

func (a *Application) initializeGUI() {
	a.statusLabel = widget.NewLabel("Open an image to start")
	a.infoLabel = widget.NewLabel("")
	a.menuHandler = NewMenuHandler(a)

	a.pages = []Page{
		newEditorPage(a),
		newOperatorsPage(a),
		newStitchingPage(a),
		newCompressionPage(a),
		newBackgroundPage(a),
		newRestorationPage(a),
		newMatchingPage(a),
	}
}

func (a *Application) setupLayout() {
	a.tabs = container.NewAppTabs(container.NewTabItemWithIcon("Home", theme.HomeIcon(), a.homeContent()))
	for _, p := range a.pages {
		a.tabs.Append(container.NewTabItemWithIcon(p.Title(), p.Icon(), p.Content()))
	}
	a.tabs.SetTabLocation(container.TabLocationLeading)

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), a.menuHandler.openImage),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), a.menuHandler.saveImage),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), a.Undo),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), a.Reset),
	)
	statusBar := container.NewBorder(nil, nil, nil, a.infoLabel, a.statusLabel)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(container.NewBorder(toolbar, statusBar, nil, nil, a.tabs))
}

// homeContent lists a card per page with a button that opens it.
func (a *Application) homeContent() fyne.CanvasObject {
	cards := make([]fyne.CanvasObject, 0, len(a.pages))
	for i, p := range a.pages {
		index := i + 1
		open := widget.NewButtonWithIcon("Open", p.Icon(), func() {
			a.tabs.SelectIndex(index)
		})
		desc := widget.NewLabel(p.Description())
		desc.Wrapping = fyne.TextWrapWord
		cards = append(cards, widget.NewCard(p.Title(), "", container.NewBorder(nil, open, nil, nil, desc)))
	}
	heading := widget.NewLabelWithStyle(appTitle, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	return container.NewBorder(heading, nil, nil, nil,
		container.NewVScroll(container.NewGridWrap(fyne.NewSize(300, 170), cards...)))
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.cancel()
	a.wg.Wait()
	a.pipeline.Session().Close()
}

// run executes work off the UI thread. status shows progress, then the
// returned message or error; after, when set, runs on the UI thread on
// success. The working image views are refreshed either way.
func (a *Application) run(status *widget.Label, action string, work func(ctx context.Context) (string, error), after func()) {
	status.SetText(action + "...")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		msg, err := work(a.ctx)
		fyne.Do(func() {
			if err != nil {
				a.logger.WithError(err).WithField("action", action).Warn("Action failed")
				status.SetText("Error: " + err.Error())
			} else {
				status.SetText(msg)
				if after != nil {
					after()
				}
			}
			a.refreshImage()
		})
	}()
}

// wait blocks until every started action has finished.
func (a *Application) wait() {
	a.wg.Wait()
}

func (a *Application) updateStatusMessage(message string) {
	a.statusLabel.SetText(message)
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.updateStatusMessage(fmt.Sprintf("Error: %s", err.Error()))
}

func (a *Application) showInfo(title, message string) {
	a.logger.WithField("message", message).Info(title)
	dialog.ShowInformation(title, message, a.window)
}

// refreshImage pushes the working image to every page. UI thread only.
func (a *Application) refreshImage() {
	session := a.pipeline.Session()
	if !session.HasImage() {
		a.infoLabel.SetText("")
		for _, p := range a.pages {
			p.ImageChanged(nil)
		}
		return
	}

	current, err := session.Current()
	if err != nil {
		a.logger.WithError(err).Warn("Failed to read working image")
		return
	}
	defer current.Close()
	img, err := imageio.ToImage(current)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to convert working image")
		return
	}

	meta := session.Metadata()
	a.infoLabel.SetText(fmt.Sprintf("%s  %dx%d  %d ch  undo %d",
		filepath.Base(session.SourcePath()), meta.Width, meta.Height, meta.Channels, session.HistoryLen()))
	for _, p := range a.pages {
		p.ImageChanged(img)
	}
}

// LoadImageFromPath replaces the working image with the file at path.
func (a *Application) LoadImageFromPath(path string) error {
	mat, err := a.loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	defer mat.Close()

	if err := core.ValidateImage(mat); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}
	if err := a.pipeline.Session().Load(mat, path); err != nil {
		return fmt.Errorf("failed to set image: %w", err)
	}

	a.logger.WithField("path", path).Info("Image loaded successfully")
	return nil
}

// Open loads path and shows it. Call it on the UI thread or before ShowAndRun.
func (a *Application) Open(path string) error {
	if err := a.LoadImageFromPath(path); err != nil {
		return err
	}
	a.refreshImage()
	a.updateStatusMessage("Loaded: " + path)
	return nil
}

// SaveCurrentImage writes the working image to path.
func (a *Application) SaveCurrentImage(path string) error {
	current, err := a.pipeline.Session().Current()
	if err != nil {
		return err
	}
	defer current.Close()

	if err := a.loader.Save(current, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	a.logger.WithField("path", path).Info("Image saved successfully")
	return nil
}

// QuickSave writes the working image to the output directory under a
// generated name and returns the path.
func (a *Application) QuickSave() (string, error) {
	path := filepath.Join(a.cfg.OutputDir, imageio.ResultName("sona", ".png"))
	return path, a.SaveCurrentImage(path)
}

func (a *Application) Undo() {
	if err := a.pipeline.Session().Undo(); err != nil {
		a.updateStatusMessage(err.Error())
		return
	}
	a.updateStatusMessage("Undone")
	a.refreshImage()
}

func (a *Application) Reset() {
	if err := a.pipeline.Session().Reset(); err != nil {
		a.updateStatusMessage(err.Error())
		return
	}
	a.updateStatusMessage("Reset to original image")
	a.refreshImage()
}

// thumbnail renders mat at the configured thumbnail size, or nil.
func (a *Application) thumbnail(mat gocv.Mat) image.Image {
	img, err := imageio.Thumbnail(mat, a.cfg.ThumbnailSize)
	if err != nil {
		a.logger.WithError(err).Debug("Thumbnail failed")
		return nil
	}
	return img
}
