// Sona Picture Processing desktop application

package main

import (
	"errors"
	"flag"
	"os"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"sona-picture-processing/internal/config"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/gui"
	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/journal"
	"sona-picture-processing/internal/system"
)

const (
	AppName    = "Sona Picture Processing"
	AppID      = "com.sona.picture-processing"
	AppVersion = "1.0.0"
)

func main() {
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	configPath := flag.String("config", config.DefaultFile, "Path to the YAML configuration file")
	flag.Parse()

	logger := initLogger(*debugMode)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
	}).Info("Starting " + AppName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if res, err := system.Probe(); err == nil {
		logger.WithField("host", res.String()).Debug("Host resources")
	}

	var recorder journal.Recorder
	store, err := journal.Open(cfg.Journal)
	switch {
	case errors.Is(err, journal.ErrDisabled):
		logger.Info("Operation journal disabled")
	case err != nil:
		logger.WithError(err).Warn("Operation journal unavailable, continuing without it")
	default:
		defer store.Close()
		recorder = store
	}

	session := core.NewSession(cfg.HistoryLimit)
	pipeline := core.NewPipeline(session, recorder, logger)
	loader := imageio.NewImageLoader(logger, cfg.PDFDPI)

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.DocumentIcon())
	myApp.Settings().SetTheme(theme.DefaultTheme())

	mainApp := gui.NewApplication(myApp, cfg, pipeline, loader, logger, *debugMode)
	if flag.NArg() > 0 {
		if err := mainApp.Open(flag.Arg(0)); err != nil {
			logger.WithError(err).Warn("Failed to open image from command line")
		}
	}
	mainApp.ShowAndRun()

	logger.Info("Application shutting down gracefully")
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
