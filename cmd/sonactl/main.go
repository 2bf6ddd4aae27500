package main

import (
	"errors"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"sona-picture-processing/internal/config"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/journal"
)

const version = "v1.0.0"

// environment is what Before builds for every command
type environment struct {
	cfg    *config.Config
	logger *log.Logger
	loader *imageio.ImageLoader
	store  *journal.Store
}

func (e *environment) recorder() journal.Recorder {
	if e.store == nil {
		return nil
	}
	return e.store
}

// newPipeline returns a pipeline over a fresh session; the caller closes
// the session.
func (e *environment) newPipeline() *core.Pipeline {
	return core.NewPipeline(core.NewSession(e.cfg.HistoryLimit), e.recorder(), e.logger)
}

func init() {
	log.SetFormatter(&log.TextFormatter{
		ForceQuote:      true,
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	log.SetOutput(os.Stderr)
}

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	app := newApp(&environment{logger: log.StandardLogger()})
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func newApp(env *environment) *cli.App {
	app := &cli.App{
		Name:    "sonactl",
		Usage:   "batch and scripted picture processing",
		Version: version,
		// --op and --rect values carry their own commas.
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML configuration file",
				Value:       config.DefaultFile,
				DefaultText: config.DefaultFile,
			},
			&cli.StringFlag{
				Name:        "loglevel",
				Aliases:     []string{"l"},
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Value:       "info",
				DefaultText: "info",
			},
			&cli.StringFlag{
				Name:    "journal",
				Aliases: []string{"j"},
				Usage:   "journal backend: a sqlite file, postgres, or none (overrides the configuration)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "batch workers (0 sizes from the host)",
			},
		},

		Before: func(c *cli.Context) error {
			switch c.String("loglevel") {
			case "debug":
				log.SetLevel(log.DebugLevel)
			case "info":
				log.SetLevel(log.InfoLevel)
			case "warn":
				log.SetLevel(log.WarnLevel)
			case "error":
				log.SetLevel(log.ErrorLevel)
			case "fatal":
				log.SetLevel(log.FatalLevel)
			case "panic":
				log.SetLevel(log.PanicLevel)
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			switch j := c.String("journal"); j {
			case "":
			case "none", "postgres":
				cfg.Journal.Driver = j
			default:
				cfg.Journal.Driver = "sqlite"
				cfg.Journal.Path = j
			}
			if c.IsSet("workers") {
				cfg.Workers = c.Int("workers")
			}
			env.cfg = cfg
			env.loader = imageio.NewImageLoader(env.logger, cfg.PDFDPI)

			store, err := journal.Open(cfg.Journal)
			switch {
			case errors.Is(err, journal.ErrDisabled):
			case err != nil:
				log.WithError(err).Warnln("journal unavailable, continuing without it")
			default:
				env.store = store
			}
			return nil
		},

		After: func(c *cli.Context) error {
			if env.store != nil {
				return env.store.Close()
			}
			return nil
		},

		Commands: []*cli.Command{
			listCommand(env),
			applyCommand(env),
			operateCommand(env),
			compressCommand(env),
			decompressCommand(env),
			matchCommand(env),
			stitchCommand(env),
			removeBackgroundCommand(env),
			inpaintCommand(env),
			batchCommand(env),
			journalCommand(env),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))
	return app
}
