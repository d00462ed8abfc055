package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/roku-driver/pkg/config"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
	"github.com/devicelab-dev/roku-driver/pkg/server"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve WebDriver sessions for the device",
	Description: `Start the WebDriver server. Session capabilities (appium:rokuHost,
appium:rokuPass, appium:app, appium:keyCooldown, ...) override the config
file and global flags for that session.

Examples:
  roku-driver --host 192.168.1.20 --password secret serve
  roku-driver serve --listen 0.0.0.0:4723`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Address to listen on (defaults to config listen)",
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logOpts := logger.Options{Level: cfg.Log.Level, File: c.String("log-file"), Console: true}
	if logOpts.File == "" {
		logOpts.File = cfg.Log.File
	}
	if logOpts.File == "" {
		logOpts.File = config.DefaultLogFile()
	}
	if c.Bool("verbose") {
		logOpts.Level = "debug"
	}
	if err := logger.Init(logOpts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	addr := c.String("listen")
	if addr == "" {
		addr = cfg.Listen
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(sessionFactory(cfg))
	logger.Info("Log file: %s", logOpts.File)
	return srv.ListenAndServe(ctx, addr)
}

// sessionFactory opens a driver per session on a copy of base with the
// session's capabilities applied.
func sessionFactory(base *config.Config) server.Factory {
	return func(caps map[string]interface{}) (server.Session, error) {
		cfg := *base
		if err := cfg.ApplyCapabilities(caps); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return openDriver(&cfg)
	}
}
