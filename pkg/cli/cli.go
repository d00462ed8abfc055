// Package cli provides the command-line interface for roku-driver.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/roku-driver/pkg/config"
	"github.com/devicelab-dev/roku-driver/pkg/driver/roku"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "host",
		Usage:   "Roku device host or IP",
		EnvVars: []string{"ROKU_HOST"},
	},
	&cli.StringFlag{
		Name:    "password",
		Usage:   "Developer web server password (needed to install apps and take screenshots)",
		EnvVars: []string{"ROKU_DEV_PASSWORD"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (defaults to the one in the home directory)",
		EnvVars: []string{"ROKU_DRIVER_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"ROKU_DRIVER_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write JSON logs to this file",
	},
}

// openDriver connects a driver to the configured device.
var openDriver = roku.NewForConfig

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "roku-driver",
		Usage:   "WebDriver server for Roku devices",
		Version: Version,
		Description: `roku-driver serves the WebDriver protocol for a Roku device over its
external control protocol and developer web server.

Examples:
  roku-driver --host 192.168.1.20 serve
  roku-driver --host 192.168.1.20 source
  roku-driver --host 192.168.1.20 press Down Down Select`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			return initLogging(c)
		},
		After: func(c *cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand,
			sourceCommand,
			pressCommand,
			deviceInfoCommand,
			appsCommand,
			launchCommand,
		},
	}
}

func initLogging(c *cli.Context) error {
	opts := logger.Options{Level: "info", File: c.String("log-file")}
	if c.Bool("verbose") {
		opts.Level = "debug"
		opts.Console = true
	}
	if err := logger.Init(opts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig reads the config file and overlays the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if host := c.String("host"); host != "" {
		cfg.Host = host
	}
	if pass := c.String("password"); pass != "" {
		cfg.Password = pass
	}
	return cfg, nil
}

// connect loads the config and opens a driver for a one-off command.
func connect(c *cli.Context) (*roku.Driver, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return openDriver(cfg)
}
