package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/roku-driver/pkg/core"
)

var sourceCommand = &cli.Command{
	Name:  "source",
	Usage: "Print the UI hierarchy of the foreground channel",
	Description: `Print the page source the driver resolves selectors against.

Examples:
  roku-driver --host 192.168.1.20 source
  roku-driver --host 192.168.1.20 source --raw`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Print the device's app-ui response without the driver root",
		},
	},
	Action: runSource,
}

var pressCommand = &cli.Command{
	Name:      "press",
	Usage:     "Press remote keys in order",
	ArgsUsage: "KEY...",
	Description: `Send one or more remote keys (Home, Up, Down, Left, Right, Select, Back,
Play, ...).

Examples:
  roku-driver --host 192.168.1.20 press Home
  roku-driver --host 192.168.1.20 press Down Down Select`,
	Action: runPress,
}

var deviceInfoCommand = &cli.Command{
	Name:   "device-info",
	Usage:  "Print the device description",
	Action: runDeviceInfo,
}

var appsCommand = &cli.Command{
	Name:   "apps",
	Usage:  "List installed channels",
	Action: runApps,
}

var launchCommand = &cli.Command{
	Name:      "launch",
	Usage:     "Launch a channel, optionally deep linking into content",
	ArgsUsage: "APP_ID",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "content-id",
			Usage: "Content to deep link to",
		},
		&cli.StringFlag{
			Name:  "media-type",
			Usage: "Media type of the content (required with --content-id)",
		},
	},
	Action: runLaunch,
}

func runSource(c *cli.Context) error {
	drv, err := connect(c)
	if err != nil {
		return err
	}
	var src string
	if c.Bool("raw") {
		src, err = drv.AppUI(c.Context, false)
	} else {
		src, err = drv.Source(c.Context)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, src)
	return nil
}

func runPress(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one key is required")
	}
	drv, err := connect(c)
	if err != nil {
		return err
	}
	for _, k := range c.Args().Slice() {
		if err := drv.PressKey(c.Context, core.Key(k)); err != nil {
			return fmt.Errorf("press %s: %w", k, err)
		}
	}
	return nil
}

func runDeviceInfo(c *cli.Context) error {
	drv, err := connect(c)
	if err != nil {
		return err
	}
	info, err := drv.DeviceInfo(c.Context)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, info[k])
	}
	return w.Flush()
}

func runApps(c *cli.Context) error {
	drv, err := connect(c)
	if err != nil {
		return err
	}
	apps, err := drv.Apps(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION")
	for _, a := range apps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Version)
	}
	return w.Flush()
}

func runLaunch(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one app id")
	}
	drv, err := connect(c)
	if err != nil {
		return err
	}
	return drv.ActivateApp(c.Context, c.Args().First(), c.String("content-id"), c.String("media-type"))
}
