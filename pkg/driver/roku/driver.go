// Package roku implements a WebDriver session against one Roku device. The
// driver composes the device client, the snapshot source, the element
// registry and the focus navigator.
package roku

import (
	"context"
	"net/url"
	"time"

	"github.com/devicelab-dev/roku-driver/pkg/config"
	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/ecp"
	"github.com/devicelab-dev/roku-driver/pkg/element"
	"github.com/devicelab-dev/roku-driver/pkg/focus"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
	"github.com/devicelab-dev/roku-driver/pkg/source"
)

// Device is the device surface the driver needs. *ecp.Client implements it.
type Device interface {
	KeyPress(ctx context.Context, key core.Key) error
	Launch(ctx context.Context, appID string, params url.Values) error
	Touch(ctx context.Context, x, y int) error

	DeviceInfo(ctx context.Context) (map[string]string, error)
	Apps(ctx context.Context) ([]ecp.App, error)
	ActiveApp(ctx context.Context) (*ecp.App, error)
	AppUI(ctx context.Context, stripOuter bool) (string, error)
	PlayerState(ctx context.Context) (map[string]interface{}, error)

	Install(ctx context.Context, archivePath string) error
	Remove(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// DevAppID is the id of the sideloaded channel.
const DevAppID = "dev"

// Driver is one session. It is not safe for concurrent use; callers
// serialize commands.
type Driver struct {
	cfg    *config.Config
	device Device

	source    *source.Source
	registry  *element.Registry
	finder    *element.Finder
	resolver  *element.Resolver
	navigator *focus.Navigator

	keyCooldown time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	// screen size, read from device info on first use
	width, height int
}

// New creates a driver for the device described by cfg.
func New(cfg *config.Config, dev Device) (*Driver, error) {
	registry, err := element.NewRegistry(cfg.ElementCacheSize)
	if err != nil {
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}
	src := source.New(dev)
	d := &Driver{
		cfg:         cfg,
		device:      dev,
		source:      src,
		registry:    registry,
		finder:      element.NewFinder(src, registry),
		resolver:    element.NewResolver(src, registry, element.NewEquality(cfg.EqualityAttributes)),
		keyCooldown: cfg.KeyCooldown,
		sleep:       sleepContext,
	}
	d.navigator = focus.NewNavigator(d.resolver, d, cfg.MaxFocusSteps)
	return d, nil
}

// NewForConfig creates a driver talking to the device over the network.
func NewForConfig(cfg *config.Config) (*Driver, error) {
	client := ecp.NewClient(ecp.Options{
		ECPURL:      cfg.ECPURL(),
		WebURL:      cfg.WebURL(),
		User:        cfg.User,
		Password:    cfg.Password,
		WebCooldown: cfg.WebCooldown,
	})
	return New(cfg, client)
}

// Start prepares the device for a session: with an app configured it is
// sideloaded and launched, otherwise the device is sent to the home screen.
func (d *Driver) Start(ctx context.Context) error {
	logger.Info("Starting Roku session on %s", d.cfg.Host)
	if d.cfg.App != "" {
		if err := d.InstallApp(ctx, d.cfg.App); err != nil {
			return err
		}
		return d.ActivateApp(ctx, DevAppID, "", "")
	}
	return d.PressKey(ctx, core.KeyHome)
}

// Stop ends the session by returning to the home screen.
func (d *Driver) Stop(ctx context.Context) error {
	logger.Info("Ending Roku session")
	return d.PressKey(ctx, core.KeyHome)
}

// PressKey sends one remote key and waits for the key cooldown. The cached
// snapshot is invalidated before the key is sent.
func (d *Driver) PressKey(ctx context.Context, key core.Key) error {
	d.source.Invalidate()
	logger.Info("Pressing key %s", key)
	if err := d.device.KeyPress(ctx, key); err != nil {
		return err
	}
	if d.keyCooldown > 0 {
		return d.sleep(ctx, d.keyCooldown)
	}
	return nil
}

// Source returns the current page source.
func (d *Driver) Source(ctx context.Context) (string, error) {
	return d.source.XML(ctx)
}

// WindowSize returns the screen size derived from the device's UI
// resolution.
func (d *Driver) WindowSize(ctx context.Context) (width, height int, err error) {
	if d.width == 0 {
		info, err := d.device.DeviceInfo(ctx)
		if err != nil {
			return 0, 0, err
		}
		d.width, d.height = core.Resolution(info["ui-resolution"])
	}
	return d.width, d.height, nil
}

// Tap sends a touch at (x, y) measured from the top-left corner. The device
// measures from the bottom-left, so y is inverted.
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	_, height, err := d.WindowSize(ctx)
	if err != nil {
		return err
	}
	d.source.Invalidate()
	logger.Info("Tapping at (%d, %d)", x, y)
	return d.device.Touch(ctx, x, height-y)
}

// Screenshot returns a PNG of the dev channel.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.device.Screenshot(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
