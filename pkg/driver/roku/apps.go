package roku

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/ecp"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// MediaTypes are the media types accepted with a content id.
var MediaTypes = []string{"movie", "episode", "season", "series", "shortFormVideo", "special", "live"}

func validMediaType(t string) bool {
	for _, m := range MediaTypes {
		if m == t {
			return true
		}
	}
	return false
}

// ActivateApp launches a channel, optionally deep linking into content.
// contentID and mediaType must be given together.
func (d *Driver) ActivateApp(ctx context.Context, appID, contentID, mediaType string) error {
	if appID == "" {
		return core.ErrInvalidArgument.WithMessage("appId is required")
	}
	var params url.Values
	if contentID != "" {
		if mediaType == "" {
			return core.ErrInvalidArgument.WithMessage("If you include a contentId parameter to activate, must also include mediaType")
		}
		if !validMediaType(mediaType) {
			return core.ErrInvalidArgument.WithMessage("mediaType must be one of: " + strings.Join(MediaTypes, ", "))
		}
		logger.Info("Including parameters contentId of %s and mediaType of %s", contentID, mediaType)
		params = url.Values{"contentId": {contentID}, "mediaType": {mediaType}}
	}

	d.source.Invalidate()
	logger.Info("Launching app %s", appID)
	return d.device.Launch(ctx, appID, params)
}

// InstallApp sideloads a channel archive, replacing any previous dev
// channel.
func (d *Driver) InstallApp(ctx context.Context, archivePath string) error {
	d.source.Invalidate()
	if err := d.device.Remove(ctx); err != nil {
		// nothing may be installed yet
		logger.Debug("Removing previous dev app failed: %v", err)
	}
	if err := d.device.Install(ctx, archivePath); err != nil {
		return fmt.Errorf("install %s: %w", archivePath, err)
	}
	return nil
}

// RemoveApp deletes the dev channel. Other channels cannot be removed, so
// appID is only logged.
func (d *Driver) RemoveApp(ctx context.Context, appID string) error {
	d.source.Invalidate()
	if appID != "" && appID != DevAppID {
		logger.Info("App id %s was provided to remove app but will be ignored; only dev app can be removed", appID)
	}
	return d.device.Remove(ctx)
}

// DeviceInfo returns the device description.
func (d *Driver) DeviceInfo(ctx context.Context) (map[string]string, error) {
	return d.device.DeviceInfo(ctx)
}

// Apps returns the installed channels.
func (d *Driver) Apps(ctx context.Context) ([]ecp.App, error) {
	return d.device.Apps(ctx)
}

// ActiveApp returns the channel in the foreground.
func (d *Driver) ActiveApp(ctx context.Context) (*ecp.App, error) {
	return d.device.ActiveApp(ctx)
}

// AppUI returns the raw UI hierarchy, bypassing the snapshot cache.
func (d *Driver) AppUI(ctx context.Context, stripOuter bool) (string, error) {
	return d.device.AppUI(ctx, stripOuter)
}

// PlayerState returns the media player state.
func (d *Driver) PlayerState(ctx context.Context) (map[string]interface{}, error) {
	return d.device.PlayerState(ctx)
}
