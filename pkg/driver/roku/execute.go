package roku

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

const executePrefix = "roku:"

// Commands available through Execute.
var executeCommands = []string{
	"deviceInfo",
	"pressKey",
	"getApps",
	"activeApp",
	"appUI",
	"playerState",
	"activateApp",
	"installApp",
	"removeApp",
}

// Execute runs a "roku: <command>" script. The first argument, when it is
// an object, carries the command's options.
func (d *Driver) Execute(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	if !strings.HasPrefix(script, executePrefix) {
		return nil, core.ErrNotImplemented.WithDetails(map[string]interface{}{"script": script})
	}
	logger.Info("Executing Roku command '%s'", script)
	command := strings.TrimSpace(strings.TrimPrefix(script, executePrefix))

	opts := map[string]interface{}{}
	if len(args) > 0 {
		if m, ok := args[0].(map[string]interface{}); ok {
			opts = m
		}
	}
	return d.executeRoku(ctx, command, options(opts))
}

func (d *Driver) executeRoku(ctx context.Context, command string, opts options) (interface{}, error) {
	switch command {
	case "deviceInfo":
		return d.DeviceInfo(ctx)
	case "pressKey":
		key, err := opts.required("key")
		if err != nil {
			return nil, err
		}
		return nil, d.PressKey(ctx, core.Key(key))
	case "getApps":
		return d.Apps(ctx)
	case "activeApp":
		return d.ActiveApp(ctx)
	case "appUI":
		return d.AppUI(ctx, opts.flag("stripOuterTags"))
	case "playerState":
		return d.PlayerState(ctx)
	case "activateApp":
		appID, err := opts.required("appId")
		if err != nil {
			return nil, err
		}
		return nil, d.ActivateApp(ctx, appID, opts.str("contentId"), opts.str("mediaType"))
	case "installApp":
		path, err := opts.required("appPath")
		if err != nil {
			return nil, err
		}
		return nil, d.InstallApp(ctx, path)
	case "removeApp":
		return nil, d.RemoveApp(ctx, opts.str("appId"))
	}
	return nil, core.ErrUnknownCommand.WithMessage(fmt.Sprintf(
		"Unknown roku command %q. Only %s commands are supported.", command, strings.Join(executeCommands, ", ")))
}

// options are the arguments of an executed command.
type options map[string]interface{}

func (o options) str(name string) string {
	s, _ := o[name].(string)
	return s
}

func (o options) flag(name string) bool {
	b, _ := o[name].(bool)
	return b
}

func (o options) required(name string) (string, error) {
	s := o.str(name)
	if s == "" {
		return "", core.ErrInvalidArgument.WithMessage(fmt.Sprintf("%q is required", name))
	}
	return s, nil
}
