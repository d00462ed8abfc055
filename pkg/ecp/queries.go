package ecp

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/core"
)

// App is a channel installed on the device.
type App struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name"`
}

// DeviceInfo returns /query/device-info as a flat map.
func (c *Client) DeviceInfo(ctx context.Context) (map[string]string, error) {
	body, err := c.Query(ctx, "device-info")
	if err != nil {
		return nil, err
	}
	return ParseDeviceInfo(body)
}

// Apps returns the installed channels.
func (c *Client) Apps(ctx context.Context) ([]App, error) {
	body, err := c.Query(ctx, "apps")
	if err != nil {
		return nil, err
	}
	return ParseApps(body)
}

// ActiveApp returns the channel in the foreground. On the home screen the
// device reports an entry with a name only.
func (c *Client) ActiveApp(ctx context.Context) (*App, error) {
	body, err := c.Query(ctx, "active-app")
	if err != nil {
		return nil, err
	}
	return ParseActiveApp(body)
}

// AppUI returns the UI hierarchy of the active channel. With stripOuter the
// <topscreen> fragment is returned instead of the full response document.
func (c *Client) AppUI(ctx context.Context, stripOuter bool) (string, error) {
	body, err := c.Query(ctx, "app-ui")
	if err != nil {
		return "", err
	}
	return ParseAppUI(body, stripOuter)
}

// PlayerState returns /query/media-player as a nested map.
func (c *Client) PlayerState(ctx context.Context) (map[string]interface{}, error) {
	body, err := c.Query(ctx, "media-player")
	if err != nil {
		return nil, err
	}
	return ParsePlayerState(body)
}

func parseDoc(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse device response: %w", err)
	}
	return doc, nil
}

// ParseDeviceInfo parses a device-info document.
func ParseDeviceInfo(body []byte) (map[string]string, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	root := xmlquery.FindOne(doc, "/device-info")
	if root == nil {
		return nil, fmt.Errorf("invalid device-info response")
	}
	info := make(map[string]string)
	for _, n := range elementChildren(root) {
		info[n.Data] = n.InnerText()
	}
	return info, nil
}

// ParseApps parses an apps document.
func ParseApps(body []byte) ([]App, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	if xmlquery.FindOne(doc, "/apps") == nil {
		return nil, fmt.Errorf("invalid apps response")
	}
	var apps []App
	for _, n := range xmlquery.Find(doc, "/apps/app") {
		apps = append(apps, appFromNode(n))
	}
	return apps, nil
}

// ParseActiveApp parses an active-app document.
func ParseActiveApp(body []byte) (*App, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	n := xmlquery.FindOne(doc, "/active-app/app")
	if n == nil {
		return nil, fmt.Errorf("invalid active-app response")
	}
	app := appFromNode(n)
	return &app, nil
}

func appFromNode(n *xmlquery.Node) App {
	return App{
		ID:      n.SelectAttr("id"),
		Type:    n.SelectAttr("type"),
		Subtype: n.SelectAttr("subtype"),
		Version: n.SelectAttr("version"),
		Name:    strings.TrimSpace(n.InnerText()),
	}
}

// ParseAppUI parses an app-ui document. A FAILED status is reported with the
// device's error text ("No active app", "Not authorized", ...).
func ParseAppUI(body []byte, stripOuter bool) (string, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return "", err
	}
	status := xmlquery.FindOne(doc, "/app-ui/status")
	if status == nil {
		return "", fmt.Errorf("invalid app-ui response")
	}
	if strings.TrimSpace(status.InnerText()) == "FAILED" {
		msg := "unknown error"
		if e := xmlquery.FindOne(doc, "/app-ui/error"); e != nil {
			msg = strings.TrimSpace(e.InnerText())
		}
		return "", core.ErrAppUIUnavailable.WithMessage("Could not retrieve app UI. Error was: " + msg)
	}
	if !stripOuter {
		return string(body), nil
	}
	top := xmlquery.FindOne(doc, "//topscreen")
	if top == nil {
		return "", core.ErrAppUIUnavailable.WithMessage("Could not retrieve app UI. Response had no topscreen")
	}
	return top.OutputXML(true), nil
}

// ParsePlayerState parses a media-player document. Root attributes are put
// under "player"; each child element becomes its attribute map (with its text
// under "_value") or, without attributes, its text.
func ParsePlayerState(body []byte) (map[string]interface{}, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	root := xmlquery.FindOne(doc, "/player")
	if root == nil {
		return nil, fmt.Errorf("invalid media-player response")
	}
	state := map[string]interface{}{
		"player": attrMap(root),
	}
	for _, n := range elementChildren(root) {
		text := strings.TrimSpace(n.InnerText())
		if len(n.Attr) == 0 {
			state[n.Data] = text
			continue
		}
		m := attrMap(n)
		if text != "" {
			m["_value"] = text
		}
		state[n.Data] = m
	}
	return state, nil
}

func attrMap(n *xmlquery.Node) map[string]interface{} {
	m := make(map[string]interface{}, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

func elementChildren(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}
