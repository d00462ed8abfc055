package ecp

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/devicelab-dev/roku-driver/pkg/core"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Options{
		ECPURL:   server.URL,
		WebURL:   server.URL,
		User:     "rokudev",
		Password: "secret",
	})
	return client, server
}

func TestKeyPress(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/keypress/Select" {
			t.Errorf("expected /keypress/Select, got %s", r.URL.Path)
		}
	})
	defer server.Close()

	if err := client.KeyPress(context.Background(), core.KeySelect); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLaunchWithParams(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/launch/dev" {
			t.Errorf("expected /launch/dev, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("contentId"); got != "abc 1" {
			t.Errorf("contentId = %q", got)
		}
		if got := r.URL.Query().Get("mediaType"); got != "movie" {
			t.Errorf("mediaType = %q", got)
		}
	})
	defer server.Close()

	params := url.Values{"contentId": {"abc 1"}, "mediaType": {"movie"}}
	if err := client.Launch(context.Background(), "dev", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTouch(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/input" {
			t.Errorf("expected /input, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("touch.0.x") != "100.0" || q.Get("touch.0.y") != "980.0" || q.Get("touch.0.op") != "press" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	})
	defer server.Close()

	if err := client.Touch(context.Background(), 100, 980); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusBadRequest)
	})
	defer server.Close()

	err := client.KeyPress(context.Background(), "Bogus")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error should include body: %v", err)
	}
}

func TestDeviceUnreachable(t *testing.T) {
	client := NewClient(Options{ECPURL: "http://localhost:99999"})
	err := client.KeyPress(context.Background(), core.KeyHome)
	if !errors.Is(err, core.ErrDeviceUnreachable) {
		t.Errorf("expected ErrDeviceUnreachable, got %v", err)
	}
}

func TestDeviceInfo(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/query/device-info" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" ?>
<device-info>
	<udn>29380007-0800-1025-80a4-d83154332d7e</udn>
	<vendor-name>Roku</vendor-name>
	<ui-resolution>1080p</ui-resolution>
</device-info>`))
	})
	defer server.Close()

	info, err := client.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info["vendor-name"] != "Roku" {
		t.Errorf("vendor-name = %q", info["vendor-name"])
	}
	if info["ui-resolution"] != "1080p" {
		t.Errorf("ui-resolution = %q", info["ui-resolution"])
	}
}

func TestApps(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<apps>
	<app id="31012" type="menu" version="1.9.0">Home</app>
	<app id="dev" type="appl" subtype="rsga" version="1.0.1">Hello World</app>
</apps>`))
	})
	defer server.Close()

	apps, err := client.Apps(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(apps))
	}
	want := App{ID: "dev", Type: "appl", Subtype: "rsga", Version: "1.0.1", Name: "Hello World"}
	if apps[1] != want {
		t.Errorf("apps[1] = %+v, want %+v", apps[1], want)
	}
}

func TestActiveApp(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want App
	}{
		{"home screen", `<active-app><app>Roku</app></active-app>`, App{Name: "Roku"}},
		{"channel", `<active-app><app id="dev" type="appl" version="1.0.1">Hello World</app></active-app>`,
			App{ID: "dev", Type: "appl", Version: "1.0.1", Name: "Hello World"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := ParseActiveApp([]byte(tt.xml))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *app != tt.want {
				t.Errorf("got %+v, want %+v", *app, tt.want)
			}
		})
	}
}

const appUIOK = `<?xml version="1.0" encoding="UTF-8" ?>
<app-ui>
	<status>OK</status>
	<topscreen>
		<plugin id="dev" name="Hello World"/>
		<screen focused="true" type="RSGScreen">
			<HelloWorld extends="Scene" focused="true" name="scene">
				<Label bounds="{0, 0, 1280, 720}" name="myLabel" text="Hello World!"/>
			</HelloWorld>
		</screen>
	</topscreen>
</app-ui>`

func TestAppUI(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query/app-ui" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(appUIOK))
	})
	defer server.Close()

	full, err := client.AppUI(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != appUIOK {
		t.Error("expected unmodified document without stripOuter")
	}

	top, err := client.AppUI(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(top, "<topscreen>") {
		t.Errorf("stripped source should start with <topscreen>, got %q", top)
	}
	if strings.Contains(top, "app-ui") || strings.Contains(top, "<status>") {
		t.Errorf("stripped source should not contain outer tags: %q", top)
	}
	if !strings.Contains(top, `name="myLabel"`) {
		t.Errorf("stripped source lost content: %q", top)
	}
}

func TestAppUIFailed(t *testing.T) {
	_, err := ParseAppUI([]byte(`<app-ui><status>FAILED</status><error>No active app</error></app-ui>`), true)
	if !errors.Is(err, core.ErrAppUIUnavailable) {
		t.Fatalf("expected ErrAppUIUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "No active app") {
		t.Errorf("error should carry device message: %v", err)
	}
}

func TestPlayerState(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8" ?>
<player error="false" state="play">
	<plugin bandwidth="4812230 bps" id="dev" name="Channel"/>
	<format audio="aac" captions="webvtt" container="dash" drm="widevine" video="mpeg4_10b"/>
	<buffering current="1000" max="1000" target="0"/>
	<new_stream speed="128000 bps"/>
	<position>12012 ms</position>
	<duration>10570977 ms</duration>
	<is_live blocked="false">false</is_live>
</player>`
	state, err := ParsePlayerState([]byte(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	player := state["player"].(map[string]interface{})
	if player["state"] != "play" || player["error"] != "false" {
		t.Errorf("player = %v", player)
	}
	plugin := state["plugin"].(map[string]interface{})
	if plugin["name"] != "Channel" || plugin["bandwidth"] != "4812230 bps" {
		t.Errorf("plugin = %v", plugin)
	}
	if _, ok := plugin["_value"]; ok {
		t.Error("empty element should not get _value")
	}
	if state["position"] != "12012 ms" {
		t.Errorf("position = %v", state["position"])
	}
	live := state["is_live"].(map[string]interface{})
	if live["blocked"] != "false" || live["_value"] != "false" {
		t.Errorf("is_live = %v", live)
	}
}

// digestServer answers unauthenticated requests with a digest challenge and
// records the Authorization headers it accepts.
type digestServer struct {
	mu      sync.Mutex
	headers []string
	forms   []map[string]string
	files   map[string][]byte
	handler func(w http.ResponseWriter, r *http.Request)
}

func (d *digestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		w.Header().Set("WWW-Authenticate", `Digest qop="auth", realm="rokudev", nonce="1700000000"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	d.mu.Lock()
	d.headers = append(d.headers, auth)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			form := map[string]string{}
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
			d.forms = append(d.forms, form)
			for k, fhs := range r.MultipartForm.File {
				f, _ := fhs[0].Open()
				var buf bytes.Buffer
				buf.ReadFrom(f)
				f.Close()
				if d.files == nil {
					d.files = map[string][]byte{}
				}
				d.files[k] = buf.Bytes()
			}
		}
	}
	d.mu.Unlock()
	if d.handler != nil {
		d.handler(w, r)
	}
}

func TestInstallUsesDigestAuthAndUploadsArchive(t *testing.T) {
	ds := &digestServer{}
	client, server := newTestClient(ds.ServeHTTP)
	defer server.Close()

	archive := filepath.Join(t.TempDir(), "channel.zip")
	if err := os.WriteFile(archive, []byte("PK-fake-archive"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := client.Install(context.Background(), archive); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if err := client.Remove(context.Background()); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	if len(ds.headers) != 2 {
		t.Fatalf("expected 2 authenticated requests, got %d", len(ds.headers))
	}
	first := ds.headers[0]
	for _, part := range []string{`username="rokudev"`, `realm="rokudev"`, `nonce="1700000000"`, `uri="/plugin_install"`, "nc=00000001", `response="`} {
		if !strings.Contains(first, part) {
			t.Errorf("auth header %q missing %s", first, part)
		}
	}
	if !strings.Contains(ds.headers[1], "nc=00000002") {
		t.Errorf("nonce count should increase per client: %q", ds.headers[1])
	}
	if ds.forms[0]["mySubmit"] != "Install" {
		t.Errorf("install form = %v", ds.forms[0])
	}
	if string(ds.files["archive"]) != "PK-fake-archive" {
		t.Errorf("archive upload = %q", ds.files["archive"])
	}
	if ds.forms[1]["mySubmit"] != "Delete" {
		t.Errorf("remove form = %v", ds.forms[1])
	}
}

func TestNonceCountIsPerClient(t *testing.T) {
	ds := &digestServer{}
	server := httptest.NewServer(ds)
	defer server.Close()

	a := NewClient(Options{WebURL: server.URL, User: "rokudev"})
	b := NewClient(Options{WebURL: server.URL, User: "rokudev"})
	if err := a.Remove(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i, h := range ds.headers {
		if !strings.Contains(h, "nc=00000001") {
			t.Errorf("header %d should start its own count: %q", i, h)
		}
	}
}

func TestScreenshot(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatal(err)
	}
	ds := &digestServer{handler: func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == devScreenshotPath {
			w.Write(jpg.Bytes())
		}
	}}
	client, server := newTestClient(ds.ServeHTTP)
	defer server.Close()

	png, err := client.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("Screenshot() error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG output")
	}
	if ds.forms[0]["mySubmit"] != "Screenshot" {
		t.Errorf("inspect form = %v", ds.forms[0])
	}
}

func TestScreenshotNotDevChannel(t *testing.T) {
	ds := &digestServer{handler: func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == devScreenshotPath {
			http.NotFound(w, r)
		}
	}}
	client, server := newTestClient(ds.ServeHTTP)
	defer server.Close()

	_, err := client.Screenshot(context.Background())
	if !errors.Is(err, core.ErrScreenshotUnavailable) {
		t.Fatalf("expected ErrScreenshotUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "not collect screenshot") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestParseChallenge(t *testing.T) {
	ch, err := parseChallenge(`Digest qop="auth", realm="rokudev", nonce="abc123"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Realm != "rokudev" || ch.Nonce != "abc123" || ch.QOP != "auth" {
		t.Errorf("challenge = %+v", ch)
	}

	if _, err := parseChallenge(""); err == nil {
		t.Error("expected error for missing header")
	}
	if _, err := parseChallenge(`Digest realm="x"`); err == nil {
		t.Error("expected error for missing nonce")
	}
}
