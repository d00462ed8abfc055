package server

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/element"
)

type findRequest struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeValue(w, s.capabilities)
}

func (s *Server) handleFindElement(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.session.FindElement(r.Context(), req.Using, req.Value, chi.URLParam(r, "elementId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, element.Ref(id))
}

func (s *Server) handleFindElements(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := s.session.FindElements(r.Context(), req.Using, req.Value, chi.URLParam(r, "elementId"))
	if err != nil {
		writeError(w, err)
		return
	}
	refs := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, element.Ref(id))
	}
	writeValue(w, refs)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Click(r.Context(), chi.URLParam(r, "elementId")); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

type valueRequest struct {
	Text  string   `json:"text"`
	Value []string `json:"value"`
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	text := req.Text
	if text == "" {
		text = strings.Join(req.Value, "")
	}
	if err := s.session.SetValue(r.Context(), chi.URLParam(r, "elementId"), text); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	text, err := s.session.ElementText(r.Context(), chi.URLParam(r, "elementId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, text)
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	v, ok, err := s.session.ElementAttribute(r.Context(), chi.URLParam(r, "elementId"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeValue(w, nil)
		return
	}
	writeValue(w, v)
}

func (s *Server) handleName(w http.ResponseWriter, r *http.Request) {
	name, err := s.session.ElementName(r.Context(), chi.URLParam(r, "elementId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, name)
}

func (s *Server) handleRect(w http.ResponseWriter, r *http.Request) {
	b, err := s.session.ElementRect(r.Context(), chi.URLParam(r, "elementId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, b)
}

// handleDisplayed reports an element as displayed while it resolves; the
// device only reports on-screen nodes.
func (s *Server) handleDisplayed(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.ElementFocused(r.Context(), chi.URLParam(r, "elementId")); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, true)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.session.Source(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, src)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	png, err := s.session.Screenshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, base64.StdEncoding.EncodeToString(png))
}

type executeRequest struct {
	Script string        `json:"script"`
	Args   []interface{} `json:"args"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.session.Execute(r.Context(), req.Script, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, result)
}

type actionsRequest struct {
	Actions []struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Actions []struct {
			Type     string  `json:"type"`
			X        float64 `json:"x"`
			Y        float64 `json:"y"`
			Duration float64 `json:"duration"`
		} `json:"actions"`
	} `json:"actions"`
}

// handleActions supports a single pointer tap: move, down, pause, up.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	var req actionsRequest
	if !decode(w, r, &req) {
		return
	}
	invalid := core.ErrInvalidArgument.WithMessage("Did not get correct action type for simple tap")
	if len(req.Actions) == 0 || len(req.Actions[0].Actions) != 4 {
		writeError(w, invalid)
		return
	}
	seq := req.Actions[0].Actions
	for i, want := range []string{"pointerMove", "pointerDown", "pause", "pointerUp"} {
		if seq[i].Type != want {
			writeError(w, invalid)
			return
		}
	}
	if err := s.session.Tap(r.Context(), int(seq[0].X), int(seq[0].Y)); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

// handleContext reports the only context there is.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	writeValue(w, "NATIVE_APP")
}

func (s *Server) handleWindowRect(w http.ResponseWriter, r *http.Request) {
	width, height, err := s.session.WindowSize(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, core.Bounds{Width: width, Height: height})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := s.session.PressKey(r.Context(), core.KeyBack); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

type appRequest struct {
	AppID   string `json:"appId"`
	AppPath string `json:"appPath"`
	Options struct {
		ContentID string `json:"contentId"`
		MediaType string `json:"mediaType"`
	} `json:"options"`
}

func (s *Server) handleActivateApp(w http.ResponseWriter, r *http.Request) {
	var req appRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.ActivateApp(r.Context(), req.AppID, req.Options.ContentID, req.Options.MediaType); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleInstallApp(w http.ResponseWriter, r *http.Request) {
	var req appRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AppPath == "" {
		writeError(w, core.ErrInvalidArgument.WithMessage("appPath is required"))
		return
	}
	if err := s.session.InstallApp(r.Context(), req.AppPath); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleRemoveApp(w http.ResponseWriter, r *http.Request) {
	var req appRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.RemoveApp(r.Context(), req.AppID); err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, true)
}

// handleCurrentPackage returns the id of the foreground channel, or its name
// on the home screen.
func (s *Server) handleCurrentPackage(w http.ResponseWriter, r *http.Request) {
	app, err := s.session.ActiveApp(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if app.ID == "" {
		writeValue(w, app.Name)
		return
	}
	writeValue(w, app.ID)
}
