// Package httpapi serves the inspector web page and its JSON API.
//
// Routes:
//
//	GET  /, /clipboard     the inspector page
//	GET  /healthz
//	GET  /v1/state         current state and capabilities
//	GET  /v1/messages      UI strings for the request's Accept-Language
//	GET  /v1/events        server-sent events (state, toast, paste-request)
//	POST /v1/acquire       run an acquisition, respond with the final state
//	POST /v1/paste         deliver a paste gesture captured by the page
//	POST /v1/copy          copy the current snapshot back, with edits
//	POST /v1/copy/{index}  copy a single entry
//	POST /v1/reset         forget the current snapshot
package httpapi

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/grpcservice"
	"go.klb.dev/clipscope/internal/hub"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/paste"
)

//go:embed static
var static embed.FS

// maxPasteBytes bounds a posted paste event, files included.
const maxPasteBytes = 64 << 20

// Backend is the session the API drives.
type Backend interface {
	grpcservice.Backend
	Reset()
}

// Config wires a Server.
type Config struct {
	Session Backend
	Pastes  *paste.Bus
	Hub     *hub.Hub
	// Token, when set, is required as a bearer token (or ?token=) on /v1.
	Token string
	// Lang is the configured UI language; empty follows Accept-Language.
	Lang string
}

// Server is the HTTP surface.
type Server struct {
	cfg Config
	gw  *gwruntime.ServeMux
	mux *http.ServeMux
}

// New builds the handler tree.
func New(cfg Config) (*Server, error) {
	s := &Server{
		cfg: cfg,
		gw: gwruntime.NewServeMux(
			gwruntime.WithMarshalerOption(gwruntime.MIMEWildcard, &gwruntime.JSONBuiltin{}),
		),
		mux: http.NewServeMux(),
	}

	routes := []struct {
		method, path string
		h            gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/healthz", s.healthz},
		{http.MethodGet, "/v1/state", s.authed(s.state)},
		{http.MethodGet, "/v1/messages", s.messages},
		{http.MethodGet, "/v1/events", s.authed(s.events)},
		{http.MethodPost, "/v1/acquire", s.authed(s.acquire)},
		{http.MethodPost, "/v1/paste", s.authed(s.paste)},
		{http.MethodPost, "/v1/copy", s.authed(s.copyAll)},
		{http.MethodPost, "/v1/copy/{index}", s.authed(s.copyOne)},
		{http.MethodPost, "/v1/reset", s.authed(s.reset)},
	}
	for _, rt := range routes {
		if err := s.gw.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}

	page, err := fs.Sub(static, "static")
	if err != nil {
		return nil, err
	}
	files := http.FileServerFS(page)
	index := func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		files.ServeHTTP(w, r2)
	}
	s.mux.HandleFunc("GET /{$}", index)
	s.mux.HandleFunc("GET /clipboard", index)
	s.mux.Handle("/v1/", s.gw)
	s.mux.Handle("/healthz", s.gw)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) authed(h gwruntime.HandlerFunc) gwruntime.HandlerFunc {
	if s.cfg.Token == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		tok := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); auth != "" {
			tok = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(tok), []byte(s.cfg.Token)) != 1 {
			s.fail(w, r, status.Error(codes.Unauthenticated, "invalid token"))
			return
		}
		h(w, r, params)
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, v any) {
	_, m := gwruntime.MarshalerForRequest(s.gw, r)
	body, err := m.Marshal(v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", m.ContentType(v))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	_, m := gwruntime.MarshalerForRequest(s.gw, r)
	gwruntime.HTTPError(r.Context(), s.gw, m, w, r, grpcservice.ToStatus(err))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp := grpcservice.StateResponse{
		State:        s.cfg.Session.State(),
		Capabilities: s.cfg.Session.Capabilities(),
	}
	if resp.Capabilities == nil {
		resp.Capabilities = []string{}
	}
	if s.cfg.Hub != nil {
		resp.Viewers = s.cfg.Hub.Len()
	}
	s.respond(w, r, http.StatusOK, resp)
}

type messagesResponse struct {
	Lang     string            `json:"lang"`
	Messages map[string]string `json:"messages"`
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p := i18n.New(s.cfg.Lang, r.Header.Get("Accept-Language"))
	s.respond(w, r, http.StatusOK, messagesResponse{Lang: p.Lang(), Messages: p.Table()})
}

// acquire answers with the final state. A Failed acquisition is a normal
// outcome and still gets 200.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	st, err := s.cfg.Session.Acquire(r.Context())
	var failed *acquire.FailedError
	switch {
	case err == nil, errors.As(err, &failed):
		s.respond(w, r, http.StatusOK, st)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		slog.Debug("acquire request abandoned by client")
	default:
		s.fail(w, r, err)
	}
}

type pasteResponse struct {
	Consumed bool `json:"consumed"`
}

func (s *Server) paste(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if s.cfg.Pastes == nil {
		s.fail(w, r, status.Error(codes.Unimplemented, "paste capture disabled"))
		return
	}
	ev, err := paste.DecodeJSON(http.MaxBytesReader(w, r.Body, maxPasteBytes))
	if err != nil {
		s.fail(w, r, status.Error(codes.InvalidArgument, err.Error()))
		return
	}
	if !s.cfg.Pastes.Dispatch(ev) {
		slog.Debug("paste ignored: no acquisition waiting", "types", ev.Types)
		s.fail(w, r, status.Error(codes.Aborted, "no acquisition is waiting for a paste"))
		return
	}
	s.respond(w, r, http.StatusAccepted, pasteResponse{Consumed: true})
}

type copyRequest struct {
	SnapshotID string         `json:"snapshotId"`
	Edits      map[int]string `json:"edits"`
}

func (s *Server) decodeCopy(w http.ResponseWriter, r *http.Request) (copyRequest, bool) {
	var req copyRequest
	if r.ContentLength == 0 {
		return req, true
	}
	m, _ := gwruntime.MarshalerForRequest(s.gw, r)
	if err := m.NewDecoder(http.MaxBytesReader(w, r.Body, maxPasteBytes)).Decode(&req); err != nil {
		s.fail(w, r, status.Error(codes.InvalidArgument, "decode copy request: "+err.Error()))
		return req, false
	}
	return req, true
}

func (s *Server) copyAll(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req, ok := s.decodeCopy(w, r)
	if !ok {
		return
	}
	res, err := s.cfg.Session.CopyBack(r.Context(), req.SnapshotID, req.Edits)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

func (s *Server) copyOne(w http.ResponseWriter, r *http.Request, params map[string]string) {
	index, err := strconv.Atoi(params["index"])
	if err != nil || index < 0 {
		s.fail(w, r, status.Errorf(codes.InvalidArgument, "bad entry index %q", params["index"]))
		return
	}
	req, ok := s.decodeCopy(w, r)
	if !ok {
		return
	}
	res, err := s.cfg.Session.CopyEntry(r.Context(), req.SnapshotID, index, req.Edits)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.cfg.Session.Reset()
	s.respond(w, r, http.StatusOK, s.cfg.Session.State())
}
