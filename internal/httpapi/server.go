package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/armbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/rosbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/store"
)

type History interface {
	ListSnapshots(ctx context.Context, arm string, limit int, cursor *store.Cursor, desc bool) (store.Page, error)
}

type Cache interface {
	Get(ctx context.Context, arm string) (prm.StateJoint, bool, error)
}

type Server struct {
	manager *component.Manager
	arms    []*armbridge.Arm
	byName  map[string]*armbridge.Arm
	history History
	cache   Cache
	stream  http.Handler
	auth    func(http.Handler) http.Handler
}

type Option func(*Server)

// WithHistory enables /history; without it the route answers 503.
func WithHistory(h History) Option { return func(s *Server) { s.history = h } }

// WithCache serves the last cached state while an arm has not published
// since startup.
func WithCache(c Cache) Option { return func(s *Server) { s.cache = c } }

func WithStream(h http.Handler) Option { return func(s *Server) { s.stream = h } }

// WithAuth guards every /api/arms route; /healthz stays open.
func WithAuth(mw func(http.Handler) http.Handler) Option { return func(s *Server) { s.auth = mw } }

func New(manager *component.Manager, arms []*armbridge.Arm, opts ...Option) *Server {
	s := &Server{manager: manager, arms: arms, byName: make(map[string]*armbridge.Arm, len(arms))}
	for _, a := range arms {
		s.byName[a.Name()] = a
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type armDTO struct {
	Name      string            `json:"name"`
	Interface string            `json:"interface"`
	Commands  []string          `json:"commands"`
	Period    string            `json:"period"`
	Bindings  []rosbridge.Stats `json:"bindings"`
}

type stateResponse struct {
	Arm        string         `json:"arm"`
	Command    string         `json:"command"`
	Topic      string         `json:"topic"`
	Source     string         `json:"source"`
	JointCount int            `json:"joint_count"`
	State      prm.StateJoint `json:"state"`
}

type historyResponse struct {
	Arm        string                     `json:"arm"`
	Snapshots  []store.JointStateSnapshot `json:"snapshots"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api/arms", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth)
		}
		r.Get("/", s.handleListArms)
		if s.stream != nil {
			r.Handle("/ws", s.stream)
		}
		r.Get("/{arm}/state_joint_desired", s.handleState)
		r.Get("/{arm}/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleListArms(w http.ResponseWriter, _ *http.Request) {
	out := make([]armDTO, 0, len(s.arms))
	for _, a := range s.arms {
		dto := armDTO{Name: a.Name(), Period: a.Period().String(), Bindings: a.Bridge().Stats()}
		for _, p := range a.ProvidedInterfaces() {
			dto.Interface = p.Name()
			dto.Commands = p.CommandNames()
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"arms": out})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "arm")
	if _, ok := s.byName[name]; !ok {
		http.Error(w, "unknown arm", http.StatusNotFound)
		return
	}
	iface, err := s.manager.ProvidedInterface(name, name)
	if err != nil {
		http.Error(w, "unknown arm", http.StatusNotFound)
		return
	}
	state, err := component.Read[prm.StateJoint](iface, armbridge.CommandGetStateJointDesired)
	if err != nil {
		slog.Error("state read failed", "arm", name, "error", err)
		http.Error(w, "could not read state", http.StatusInternalServerError)
		return
	}
	source := "live"
	if !state.Valid && s.cache != nil {
		cached, ok, err := s.cache.Get(r.Context(), name)
		if err != nil {
			slog.Warn("state cache read failed", "arm", name, "error", err)
		} else if ok {
			state, source = cached, "cache"
		}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Arm:        name,
		Command:    armbridge.CommandGetStateJointDesired,
		Topic:      armbridge.Topic(name),
		Source:     source,
		JointCount: state.JointCount(),
		State:      state,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "arm")
	if _, ok := s.byName[name]; !ok {
		http.Error(w, "unknown arm", http.StatusNotFound)
		return
	}
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit := 100
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	desc := strings.EqualFold(strings.TrimSpace(q.Get("order")), "desc")

	cursor, err := store.DecodeCursor(q.Get("cursor"))
	if err != nil {
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}

	page, err := s.history.ListSnapshots(r.Context(), name, limit, cursor, desc)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("history query failed", "arm", name, "error", err)
		http.Error(w, "could not query history", http.StatusInternalServerError)
		return
	}
	snaps := page.Snapshots
	if snaps == nil {
		snaps = []store.JointStateSnapshot{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Arm: name, Snapshots: snaps, NextCursor: page.NextCursor})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
