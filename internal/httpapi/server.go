package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentworkforce/recordmirror/internal/gateway"
	"github.com/agentworkforce/recordmirror/internal/mirror"
	"github.com/agentworkforce/recordmirror/internal/records"
)

type Logger interface {
	Printf(format string, args ...any)
}

type ServerConfig struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// AccessLog enables chi's request logger.
	AccessLog bool
	Logger    Logger
}

// Server exposes one mirror.Session over HTTP and streams every new page to
// websocket clients.
type Server struct {
	session     *mirror.Session
	cfg         ServerConfig
	hub         *hub
	router      chi.Router
	unsubscribe func()
}

func NewServer(session *mirror.Session, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	s := &Server{
		session: session,
		cfg:     cfg,
		hub:     newHub(),
	}
	s.unsubscribe = session.Subscribe(s.hub.broadcast)
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops page delivery to websocket clients.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.closeAll()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(correlationHeader)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", getCorrelationID(r))
	})

	r.Get("/", s.handleDashboard)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"loaded":  s.session.Store().Loaded(),
			"records": s.session.Store().Len(),
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/page", s.handlePage)
		api.Put("/view/search", s.handleSetSearch)
		api.Put("/view/page", s.handleSetPage)
		api.Post("/records", s.handleCreate)
		api.Get("/records/{id}", s.handleGet)
		api.Put("/records/{id}", s.handleUpdate)
		api.Delete("/records/{id}", s.handleDelete)
		api.Post("/reset", s.handleReset)
		api.Get("/ws", s.handleWebsocket)
	})
	return r
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Page())
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if !s.decodeJSONBody(w, r, getCorrelationID(r), &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.session.SetSearchTerm(req.Term))
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page *int `json:"page"`
	}
	correlationID := getCorrelationID(r)
	if !s.decodeJSONBody(w, r, correlationID, &req) {
		return
	}
	if req.Page == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "page is required", correlationID)
		return
	}
	writeJSON(w, http.StatusOK, s.session.SetPage(*req.Page))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	form, ok := s.decodeForm(w, r, correlationID, records.ModeCreate)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	created, err := s.session.Create(ctx, form)
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"record": created,
		"page":   s.session.Page(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	id, ok := recordID(w, r, correlationID)
	if !ok {
		return
	}
	rec, found := s.session.Store().Get(id)
	if !found {
		s.writeDomainError(w, &mirror.NotFoundError{ID: id}, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	id, ok := recordID(w, r, correlationID)
	if !ok {
		return
	}
	form, ok := s.decodeForm(w, r, correlationID, records.ModeUpdate)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	updated, err := s.session.Update(ctx, id, form)
	if err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record": updated,
		"page":   s.session.Page(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	id, ok := recordID(w, r, correlationID)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.session.Remove(ctx, id); err != nil {
		s.writeDomainError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page": s.session.Page(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	page, err := s.session.Reset(ctx)
	if err != nil {
		s.writeDomainError(w, err, getCorrelationID(r))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// decodeForm validates the raw body against the form schema before decoding,
// so type errors are reported per field.
func (s *Server) decodeForm(w http.ResponseWriter, r *http.Request, correlationID string, mode records.FormMode) (records.FormData, bool) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return records.FormData{}, false
	}
	if err := records.ValidateFormJSON(body, mode); err != nil {
		s.writeDomainError(w, err, correlationID)
		return records.FormData{}, false
	}
	var form records.FormData
	if err := json.Unmarshal(body, &form); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return records.FormData{}, false
	}
	return form, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error, correlationID string) {
	var verr *records.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":          "invalid_form",
			"message":       verr.Error(),
			"fields":        verr.Fields,
			"correlationId": correlationID,
		})
	case errors.Is(err, records.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_form", err.Error(), correlationID)
	case errors.Is(err, mirror.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), correlationID)
	case errors.Is(err, mirror.ErrFetch):
		writeError(w, http.StatusServiceUnavailable, "fetch_failed", err.Error(), correlationID)
	case errors.Is(err, gateway.ErrSync):
		writeError(w, http.StatusBadGateway, "sync_failed", err.Error(), correlationID)
	case errors.Is(err, mirror.ErrPersist):
		s.logf("snapshot write failed: %v", err)
		writeError(w, http.StatusInternalServerError, "persist_failed", err.Error(), correlationID)
	default:
		s.logf("unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error", correlationID)
	}
}

func recordID(w http.ResponseWriter, r *http.Request, correlationID string) (int, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", "record id must be a positive integer", correlationID)
		return 0, false
	}
	return id, true
}

// correlationHeader echoes the caller's X-Correlation-Id, or the chi request
// id when the caller sent none.
func correlationHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("X-Correlation-Id")) == "" {
			r.Header.Set("X-Correlation-Id", middleware.GetReqID(r.Context()))
		}
		w.Header().Set("X-Correlation-Id", r.Header.Get("X-Correlation-Id"))
		next.ServeHTTP(w, r)
	})
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, correlationID string, dst any) bool {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Printf(format, args...)
}
