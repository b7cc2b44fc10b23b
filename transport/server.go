// Package transport carries the message protocol over HTTP: a chi server
// in front of a message.Handler and a Client implementing message.Sender.
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/leadscout/export"
	"github.com/hazyhaar/leadscout/message"
)

// Routes.
const (
	PathMessages = "/v1/messages"
	PathLeadsCSV = "/v1/leads.csv"
	PathHealth   = "/healthz"
)

// Config tunes the HTTP handler.
type Config struct {
	// Token, when set, is required as a bearer token on /v1 routes.
	Token string
	// MaxBodyBytes bounds request bodies. Default: 256 KiB.
	MaxBodyBytes int64
	// Location renders CSV dates. Default: time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 256 << 10
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewHandler returns the HTTP API serving h.
func NewHandler(h message.Handler, cfg Config) http.Handler {
	cfg.defaults()

	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(TraceID(cfg.Logger))

	r.Get(PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireToken(cfg.Token))
		r.Use(MaxBody(cfg.MaxBodyBytes))

		r.Post(PathMessages, func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSON(w, http.StatusRequestEntityTooLarge, message.Fail(message.CodeInvalidRequest, "body too large"))
					return
				}
				writeJSON(w, http.StatusBadRequest, message.Fail(message.CodeInvalidRequest, err.Error()))
				return
			}
			req, err := message.Decode(body)
			if errors.Is(err, message.ErrUnknownMessage) {
				writeJSON(w, http.StatusOK, message.Fail(message.CodeUnknownMessage, err.Error()))
				return
			}
			if err != nil {
				writeJSON(w, http.StatusBadRequest, message.Fail(message.CodeInvalidRequest, err.Error()))
				return
			}
			resp := message.Dispatch(r.Context(), h, req)
			if !resp.OK {
				Logger(r.Context()).Info("transport: request refused", "type", req.Type(), "code", resp.Code)
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get(PathLeadsCSV, func(w http.ResponseWriter, r *http.Request) {
			resp := message.Dispatch(r.Context(), h, message.LeadsList{})
			if !resp.OK {
				status := http.StatusInternalServerError
				if resp.Code == message.CodeNotAuthenticated {
					status = http.StatusUnauthorized
				}
				writeJSON(w, status, resp)
				return
			}
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
			if err := export.WriteCSV(w, resp.Leads, export.Options{Location: cfg.Location}); err != nil {
				Logger(r.Context()).Warn("transport: csv write failed", "error", err)
			}
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
