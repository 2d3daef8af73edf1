package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/input"
	"github.com/pbaille/listkeep/internal/store"
)

const maxBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Server exposes the item store over HTTP for a UI layer
type Server struct {
	store  *store.Store
	mirror *store.Mirror
	addr   string
	log    zerolog.Logger
}

// New creates a new API server
func New(s *store.Store, addr string, log zerolog.Logger) *Server {
	return &Server{store: s, mirror: store.NewMirror(s), addr: addr, log: log}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Items
	mux.HandleFunc("GET /items", s.listItems)
	mux.HandleFunc("POST /items", s.addItems)
	mux.HandleFunc("PATCH /items/{id}", s.updateItem)
	mux.HandleFunc("DELETE /items/{id}", s.deleteItem)
	mux.HandleFunc("DELETE /items", s.clearAll)

	// Settings
	mux.HandleFunc("PUT /settings", s.updateSettings)

	// Backup
	mux.HandleFunc("GET /export", s.exportData)
	mux.HandleFunc("POST /import", s.importData)

	// Change notifications
	mux.HandleFunc("GET /events", s.events)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is done, following backend changes meanwhile
func (s *Server) Run(ctx context.Context) error {
	go func() {
		if err := s.mirror.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("change notifications disabled")
		}
	}()

	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if !s.store.IsStorageAvailable() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "degraded", "storage": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "storage": true})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	doc := s.mirror.Document()

	if r.URL.Query().Get("format") == "html" {
		var sb strings.Builder
		sb.WriteString("<ul>\n")
		for _, it := range doc.Items {
			class := "pending"
			if it.Completed {
				class = "done"
			}
			fmt.Fprintf(&sb, "  <li id=\"%s\" class=\"%s\">%s</li>\n",
				input.EscapeHTML(it.ID), class, input.EscapeHTML(it.Text))
		}
		sb.WriteString("</ul>\n")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, sb.String())
		return
	}

	done, pending := doc.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":       doc.Items,
		"done":        done,
		"pending":     pending,
		"lastUpdated": doc.LastUpdated,
		"settings":    doc.Settings,
	})
}

// AddItemsRequest is the request body for adding items. Text may hold
// several delimited items; Items are taken as already split.
type AddItemsRequest struct {
	Text  string   `json:"text" validate:"required_without=Items,max=100000"`
	Items []string `json:"items" validate:"required_without=Text,max=1000"`
}

func (s *Server) addItems(w http.ResponseWriter, r *http.Request) {
	var req AddItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	texts := append(input.ParseInput(req.Text), req.Items...)
	added, err := s.store.AddItems(texts)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if len(added) == 0 {
		writeError(w, http.StatusBadRequest, "no items in input")
		return
	}

	s.mirror.Invalidate()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"items": added})
}

// UpdateItemRequest is the request body for changing an item
type UpdateItemRequest struct {
	Text      *string    `json:"text" validate:"omitempty,max=100000"`
	Completed *bool      `json:"completed"`
	CreatedAt *time.Time `json:"createdAt"`
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	it, err := s.store.UpdateItem(r.PathValue("id"), domain.ItemUpdate{
		Text:      req.Text,
		Completed: req.Completed,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.mirror.Invalidate()
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteItem(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.mirror.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.mirror.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// SettingsRequest is the request body for replacing settings
type SettingsRequest struct {
	Theme      string `json:"theme" validate:"max=64"`
	Animations bool   `json:"animations"`
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	settings := s.store.Load().Settings
	settings.Theme, settings.Animations = req.Theme, req.Animations
	if err := s.store.UpdateSettings(settings); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.mirror.Invalidate()
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) exportData(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ExportData()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="listkeep-export.json"`)
	io.WriteString(w, out)
}

func (s *Server) importData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.ImportData(string(body)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.mirror.Invalidate()
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": len(s.mirror.Document().Items)})
}

// events streams a server-sent "change" event whenever the stored
// document is written by anyone. Clients reload wholesale on receipt.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	changed, stop := s.mirror.Subscribe()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-changed:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: change\ndata: {\"key\":%q}\n\n", s.store.Key())
			flusher.Flush()
		}
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrEmptyText), errors.Is(err, store.ErrInvalidImport):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("store operation failed")
		writeError(w, http.StatusInsufficientStorage, "storage failure")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
