// Package httpapi is the control surface the popup talks to: folder
// listing, window association, open-as-window, status, and a websocket
// stream of engine notifications.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

type ServerConfig struct {
	Token        string
	MaxBodyBytes int64
}

type Server struct {
	engine  *engine.Engine
	hub     *EventHub
	cfg     ServerConfig
	schemas *requestSchemas
}

func NewServer(eng *engine.Engine, hub *EventHub) (*Server, error) {
	return NewServerWithConfig(eng, hub, ServerConfig{})
}

func NewServerWithConfig(eng *engine.Engine, hub *EventHub, cfg ServerConfig) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if hub == nil {
		hub = NewEventHub()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	schemas, err := compileRequestSchemas()
	if err != nil {
		return nil, err
	}
	return &Server{engine: eng, hub: hub, cfg: cfg, schemas: schemas}, nil
}

// Hub returns the notification hub the server streams from. The daemon
// wires the engine's OnEvent callback to its Publish.
func (s *Server) Hub() *EventHub {
	return s.hub
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/" {
		s.handleDashboard(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	switch {
	case parts[1] == "folders" && len(parts) == 2 && r.Method == http.MethodGet:
		s.handleListFolders(w, r)
	case parts[1] == "folders" && len(parts) == 4 && parts[3] == "open" && r.Method == http.MethodPost:
		s.handleOpenFolder(w, r, parts[2])
	case parts[1] == "windows" && len(parts) == 2 && r.Method == http.MethodGet:
		s.handleListWindows(w, r)
	case parts[1] == "windows" && len(parts) == 4 && parts[3] == "associate" && r.Method == http.MethodPost:
		s.handleAssociate(w, r, parts[2])
	case parts[1] == "windows" && len(parts) == 4 && parts[3] == "folder" && r.Method == http.MethodPost:
		s.handleCreateAndAssociate(w, r, parts[2])
	case parts[1] == "windows" && len(parts) == 4 && parts[3] == "association" && r.Method == http.MethodDelete:
		s.handleDisassociate(w, r, parts[2])
	case parts[1] == "status" && len(parts) == 2 && r.Method == http.MethodGet:
		s.handleStatus(w, r)
	case parts[1] == "events" && len(parts) == 2 && r.Method == http.MethodGet:
		s.handleEvents(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
		return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
	}
	// Browser WebSocket clients cannot set an Authorization header, so the
	// events stream also accepts the token as a query parameter.
	if r.URL.Path == "/v1/events" {
		token := r.URL.Query().Get("access_token")
		if token != "" {
			return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
		}
	}
	return false
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.engine.FolderRanking(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": ranked})
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mappings": s.engine.Mappings()})
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request, windowID string) {
	body, ok := s.readBody(w, r, s.schemas.associate)
	if !ok {
		return
	}
	var req struct {
		FolderID    string `json:"folderId"`
		FolderTitle string `json:"folderTitle"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if err := s.engine.Associate(r.Context(), windowID, req.FolderID, req.FolderTitle); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"windowId": windowID,
		"folderId": req.FolderID,
	})
}

func (s *Server) handleCreateAndAssociate(w http.ResponseWriter, r *http.Request, windowID string) {
	body, ok := s.readBody(w, r, s.schemas.createFolder)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	folder, err := s.engine.CreateAndAssociate(r.Context(), windowID, req.Title)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"windowId": windowID,
		"folder":   folder,
	})
}

func (s *Server) handleDisassociate(w http.ResponseWriter, r *http.Request, windowID string) {
	if err := s.engine.Disassociate(windowID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"windowId": windowID})
}

func (s *Server) handleOpenFolder(w http.ResponseWriter, r *http.Request, folderID string) {
	var folderTitle string
	if r.ContentLength != 0 {
		body, ok := s.readBody(w, r, s.schemas.openFolder)
		if !ok {
			return
		}
		var req struct {
			FolderTitle string `json:"folderTitle"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
			return
		}
		folderTitle = req.FolderTitle
	}
	windowID, err := s.engine.OpenFolderWindow(r.Context(), folderID, folderTitle)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"windowId": windowID,
		"folderId": folderID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case n := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, n)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readBody reads and schema-validates a JSON request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return nil, false
	}
	if err := validateBody(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return nil, false
	}
	return body, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	var mapped *engine.FolderMappedError
	switch {
	case errors.As(err, &mapped):
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":     "folder_mapped",
			"message":  mapped.Error(),
			"folderId": mapped.FolderID,
			"windowId": mapped.WindowID,
		})
	case errors.Is(err, engine.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "empty_title", err.Error())
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
