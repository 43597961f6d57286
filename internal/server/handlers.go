package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/config"
	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/models"
	"github.com/hyperjump/medialens/internal/storage"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := models.StatsResponse{
		Stats:         s.engine.Stats(),
		Dimensions:    s.engine.Dimensions(),
		IndexDir:      s.engine.IndexDir(),
		FrameInterval: s.engine.FrameInterval(),
	}
	paths := []string{s.engine.IndexDir()}
	if s.config != nil && s.config.Storage.CatalogPath != "" {
		paths = append(paths, storage.CatalogFiles(s.config.Storage.CatalogPath)...)
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		resp.DiskUsageBytes = n
	} else {
		s.logger.Warn("stats: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, err)
		return
	}
	entries := s.engine.List()
	total := len(entries)
	entries = page(entries, offset, limit)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"offset":  offset,
	})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			"index must be an integer", lenserr.Field("index", chi.URLParam(r, "index"))))
		return
	}
	md, err := s.engine.Get(i)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ledger.Entry{Index: i, Metadata: md})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Debug("register request", zap.String("path", req.Path), zap.String("kind", req.Kind))

	ctx := r.Context()
	var (
		idx int
		err error
	)
	switch req.Kind {
	case models.QueryImage:
		idx, err = s.engine.RegisterImage(ctx, req.Path)
	case models.QueryVideo:
		idx, err = s.engine.RegisterVideo(ctx, req.Path, req.IntervalSec)
	default:
		idx, err = s.engine.Register(ctx, req.Path, req.IntervalSec)
	}
	if err != nil {
		s.logError("registration failed", err, zap.String("path", req.Path))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.RegisterResponse{Indices: []int{idx}, Path: req.Path})
}

func (s *Server) handleRegisterDirectory(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterDirectoryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if req.Path == "" {
		s.respondError(w, lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "path is required"))
		return
	}
	s.logger.Debug("register directory request", zap.String("path", req.Path), zap.Bool("recursive", req.Recursive))
	indices, err := s.engine.RegisterDirectory(r.Context(), req.Path, req.Recursive, req.IntervalSec)
	if err != nil {
		s.logError("directory registration failed", err, zap.String("path", req.Path))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.RegisterResponse{Indices: indices, Path: req.Path})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	defaultLimit, maxLimit := 10, 100
	if s.config != nil {
		defaultLimit, maxLimit = s.config.Search.DefaultLimit, s.config.Search.MaxLimit
	}
	if err := req.Validate(defaultLimit, maxLimit); err != nil {
		s.respondError(w, err)
		return
	}

	resp, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		s.logError("search failed", err, zap.String("kind", req.Kind()))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	before := s.engine.Stats().Total
	if err := s.engine.Clear(r.Context()); err != nil {
		s.logError("clear failed", err)
		s.respondError(w, err)
		return
	}
	s.logger.Info("index cleared via API", zap.Int("removed", before))
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "cleared", "removed": before})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	abs, err := absDir(req.Path)
	if err != nil {
		s.respondError(w, err)
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logError("watch add directory failed", err)
		s.respondError(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "path is required (query or body)"))
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, lenserr.Wrap(err, lenserr.CodeServerRequestInvalid, "invalid path"))
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logError("watch remove directory failed", err)
		s.respondError(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch list back to the config file.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func absDir(path string) (string, error) {
	if path == "" {
		return "", lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", lenserr.Wrap(err, lenserr.CodeServerRequestInvalid, "invalid path")
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound, "directory not found", lenserr.FieldPath(abs))
		}
		return "", lenserr.Wrap(err, lenserr.CodeServerInternalFailure, "failed to stat directory")
	}
	if !info.IsDir() {
		return "", lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "path is not a directory", lenserr.FieldPath(abs))
	}
	return abs, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "request body is empty")
		}
		return lenserr.Mark(err, lenserr.ErrInvalidInput, lenserr.CodeServerRequestInvalid, "invalid request body")
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			name+" must be a non-negative integer", lenserr.Field(name, raw))
	}
	return n, nil
}

// page slices entries by offset and limit; limit 0 means no limit.
func page(entries []ledger.Entry, offset, limit int) []ledger.Entry {
	if offset >= len(entries) {
		return []ledger.Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func (s *Server) logError(msg string, err error, fields ...zap.Field) {
	if lenserr.HTTPStatus(err) >= http.StatusInternalServerError {
		s.logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	s.logger.Debug(msg, append(fields, zap.Error(err))...)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if code := lenserr.CodeOf(err); code != "" {
		body["code"] = code
	}
	s.respondJSON(w, lenserr.HTTPStatus(err), body)
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
