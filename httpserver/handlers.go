package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/diagram"
	"github.com/Mediaquotes/docsport/i18n"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func locale(r *http.Request) string {
	return i18n.DetectLocale(r.Header.Get("Accept-Language"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"project_root":        s.cfg.Project.Root,
		"interpreter":         s.cfg.Execution.Interpreter,
		"default_timeout_sec": s.cfg.Execution.DefaultTimeoutSec,
		"min_timeout_sec":     s.cfg.Execution.MinTimeoutSec,
		"max_timeout_sec":     s.cfg.Execution.MaxTimeoutSec,
	})
}

type executeRequest struct {
	Code       string `json:"code"`
	TimeoutSec int    `json:"timeout"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	timeout := req.TimeoutSec
	if timeout == 0 {
		timeout = s.cfg.Execution.DefaultTimeoutSec
	}
	if !s.cfg.TimeoutInRange(timeout) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("timeout %d outside allowed range [%d, %d]",
			timeout, s.cfg.Execution.MinTimeoutSec, s.cfg.Execution.MaxTimeoutSec))
		return
	}

	res := s.executor.Run(r.Context(), sandbox.Request{
		Code:    req.Code,
		Kind:    sandbox.KindPython,
		Timeout: time.Duration(timeout) * time.Second,
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := s.store.ListExecutions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []store.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type analyzeFileRequest struct {
	Path         string `json:"path"`
	ForceRefresh bool   `json:"force_refresh"`
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	var req analyzeFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	path, err := s.safePath(req.Path)
	if err != nil {
		writeError(w, http.StatusForbidden, i18n.T("forbidden_path", locale(r), nil))
		return
	}

	fa, err := s.analyzer.AnalyzeFile(r.Context(), path, req.ForceRefresh)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T("file_not_found", locale(r), map[string]string{"path": req.Path}))
		return
	}
	writeJSON(w, http.StatusOK, fa)
}

type analyzeProjectRequest struct {
	Root string `json:"root"`
}

func (s *Server) handleAnalyzeProject(w http.ResponseWriter, r *http.Request) {
	var req analyzeProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	root := req.Root
	if root == "" {
		root = s.cfg.Project.Root
	}

	pa, err := s.analyzer.AnalyzeProject(r.Context(), root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(pa.Files) == 0 {
		writeError(w, http.StatusNotFound, i18n.T("no_go_files", locale(r), nil))
		return
	}
	writeJSON(w, http.StatusOK, pa)
}

func (s *Server) handleFlowchart(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		pa, err := s.analyzer.AnalyzeProject(r.Context(), s.cfg.Project.Root)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"mermaid": diagram.ProjectFlowchart(pa)})
		return
	}

	fa, err := s.analyzeFor(w, r, path)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mermaid": diagram.FileFlowchart(fa)})
}

func (s *Server) handleClassDiagram(w http.ResponseWriter, r *http.Request) {
	fa, err := s.analyzeFor(w, r, r.URL.Query().Get("path"))
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mermaid": diagram.ClassDiagram(fa.Elements)})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	fa, err := s.analyzeFor(w, r, r.URL.Query().Get("path"))
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, diagram.BuildGraph(fa))
}

// analyzeFor validates the path and analyzes it, writing the error response
// itself so callers can simply return on error.
func (s *Server) analyzeFor(w http.ResponseWriter, r *http.Request, path string) (*analyzer.FileAnalysis, error) {
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return nil, fmt.Errorf("missing path")
	}
	abs, err := s.safePath(path)
	if err != nil {
		writeError(w, http.StatusForbidden, i18n.T("forbidden_path", locale(r), nil))
		return nil, err
	}
	fa, err := s.analyzer.AnalyzeFile(r.Context(), abs, false)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T("file_not_found", locale(r), map[string]string{"path": path}))
		return nil, err
	}
	return fa, nil
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	comments, err := s.store.ListComments(r.Context(), file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if comments == nil {
		comments = []store.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var c store.Comment
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if c.FilePath == "" || c.Text == "" {
		writeError(w, http.StatusBadRequest, "file_path and comment_text are required")
		return
	}

	id, err := s.store.CreateComment(r.Context(), &c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      id,
		"message": i18n.T("comment_created", locale(r), nil),
	})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	if err := s.store.DeleteComment(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, i18n.T("comment_not_found", locale(r), nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": i18n.T("comment_deleted", locale(r), nil),
	})
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := s.store.ListSnippets(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snippets == nil {
		snippets = []store.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

func (s *Server) handleSaveSnippet(w http.ResponseWriter, r *http.Request) {
	var sn store.Snippet
	if err := decodeJSON(r, &sn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if sn.Name == "" || sn.Code == "" {
		writeError(w, http.StatusBadRequest, "name and code are required")
		return
	}

	id, err := s.store.SaveSnippet(r.Context(), &sn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      id,
		"message": i18n.T("snippet_saved", locale(r), nil),
	})
}
