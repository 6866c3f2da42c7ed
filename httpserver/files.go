package httpserver

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mediaquotes/docsport/i18n"
)

// safePath resolves a user-supplied path against the project root and
// refuses anything that escapes it. Symlinks are resolved before the
// containment check so a link inside the root cannot point out of it.
func (s *Server) safePath(path string) (string, error) {
	root, err := filepath.Abs(s.cfg.Project.Root)
	if err != nil {
		return "", err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		// The file may not exist yet (save of a new file); resolve its
		// parent and re-attach the final component.
		parent, perr := filepath.EvalSymlinks(filepath.Dir(abs))
		if perr != nil {
			return "", fmt.Errorf("path escapes project root: %s", path)
		}
		resolved = filepath.Join(parent, filepath.Base(abs))
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes project root: %s", path)
	}
	return resolved, nil
}

type fileEntry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	root, err := filepath.Abs(s.cfg.Project.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var entries []fileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		entries = append(entries, fileEntry{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []fileEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	abs, err := s.safePath(path)
	if err != nil {
		writeError(w, http.StatusForbidden, i18n.T("forbidden_path", locale(r), nil))
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T("file_not_found", locale(r), map[string]string{"path": path}))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":    path,
		"content": string(data),
	})
}

type saveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleSaveFile(w http.ResponseWriter, r *http.Request) {
	var req saveFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	abs, err := s.safePath(req.Path)
	if err != nil {
		writeError(w, http.StatusForbidden, i18n.T("forbidden_path", locale(r), nil))
		return
	}

	if err := os.WriteFile(abs, []byte(req.Content), 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": i18n.T("file_saved", locale(r), map[string]string{"path": req.Path}),
	})
}
