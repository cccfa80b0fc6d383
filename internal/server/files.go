package server

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fileManagerEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// uploadsPath resolves a client-supplied relative path inside the uploads
// root. Anything that would escape the root is rejected.
func (s *Server) uploadsPath(rel string) (string, bool) {
	root := filepath.Clean(s.config.Storage.UploadDir)
	full := filepath.Join(root, filepath.Clean("/"+rel))
	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", false
	}
	return full, true
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	root := s.config.Storage.UploadDir
	entries := []*fileManagerEntry{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entry := &fileManagerEntry{Path: rel, IsDir: d.IsDir()}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		s.logger.Error("listing uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": entries})
}

func (s *Server) handleFilesUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	dir, ok := s.uploadsPath(r.FormValue("path"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dst := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rel, _ := filepath.Rel(filepath.Clean(s.config.Storage.UploadDir), dst)
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "uploaded", "path": rel})
}

func (s *Server) handleFilesContent(w http.ResponseWriter, r *http.Request) {
	path, ok := s.uploadsPath(chi.URLParam(r, "*"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleFilesDelete(w http.ResponseWriter, r *http.Request) {
	path, ok := s.uploadsPath(chi.URLParam(r, "*"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	if info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is a folder")
		return
	}
	if err := os.Remove(path); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type createFolderRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleFilesCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	path, ok := s.uploadsPath(req.Path)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "created", "path": req.Path})
}

func (s *Server) handleFilesDeleteFolder(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel == "" || rel == "." {
		s.respondError(w, http.StatusBadRequest, "cannot delete the uploads root")
		return
	}
	path, ok := s.uploadsPath(rel)
	if !ok || path == filepath.Clean(s.config.Storage.UploadDir) {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "folder not found")
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a folder")
		return
	}
	if err := os.RemoveAll(path); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
