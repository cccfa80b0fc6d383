package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/extract"
	"github.com/kotobalab/honyaku/internal/models"
	"github.com/kotobalab/honyaku/internal/progress"
	"github.com/kotobalab/honyaku/internal/translate"
)

func (s *Server) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	bases, err := s.registry.List()
	if err != nil {
		s.logger.Error("listing knowledge bases failed", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"knowledge_bases": bases,
		"active_id":       s.controller.ActiveID(),
	})
}

type createKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req createKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	base, err := s.registry.Create(req.Name, req.Description)
	if err != nil {
		s.logger.Error("creating knowledge base failed", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, base)
}

func (s *Server) handleDeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controller.Delete(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleSwitchKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controller.SwitchTo(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "switched", "active_id": id})
}

func (s *Server) handleResetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controller.Reset(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset", "id": id})
}

func (s *Server) handleKnowledgeBaseFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.service.Documents(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.FileEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": entries})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	docID := chi.URLParam(r, "docID")
	if err := s.service.DeleteDocument(r.Context(), id, docID); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "doc_id": docID})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	results, err := s.service.SearchKeyword(r.Context(), id, query, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	opts := translate.Options{
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Country:    req.Country,
	}
	translated, err := s.pipeline.TranslateText(r.Context(), req.Text, opts)
	if err != nil {
		s.logger.Error("translation failed", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"translated_text": translated})
}

func (s *Server) handleUploadAndTranslate(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !extract.Allowed(header.Filename, s.config.Upload.AllowedExtensions) {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(header.Filename)))
		return
	}

	if err := os.MkdirAll(s.config.Storage.UploadDir, 0755); err != nil {
		s.logger.Error("creating upload directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	uploadPath := filepath.Join(s.config.Storage.UploadDir, filepath.Base(header.Filename))
	out, err := os.Create(uploadPath)
	if err != nil {
		s.logger.Error("saving upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := out.Close(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	translated, outPath, err := s.pipeline.TranslateFile(r.Context(), uploadPath, translate.Options{},
		func(completed int) {
			s.broadcaster.Publish(progress.Event{Progress: completed})
		})
	if err != nil {
		s.logger.Error("file translation failed", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"translated_text": translated,
		"output_file":     filepath.Base(outPath),
	})
}

type embedRequest struct {
	Content         string `json:"content"`
	Filename        string `json:"filename"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
	DocID           string `json:"doc_id,omitempty"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docID, err := s.service.Embed(r.Context(), req.Content, req.Filename, req.KnowledgeBaseID, req.DocID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "embedded", "doc_id": docID})
}

type queryRequest struct {
	Query           string                `json:"query"`
	KnowledgeBaseID string                `json:"knowledge_base_id,omitempty"`
	ModelSettings   *models.QuerySettings `json:"model_settings,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.service.Query(r.Context(), req.Query, req.KnowledgeBaseID, req.ModelSettings)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleEvents streams progress events as server-sent events until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
