package kb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/keyword"
	"github.com/kotobalab/honyaku/internal/llm"
	"github.com/kotobalab/honyaku/internal/models"
	"github.com/kotobalab/honyaku/internal/vectorstore"
)

const queryPromptTemplate = `Answer the question using the reference material below. If the material does not cover the question, answer from general knowledge and say so.

Reference material:
%s

Question:
%s`

// Service implements document operations against knowledge-base stores:
// embedding, deletion, retrieval-augmented queries, and keyword search.
type Service struct {
	controller *Controller
	model      llm.LanguageModel
	logger     *zap.Logger

	topK      int
	threshold float64
}

// NewService creates a service with the given retrieval defaults.
func NewService(controller *Controller, model llm.LanguageModel, logger *zap.Logger, topK int, threshold float64) *Service {
	return &Service{
		controller: controller,
		model:      model,
		logger:     logger,
		topK:       topK,
		threshold:  threshold,
	}
}

// Embed stores a document in a knowledge base and indexes it for both vector
// and keyword search. An empty kbID targets the active knowledge base; an
// empty docID gets a generated one. Returns the document id.
func (s *Service) Embed(ctx context.Context, content, filename, kbID, docID string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: no content provided", ErrInvalidOperation)
	}
	if kbID == "" {
		kbID = s.controller.ActiveID()
	}
	if docID == "" {
		docID = uuid.New().String()
	}

	err := s.controller.WithHandle(ctx, kbID, func(h *vectorstore.Handle) error {
		meta := models.DocumentMeta{
			Source:          filename,
			KnowledgeBaseID: kbID,
			DocID:           docID,
			AddedAt:         time.Now().UTC(),
		}
		if err := h.Index().Add(ctx, []string{content}, []models.DocumentMeta{meta}, []string{docID}); err != nil {
			return err
		}
		if err := h.Keyword().Add(ctx, docID, content, filename); err != nil {
			return err
		}
		return h.Index().Persist()
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("document embedded",
		zap.String("knowledge_base_id", kbID),
		zap.String("doc_id", docID),
		zap.String("source", filename))
	return docID, nil
}

// DeleteDocument removes every chunk of a document from a knowledge base.
func (s *Service) DeleteDocument(ctx context.Context, kbID, docID string) error {
	return s.controller.WithHandle(ctx, kbID, func(h *vectorstore.Handle) error {
		ids, err := h.Index().IDsByDocID(ctx, docID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: document %q", ErrNotFound, docID)
		}
		if err := h.Index().Delete(ctx, ids); err != nil {
			return err
		}
		if err := h.Keyword().Delete(ctx, ids); err != nil {
			return err
		}
		return h.Index().Persist()
	})
}

// Query answers a question with retrieval-augmented generation: the top
// matching chunks above the similarity threshold form the reference material
// for the language model. An empty context is allowed; the model then answers
// from general knowledge.
func (s *Service) Query(ctx context.Context, query, kbID string, settings *models.QuerySettings) (*models.QueryResult, error) {
	topK := s.topK
	threshold := s.threshold
	modelName := ""
	if settings != nil {
		if settings.Parameters.TopK != nil {
			topK = *settings.Parameters.TopK
		}
		if settings.Parameters.SimilarityThreshold != nil {
			threshold = *settings.Parameters.SimilarityThreshold
		}
		modelName = settings.ModelName
	}

	var result *models.QueryResult
	err := s.controller.WithHandle(ctx, kbID, func(h *vectorstore.Handle) error {
		scored, err := h.Index().SearchWithScore(ctx, query, topK)
		if err != nil {
			return err
		}

		chunks := make([]*models.ScoredChunk, 0, len(scored))
		texts := make([]string, 0, len(scored))
		for _, chunk := range scored {
			if chunk.Score < threshold {
				continue
			}
			chunks = append(chunks, chunk)
			texts = append(texts, chunk.Content)
		}

		prompt := fmt.Sprintf(queryPromptTemplate, strings.Join(texts, "\n"), query)
		answer, err := s.model.CompleteWithModel(ctx, modelName, "", prompt)
		if err != nil {
			return err
		}
		result = &models.QueryResult{Answer: answer, RelevantChunks: chunks}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Documents lists the files stored in a knowledge base.
func (s *Service) Documents(ctx context.Context, kbID string) ([]*models.FileEntry, error) {
	var entries []*models.FileEntry
	err := s.controller.WithHandle(ctx, kbID, func(h *vectorstore.Handle) error {
		var ferr error
		entries, ferr = h.Index().Files(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SearchKeyword runs a full-text query against a knowledge base.
func (s *Service) SearchKeyword(ctx context.Context, kbID, query string, limit int) ([]*keyword.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []*keyword.Result
	err := s.controller.WithHandle(ctx, kbID, func(h *vectorstore.Handle) error {
		var serr error
		results, serr = h.Keyword().Search(ctx, query, limit)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
