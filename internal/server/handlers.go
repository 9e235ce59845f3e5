package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/embedding"
	"github.com/finsight/docindex/internal/index"
	"github.com/finsight/docindex/internal/models"
)

type queryRequest struct {
	Query          string   `json:"query"`
	K              int      `json:"k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

type queryResult struct {
	Text          string            `json:"text"`
	Score         float64           `json:"score"`
	DocumentID    string            `json:"document_id"`
	ChunkSequence int               `json:"chunk_sequence"`
	SectionLabel  string            `json:"section_label,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type queryResponse struct {
	Query        string        `json:"query"`
	Results      []queryResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	threshold := index.NoScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("k", req.K))

	scored, err := s.service.Query(r.Context(), req.Query, req.K, threshold)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}

	results := make([]queryResult, len(scored))
	for i, sc := range scored {
		results[i] = queryResult{
			Text:          sc.Chunk.Text,
			Score:         sc.Score,
			DocumentID:    sc.Chunk.DocumentID,
			ChunkSequence: sc.Chunk.ChunkSequence,
			SectionLabel:  sc.Chunk.SectionLabel,
			Metadata:      sc.Chunk.Metadata,
		}
	}
	s.respondJSON(w, http.StatusOK, queryResponse{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
	})
}

type indexRequest struct {
	Texts     []string            `json:"texts,omitempty"`
	Metadata  []map[string]string `json:"metadata,omitempty"`
	Documents []models.Document   `json:"documents,omitempty"`
	Directory string              `json:"directory,omitempty"`
}

type indexResponse struct {
	ChunksIndexed  int     `json:"chunks_indexed"`
	ProcessingTime float64 `json:"processing_time"`
	Status         string  `json:"status"`
}

func (s *Server) handleIndexDocuments(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Texts) == 0 && len(req.Documents) == 0 && req.Directory == "" {
		s.respondError(w, http.StatusBadRequest, "texts, documents or directory is required")
		return
	}
	start := time.Now()
	total := 0

	if len(req.Texts) > 0 {
		n, err := s.service.AddTexts(r.Context(), req.Texts, req.Metadata)
		if err != nil {
			s.logger.Error("indexing texts failed", zap.Error(err))
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		total += n
	}
	if len(req.Documents) > 0 {
		n, err := s.service.AddDocuments(r.Context(), req.Documents)
		if err != nil {
			s.logger.Error("indexing documents failed", zap.Error(err))
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		total += n
	}
	if req.Directory != "" {
		_, n, err := s.loader.LoadDirectory(r.Context(), req.Directory, nil)
		if err != nil {
			s.logger.Error("indexing directory failed", zap.Error(err))
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		total += n
	}

	s.logger.Debug("index request complete", zap.Int("chunks", total))
	s.respondJSON(w, http.StatusCreated, indexResponse{
		ChunksIndexed:  total,
		ProcessingTime: time.Since(start).Seconds(),
		Status:         "success",
	})
}

type statsResponse struct {
	TotalDocuments  int   `json:"total_documents"`
	VectorDimension int   `json:"vector_dimension"`
	IndexSizeBytes  int64 `json:"index_size_bytes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats()
	s.respondJSON(w, http.StatusOK, statsResponse{
		TotalDocuments:  stats.TotalDocuments,
		VectorDimension: stats.VectorDimension,
		IndexSizeBytes:  stats.IndexSizeBytes,
	})
}

type healthResponse struct {
	Status  string        `json:"status"`
	Service string        `json:"service"`
	Version string        `json:"version"`
	Stats   statsResponse `json:"vector_store_stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats()
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "docindex",
		Version: Version,
		Stats: statsResponse{
			TotalDocuments:  stats.TotalDocuments,
			VectorDimension: stats.VectorDimension,
			IndexSizeBytes:  stats.IndexSizeBytes,
		},
	})
}

// statusForError maps domain errors to HTTP status codes. Validation
// failures are client errors, gateway failures are upstream errors.
func statusForError(err error) int {
	switch {
	case errors.Is(err, index.ErrEmptyText), errors.Is(err, index.ErrInvalidK):
		return http.StatusBadRequest
	default:
		var gw *embedding.GatewayError
		if errors.As(err, &gw) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
