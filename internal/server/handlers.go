package server

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/history"
	"github.com/chakssp/convergd/internal/knowledge"
	"github.com/chakssp/convergd/internal/vectorstore"
	"github.com/chakssp/convergd/pkg/convergence"
	"github.com/chakssp/convergd/pkg/identity"
)

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// EvaluateRequest is the POST /api/v1/convergence/evaluate body. With no
// inline iterations the stored history for the file is evaluated.
type EvaluateRequest struct {
	FileID     string                  `json:"file_id"`
	Iterations []convergence.Iteration `json:"iterations,omitempty"`
}

func (s *Server) handleEvaluate(c echo.Context) error {
	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_id is required")
	}

	iterations := req.Iterations
	if len(iterations) == 0 {
		stored, err := s.deps.History.History(c.Request().Context(), req.FileID)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no stored history for file")
			}
			s.logger.Error("loading history", zap.String("file_id", req.FileID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "loading history failed")
		}
		iterations = stored
	}

	result, err := s.deps.Engine.Evaluate(c.Request().Context(), req.FileID, iterations)
	if err != nil {
		switch {
		case errors.Is(err, convergence.ErrInsufficientHistory):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, convergence.ErrInvalidConfidence),
			errors.Is(err, convergence.ErrEmptyLabel),
			errors.Is(err, convergence.ErrEmptyFileID):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("evaluation failed", zap.String("file_id", req.FileID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "evaluation failed")
		}
	}

	s.stats.recordEvaluation(result)
	if err := s.deps.Events.PublishEvaluation(result); err != nil {
		// Events are best-effort; the evaluation already succeeded.
		s.logger.Warn("publishing evaluation event",
			zap.String("file_id", result.FileID), zap.Error(err))
	}

	return c.JSON(http.StatusOK, result)
}

// AppendResponse is the POST /api/v1/files/:id/iterations payload.
type AppendResponse struct {
	FileID     string `json:"file_id"`
	Iterations int    `json:"iterations"`
}

func (s *Server) handleAppendIteration(c echo.Context) error {
	fileID := c.Param("id")

	var iter convergence.Iteration
	if err := c.Bind(&iter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if iter.Label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "label is required")
	}
	if iter.Confidence < 0 || iter.Confidence > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "confidence must be in [0,1]")
	}
	if iter.Timestamp.IsZero() {
		iter.Timestamp = time.Now().UTC()
	}

	ctx := c.Request().Context()
	if err := s.deps.History.Append(ctx, fileID, iter); err != nil {
		if errors.Is(err, history.ErrEmptyFileID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("appending iteration", zap.String("file_id", fileID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "appending iteration failed")
	}

	// The stored history changed; cached evaluations are stale.
	s.deps.Engine.InvalidateFile(fileID)

	stored, err := s.deps.History.History(ctx, fileID)
	if err != nil {
		s.logger.Error("reading back history", zap.String("file_id", fileID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reading history failed")
	}

	return c.JSON(http.StatusCreated, AppendResponse{FileID: fileID, Iterations: len(stored)})
}

// HistoryResponse is the GET /api/v1/files/:id/history payload.
type HistoryResponse struct {
	FileID     string                  `json:"file_id"`
	Iterations []convergence.Iteration `json:"iterations"`
}

func (s *Server) handleHistory(c echo.Context) error {
	fileID := c.Param("id")

	stored, err := s.deps.History.History(c.Request().Context(), fileID)
	if err != nil {
		switch {
		case errors.Is(err, history.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no stored history for file")
		case errors.Is(err, history.ErrEmptyFileID):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("loading history", zap.String("file_id", fileID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "loading history failed")
		}
	}

	return c.JSON(http.StatusOK, HistoryResponse{FileID: fileID, Iterations: stored})
}

// ResolveRequest is the POST /api/v1/identity/resolve body. Either inline
// records or a from_search query that pulls candidates from the vector
// store.
type ResolveRequest struct {
	Records    []identity.ExternalRecord `json:"records,omitempty"`
	FromSearch string                    `json:"from_search,omitempty"`
	Limit      int                       `json:"limit,omitempty"`
}

// ResolveResponse is the POST /api/v1/identity/resolve payload.
type ResolveResponse struct {
	Records     int `json:"records"`
	Keys        int `json:"keys"`
	MappingSize int `json:"mapping_size"`
}

func (s *Server) handleResolve(c echo.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	records := req.Records
	if req.FromSearch != "" {
		if s.deps.Search == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "vector store not configured")
		}
		limit := req.Limit
		if limit <= 0 {
			limit = 25
		}
		results, err := s.deps.Search.Search(c.Request().Context(), req.FromSearch, limit)
		if err != nil {
			s.logger.Error("search for resolve", zap.String("query", req.FromSearch), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "vector search failed")
		}
		records = vectorstore.ExternalRecords(results)
	}

	mapping := s.deps.Normalizer.ResolveIdentity(c.Request().Context(), records)

	return c.JSON(http.StatusOK, ResolveResponse{
		Records:     len(records),
		Keys:        mapping.KeyCount(),
		MappingSize: s.deps.Normalizer.MappingSize(),
	})
}

func (s *Server) handleConfidence(c echo.Context) error {
	externalID := c.Param("externalId")
	result := s.deps.Normalizer.LookupConfidence(c.Request().Context(), externalID)
	return c.JSON(http.StatusOK, result)
}

// SearchResponse is the GET /api/v1/search payload.
type SearchResponse struct {
	Query   string                    `json:"query"`
	Count   int                       `json:"count"`
	Records []identity.ExternalRecord `json:"records"`
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.deps.Search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "vector store not configured")
	}

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	k := 10
	if err := echo.QueryParamsBinder(c).Int("k", &k).BindError(); err != nil || k <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
	}

	results, err := s.deps.Search.Search(c.Request().Context(), query, k)
	if err != nil {
		s.logger.Error("vector search", zap.String("query", query), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "vector search failed")
	}

	records := vectorstore.ExternalRecords(results)
	return c.JSON(http.StatusOK, SearchResponse{
		Query:   query,
		Count:   len(records),
		Records: records,
	})
}

// CategoriesResponse is the GET /api/v1/categories payload.
type CategoriesResponse struct {
	Categories   []knowledge.Category      `json:"categories"`
	Counts       []knowledge.CategoryCount `json:"counts"`
	CuratedFiles int                       `json:"curated_files"`
}

func (s *Server) handleCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, CategoriesResponse{
		Categories:   s.deps.Registry.Categories(),
		Counts:       s.deps.Registry.Counts(),
		CuratedFiles: s.deps.Registry.CuratedFiles(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	historyFiles := 0
	if files, err := s.deps.History.Files(c.Request().Context()); err == nil {
		historyFiles = len(files)
	} else {
		s.logger.Warn("listing history files for stats", zap.Error(err))
	}

	return c.JSON(http.StatusOK, StatsResponse{
		UptimeSeconds: s.stats.uptime().Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		Evaluations:   s.stats.snapshot(),
		Cache:         s.deps.Engine.CacheStats(),
		Identity: IdentityStats{
			LookupStats: s.deps.Normalizer.Stats(),
			MappingSize: s.deps.Normalizer.MappingSize(),
		},
		Categories:   s.deps.Registry.Counts(),
		HistoryFiles: historyFiles,
	})
}
