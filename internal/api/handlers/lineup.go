package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/dfs-coverage/internal/export"
	"github.com/stitts-dev/dfs-coverage/internal/optimizer"
	"github.com/stitts-dev/dfs-coverage/internal/types"
	"github.com/stitts-dev/dfs-coverage/pkg/cache"
	"github.com/stitts-dev/dfs-coverage/pkg/config"
	"github.com/stitts-dev/dfs-coverage/pkg/logger"
)

// PortfolioStore caches generate responses by request key
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, key string) (*types.GenerateResponse, error)
	SetPortfolio(ctx context.Context, key string, resp *types.GenerateResponse) error
}

// ProgressPublisher forwards search progress to subscribers of a run
type ProgressPublisher interface {
	SendProgress(update types.ProgressUpdate)
}

// LineupHandler serves lineup generation, validation and export
type LineupHandler struct {
	cache    PortfolioStore
	progress ProgressPublisher
	exporter *export.UploadExporter
	config   *config.Config
	logger   *logrus.Logger
}

// NewLineupHandler creates a new lineup handler. cache and progress may be nil.
func NewLineupHandler(
	cache PortfolioStore,
	progress ProgressPublisher,
	exporter *export.UploadExporter,
	config *config.Config,
	logger *logrus.Logger,
) *LineupHandler {
	return &LineupHandler{
		cache:    cache,
		progress: progress,
		exporter: exporter,
		config:   config,
		logger:   logger,
	}
}

// GenerateLineups enumerates, diversifies and reports a portfolio
func (h *LineupHandler) GenerateLineups(c *gin.Context) {
	var req types.GenerateRequest
	if !h.bindGenerateRequest(c, &req) {
		return
	}
	runID := req.RunID
	log := logger.WithRunContext(runID, req.ContestType)

	cacheKey := ""
	if h.cache != nil && cacheable(req) {
		key, err := cache.RequestKey(req)
		if err != nil {
			log.WithError(err).Warn("Failed to build cache key")
		} else {
			cacheKey = key
			cached, err := h.cache.GetPortfolio(c.Request.Context(), cacheKey)
			if err == nil {
				log.WithField("cache_key", cacheKey).Info("Returning cached portfolio")
				cached.RunID = runID
				c.JSON(http.StatusOK, cached)
				return
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.WithError(err).Warn("Portfolio cache lookup failed")
			}
		}
	}

	portfolio, err := h.buildPortfolio(c.Request.Context(), req, log)
	if err != nil {
		h.writeEngineError(c, err, log)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"valid":    portfolio.ValidLineups,
		"eligible": portfolio.EligibleLineups,
		"selected": len(portfolio.Selected),
		"elapsed":  portfolio.Elapsed.String(),
	}).Info("Generated lineup portfolio")

	response := types.GenerateResponse{
		RunID:           runID,
		ContestType:     portfolio.Set.Constraints().ContestType(),
		ValidLineups:    portfolio.ValidLineups,
		EligibleLineups: portfolio.EligibleLineups,
		Selected:        toLineupStats(portfolio.Stats),
		Exposure:        portfolio.Exposure,
		ElapsedMs:       portfolio.Elapsed.Milliseconds(),
	}

	if cacheKey != "" {
		if err := h.cache.SetPortfolio(c.Request.Context(), cacheKey, &response); err != nil {
			log.WithError(err).Warn("Failed to cache portfolio")
		}
	}

	c.JSON(http.StatusOK, response)
}

// ValidateLineup checks one explicit lineup against its contest rules
func (h *LineupHandler) ValidateLineup(c *gin.Context) {
	var req types.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}
	if req.ContestType == "" {
		req.ContestType = h.config.DefaultContestType
	}
	log := logger.WithRunContext("", req.ContestType)

	constraints, err := optimizer.GetConstraintsForContest(req.ContestType)
	if err != nil {
		h.writeEngineError(c, err, log)
		return
	}
	pool, err := optimizer.NewEntityPool(req.Lineup, constraints)
	if err != nil {
		h.writeEngineError(c, err, log)
		return
	}

	entities := pool.Entities()
	salary := 0
	for _, e := range entities {
		salary += e.Salary
	}
	response := types.ValidateResponse{
		Valid:     true,
		Salary:    salary,
		SalaryCap: constraints.SalaryCap(),
		Teams:     pool.Teams(),
	}
	if err := constraints.ValidateRoster(entities); err != nil {
		response.Valid = false
		response.Reason = err.Error()
	}

	c.JSON(http.StatusOK, response)
}

// ExportLineups builds the portfolio for a generate request and returns one
// upload batch as CSV
func (h *LineupHandler) ExportLineups(c *gin.Context) {
	batch, err := strconv.Atoi(c.DefaultQuery("batch", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid batch number",
			Code:  "INVALID_BATCH",
		})
		return
	}

	var req types.GenerateRequest
	if !h.bindGenerateRequest(c, &req) {
		return
	}
	log := logger.WithRunContext(req.RunID, req.ContestType)

	portfolio, err := h.buildPortfolio(c.Request.Context(), req, log)
	if err != nil {
		h.writeEngineError(c, err, log)
		return
	}

	data, err := h.exporter.ExportBatch(portfolio.Set, portfolio.Selected, batch)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNoLineups):
			c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
				Error: "No lineups satisfy the contest rules",
				Code:  "NO_LINEUPS",
			})
		case errors.Is(err, export.ErrBatchOutOfRange):
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "Upload batch out of range",
				Code:    "INVALID_BATCH",
				Details: map[string]string{"error": err.Error()},
			})
		default:
			h.writeEngineError(c, err, log)
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=lineups-%s-%d.csv", req.RunID, batch))
	c.Header("X-Upload-Batches", strconv.Itoa(h.exporter.NumBatches(len(portfolio.Selected))))
	c.Data(http.StatusOK, "text/csv", data)
}

func (h *LineupHandler) bindGenerateRequest(c *gin.Context, req *types.GenerateRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.WithHTTPContext(c.Request.Method, c.FullPath(), c.Request.UserAgent()).
			WithError(err).Debug("Rejected malformed generate request")
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return false
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	} else if _, err := uuid.Parse(req.RunID); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid run ID",
			Code:  "INVALID_RUN_ID",
		})
		return false
	}
	if req.ContestType == "" {
		req.ContestType = h.config.DefaultContestType
	}
	if req.PortfolioSize <= 0 {
		req.PortfolioSize = h.config.DefaultPortfolioSize
	}
	return true
}

func (h *LineupHandler) buildPortfolio(ctx context.Context, req types.GenerateRequest, log *logrus.Entry) (*optimizer.Portfolio, error) {
	constraints, err := optimizer.GetConstraintsForContest(req.ContestType)
	if err != nil {
		return nil, err
	}
	pool, err := optimizer.NewEntityPool(req.Draftables, constraints)
	if err != nil {
		return nil, err
	}
	pool = pool.Exclude(req.Search.Exclude)
	if req.Search.ProjectionsOnly {
		pool = pool.FilterByProjection(req.Search.ProjectionThreshold)
	}

	var cov mat.Matrix
	if len(req.Covariance) > 0 {
		aligned, err := optimizer.AlignCovariance(req.Draftables, req.Covariance, pool)
		if err != nil {
			return nil, err
		}
		cov = aligned
	}

	seed := req.Search.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if h.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.SearchTimeout)
		defer cancel()
	}

	h.publish(types.ProgressUpdate{RunID: req.RunID, Type: "search", Message: "Starting lineup search"})

	portfolio, err := optimizer.BuildPortfolio(ctx, pool, cov, optimizer.PortfolioOptions{
		Search: optimizer.SearchOptions{
			Limit:         req.Search.Limit,
			Random:        req.Search.Random,
			Rand:          rng,
			Workers:       h.config.SearchWorkers,
			MaxCandidates: h.config.MaxCandidates,
			Progress: func(p optimizer.SearchProgress) {
				update := types.ProgressUpdate{
					RunID:       req.RunID,
					Type:        "search",
					ShardsDone:  p.ShardsDone,
					ShardsTotal: p.ShardsTotal,
					Accepted:    p.Accepted,
				}
				if p.ShardsTotal > 0 {
					update.Progress = float64(p.ShardsDone) / float64(p.ShardsTotal)
				}
				h.publish(update)
			},
		},
		MinSalary: req.MinSalary,
		Size:      req.PortfolioSize,
		Diversify: optimizer.DiversifyOptions{
			Strategy: optimizer.StrategyByName(req.Strategy),
			Start:    optimizer.StartRule(req.Start),
			Rand:     rng,
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	h.publish(types.ProgressUpdate{
		RunID:    req.RunID,
		Type:     "completed",
		Progress: 1,
		Accepted: portfolio.ValidLineups,
		Message:  fmt.Sprintf("Selected %d of %d lineups", len(portfolio.Selected), portfolio.EligibleLineups),
	})
	return portfolio, nil
}

func (h *LineupHandler) publish(update types.ProgressUpdate) {
	if h.progress == nil {
		return
	}
	update.Timestamp = time.Now()
	h.progress.SendProgress(update)
}

func (h *LineupHandler) writeEngineError(c *gin.Context, err error, log *logrus.Entry) {
	status, code := http.StatusInternalServerError, "GENERATION_ERROR"
	switch {
	case errors.Is(err, optimizer.ErrUnsupportedContest),
		errors.Is(err, optimizer.ErrSlotMismatch),
		errors.Is(err, optimizer.ErrTooManyTeams),
		errors.Is(err, optimizer.ErrInvalidEntity),
		errors.Is(err, optimizer.ErrInvalidConstraint):
		status, code = http.StatusBadRequest, "INVALID_CONFIGURATION"
	case errors.Is(err, optimizer.ErrDimensionMismatch):
		status, code = http.StatusUnprocessableEntity, "DIMENSION_MISMATCH"
	case errors.Is(err, optimizer.ErrSearchSpaceTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "SEARCH_SPACE_TOO_LARGE"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "SEARCH_TIMEOUT"
	}

	entry := log.WithError(err).WithField("code", code)
	if status >= http.StatusInternalServerError {
		entry.Error("Lineup generation failed")
	} else {
		entry.Warn("Lineup request rejected")
	}

	c.JSON(status, types.ErrorResponse{
		Error: "Lineup generation failed",
		Code:  code,
		Details: map[string]string{
			"error": err.Error(),
		},
	})
}

// cacheable reports whether a request's result is reproducible
func cacheable(req types.GenerateRequest) bool {
	if req.Search.Seed != 0 {
		return true
	}
	return !req.Search.Random && optimizer.StartRule(req.Start) == optimizer.StartMaxVariance
}

func toLineupStats(stats []optimizer.LineupStats) []types.LineupStat {
	out := make([]types.LineupStat, len(stats))
	for i, st := range stats {
		out[i] = types.LineupStat{
			Row:        st.Row,
			Lineup:     st.Descriptor,
			Salary:     st.Salary,
			Projection: st.Projection,
			Actual:     st.Actual,
			Variance:   st.Variance,
		}
	}
	return out
}
