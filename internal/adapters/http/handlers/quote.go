package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minjae-lim/daily-quotes/internal/adapters/http/dto"
	"github.com/minjae-lim/daily-quotes/internal/app"
	"github.com/minjae-lim/daily-quotes/internal/domain"
)

// quoteCacheControl is the client-side caching hint on quote responses.
const quoteCacheControl = "public, max-age=300"

// QuoteHandler handles quote resolution HTTP endpoints.
type QuoteHandler struct {
	resolver *app.Resolver
	retry    app.RetryPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(resolver *app.Resolver, retry app.RetryPolicy, logger *slog.Logger) *QuoteHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteHandler{
		resolver: resolver,
		retry:    retry,
		logger:   logger,
		now:      time.Now,
	}
}

// QuoteResponse is the HTTP response structure for a resolved quote.
type QuoteResponse struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Message       string `json:"message"`
	Author        string `json:"author"`
	AuthorProfile string `json:"authorProfile,omitempty"`
	Fallback      bool   `json:"fallback"`

	// ErrorType carries the terminal fetch classification when a requested
	// refresh could not produce a fresh quote. Empty otherwise.
	ErrorType string `json:"errorType,omitempty"`
}

// toQuoteResponse converts a domain Quote to an HTTP response.
func toQuoteResponse(q *domain.Quote) *QuoteResponse {
	return &QuoteResponse{
		ID:            q.ID,
		Date:          q.Date,
		Message:       q.Message,
		Author:        q.Author,
		AuthorProfile: q.AuthorProfile,
		// A fallback that repopulated an evicted entry keeps its original
		// ID, so the carried marker decides alongside the ID shape.
		Fallback:      q.Fallback || app.IsFallbackID(q.ID),
	}
}

// PrefetchRequest is the body for POST /api/v1/quotes/prefetch.
type PrefetchRequest struct {
	Dates []string `json:"dates" validate:"required,min=1,max=31"`
}

// GetToday handles GET /api/v1/quotes/today.
// Resolves the quote for the current date.
func (h *QuoteHandler) GetToday(c *gin.Context) {
	h.respondWithQuote(c, domain.FormatDate(h.now()), false)
}

// GetByDate handles GET /api/v1/quotes/:date.
//
// The date must be a well-formed YYYY-MM-DD string and not in the future.
// Past those checks the endpoint always answers 200: upstream failures
// degrade to the deterministic fallback, flagged in the payload rather than
// surfaced as an error status. ?refresh=1 forces a fresh remote fetch under
// the retry policy before accepting a fallback.
func (h *QuoteHandler) GetByDate(c *gin.Context) {
	date := c.Param("date")

	if !domain.IsValidDate(date) {
		dto.RespondWithErrorCode(c, dto.ErrorCodeValidation, "date must be a valid YYYY-MM-DD string")
		return
	}

	if domain.IsFutureDate(date, h.now()) {
		dto.RespondWithErrorCode(c, dto.ErrorCodeValidation, "cannot request a quote for a future date")
		return
	}

	refresh := c.Query("refresh") == "1"
	h.respondWithQuote(c, date, refresh)
}

// respondWithQuote resolves one date and writes the always-200 response.
func (h *QuoteHandler) respondWithQuote(c *gin.Context, date string, refresh bool) {
	ctx := c.Request.Context()

	var (
		quote   *domain.Quote
		errType string
		err     error
	)

	if refresh {
		quote, errType, err = h.fetchFreshWithRetry(ctx, date)
	} else {
		quote, err = h.resolver.GetQuoteForDate(ctx, date)
	}

	if err != nil {
		dto.HandleError(c, err)
		return
	}

	// Warm the neighboring dates so day-to-day navigation hits the cache.
	go h.prefetchAdjacent(context.WithoutCancel(ctx), date)

	resp := toQuoteResponse(quote)
	resp.ErrorType = errType

	c.Header("Cache-Control", quoteCacheControl)
	c.JSON(http.StatusOK, resp)
}

// fetchFreshWithRetry drives the retry policy over forced remote fetches.
// After the attempt budget is exhausted the resolver's normal resolution,
// fallback included, decides the response; the terminal classification is
// returned so the caller can surface it alongside the quote.
func (h *QuoteHandler) fetchFreshWithRetry(ctx context.Context, date string) (*domain.Quote, string, error) {
	var quote *domain.Quote

	err := h.retry.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		quote, fetchErr = h.resolver.FetchFresh(ctx, date)

		return fetchErr
	})
	if err == nil {
		return quote, "", nil
	}

	errType := string(domain.ClassifyFetchError(err))

	h.logger.WarnContext(ctx, "fresh fetch exhausted retries, resolving normally",
		slog.String("date", date),
		slog.String("error_type", errType),
	)

	quote, err = h.resolver.GetQuoteForDate(ctx, date)

	return quote, errType, err
}

// prefetchAdjacent warms the dates around a focus date.
func (h *QuoteHandler) prefetchAdjacent(ctx context.Context, date string) {
	if dates := domain.AdjacentDates(date, h.now()); len(dates) > 0 {
		h.resolver.Prefetch(ctx, dates)
	}
}

// Prefetch handles POST /api/v1/quotes/prefetch.
// Accepts a list of dates and warms them in the background.
func (h *QuoteHandler) Prefetch(c *gin.Context) {
	var req PrefetchRequest

	if err := dto.BindAndValidate(c, &req); err != nil {
		if fieldErrors := dto.ValidationErrors(err); len(fieldErrors) > 0 {
			dto.RespondWithValidationErrors(c, fieldErrors)
			return
		}

		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid request body")

		return
	}

	for _, date := range req.Dates {
		if !domain.IsValidDate(date) {
			dto.RespondWithErrorCode(c, dto.ErrorCodeValidation, "dates must be valid YYYY-MM-DD strings")
			return
		}
	}

	go h.resolver.Prefetch(context.WithoutCancel(c.Request.Context()), req.Dates)

	c.JSON(http.StatusAccepted, gin.H{"accepted": len(req.Dates)})
}

// RegisterQuoteRoutes registers quote routes on the given router group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("/today", h.GetToday)
	quotes.POST("/prefetch", h.Prefetch)
	quotes.GET("/:date", h.GetByDate)
}
