package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minjae-lim/daily-quotes/internal/adapters/http/dto"
	"github.com/minjae-lim/daily-quotes/internal/domain"
	"github.com/minjae-lim/daily-quotes/internal/ports"
)

// defaultHistoryWindowDays is the range queried when from/to are omitted.
const defaultHistoryWindowDays = 30

// HistoryHandler serves the durable quote history.
type HistoryHandler struct {
	store  ports.HistoryStore
	logger *slog.Logger
	now    func() time.Time
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(store ports.HistoryStore, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HistoryHandler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// HistoryRecordResponse is one history entry as returned by the API.
type HistoryRecordResponse struct {
	Date          string    `json:"date"`
	QuoteID       string    `json:"quoteId"`
	Message       string    `json:"message"`
	Author        string    `json:"author"`
	AuthorProfile string    `json:"authorProfile,omitempty"`
	APISource     string    `json:"apiSource,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// toHistoryResponse converts a domain record to its API shape.
func toHistoryResponse(rec domain.HistoryRecord) HistoryRecordResponse {
	return HistoryRecordResponse{
		Date:          rec.Date,
		QuoteID:       rec.QuoteID,
		Message:       rec.Message,
		Author:        rec.Author,
		AuthorProfile: rec.AuthorProfile,
		APISource:     rec.APISource,
		CreatedAt:     rec.CreatedAt,
	}
}

// historyRangeRequest holds the query parameters for GET /api/v1/history.
type historyRangeRequest struct {
	dto.PaginationRequest

	From string `form:"from"`
	To   string `form:"to"`
}

// GetRange handles GET /api/v1/history?from&to&limit&cursor.
//
// Records are returned newest-date first. When from/to are omitted the last
// 30 days are queried. Pagination is cursor-based: the cursor marks the last
// date of the previous page and the next page continues strictly before it.
func (h *HistoryHandler) GetRange(c *gin.Context) {
	var req historyRangeRequest

	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		if fieldErrors := dto.ValidationErrors(err); len(fieldErrors) > 0 {
			dto.RespondWithValidationErrors(c, fieldErrors)
			return
		}

		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid query parameters")

		return
	}

	start, end, ok := h.resolveRange(c, req.From, req.To)
	if !ok {
		return
	}

	// A cursor moves the upper bound to just before the previous page's
	// last date, keeping pages stable as new records are written.
	cursor, err := req.DecodeCursor()

	switch {
	case err == nil:
		if !domain.IsValidDate(cursor.Value) {
			dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
			return
		}

		end = previousDate(cursor.Value)
	case errors.Is(err, dto.ErrNoCursor):
		// first page
	default:
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
		return
	}

	limit := req.GetLimit()

	// Over-fetch by one to detect whether another page exists.
	records, err := h.store.GetRange(c.Request.Context(), start, end, limit+1)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "history range query failed", slog.Any("error", err))
		dto.RespondWithErrorCode(c, dto.ErrorCodeUnavailable, "history is temporarily unavailable")

		return
	}

	items := make([]HistoryRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toHistoryResponse(rec))
	}

	resp := dto.NewPaginatedResponse(items, limit, func(item HistoryRecordResponse) *dto.CursorData {
		return dto.NewCursor("date", item.Date, item.QuoteID)
	})

	c.JSON(http.StatusOK, resp)
}

// recentRequest holds the query parameters for GET /api/v1/history/recent.
type recentRequest struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetRecent handles GET /api/v1/history/recent?limit.
// Returns the most recently recorded quotes, newest first.
func (h *HistoryHandler) GetRecent(c *gin.Context) {
	var req recentRequest

	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		if fieldErrors := dto.ValidationErrors(err); len(fieldErrors) > 0 {
			dto.RespondWithValidationErrors(c, fieldErrors)
			return
		}

		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid query parameters")

		return
	}

	records, err := h.store.GetRecent(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "recent history query failed", slog.Any("error", err))
		dto.RespondWithErrorCode(c, dto.ErrorCodeUnavailable, "history is temporarily unavailable")

		return
	}

	items := make([]HistoryRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toHistoryResponse(rec))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// resolveRange validates the from/to parameters and applies the default
// window. Reports false after writing an error response.
func (h *HistoryHandler) resolveRange(c *gin.Context, from, to string) (string, string, bool) {
	now := h.now()

	if to == "" {
		to = domain.FormatDate(now)
	}

	if from == "" {
		from = domain.FormatDate(now.AddDate(0, 0, -(defaultHistoryWindowDays - 1)))
	}

	if !domain.IsValidDate(from) || !domain.IsValidDate(to) {
		dto.RespondWithErrorCode(c, dto.ErrorCodeValidation, "from and to must be valid YYYY-MM-DD strings")
		return "", "", false
	}

	if from > to {
		dto.RespondWithErrorCode(c, dto.ErrorCodeValidation, "from must not be after to")
		return "", "", false
	}

	return from, to, true
}

// previousDate returns the day before a valid date string.
func previousDate(date string) string {
	t, _ := domain.ParseDate(date)
	return domain.FormatDate(t.AddDate(0, 0, -1))
}

// RegisterHistoryRoutes registers history routes on the given router group.
func (h *HistoryHandler) RegisterHistoryRoutes(rg *gin.RouterGroup) {
	history := rg.Group("/history")
	history.GET("", h.GetRange)
	history.GET("/recent", h.GetRecent)
}
