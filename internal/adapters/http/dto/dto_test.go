package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewErrorResponse(t *testing.T) {
	got := NewErrorResponse(ErrorCodeNotFound, "quote not found")

	assert.Equal(t, ErrorCodeNotFound, got.Error.Code)
	assert.Equal(t, "quote not found", got.Error.Message)
	assert.Nil(t, got.Error.Details)
	assert.Empty(t, got.TraceID)
}

func TestNewErrorResponseWithDetails(t *testing.T) {
	details := map[string]string{
		"dates": "must not be empty",
	}

	got := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", details)

	assert.Equal(t, ErrorCodeValidation, got.Error.Code)
	assert.Equal(t, details, got.Error.Details)
}

func TestWithTraceID(t *testing.T) {
	resp := NewErrorResponse(ErrorCodeInternal, "boom").WithTraceID("trace-123")
	assert.Equal(t, "trace-123", resp.TraceID)
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeBadRequest, http.StatusBadRequest},
		{ErrorCodeForbidden, http.StatusForbidden},
		{ErrorCodeUnauthorized, http.StatusUnauthorized},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeTimeout, http.StatusGatewayTimeout},
		{ErrorCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromCode(tt.code))
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        domain.NewNotFoundError("history record", "2024-01-01"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "validation",
			err:        domain.NewValidationError("date", "must be a valid YYYY-MM-DD string"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidation,
		},
		{
			name:       "conflict",
			err:        domain.NewConflictError("date mapping", "already bound"),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:       "forbidden",
			err:        domain.NewForbiddenError("clear cache", "admin role required"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrorCodeForbidden,
		},
		{
			name:       "unavailable",
			err:        domain.NewUnavailableError("history-store", "connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeUnavailable,
		},
		{
			name:       "unknown error is generic internal",
			err:        errors.New("sql: database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestMapDomainError_Nil(t *testing.T) {
	status, resp := MapDomainError(nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp)
}

func TestMapDomainError_ValidationFieldDetails(t *testing.T) {
	_, resp := MapDomainError(domain.NewValidationError("date", "cannot be in the future"))

	require.NotNil(t, resp)
	assert.Equal(t, map[string]string{"date": "cannot be in the future"}, resp.Error.Details)
}

func TestMapDomainError_DoesNotLeakInternals(t *testing.T) {
	_, resp := MapDomainError(errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	require.NotNil(t, resp)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.NotContains(t, resp.Error.Message, "10.0.0.5")
}

func TestGetTraceID(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *gin.Context)
		want  string
	}{
		{
			name: "from gin context",
			setup: func(c *gin.Context) {
				c.Set("trace_id", "ctx-trace")
				c.Request.Header.Set("X-Request-ID", "header-trace")
			},
			want: "ctx-trace",
		},
		{
			name: "from request header",
			setup: func(c *gin.Context) {
				c.Request.Header.Set("X-Request-ID", "header-trace")
			},
			want: "header-trace",
		},
		{
			name:  "absent",
			setup: func(*gin.Context) {},
			want:  "",
		},
		{
			name: "non-string context value ignored",
			setup: func(c *gin.Context) {
				c.Set("trace_id", 42)
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/quotes/today", nil)
			tt.setup(c)

			assert.Equal(t, tt.want, GetTraceID(c))
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/quotes/2024-01-01", nil)
	c.Request.Header.Set("X-Request-ID", "req-1")

	HandleError(c, domain.NewNotFoundError("history record", "2024-01-01"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-1", resp.TraceID)
}

func TestRespondWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/quotes/nope", nil)

	RespondWithErrorCode(c, ErrorCodeValidation, "date must be a valid YYYY-MM-DD string")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/quotes/prefetch", nil)

	RespondWithValidationErrors(c, map[string]string{"dates": "must contain at most 31 items"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "must contain at most 31 items", resp.Error.Details["dates"])
}

func TestAbortWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/cache", nil)

	AbortWithErrorCode(c, ErrorCodeUnauthorized, "authentication required")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAbortWithError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)

	AbortWithError(c, domain.NewUnavailableError("history-store", "database is locked"))

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// prefetchBody mirrors the prefetch request shape for validation tests.
type prefetchBody struct {
	Dates []string `json:"dates" validate:"required,min=1,max=31"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   prefetchBody
		wantErr bool
	}{
		{
			name:  "valid",
			input: prefetchBody{Dates: []string{"2024-01-01", "2024-01-02"}},
		},
		{
			name:    "missing dates",
			input:   prefetchBody{},
			wantErr: true,
		},
		{
			name:    "empty dates",
			input:   prefetchBody{Dates: []string{}},
			wantErr: true,
		},
		{
			name:    "too many dates",
			input:   prefetchBody{Dates: make([]string, 32)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name: "valid body",
			body: `{"dates":["2024-01-01"]}`,
		},
		{
			name:    "malformed json",
			body:    `{"dates":`,
			wantErr: ErrBinding,
		},
		{
			name:    "fails validation",
			body:    `{"dates":[]}`,
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/quotes/prefetch", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req prefetchBody
			err := BindAndValidate(c, &req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=200", nil)

	var req PaginationRequest
	err := BindQueryAndValidate(c, &req)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidationErrors_FieldMessages(t *testing.T) {
	err := Validate(prefetchBody{})
	require.Error(t, err)

	fieldErrors := ValidationErrors(err)
	require.Len(t, fieldErrors, 1)
	assert.Equal(t, "this field is required", fieldErrors["dates"])
}

func TestValidationErrors_JSONTagNames(t *testing.T) {
	type body struct {
		QuoteID string `json:"quoteId" validate:"required"`
	}

	fieldErrors := ValidationErrors(Validate(body{}))
	assert.Contains(t, fieldErrors, "quoteId", "messages must be keyed by the JSON field name")
}

func TestValidationErrors_NonValidatorError(t *testing.T) {
	assert.Empty(t, ValidationErrors(errors.New("not a validator error")))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(Validate(prefetchBody{})))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestValidateUUIDTag(t *testing.T) {
	type body struct {
		ID string `json:"id" validate:"uuid"`
	}

	assert.NoError(t, Validate(body{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}))
	assert.NoError(t, Validate(body{}), "empty is allowed without the required tag")
	assert.Error(t, Validate(body{ID: "not-a-uuid"}))
}

func TestValidateNotEmptyTag(t *testing.T) {
	type body struct {
		Author string `json:"author" validate:"notempty"`
	}

	assert.NoError(t, Validate(body{Author: "한국 속담"}))
	assert.Error(t, Validate(body{Author: "   "}))
}

// rangeQuery mirrors the history range request for custom validation tests.
type rangeQuery struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func (r rangeQuery) Validate() error {
	if r.Start > r.End {
		return domain.NewValidationError("start", "must not be after end")
	}

	return nil
}

func TestValidateAll(t *testing.T) {
	assert.NoError(t, ValidateAll(rangeQuery{Start: "2024-01-01", End: "2024-01-31"}))

	err := ValidateAll(rangeQuery{Start: "2024-02-01", End: "2024-01-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	// Struct tags are checked before the custom rule runs.
	err = ValidateAll(rangeQuery{})
	require.Error(t, err)
	assert.Contains(t, ValidationErrors(err), "start")
}

func TestPaginationRequest_GetLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default when zero", 0, DefaultLimit},
		{"default when negative", -5, DefaultLimit},
		{"explicit limit", 7, 7},
		{"capped at max", 500, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := PaginationRequest{Limit: tt.limit}
			assert.Equal(t, tt.want, req.GetLimit())
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := NewCursor("date", "2024-01-15", "2024-01-15-1705300000000")

	encoded := EncodeCursor(cursor)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)
}

func TestEncodeCursor_Nil(t *testing.T) {
	assert.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"empty", "", ErrNoCursor},
		{"not base64", "%%%not-base64%%%", ErrInvalidCursor},
		{"base64 but not json", base64.URLEncoding.EncodeToString([]byte("{bad")), ErrInvalidCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.encoded)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaginationRequest_DecodeCursor(t *testing.T) {
	var req PaginationRequest
	_, err := req.DecodeCursor()
	assert.ErrorIs(t, err, ErrNoCursor, "no cursor means the first page")

	req.Cursor = EncodeCursor(NewCursor("date", "2024-01-15", "q-1"))
	decoded, err := req.DecodeCursor()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", decoded.Value)
}

// historyItem is the page-item shape used by pagination tests.
type historyItem struct {
	Date    string
	QuoteID string
}

func historyItems(dates ...string) []historyItem {
	items := make([]historyItem, len(dates))
	for i, date := range dates {
		items[i] = historyItem{Date: date, QuoteID: "q-" + date}
	}

	return items
}

func TestNewPaginatedResponse(t *testing.T) {
	build := func(item historyItem) *CursorData {
		return NewCursor("date", item.Date, item.QuoteID)
	}

	t.Run("no more pages", func(t *testing.T) {
		resp := NewPaginatedResponse(historyItems("2024-01-03", "2024-01-02"), 5, build)

		assert.Len(t, resp.Items, 2)
		assert.False(t, resp.HasMore)
		assert.Empty(t, resp.NextCursor)
	})

	t.Run("extra item signals next page", func(t *testing.T) {
		// limit+1 items: the extra one is trimmed and drives the cursor.
		resp := NewPaginatedResponse(historyItems("2024-01-03", "2024-01-02", "2024-01-01"), 2, build)

		assert.Len(t, resp.Items, 2)
		assert.True(t, resp.HasMore)

		cursor, err := DecodeCursor(resp.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-02", cursor.Value, "cursor points at the last returned item")
	})

	t.Run("nil cursor builder", func(t *testing.T) {
		resp := NewPaginatedResponse(historyItems("2024-01-02", "2024-01-01"), 1, nil)

		assert.True(t, resp.HasMore)
		assert.Empty(t, resp.NextCursor)
	})
}

func TestEmptyPaginatedResponse(t *testing.T) {
	resp := EmptyPaginatedResponse[historyItem]()

	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.False(t, resp.HasMore)

	// The empty page must serialize with an items array, not null.
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":[]`)
}
