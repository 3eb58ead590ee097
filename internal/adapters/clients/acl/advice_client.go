// Package acl implements the Anti-Corruption Layer pattern for external services.
// ACL adapters translate between external API models and domain models,
// protecting the domain from external system changes.
package acl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minjae-lim/daily-quotes/internal/adapters/clients"
	"github.com/minjae-lim/daily-quotes/internal/domain"
	"github.com/minjae-lim/daily-quotes/internal/platform/logging"
)

// advicePath is the single endpoint of the Korean advice open API. Each call
// returns one random quote.
const advicePath = "/api/advice"

// AdviceClientConfig contains configuration for the advice client.
type AdviceClientConfig struct {
	// Client is the HTTP client to use for requests.
	// The client's BaseURL should be set to the advice API endpoint.
	Client *clients.Client

	// Logger is the structured logger.
	Logger *slog.Logger
}

// AdviceClient implements ports.QuoteFetcher against the Korean advice open
// API. It translates external responses to domain quotes and classifies every
// failure as a domain.FetchError.
type AdviceClient struct {
	client *clients.Client
	logger *slog.Logger
}

// NewAdviceClient creates a new advice client adapter.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewAdviceClient(cfg AdviceClientConfig) *AdviceClient {
	if cfg.Client == nil {
		panic("AdviceClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AdviceClient{
		client: cfg.Client,
		logger: logger,
	}
}

// adviceResponse is the external DTO from the advice API.
// This is an internal type - never exposed outside the ACL.
type adviceResponse struct {
	Author        string `json:"author"`
	AuthorProfile string `json:"authorProfile"`
	Message       string `json:"message"`
}

// FetchQuote fetches a single random quote from the external API.
// Implements ports.QuoteFetcher.
func (c *AdviceClient) FetchQuote(ctx context.Context) (*domain.Quote, error) {
	c.logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", advicePath))
	c.logger.DebugContext(ctx, "fetching advice quote")

	resp, err := c.client.Get(ctx, advicePath)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Log(ctx, logging.LevelTrace, "request complete",
		slog.String("path", advicePath),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	return c.parseAdviceResponse(ctx, resp)
}

// parseAdviceResponse decodes and translates the external DTO to a domain
// Quote. A body that decodes but lacks the required fields counts as an
// invalid response, the same as a malformed one.
func (c *AdviceClient) parseAdviceResponse(ctx context.Context, resp *http.Response) (*domain.Quote, error) {
	var external adviceResponse

	if err := json.NewDecoder(resp.Body).Decode(&external); err != nil {
		return nil, domain.NewFetchError(domain.FetchErrInvalidResponse, err)
	}

	if strings.TrimSpace(external.Message) == "" || strings.TrimSpace(external.Author) == "" {
		return nil, domain.NewFetchStatusError(domain.FetchErrInvalidResponse, resp.StatusCode)
	}

	quote := c.translateToDomain(&external)

	c.logger.Log(ctx, logging.LevelTrace, "translated external DTO to domain",
		slog.String("author", quote.Author))

	return quote, nil
}

// translateToDomain converts the external API response to a domain Quote.
// ID and Date are assigned later, during resolution.
func (c *AdviceClient) translateToDomain(ext *adviceResponse) *domain.Quote {
	return &domain.Quote{
		Message:       ext.Message,
		Author:        ext.Author,
		AuthorProfile: ext.AuthorProfile,
	}
}

// classifyTransportError maps client-layer failures to fetch classifications.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, clients.ErrRateLimited):
		return domain.NewFetchError(domain.FetchErrRateLimit, err)
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewFetchError(domain.FetchErrAPIUnavailable, err)
	default:
		// Timeouts, connection failures, retries exhausted on transport errors.
		return domain.NewFetchError(domain.FetchErrNetwork, err)
	}
}

// classifyStatus maps non-success upstream statuses to fetch classifications.
func classifyStatus(status int) error {
	if status == http.StatusTooManyRequests {
		return domain.NewFetchStatusError(domain.FetchErrRateLimit, status)
	}

	return domain.NewFetchStatusError(domain.FetchErrAPIUnavailable, status)
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *AdviceClient) Name() string {
	return "advice-api"
}

// Check performs a health check by calling the advice endpoint.
// Implements ports.HealthChecker.
func (c *AdviceClient) Check(ctx context.Context) error {
	if _, err := c.FetchQuote(ctx); err != nil {
		return err
	}

	return nil
}
