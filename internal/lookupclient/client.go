// Package lookupclient calls a remote vocabulary server's lookup endpoint.
package lookupclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

const defaultTimeout = 30 * time.Second

// Response is the lookup wire envelope.
type Response struct {
	System  string                `json:"system"`
	Results []domain.SearchResult `json:"results"`
	Links   Links                 `json:"links"`
}

// Links holds the relative link to the next page, when there is one.
type Links struct {
	NextPageOfResults string `json:"nextPageOfResults,omitempty"`
}

// Client implements service.Lookuper against a remote server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. A zero timeout uses 30s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "lookup-client"),
	}
}

// Lookup performs one remote search.
func (c *Client) Lookup(ctx context.Context, input service.LookupInput) (*service.LookupOutput, error) {
	q := url.Values{}
	q.Set("system", input.System)
	q.Set("display", input.Display)
	if input.Limit > 0 {
		q.Set("limit", strconv.Itoa(input.Limit))
	}
	if input.Offset > 0 {
		q.Set("offset", strconv.Itoa(input.Offset))
	}
	if input.Cursor != "" {
		q.Set("cursor", input.Cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lookup-code?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, domain.ErrLookupUnavailable.Message, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, domain.ErrLookupUnavailable.Message, err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, body)
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "malformed lookup response", err)
	}
	if env.Results == nil {
		env.Results = []domain.SearchResult{}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = service.DefaultPageSize
	}
	out := &service.LookupOutput{
		System:     env.System,
		Results:    env.Results,
		Offset:     input.Offset,
		Limit:      limit,
		NextCursor: cursorFromLink(env.Links.NextPageOfResults),
	}
	c.logger.Debug("remote lookup", "system", input.System, "results", len(out.Results))
	return out, nil
}

// statusError maps an error response back to the server's domain error.
func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	cause := fmt.Errorf("remote status %d: %s", status, msg)

	switch status {
	case http.StatusBadRequest:
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, msg, cause)
	case http.StatusNotFound:
		return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, msg, cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnauthorized, msg, cause)
	default:
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, domain.ErrLookupUnavailable.Message, cause)
	}
}

func cursorFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}
