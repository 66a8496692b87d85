// Package remote talks to the product backend: the data endpoint (collections,
// flags, onboarding) and the content generation endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadgen-sync/internal/config"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"

	"github.com/sony/gobreaker"
)

const module = "RemoteClient"

var (
	ErrRemote            = errors.New("remote request failed")
	ErrUnknownCollection = errors.New("unknown collection")
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrRemote
}

// TokenSource supplies the bearer token of the current session, if any.
type TokenSource interface {
	AccessToken() string
}

type collectionRoutes struct {
	list     string
	setTrue  string
	setFalse string
	idField  string
}

var routes = map[entity.CollectionKind]collectionRoutes{
	entity.CollectionLeads: {list: "/get-leads", setTrue: "/mark-lead-as-read", setFalse: "/mark-lead-as-unread", idField: "lead_id"},
	entity.CollectionPosts: {list: "/get-posts", setTrue: "/save-post", setFalse: "/unsave-post", idField: "post_id"},
}

var generationRoutes = map[entity.GenerationKind]string{
	entity.GenerationComment: "/generate-karma-comment",
	entity.GenerationPost:    "/generate-karma-post",
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tokens     TokenSource
	logger     logger.ILogger
}

func NewClient(baseURL string, timeout time.Duration, breakerCfg config.BreakerConfig, tokens TokenSource, log logger.ILogger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     log,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "product-backend",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerCfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn(module, "Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
		// Client errors and cancellations say nothing about backend health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Status < http.StatusInternalServerError
			}
			return false
		},
	})

	return c
}

// FetchCollection returns the canonical collection. A non-zero since limits
// the answer to items created after it.
func (c *Client) FetchCollection(ctx context.Context, kind entity.CollectionKind, since time.Time) ([]entity.Item, error) {
	r, ok := routes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, kind)
	}

	path := r.list
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var rows []itemRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	items := make([]entity.Item, 0, len(rows))
	for _, row := range rows {
		item := row.toItem()
		if item.Id == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) SetFlag(ctx context.Context, kind entity.CollectionKind, id string, value bool) error {
	r, ok := routes[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, kind)
	}

	path := r.setFalse
	if value {
		path = r.setTrue
	}
	_, err := c.do(ctx, http.MethodPost, path, map[string]string{r.idField: id})
	return err
}

// FetchOnboardingStatus returns nil when the backend has no status yet.
func (c *Client) FetchOnboardingStatus(ctx context.Context) (*bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/onboarding-status", nil)
	if err != nil {
		return nil, err
	}

	var res struct {
		Completed *bool `json:"completed"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode onboarding status: %w", err)
	}
	return res.Completed, nil
}

func (c *Client) SetOnboardingStatus(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/onboarding-completed", nil)
	return err
}

func (c *Client) ResetOnboardingStatus(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/onboarding-reset", nil)
	return err
}

// GenerateContent returns the raw generator answer; parsing happens in
// entity.ParseGeneration.
func (c *Client) GenerateContent(ctx context.Context, kind entity.GenerationKind) ([]byte, error) {
	path, ok := generationRoutes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown generation kind: %s", kind)
	}
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		c.logger.Debug(module, "Request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(bodyBytes)),
		}
	}
	return bodyBytes, nil
}
