package mnemo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/dreamspy/mnemo/internal/errors"
	"github.com/dreamspy/mnemo/pkg/mnemo/types"

	"github.com/sirupsen/logrus"
)

// Client is the remote Mnemo API boundary. Write calls classify their
// failures: a transport error (no response) comes back as a
// connectivity failure, a received non-2xx as an application failure
// carrying the server's detail message.
type Client interface {
	PostEvent(ctx context.Context, event *types.Event) (*types.EventStored, error)
	SaveDiary(ctx context.Context, date string, answers map[string]interface{}) (*types.DiaryEntry, error)
	ParseText(ctx context.Context, rawText string, questions []types.Question) (map[string]string, error)
	GetDiary(ctx context.Context, date string) (*types.DiaryEntry, error)
	GetDiarySummary(ctx context.Context, date string) (string, error)
	ListEvents(ctx context.Context, filter types.EventFilter) ([]types.EventStored, error)
	Query(ctx context.Context, question string) (string, error)
	Health(ctx context.Context) error
	HasToken() bool
	SetToken(token string)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	return NewClientWithLogger(baseURL, token, httpClient, nil)
}

func NewClientWithLogger(baseURL, token string, httpClient *http.Client, logger *logrus.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  httpClient,
		logger:  logger,
	}
}

// HasToken reports whether an API token is configured.
func (c *HTTPClient) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// SetToken replaces the bearer token used on subsequent calls.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) PostEvent(ctx context.Context, event *types.Event) (*types.EventStored, error) {
	var stored types.EventStored
	if err := c.doJSON(ctx, http.MethodPost, "/events", event, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *HTTPClient) SaveDiary(ctx context.Context, date string, answers map[string]interface{}) (*types.DiaryEntry, error) {
	body := types.DiaryRequest{Date: date, Answers: answers}
	var entry types.DiaryEntry
	if err := c.doJSON(ctx, http.MethodPost, "/diary", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) ParseText(ctx context.Context, rawText string, questions []types.Question) (map[string]string, error) {
	body := types.ParseTextRequest{RawText: rawText, Questions: questions}
	var resp types.ParseTextResponse
	if err := c.doJSON(ctx, http.MethodPost, "/diary/parse-text", body, &resp); err != nil {
		return nil, err
	}
	if resp.Answers == nil {
		resp.Answers = map[string]string{}
	}
	return resp.Answers, nil
}

func (c *HTTPClient) GetDiary(ctx context.Context, date string) (*types.DiaryEntry, error) {
	var entry types.DiaryEntry
	path := fmt.Sprintf("/diary/%s", url.PathEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) GetDiarySummary(ctx context.Context, date string) (string, error) {
	var resp types.DiarySummary
	path := fmt.Sprintf("/diary/%s/summary", url.PathEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, filter types.EventFilter) ([]types.EventStored, error) {
	params := url.Values{}
	if filter.Date != "" {
		params.Set("date", filter.Date)
	} else {
		if filter.From != "" {
			params.Set("from", filter.From)
		}
		if filter.To != "" {
			params.Set("to", filter.To)
		}
	}
	path := "/events"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var events []types.EventStored
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTPClient) Query(ctx context.Context, question string) (string, error) {
	var resp types.QueryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/query", types.QueryRequest{Question: question}, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Health probes GET /health. A connectivity error means offline; any
// received response means the API is reachable.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// doJSON performs one API call. Failures are classified at this
// boundary and nowhere else.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("Sending API request")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Connectivity(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := ""
		var errBody types.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			detail = errBody.Detail
		}
		c.logger.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"endpoint": endpoint,
		}).Debug("API returned error status")
		return apperrors.Application(resp.StatusCode, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
