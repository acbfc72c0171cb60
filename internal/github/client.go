package github

import (
	"bytes"
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

	"golang.org/x/time/rate"

	"github.com/shaiso/mrot/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.github.com"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "mrot"
	defaultRPS       = 5
	defaultBurst     = 5
	apiVersion       = "2022-11-28"
)

// Client — клиент GitHub Actions REST API.
//
// Реализует две операции, нужные драйверу:
//   - Dispatch — POST .../actions/workflows/{id}/dispatches
//   - ListRuns — GET  .../actions/workflows/{id}/runs
//
// Токен передаётся один раз при создании клиента.
// Все запросы проходят через token bucket, чтобы не расходовать квоту API
// быстрее, чем нужно.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Config — конфигурация Client.
type Config struct {
	// BaseURL — адрес API (default: https://api.github.com).
	// Для GitHub Enterprise: https://host/api/v3.
	BaseURL string

	// Token — bearer token (PAT или GitHub App token).
	Token string

	// UserAgent — обязательный для GitHub заголовок User-Agent (default: mrot).
	UserAgent string

	// Timeout — таймаут одного HTTP-запроса (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond / Burst — локальное ограничение частоты запросов
	// (default: 5 rps, burst 5). RequestsPerSecond < 0 отключает ограничение.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient — опционально, для тестов.
	HTTPClient *http.Client

	// Logger
	Logger *slog.Logger
}

// NewClient создаёт новый Client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	switch {
	case cfg.RequestsPerSecond < 0:
		limit = rate.Inf
	case cfg.RequestsPerSecond == 0:
		limit = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// DispatchRequest — параметры запуска workflow.
type DispatchRequest struct {
	Owner      string
	Repo       string
	WorkflowID string
	Ref        string
	Inputs     map[string]string
}

// dispatchBody — тело запроса workflow_dispatch.
type dispatchBody struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Dispatch запускает workflow через событие workflow_dispatch.
//
// GitHub отвечает 204 No Content, если запуск принят. Любой другой статус
// возвращается как *APIError, сетевые ошибки — как ErrRequest.
func (c *Client) Dispatch(ctx context.Context, req DispatchRequest) error {
	body, err := json.Marshal(dispatchBody{Ref: req.Ref, Inputs: req.Inputs})
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrRequest, err)
	}

	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches",
		url.PathEscape(req.Owner), url.PathEscape(req.Repo), url.PathEscape(req.WorkflowID))

	resp, respBody, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(resp.StatusCode, respBody)
	}

	c.logger.Debug("workflow dispatched",
		"owner", req.Owner,
		"repo", req.Repo,
		"workflow_id", req.WorkflowID,
		"ref", req.Ref,
	)

	return nil
}

// RunsQuery — параметры выборки запусков workflow.
type RunsQuery struct {
	Owner      string
	Repo       string
	WorkflowID string

	// Since — учитывать только запуски, созданные не раньше этого времени.
	Since time.Time
}

// RunsSnapshot — срез состояния последнего запуска workflow.
type RunsSnapshot struct {
	// Found — запуск найден (после dispatch он появляется не сразу).
	Found bool

	// RunID, HTMLURL — идентификация найденного запуска.
	RunID   int64
	HTMLURL string

	// Status — status запуска (queued, in_progress, completed, ...).
	Status domain.RemoteStatus

	// Conclusion — conclusion завершённого запуска (success, failure, ...).
	Conclusion domain.RemoteStatus

	// RateLimitRemaining — значение X-RateLimit-Remaining, -1 если заголовка нет.
	RateLimitRemaining int

	// RateLimitReset — время сброса квоты, если известно.
	RateLimitReset time.Time
}

// RateLimited возвращает true, если квота запросов исчерпана.
func (s *RunsSnapshot) RateLimited() bool {
	return s.RateLimitRemaining == 0
}

// workflowRunsResponse — ответ GET .../runs.
type workflowRunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

type workflowRun struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion *string   `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListRuns возвращает последний запуск workflow, созданный через workflow_dispatch.
//
// Ответ 403/429 с исчерпанной квотой не считается ошибкой: возвращается
// снимок с RateLimitRemaining = 0, решение принимает драйвер.
func (c *Client) ListRuns(ctx context.Context, q RunsQuery) (*RunsSnapshot, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs",
		url.PathEscape(q.Owner), url.PathEscape(q.Repo), url.PathEscape(q.WorkflowID))

	params := url.Values{}
	params.Set("event", "workflow_dispatch")
	params.Set("per_page", "1")
	if !q.Since.IsZero() {
		params.Set("created", ">="+q.Since.UTC().Format(time.RFC3339))
	}

	resp, respBody, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}

	snapshot := &RunsSnapshot{
		RateLimitRemaining: rateLimitRemaining(resp.Header),
		RateLimitReset:     rateLimitReset(resp.Header),
	}

	if isRateLimitResponse(resp, snapshot.RateLimitRemaining) {
		snapshot.RateLimitRemaining = 0
		return snapshot, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var runs workflowRunsResponse
	if err := json.Unmarshal(respBody, &runs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if len(runs.WorkflowRuns) == 0 {
		return snapshot, nil
	}

	run := runs.WorkflowRuns[0]
	snapshot.Found = true
	snapshot.RunID = run.ID
	snapshot.HTMLURL = run.HTMLURL
	snapshot.Status = domain.RemoteStatus(run.Status)
	if run.Conclusion != nil {
		snapshot.Conclusion = domain.RemoteStatus(*run.Conclusion)
	}

	return snapshot, nil
}

// do выполняет запрос к API и читает тело ответа.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: rate limiter: %v", ErrRequest, err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}

	return resp, respBody, nil
}

// isRateLimitResponse проверяет, что ответ — отказ из-за квоты.
// 429 — всегда; 403 — только при X-RateLimit-Remaining: 0
// (403 бывает и из-за прав токена).
func isRateLimitResponse(resp *http.Response, remaining int) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return remaining == 0
	default:
		return false
	}
}

// rateLimitRemaining читает X-RateLimit-Remaining, -1 если заголовка нет.
func rateLimitRemaining(h http.Header) int {
	v := h.Get("X-RateLimit-Remaining")
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// rateLimitReset читает X-RateLimit-Reset (unix seconds).
func rateLimitReset(h http.Header) time.Time {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// newAPIError формирует *APIError из тела ответа.
func newAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		msg = parsed.Message
	} else {
		msg = truncate(strings.TrimSpace(string(body)), 200)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
