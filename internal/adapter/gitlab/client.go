// Package gitlab is an HTTP client for the two GitLab APIs the gate
// consumes: commit statuses (to recover the baseline coverage recorded for
// the reference commit) and merge requests (to discover a branch's merge
// target).
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bkyoung/covgate/internal/adapter/httpx"
)

const (
	defaultBaseURL      = "https://gitlab.com/api/v4"
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 20 * time.Second
	serviceName         = "gitlab"
)

// ErrNoJobs indicates the reference commit has no recorded statuses at all.
var ErrNoJobs = errors.New("no jobs found for reference commit")

// ErrNoSuccessfulJobs indicates statuses exist but none ever succeeded with
// a coverage figure, so no baseline can be established.
var ErrNoSuccessfulJobs = errors.New("reference commit has no successful coverage jobs")

// Client talks to the GitLab REST API for one project.
type Client struct {
	projectID    string
	token        string
	baseURL      string
	stage        string
	httpClient   *http.Client
	retryConf    httpx.RetryConfig
	logger       httpx.Logger
	pollInterval time.Duration
	progress     io.Writer
}

// NewClient creates a client for the given project. The token is a GitLab
// personal or CI job token; it is sent as the private_token parameter and
// redacted everywhere it is logged.
func NewClient(projectID, token string) *Client {
	return &Client{
		projectID:    projectID,
		token:        token,
		baseURL:      defaultBaseURL,
		stage:        "coverage",
		httpClient:   &http.Client{Timeout: defaultTimeout},
		retryConf:    httpx.DefaultRetryConfig(),
		logger:       httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, true),
		pollInterval: defaultPollInterval,
		progress:     io.Discard,
	}
}

// SetBaseURL sets a custom API base URL (for self-hosted instances and tests).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// SetStage restricts commit status queries to the given pipeline stage. An
// empty stage fetches statuses from every stage.
func (c *Client) SetStage(stage string) {
	c.stage = stage
}

// SetPollInterval sets how long to wait between status polls.
func (c *Client) SetPollInterval(interval time.Duration) {
	c.pollInterval = interval
}

// SetLogger replaces the structured logger.
func (c *Client) SetLogger(logger httpx.Logger) {
	c.logger = logger
}

// SetProgress sets the writer that receives waiting-progress dots while the
// reference pipeline is still running.
func (c *Client) SetProgress(w io.Writer) {
	c.progress = w
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetRetryConfig replaces the retry configuration.
func (c *Client) SetRetryConfig(conf httpx.RetryConfig) {
	c.retryConf = conf
}

// commitStatus is one entry from the commit statuses API.
type commitStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Coverage  *float64  `json:"coverage"`
	CreatedAt time.Time `json:"created_at"`
}

func (s commitStatus) hasCoverage() bool {
	return strings.Contains(s.Name, "coverage") && s.Status == "success" && s.Coverage != nil
}

// isPrerequisite reports whether the status belongs to a job that must run
// before a coverage figure can appear.
func (s commitStatus) isPrerequisite() bool {
	return strings.Contains(s.Name, "test") || strings.Contains(s.Name, "coverage")
}

func (s commitStatus) isRunning() bool {
	return s.Status == "running"
}

// LatestCoverage returns the most recent successful coverage percentage
// recorded for the commit, polling while a test or coverage job is still
// running. There is no upper bound on the wait beyond ctx; the CI job's own
// timeout is the backstop.
func (c *Client) LatestCoverage(ctx context.Context, commitSHA string) (float64, error) {
	waiting := false
	for {
		statuses, err := c.commitStatuses(ctx, commitSHA)
		if err != nil {
			return 0, err
		}

		var latest *commitStatus
		for i := range statuses {
			s := statuses[i]
			if !s.hasCoverage() {
				continue
			}
			if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
				latest = &statuses[i]
			}
		}
		if latest != nil {
			return *latest.Coverage, nil
		}

		stillRunning := false
		for _, s := range statuses {
			if s.isPrerequisite() && s.isRunning() {
				stillRunning = true
				break
			}
		}

		switch {
		case stillRunning:
			if !waiting {
				c.logger.LogInfo(ctx, "reference commit is running, waiting for it to finish",
					map[string]interface{}{"commit": commitSHA})
				waiting = true
			} else {
				fmt.Fprint(c.progress, ".")
			}
			select {
			case <-time.After(c.pollInterval):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		case len(statuses) > 0:
			// No coverage because every relevant job failed.
			return 0, fmt.Errorf("%w: %s", ErrNoSuccessfulJobs, commitSHA)
		default:
			return 0, fmt.Errorf("%w: %s", ErrNoJobs, commitSHA)
		}
	}
}

// mergeRequest is the subset of the merge requests API the gate needs.
type mergeRequest struct {
	TargetBranch string `json:"target_branch"`
}

// TargetBranch returns the merge target configured for the branch's open
// merge request, or false when no merge request exists.
func (c *Client) TargetBranch(ctx context.Context, sourceBranch string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/merge_requests", c.baseURL, url.PathEscape(c.projectID))

	var requests []mergeRequest
	if err := c.getJSON(ctx, endpoint, url.Values{"source_branch": []string{sourceBranch}}, &requests); err != nil {
		return "", false, err
	}
	if len(requests) == 0 || requests[0].TargetBranch == "" {
		return "", false, nil
	}
	return requests[0].TargetBranch, true, nil
}

func (c *Client) commitStatuses(ctx context.Context, commitSHA string) ([]commitStatus, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/repository/commits/%s/statuses",
		c.baseURL, url.PathEscape(c.projectID), url.PathEscape(commitSHA))

	params := url.Values{}
	if c.stage != "" {
		params.Set("stage", c.stage)
	}

	var statuses []commitStatus
	if err := c.getJSON(ctx, endpoint, params, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// getJSON performs an authenticated GET with retry and decodes the response
// body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	params.Set("private_token", c.token)
	params.Set("membership", "yes")
	fullURL := endpoint + "?" + params.Encode()
	logURL := endpoint

	c.logger.LogRequest(ctx, httpx.RequestLog{
		Service:   serviceName,
		Method:    http.MethodGet,
		URL:       logURL,
		Timestamp: time.Now(),
		Token:     c.token,
	})

	started := time.Now()
	var body []byte
	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if reqErr != nil {
			return &httpx.Error{Type: httpx.ErrTypeUnknown, Message: reqErr.Error(), Service: serviceName}
		}

		resp, callErr := c.httpClient.Do(req)
		if callErr != nil {
			return &httpx.Error{Type: httpx.ErrTypeTimeout, Message: callErr.Error(), Retryable: true, Service: serviceName}
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &httpx.Error{Type: httpx.ErrTypeUnknown, Message: readErr.Error(), Service: serviceName}
		}
		if resp.StatusCode != http.StatusOK {
			return httpx.FromStatusCode(serviceName, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		body = data
		return nil
	}, c.retryConf)

	if err != nil {
		c.logger.LogError(ctx, httpx.ErrorLog{
			Service:   serviceName,
			URL:       logURL,
			Timestamp: time.Now(),
			Duration:  time.Since(started),
			Error:     err,
		})
		return fmt.Errorf("gitlab request %s: %w", logURL, err)
	}

	c.logger.LogResponse(ctx, httpx.ResponseLog{
		Service:    serviceName,
		URL:        logURL,
		Timestamp:  time.Now(),
		Duration:   time.Since(started),
		StatusCode: http.StatusOK,
	})

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gitlab response: %w", err)
	}
	return nil
}
