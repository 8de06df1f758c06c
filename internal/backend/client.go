// Package backend is the HTTP client for the grading service. It implements
// the interfaces the attempt engine consumes and translates transport and
// status failures into the shared error taxonomy, so callers can tell a
// retry-safe network failure from a terminal business rejection.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/examgate/examgate/internal/assess"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Config struct {
	BaseURL string
	Token   string // bearer token from the login endpoint
	Timeout time.Duration
}

func New(cfg Config) *Client {
	t := cfg.Timeout
	if t <= 0 {
		t = 30 * time.Second
	}
	return &Client{
		base:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  &http.Client{Timeout: t},
	}
}

// FetchAssessment retrieves the assessment metadata and its ordered question
// list. Option correctness never appears in this response.
func (c *Client) FetchAssessment(ctx context.Context, assessmentID string) (assess.Assessment, error) {
	var a assess.Assessment
	err := c.do(ctx, http.MethodGet, "/assessments/"+assessmentID, nil, &a)
	return a, err
}

// StartAttempt opens a new attempt for the authenticated learner. The server
// enforces the max-attempts bound here, before any questions are answered.
func (c *Client) StartAttempt(ctx context.Context, assessmentID string) (assess.Attempt, error) {
	var a assess.Attempt
	err := c.do(ctx, http.MethodPost, "/assessments/"+assessmentID+"/attempts", nil, &a)
	return a, err
}

// SubmitAttempt posts the payload for grading and returns the graded result.
// Submitting an attempt twice is a terminal business rejection.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, p assess.SubmissionPayload) (assess.Result, error) {
	var res assess.Result
	err := c.do(ctx, http.MethodPost, "/attempts/"+attemptID+"/submit", p, &res)
	return res, err
}

// FetchResult retrieves the full graded breakdown of a past attempt for
// review.
func (c *Client) FetchResult(ctx context.Context, attemptID string) (assess.Result, error) {
	var res assess.Result
	err := c.do(ctx, http.MethodGet, "/attempts/"+attemptID+"/result", nil, &res)
	return res, err
}

// ReportViolations uploads the monitor's violation log for an attempt.
func (c *Client) ReportViolations(ctx context.Context, attemptID string, vs []assess.Violation) error {
	return c.do(ctx, http.MethodPost, "/attempts/"+attemptID+"/violations", vs, nil)
}

type errEnvelope struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return assess.WrapError(assess.CodeValidation, err, "encode request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return assess.WrapError(assess.CodeValidation, err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return assess.WrapError(assess.CodeNetwork, err, method+" "+path)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return c.statusError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return assess.WrapError(assess.CodeNetwork, err, "decode response")
	}
	return nil
}

// statusError maps response status (plus the server's error code, when the
// body carries one) onto the taxonomy. 5xx counts as network-class: the
// request may not have been processed and is safe to retry.
func (c *Client) statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	var env errEnvelope
	_ = json.Unmarshal(raw, &env)
	msg := env.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = res.Status
	}

	switch env.Code {
	case string(assess.CodeAttemptsExhausted):
		return assess.Errorf(assess.CodeAttemptsExhausted, "%s", msg)
	case string(assess.CodeAlreadySubmitted):
		return assess.Errorf(assess.CodeAlreadySubmitted, "%s", msg)
	}

	switch {
	case res.StatusCode == http.StatusBadRequest:
		return assess.Errorf(assess.CodeValidation, "%s", msg)
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return assess.Errorf(assess.CodeAuth, "%s", msg)
	case res.StatusCode == http.StatusNotFound:
		return assess.Errorf(assess.CodeNotFound, "%s", msg)
	case res.StatusCode >= 500:
		return assess.Errorf(assess.CodeNetwork, "server error: %s", msg)
	default:
		return assess.Errorf(assess.CodeInternal, "unexpected status %d: %s", res.StatusCode, msg)
	}
}

// Login exchanges credentials for a bearer token and returns a client bound
// to it.
func Login(ctx context.Context, baseURL, username, password string, timeout time.Duration) (*Client, error) {
	c := New(Config{BaseURL: baseURL, Timeout: timeout})
	var out struct {
		AccessToken string `json:"access_token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, assess.Errorf(assess.CodeAuth, "login returned no token")
	}
	return New(Config{BaseURL: baseURL, Token: out.AccessToken, Timeout: timeout}), nil
}
