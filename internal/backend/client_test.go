package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/examgate/examgate/internal/assess"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Token: "tok-123"})
}

func TestFetchAssessmentSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/assessments/asmt-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(assess.Assessment{ID: "asmt-1", Title: "Quiz"})
	})

	a, err := c.FetchAssessment(context.Background(), "asmt-1")
	if err != nil {
		t.Fatalf("FetchAssessment: %v", err)
	}
	if a.ID != "asmt-1" || a.Title != "Quiz" {
		t.Fatalf("assessment = %+v", a)
	}
}

func TestSubmitAttemptRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/attempts/att-1/submit" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var p assess.SubmissionPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(p.Answers) != 1 || p.Answers[0].QuestionID != "q1" {
			t.Errorf("payload = %+v", p)
		}
		json.NewEncoder(w).Encode(assess.Result{AttemptID: "att-1", Score: 10, Percentage: 100, Passed: true})
	})

	res, err := c.SubmitAttempt(context.Background(), "att-1", assess.SubmissionPayload{
		Answers: []assess.AnswerEntry{{QuestionID: "q1", Answer: assess.OptionAnswer("optA")}},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.AttemptID != "att-1" || !res.Passed {
		t.Fatalf("result = %+v", res)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   assess.ErrorCode
		retry  bool
	}{
		{"bad request", 400, `{"code":"validation","error":"missing field"}`, assess.CodeValidation, false},
		{"unauthorized", 401, `{"code":"auth","error":"token expired"}`, assess.CodeAuth, false},
		{"forbidden", 403, ``, assess.CodeAuth, false},
		{"not found", 404, `{"code":"not_found","error":"no such attempt"}`, assess.CodeNotFound, false},
		{"attempts exhausted", 409, `{"code":"attempts_exhausted","error":"no attempts remaining"}`, assess.CodeAttemptsExhausted, false},
		{"already submitted", 409, `{"code":"already_submitted","error":"attempt already submitted"}`, assess.CodeAlreadySubmitted, false},
		{"server error", 500, `boom`, assess.CodeNetwork, true},
		{"bad gateway", 502, ``, assess.CodeNetwork, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.FetchResult(context.Background(), "att-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := assess.CodeOf(err); got != tt.code {
				t.Fatalf("code = %s, want %s", got, tt.code)
			}
			if got := assess.Retryable(err); got != tt.retry {
				t.Fatalf("retryable = %v, want %v", got, tt.retry)
			}
		})
	}
}

func TestConnectionFailureIsNetworkClass(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := New(Config{BaseURL: srv.URL})

	_, err := c.FetchAssessment(context.Background(), "asmt-1")
	if !assess.IsCode(err, assess.CodeNetwork) {
		t.Fatalf("connection failure: %v", err)
	}
	if !assess.Retryable(err) {
		t.Fatal("transport failures must be retryable")
	}
}

func TestReportViolations(t *testing.T) {
	var got []assess.Violation
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attempts/att-1/violations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	})

	vs := []assess.Violation{{Category: assess.ViolationTabSwitch, Ordinal: 1, UnixMilli: 1_700_000_000_000}}
	if err := c.ReportViolations(context.Background(), "att-1", vs); err != nil {
		t.Fatalf("ReportViolations: %v", err)
	}
	if len(got) != 1 || got[0].Category != assess.ViolationTabSwitch {
		t.Fatalf("server saw %+v", got)
	}
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/auth/login" {
				t.Errorf("path = %s", r.URL.Path)
			}
			var in map[string]string
			json.NewDecoder(r.Body).Decode(&in)
			if in["username"] != "alice" || in["password"] != "s3cret" {
				t.Errorf("credentials = %v", in)
			}
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-xyz"})
		}))
		defer srv.Close()

		client, err := Login(context.Background(), srv.URL, "alice", "s3cret", 0)
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if client.token != "tok-xyz" {
			t.Fatalf("token = %q", client.token)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"code": "auth", "error": "bad credentials"})
		}))
		defer srv.Close()

		if _, err := Login(context.Background(), srv.URL, "alice", "wrong", 0); !assess.IsCode(err, assess.CodeAuth) {
			t.Fatalf("rejected login: %v", err)
		}
	})
}
