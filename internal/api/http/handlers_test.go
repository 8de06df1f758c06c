package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/examgate/examgate/internal/assess"
	"github.com/examgate/examgate/internal/grading"
	"github.com/examgate/examgate/internal/rbac"
	"github.com/examgate/examgate/internal/store"
)

// asIdentity injects a subject and role the way the JWT middleware does in
// production, without minting tokens in every test.
func asIdentity(sub, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := rbac.WithSubject(r.Context(), sub)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(st store.Store, sub, role string) http.Handler {
	r := chi.NewRouter()
	r.Use(asIdentity(sub, role))
	r.With(rbac.Require("assessment:create")).
		Post("/assessments", UploadAssessmentHandler(st))
	r.With(rbac.Require("assessment:view")).
		Get("/assessments/{assessmentID}", GetAssessmentHandler(st))
	r.With(rbac.Require("attempt:start")).
		Post("/assessments/{assessmentID}/attempts", StartAttemptHandler(st))
	r.With(rbac.Require("attempt:submit")).
		Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(st))
	r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
		Get("/attempts/{attemptID}/result", GetResultHandler(st))
	r.With(rbac.Require("violation:report")).
		Post("/attempts/{attemptID}/violations", ReportViolationsHandler(st))
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func quizBody() map[string]any {
	return map[string]any{
		"id":                   "asmt-1",
		"title":                "Unit 3 Exam",
		"type":                 "exam",
		"max_attempts":         1,
		"passing_score":        50,
		"show_feedback":        true,
		"show_correct_answers": true,
		"questions": []map[string]any{
			{
				"id": "q1", "type": "single_choice", "points": 10, "required": true,
				"options": []map[string]any{
					{"id": "optionA", "text": "A"},
					{"id": "optionB", "text": "B"},
				},
				"answer_key": []string{"optionA"},
			},
			{
				"id": "q2", "type": "numeric", "points": 10, "required": true,
				"answer_key": []string{"42"},
			},
		},
	}
}

func TestUploadValidation(t *testing.T) {
	st := store.NewMemoryStore(grading.NewDefaultGrader())
	teacher := newRouter(st, "t-1", "teacher")

	tests := []struct {
		name   string
		mutate func(map[string]any)
		status int
	}{
		{"valid", func(map[string]any) {}, http.StatusOK},
		{"missing title", func(b map[string]any) { delete(b, "title") }, http.StatusBadRequest},
		{"bad type", func(b map[string]any) { b["type"] = "pop_quiz" }, http.StatusBadRequest},
		{"no questions", func(b map[string]any) { b["questions"] = []any{} }, http.StatusBadRequest},
		{"passing score out of range", func(b map[string]any) { b["passing_score"] = 150 }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := quizBody()
			tt.mutate(body)
			rec := doJSON(t, teacher, http.MethodPost, "/assessments", body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status == http.StatusBadRequest {
				e := decodeBody[errBody](t, rec)
				if e.Code != "validation" {
					t.Fatalf("error code = %q", e.Code)
				}
			}
		})
	}
}

func TestRoleEnforcement(t *testing.T) {
	st := store.NewMemoryStore(grading.NewDefaultGrader())

	student := newRouter(st, "s-1", "student")
	if rec := doJSON(t, student, http.MethodPost, "/assessments", quizBody()); rec.Code != http.StatusForbidden {
		t.Fatalf("student upload: %d", rec.Code)
	}

	anon := newRouter(st, "", "")
	if rec := doJSON(t, anon, http.MethodGet, "/assessments/asmt-1", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous view: %d", rec.Code)
	}

	teacher := newRouter(st, "t-1", "teacher")
	if rec := doJSON(t, teacher, http.MethodPost, "/assessments/asmt-1/attempts", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("teacher starting an attempt: %d", rec.Code)
	}
}

func TestLearnerFlowEndToEnd(t *testing.T) {
	st := store.NewMemoryStore(grading.NewDefaultGrader())
	teacher := newRouter(st, "t-1", "teacher")
	student := newRouter(st, "s-1", "student")

	if rec := doJSON(t, teacher, http.MethodPost, "/assessments", quizBody()); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}

	// The served assessment must not leak grading material.
	rec := doJSON(t, student, http.MethodGet, "/assessments/asmt-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get assessment: %d", rec.Code)
	}
	a := decodeBody[assess.Assessment](t, rec)
	for _, q := range a.Questions {
		if len(q.AnswerKey) != 0 {
			t.Fatalf("answer key leaked for %s", q.ID)
		}
	}

	rec = doJSON(t, student, http.MethodPost, "/assessments/asmt-1/attempts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start attempt: %d %s", rec.Code, rec.Body.String())
	}
	at := decodeBody[assess.Attempt](t, rec)
	if at.AttemptNumber != 1 || at.UserID != "s-1" {
		t.Fatalf("attempt = %+v", at)
	}

	submission := map[string]any{
		"answers": []map[string]any{
			{"questionId": "q1", "answer": "optionA", "timeSpentSeconds": 50},
			{"questionId": "q2", "answer": 42, "timeSpentSeconds": 40},
		},
		"totalTimeSpentSeconds": 90,
		"startedAt":             at.StartedAt,
		"submittedAt":           at.StartedAt + 90,
	}
	rec = doJSON(t, student, http.MethodPost, "/attempts/"+at.ID+"/submit", submission)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[assess.Result](t, rec)
	if res.Score != 20 || res.Percentage != 100 || !res.Passed {
		t.Fatalf("result = %+v", res)
	}
	if res.AttemptsRemaining != 0 {
		t.Fatalf("attempts remaining = %d", res.AttemptsRemaining)
	}

	// A second submit of the same attempt is a conflict, not a re-grade.
	rec = doJSON(t, student, http.MethodPost, "/attempts/"+at.ID+"/submit", submission)
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay: %d", rec.Code)
	}
	if e := decodeBody[errBody](t, rec); e.Code != "already_submitted" {
		t.Fatalf("replay code = %q", e.Code)
	}

	// Max attempts reached: starting again conflicts too.
	rec = doJSON(t, student, http.MethodPost, "/assessments/asmt-1/attempts", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second attempt: %d", rec.Code)
	}
	if e := decodeBody[errBody](t, rec); e.Code != "attempts_exhausted" {
		t.Fatalf("second attempt code = %q", e.Code)
	}

	// The stored result stays retrievable.
	rec = doJSON(t, student, http.MethodGet, "/attempts/"+at.ID+"/result", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get result: %d", rec.Code)
	}
	if got := decodeBody[assess.Result](t, rec); got.Score != 20 {
		t.Fatalf("stored result = %+v", got)
	}
}

func TestReportViolationsEndpoint(t *testing.T) {
	st := store.NewMemoryStore(grading.NewDefaultGrader())
	teacher := newRouter(st, "t-1", "teacher")
	student := newRouter(st, "s-1", "student")

	doJSON(t, teacher, http.MethodPost, "/assessments", quizBody())
	at := decodeBody[assess.Attempt](t, doJSON(t, student, http.MethodPost, "/assessments/asmt-1/attempts", nil))

	vs := []map[string]any{
		{"category": "tab_switch", "ordinal": 1, "at": 1_700_000_000_000},
		{"category": "devtools", "ordinal": 1, "at": 1_700_000_001_000},
	}
	if rec := doJSON(t, student, http.MethodPost, "/attempts/"+at.ID+"/violations", vs); rec.Code != http.StatusAccepted {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}

	bad := []map[string]any{{"category": "telepathy", "ordinal": 1, "at": 1}}
	rec := doJSON(t, student, http.MethodPost, "/attempts/"+at.ID+"/violations", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown category: %d", rec.Code)
	}

	if rec := doJSON(t, student, http.MethodPost, "/attempts/missing/violations", vs); rec.Code != http.StatusNotFound {
		t.Fatalf("missing attempt: %d", rec.Code)
	}
}

func TestUnknownAssessmentIs404(t *testing.T) {
	st := store.NewMemoryStore(grading.NewDefaultGrader())
	student := newRouter(st, "s-1", "student")

	rec := doJSON(t, student, http.MethodGet, "/assessments/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeBody[errBody](t, rec); e.Code != "not_found" {
		t.Fatalf("code = %q", e.Code)
	}
}
