// Package http exposes the grading service over REST. Handlers translate
// taxonomy errors into status codes plus a JSON envelope the client maps
// back, so both sides agree on which failures are retryable.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/examgate/examgate/internal/assess"
	"github.com/examgate/examgate/internal/rbac"
	"github.com/examgate/examgate/internal/store"
)

var validate = validator.New()

type errBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := assess.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case assess.CodeValidation:
		status = http.StatusBadRequest
	case assess.CodeAuth:
		status = http.StatusUnauthorized
	case assess.CodeNotFound:
		status = http.StatusNotFound
	case assess.CodeAttemptsExhausted, assess.CodeAlreadySubmitted:
		status = http.StatusConflict
	}
	msg := err.Error()
	var e *assess.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errBody{Code: string(code), Error: msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type uploadAssessmentReq struct {
	ID                 string            `json:"id" validate:"required"`
	Title              string            `json:"title" validate:"required"`
	Type               string            `json:"type" validate:"omitempty,oneof=practice exam"`
	DurationSec        int               `json:"duration_sec" validate:"gte=0"`
	TotalPoints        float64           `json:"total_points" validate:"gte=0"`
	PassingScore       float64           `json:"passing_score" validate:"gte=0,lte=100"`
	MaxAttempts        int               `json:"max_attempts" validate:"gte=0"`
	ShuffleQuestions   bool              `json:"shuffle_questions"`
	ShuffleOptions     bool              `json:"shuffle_options"`
	ShowCorrectAnswers bool              `json:"show_correct_answers"`
	ShowFeedback       bool              `json:"show_feedback"`
	Questions          []assess.Question `json:"questions" validate:"min=1"`
}

// POST /assessments (teacher)
func UploadAssessmentHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadAssessmentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, assess.Errorf(assess.CodeValidation, "bad json: %v", err))
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, assess.WrapError(assess.CodeValidation, err, "invalid assessment"))
			return
		}
		typ := assess.AssessmentType(req.Type)
		if typ == "" {
			typ = assess.TypePractice
		}
		a := assess.Assessment{
			ID:                 req.ID,
			Title:              req.Title,
			Type:               typ,
			DurationSec:        req.DurationSec,
			TotalPoints:        req.TotalPoints,
			PassingScore:       req.PassingScore,
			MaxAttempts:        req.MaxAttempts,
			ShuffleQuestions:   req.ShuffleQuestions,
			ShuffleOptions:     req.ShuffleOptions,
			ShowCorrectAnswers: req.ShowCorrectAnswers,
			ShowFeedback:       req.ShowFeedback,
			Questions:          req.Questions,
		}
		if err := st.PutAssessment(r.Context(), a); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"id": a.ID})
	}
}

// GET /assessments/{assessmentID}
func GetAssessmentHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "assessmentID"))
		if id == "" {
			writeError(w, assess.Errorf(assess.CodeValidation, "assessment id required"))
			return
		}
		a, err := st.GetAssessment(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /assessments/{assessmentID}/attempts
func StartAttemptHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "assessmentID"))
		if id == "" {
			writeError(w, assess.Errorf(assess.CodeValidation, "assessment id required"))
			return
		}
		user := rbac.SubjectFromContext(r.Context())
		at, err := st.StartAttempt(r.Context(), id, user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, at)
	}
}

type submitReq struct {
	Answers               []assess.AnswerEntry `json:"answers"`
	TotalTimeSpentSeconds int                  `json:"totalTimeSpentSeconds" validate:"gte=0"`
	StartedAt             int64                `json:"startedAt"`
	SubmittedAt           int64                `json:"submittedAt"`
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req submitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, assess.Errorf(assess.CodeValidation, "bad json: %v", err))
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, assess.WrapError(assess.CodeValidation, err, "invalid submission"))
			return
		}
		user := rbac.SubjectFromContext(r.Context())
		res, err := st.SubmitAttempt(r.Context(), id, user, assess.SubmissionPayload{
			Answers:               req.Answers,
			TotalTimeSpentSeconds: req.TotalTimeSpentSeconds,
			StartedAt:             req.StartedAt,
			SubmittedAt:           req.SubmittedAt,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// GET /attempts/{attemptID}/result
func GetResultHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		user := rbac.SubjectFromContext(r.Context())
		res, err := st.GetResult(r.Context(), id, user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type violationDTO struct {
	Category string `json:"category" validate:"required,oneof=tab_switch window_blur fullscreen_exit copy paste context_menu print devtools"`
	Ordinal  int    `json:"ordinal" validate:"gte=1"`
	At       int64  `json:"at" validate:"required"`
}

// POST /attempts/{attemptID}/violations
func ReportViolationsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req []violationDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, assess.Errorf(assess.CodeValidation, "bad json: %v", err))
			return
		}
		vs := make([]assess.Violation, 0, len(req))
		for _, d := range req {
			if err := validate.Struct(d); err != nil {
				writeError(w, assess.WrapError(assess.CodeValidation, err, "invalid violation"))
				return
			}
			vs = append(vs, assess.Violation{
				Category:  assess.ViolationCategory(d.Category),
				Ordinal:   d.Ordinal,
				UnixMilli: d.At,
			})
		}
		if err := st.SaveViolations(r.Context(), id, vs); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
