package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/examgate/examgate/internal/assess"
	"github.com/examgate/examgate/internal/grading"
)

// SQLStore works against sqlite or postgres through database/sql; the
// schema lives in internal/db.
type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
}

func NewSQLStore(db *sql.DB, g grading.Grader) *SQLStore {
	return &SQLStore{db: db, grader: g}
}

func (s *SQLStore) PutAssessment(ctx context.Context, a assess.Assessment) error {
	qj, err := json.Marshal(a.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments
		(id,title,type,duration_sec,total_points,passing_score,max_attempts,
		 shuffle_questions,shuffle_options,show_correct_answers,show_feedback,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
		 title=EXCLUDED.title, type=EXCLUDED.type, duration_sec=EXCLUDED.duration_sec,
		 total_points=EXCLUDED.total_points, passing_score=EXCLUDED.passing_score,
		 max_attempts=EXCLUDED.max_attempts, shuffle_questions=EXCLUDED.shuffle_questions,
		 shuffle_options=EXCLUDED.shuffle_options, show_correct_answers=EXCLUDED.show_correct_answers,
		 show_feedback=EXCLUDED.show_feedback, questions_json=EXCLUDED.questions_json`,
		a.ID, a.Title, string(a.Type), a.DurationSec, a.TotalPoints, a.PassingScore, a.MaxAttempts,
		a.ShuffleQuestions, a.ShuffleOptions, a.ShowCorrectAnswers, a.ShowFeedback, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) getAssessment(ctx context.Context, id string) (assess.Assessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,type,duration_sec,total_points,passing_score,max_attempts,
		shuffle_questions,shuffle_options,show_correct_answers,show_feedback,questions_json,created_at
		FROM assessments WHERE id=$1`, id)
	var a assess.Assessment
	var typ, qjson string
	err := row.Scan(&a.ID, &a.Title, &typ, &a.DurationSec, &a.TotalPoints, &a.PassingScore, &a.MaxAttempts,
		&a.ShuffleQuestions, &a.ShuffleOptions, &a.ShowCorrectAnswers, &a.ShowFeedback, &qjson, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assess.Assessment{}, assess.Errorf(assess.CodeNotFound, "assessment %s not found", id)
		}
		return assess.Assessment{}, err
	}
	a.Type = assess.AssessmentType(typ)
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return assess.Assessment{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAssessment(ctx context.Context, id string) (assess.Assessment, error) {
	a, err := s.getAssessment(ctx, id)
	if err != nil {
		return assess.Assessment{}, err
	}
	return Sanitize(a), nil
}

func (s *SQLStore) StartAttempt(ctx context.Context, assessmentID, userID string) (assess.Attempt, error) {
	a, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return assess.Attempt{}, err
	}
	var prior int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id=$1 AND user_id=$2`,
		assessmentID, userID).Scan(&prior); err != nil {
		return assess.Attempt{}, err
	}
	if a.MaxAttempts > 0 && prior >= a.MaxAttempts {
		return assess.Attempt{}, assess.Errorf(assess.CodeAttemptsExhausted, "no attempts remaining")
	}
	at := assess.Attempt{
		ID:            uuid.NewString(),
		AssessmentID:  assessmentID,
		UserID:        userID,
		AttemptNumber: prior + 1,
		Status:        assess.StatusInProgress,
		Responses:     map[string]assess.Answer{},
		StartedAt:     time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,assessment_id,user_id,attempt_number,status,score,responses_json,feedback_json,started_at)
		VALUES ($1,$2,$3,$4,$5,0,'{}','[]',$6)`,
		at.ID, at.AssessmentID, at.UserID, at.AttemptNumber, string(at.Status), at.StartedAt)
	if err != nil {
		return assess.Attempt{}, err
	}
	return at, nil
}

func (s *SQLStore) SubmitAttempt(ctx context.Context, attemptID, userID string, p assess.SubmissionPayload) (assess.Result, error) {
	at, err := s.getAttempt(ctx, attemptID, userID)
	if err != nil {
		return assess.Result{}, err
	}
	if at.Status != assess.StatusInProgress {
		return assess.Result{}, assess.Errorf(assess.CodeAlreadySubmitted, "attempt already submitted")
	}
	a, err := s.getAssessment(ctx, at.AssessmentID)
	if err != nil {
		return assess.Result{}, err
	}

	score, fb := grading.GradeAttempt(ctx, s.grader, a, p)

	responses := map[string]assess.Answer{}
	for _, e := range p.Answers {
		responses[e.QuestionID] = e.Answer
	}
	rj, _ := json.Marshal(responses)
	fj, _ := json.Marshal(fb)
	_, err = s.db.ExecContext(ctx,
		`UPDATE attempts SET status=$1, score=$2, responses_json=$3, feedback_json=$4, submitted_at=$5 WHERE id=$6`,
		string(assess.StatusGraded), score, string(rj), string(fj), time.Now().Unix(), attemptID)
	if err != nil {
		return assess.Result{}, err
	}
	return buildResult(a, attemptID, score, fb, at.AttemptNumber), nil
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID, userID string) (assess.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT assessment_id,attempt_number,status,score,feedback_json FROM attempts WHERE id=$1 AND user_id=$2`,
		attemptID, userID)
	var assessmentID, status, fjson string
	var attemptNumber int
	var score float64
	if err := row.Scan(&assessmentID, &attemptNumber, &status, &score, &fjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assess.Result{}, assess.Errorf(assess.CodeNotFound, "attempt %s not found", attemptID)
		}
		return assess.Result{}, err
	}
	if assess.AttemptStatus(status) == assess.StatusInProgress {
		return assess.Result{}, assess.Errorf(assess.CodeValidation, "attempt not submitted yet")
	}
	var fb []assess.QuestionFeedback
	if err := json.Unmarshal([]byte(fjson), &fb); err != nil {
		fb = nil
	}
	a, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return assess.Result{}, err
	}
	return buildResult(a, attemptID, score, fb, attemptNumber), nil
}

// SaveViolations appends the reported events to the attempt's integrity log.
// The log is append-only, mirroring the client-side monitor.
func (s *SQLStore) SaveViolations(ctx context.Context, attemptID string, vs []assess.Violation) error {
	if _, err := s.getAttemptOwner(ctx, attemptID); err != nil {
		return err
	}
	for _, v := range vs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO violations (id,attempt_id,category,ordinal,at_ms,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), attemptID, string(v.Category), v.Ordinal, v.UnixMilli, time.Now().Unix())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) getAttempt(ctx context.Context, id, userID string) (assess.Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,assessment_id,user_id,attempt_number,status,score,started_at FROM attempts WHERE id=$1 AND user_id=$2`,
		id, userID)
	var at assess.Attempt
	var status string
	if err := row.Scan(&at.ID, &at.AssessmentID, &at.UserID, &at.AttemptNumber, &status, &at.Score, &at.StartedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assess.Attempt{}, assess.Errorf(assess.CodeNotFound, "attempt %s not found", id)
		}
		return assess.Attempt{}, err
	}
	at.Status = assess.AttemptStatus(status)
	return at, nil
}

func (s *SQLStore) getAttemptOwner(ctx context.Context, id string) (string, error) {
	var owner string
	if err := s.db.QueryRowContext(ctx, `SELECT user_id FROM attempts WHERE id=$1`, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", assess.Errorf(assess.CodeNotFound, "attempt %s not found", id)
		}
		return "", err
	}
	return owner, nil
}
