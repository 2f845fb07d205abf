package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scoring"
	"github.com/trezcool/alama/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidRange    = errors.New("value out of range")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidScore    = errors.New("scorer returned an invalid score")
	ErrRecordNotFound  = errors.New("prediction not found")
	ErrNotOwner        = errors.New("you can only delete predictions you made")
	ErrStudentNotFound = errors.New("student not found")
	ErrNotSameClass    = errors.New("this student is not in your class")
	ErrNoClass         = errors.New("you are not assigned to a class")
)

type (
	// Models provides the cached scoring artifacts.
	Models interface {
		Scorer() (scoring.Scorer, error)
		Encoder() (scoring.Encoder, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error)
	}

	// Repository is the History Ledger store. Query results are ordered newest first.
	Repository interface {
		CreatePrediction(ctx context.Context, rec Record) (Record, error)
		GetPrediction(ctx context.Context, id string) (Record, error)
		QueryPredictions(ctx context.Context, filter Filter, page core.Page) ([]Record, int, error)
		DeletePrediction(ctx context.Context, id string) error
		// LatestPredictions returns the newest Record of each subject that has one.
		LatestPredictions(ctx context.Context, subjectIDs ...string) (map[string]Record, error)
		CreateRawInput(ctx context.Context, rec RawInputRecord) (RawInputRecord, error)
		QueryRawInputs(ctx context.Context, filter Filter, page core.Page) ([]RawInputRecord, int, error)
	}

	Service struct {
		models Models
		repo   Repository
		users  UserFinder
		logger core.Logger
	}
)

func NewService(models Models, repo Repository, users UserFinder, logger core.Logger) *Service {
	return &Service{
		models: models,
		repo:   repo,
		users:  users,
		logger: logger,
	}
}

// CanActFor checks that actor may record data for subject: a teacher and a student sharing the same class.
func CanActFor(actor, subject user.User) error {
	if !actor.IsTeacher() {
		return ErrNotSameClass
	}
	if actor.ClassName == "" {
		return ErrNoClass
	}
	if !subject.IsStudent() {
		return ErrStudentNotFound
	}
	if subject.ClassName != actor.ClassName {
		return ErrNotSameClass
	}
	return nil
}

// Predict validates, normalizes and scores in.
func (svc *Service) Predict(ctx context.Context, in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	received := in
	in = in.Normalize()

	scorer, err := svc.models.Scorer()
	if err != nil {
		return Result{}, errors.Wrap(err, "loading scorer")
	}
	encoder, err := svc.models.Encoder()
	if err != nil {
		return Result{}, errors.Wrap(err, "loading encoder")
	}
	if err := scoring.CheckFeatures(scorer, modelFeatures); err != nil {
		return Result{}, errors.Wrap(err, "checking model columns")
	}
	if err := scoring.CheckFeatures(encoder, CategoricalFeatures); err != nil {
		return Result{}, errors.Wrap(err, "checking encoder columns")
	}

	encoded, err := encoder.Encode(in.categories())
	if err != nil {
		var encErr *scoring.EncodingError
		if errors.As(err, &encErr) && encErr.Index < len(categoricalFields) {
			return Result{}, core.NewValidationError(ErrUnknownCategory, core.FieldError{
				Field: categoricalFields[encErr.Index],
				Error: fmt.Sprintf("unknown value %q", encErr.Value),
			})
		}
		return Result{}, errors.Wrap(err, "encoding categories")
	}

	features := make([]float64, 0, len(modelFeatures))
	features = append(features, in.numeric()...)
	features = append(features, encoded...)
	raw, err := scorer.Score(features)
	if err != nil {
		return Result{}, errors.Wrap(err, "scoring")
	}
	if math.IsNaN(raw) {
		return Result{}, ErrInvalidScore
	}
	return Result{PredictedScore: NewScore(raw), Input: received, Scored: in}, nil
}

// PredictForSelf scores in and, when subject is set, records it as their own prediction.
// A failed save is logged; the score is still returned.
func (svc *Service) PredictForSelf(ctx context.Context, subject *user.User, in Input) (Result, error) {
	res, err := svc.Predict(ctx, in)
	if err != nil || subject == nil {
		return res, err
	}
	rec, err := svc.RecordSelfPrediction(ctx, *subject, res.Scored, res.PredictedScore)
	if err != nil {
		svc.logger.Error("saving self prediction", errors.Wrap(err, "saving self prediction"), *subject)
		return res, nil
	}
	res.RecordID = rec.ID
	return res, nil
}

// PredictForStudent scores in for a student of actor's class and records it on their behalf.
// A failed save is logged; the score is still returned.
func (svc *Service) PredictForStudent(ctx context.Context, actor user.User, studentID string, in Input) (Result, error) {
	student, err := svc.resolveStudent(ctx, actor, studentID)
	if err != nil {
		return Result{}, err
	}
	res, err := svc.Predict(ctx, in)
	if err != nil {
		return Result{}, err
	}
	res.StudentID = student.ID

	rec, err := svc.RecordActingPrediction(ctx, actor, student, res.Scored, res.PredictedScore)
	if err != nil {
		svc.logger.Error("saving acting prediction", errors.Wrap(err, "saving acting prediction"), actor)
		return res, nil
	}
	res.RecordID = rec.ID
	return res, nil
}

func (svc *Service) RecordSelfPrediction(ctx context.Context, subject user.User, in Input, score Score) (Record, error) {
	return svc.repo.CreatePrediction(ctx, Record{
		ID:             uuid.NewString(),
		SubjectID:      subject.ID,
		Input:          in,
		PredictedScore: score,
		CreatedAt:      NowFunc().UTC(),
	})
}

func (svc *Service) RecordActingPrediction(ctx context.Context, actor, subject user.User, in Input, score Score) (Record, error) {
	return svc.repo.CreatePrediction(ctx, Record{
		ID:             uuid.NewString(),
		SubjectID:      subject.ID,
		ActorID:        actor.ID,
		Input:          in,
		PredictedScore: score,
		CreatedAt:      NowFunc().UTC(),
	})
}

// SaveRawInput records in for a student of actor's class without predicting.
func (svc *Service) SaveRawInput(ctx context.Context, actor user.User, studentID string, in Input) (RawInputRecord, error) {
	student, err := svc.resolveStudent(ctx, actor, studentID)
	if err != nil {
		return RawInputRecord{}, err
	}
	if err := in.Validate(); err != nil {
		return RawInputRecord{}, err
	}
	return svc.repo.CreateRawInput(ctx, RawInputRecord{
		ID:        uuid.NewString(),
		SubjectID: student.ID,
		ActorID:   actor.ID,
		Input:     in.Normalize(),
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *Service) resolveStudent(ctx context.Context, actor user.User, studentID string) (user.User, error) {
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrStudentNotFound
		}
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if err := CanActFor(actor, student); err != nil {
		return user.User{}, err
	}
	return student, nil
}
