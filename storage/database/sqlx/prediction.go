package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
)

const inputColumns = `study_hours_per_week, attendance_rate, past_exam_scores,
	parental_education_level, internet_access_at_home, extracurricular_activities`

type inputRow struct {
	StudyHoursPerWeek         float64 `db:"study_hours_per_week"`
	AttendanceRate            float64 `db:"attendance_rate"`
	PastExamScores            float64 `db:"past_exam_scores"`
	ParentalEducationLevel    string  `db:"parental_education_level"`
	InternetAccessAtHome      string  `db:"internet_access_at_home"`
	ExtracurricularActivities string  `db:"extracurricular_activities"`
}

func newInputRow(in prediction.Input) inputRow {
	return inputRow{
		StudyHoursPerWeek:         in.StudyHoursPerWeek,
		AttendanceRate:            in.AttendanceRate,
		PastExamScores:            in.PastExamScores,
		ParentalEducationLevel:    string(in.ParentalEducationLevel),
		InternetAccessAtHome:      string(in.InternetAccessAtHome),
		ExtracurricularActivities: string(in.ExtracurricularActivities),
	}
}

func (r inputRow) toInput() prediction.Input {
	return prediction.Input{
		StudyHoursPerWeek:         r.StudyHoursPerWeek,
		AttendanceRate:            r.AttendanceRate,
		PastExamScores:            r.PastExamScores,
		ParentalEducationLevel:    prediction.Education(r.ParentalEducationLevel),
		InternetAccessAtHome:      prediction.YesNo(r.InternetAccessAtHome),
		ExtracurricularActivities: prediction.YesNo(r.ExtracurricularActivities),
	}
}

type predictionRow struct {
	ID        string      `db:"id"`
	SubjectID string      `db:"subject_id"`
	ActorID   null.String `db:"actor_id"`
	inputRow
	PredictedScore float64   `db:"predicted_score"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r predictionRow) toRecord() prediction.Record {
	return prediction.Record{
		ID:             r.ID,
		SubjectID:      r.SubjectID,
		ActorID:        r.ActorID.String,
		Input:          r.toInput(),
		PredictedScore: prediction.NewScore(r.PredictedScore),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type rawInputRow struct {
	ID        string      `db:"id"`
	SubjectID string      `db:"subject_id"`
	ActorID   null.String `db:"actor_id"`
	inputRow
	CreatedAt time.Time `db:"created_at"`
}

func (r rawInputRow) toRecord() prediction.RawInputRecord {
	return prediction.RawInputRecord{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		ActorID:   r.ActorID.String,
		Input:     r.toInput(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func actorID(id string) null.String {
	return null.NewString(id, id != "")
}

// where renders the WHERE clause of filter.
func where(filter prediction.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conds = append(conds, "subject_id = "+placeholder(len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conds = append(conds, "actor_id = "+placeholder(len(args)))
	}
	if filter.SelfOnly {
		conds = append(conds, "actor_id IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type predictionRepository struct {
	db *sqlx.DB
}

var _ prediction.Repository = (*predictionRepository)(nil) // interface compliance check

func NewPredictionRepository(db *sqlx.DB) prediction.Repository {
	return &predictionRepository{db: db}
}

func (repo *predictionRepository) CreatePrediction(ctx context.Context, rec prediction.Record) (prediction.Record, error) {
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO predictions (id, subject_id, actor_id, `+inputColumns+`, predicted_score, created_at)
		VALUES (:id, :subject_id, :actor_id, :study_hours_per_week, :attendance_rate, :past_exam_scores,
			:parental_education_level, :internet_access_at_home, :extracurricular_activities,
			:predicted_score, :created_at)`,
		predictionRow{
			ID:             rec.ID,
			SubjectID:      rec.SubjectID,
			ActorID:        actorID(rec.ActorID),
			inputRow:       newInputRow(rec.Input),
			PredictedScore: rec.PredictedScore.Float64(),
			CreatedAt:      rec.CreatedAt,
		},
	)
	if err != nil {
		return prediction.Record{}, errors.Wrap(err, "inserting prediction")
	}
	return rec, nil
}

func (repo *predictionRepository) GetPrediction(ctx context.Context, id string) (prediction.Record, error) {
	var r predictionRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM predictions WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return prediction.Record{}, prediction.ErrRecordNotFound
		}
		return prediction.Record{}, errors.Wrap(err, "selecting prediction")
	}
	return r.toRecord(), nil
}

func (repo *predictionRepository) QueryPredictions(ctx context.Context, filter prediction.Filter, page core.Page) ([]prediction.Record, int, error) {
	cond, args := where(filter)

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM predictions"+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting predictions")
	}

	window, args := limitOffset(page, args)
	var rows []predictionRow
	q := "SELECT * FROM predictions" + cond + " ORDER BY created_at DESC, id DESC" + window
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting predictions")
	}
	recs := make([]prediction.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs, total, nil
}

func (repo *predictionRepository) DeletePrediction(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting prediction")
	}
	return expectAffected(res, prediction.ErrRecordNotFound)
}

func (repo *predictionRepository) LatestPredictions(ctx context.Context, subjectIDs ...string) (map[string]prediction.Record, error) {
	latest := make(map[string]prediction.Record, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return latest, nil
	}

	var rows []predictionRow
	err := repo.db.SelectContext(
		ctx,
		&rows,
		`SELECT DISTINCT ON (subject_id) * FROM predictions
		WHERE subject_id = ANY($1)
		ORDER BY subject_id, created_at DESC, id DESC`,
		pq.Array(subjectIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting latest predictions")
	}
	for _, r := range rows {
		latest[r.SubjectID] = r.toRecord()
	}
	return latest, nil
}

func (repo *predictionRepository) CreateRawInput(ctx context.Context, rec prediction.RawInputRecord) (prediction.RawInputRecord, error) {
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO raw_inputs (id, subject_id, actor_id, `+inputColumns+`, created_at)
		VALUES (:id, :subject_id, :actor_id, :study_hours_per_week, :attendance_rate, :past_exam_scores,
			:parental_education_level, :internet_access_at_home, :extracurricular_activities, :created_at)`,
		rawInputRow{
			ID:        rec.ID,
			SubjectID: rec.SubjectID,
			ActorID:   actorID(rec.ActorID),
			inputRow:  newInputRow(rec.Input),
			CreatedAt: rec.CreatedAt,
		},
	)
	if err != nil {
		return prediction.RawInputRecord{}, errors.Wrap(err, "inserting raw input")
	}
	return rec, nil
}

func (repo *predictionRepository) QueryRawInputs(ctx context.Context, filter prediction.Filter, page core.Page) ([]prediction.RawInputRecord, int, error) {
	cond, args := where(filter)

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM raw_inputs"+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting raw inputs")
	}

	window, args := limitOffset(page, args)
	var rows []rawInputRow
	q := "SELECT * FROM raw_inputs" + cond + " ORDER BY created_at DESC, id DESC" + window
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting raw inputs")
	}
	recs := make([]prediction.RawInputRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs, total, nil
}
