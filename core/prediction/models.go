package prediction

import (
	"math"
	"strconv"
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Score is a predicted score clamped into [0, 100] and rounded to 2 decimals.
type Score float64

// NewScore clamps and rounds a raw scorer output.
func NewScore(raw float64) Score {
	clamped := math.Max(MinScore, math.Min(MaxScore, raw))
	return Score(math.Round(clamped*100) / 100)
}

func (s Score) Float64() float64 { return float64(s) }

func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'f', 2, 64)
}

func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

type (
	// Result is the outcome of a prediction. Input echoes the values as received;
	// Scored holds the normalized values that were scored and recorded.
	Result struct {
		PredictedScore Score  `json:"predictedScore"`
		Input          Input  `json:"inputData"`
		Scored         Input  `json:"-"`
		StudentID      string `json:"studentId,omitempty"`
		RecordID       string `json:"recordId,omitempty"`
	}

	// Record is a persisted prediction. An empty ActorID means a self-prediction.
	Record struct {
		ID        string `json:"id"`
		SubjectID string `json:"studentId"`
		ActorID   string `json:"actingUserId,omitempty"`
		Input
		PredictedScore Score     `json:"predictedScore"`
		CreatedAt      time.Time `json:"createdAt"` // UTC
	}

	// RawInputRecord is student data recorded without a prediction.
	RawInputRecord struct {
		ID        string `json:"id"`
		SubjectID string `json:"studentId"`
		ActorID   string `json:"actingUserId,omitempty"`
		Input
		CreatedAt time.Time `json:"createdAt"` // UTC
	}

	// Filter selects records. Empty fields are ignored.
	Filter struct {
		SubjectID string
		ActorID   string
		SelfOnly  bool // only records without an acting user
	}

	RecordPage struct {
		Predictions []Record `json:"predictions"`
		Total       int      `json:"total"`
		core.Page
	}

	RawInputPage struct {
		Items []RawInputRecord `json:"items"`
		Total int              `json:"total"`
		core.Page
	}

	// StudentSummary is a class member with their latest predicted score.
	StudentSummary struct {
		user.User
		LastScore       *Score     `json:"lastScore"`
		LastPredictedAt *time.Time `json:"lastPredictedAt"`
	}
)

func (r Record) IsSelf() bool { return r.ActorID == "" }
