package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/user"
)

// NewConfig returns the configuration used by tests: in-memory store, real model artifacts, no request logs.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Alama",
		SecretKey:        "test-secret-key",
		WorkDir:          core.Getwd(),
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Alama", Address: "noreply@alama.test"},
		Server:           core.ServerConfig{Host: "localhost", DisableReqLogs: true},
		Auth:             core.AuthConfig{AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour},
		Database:         core.DatabaseConfig{InMemory: true},
		OTP:              core.OTPConfig{TTL: 10 * time.Minute, Store: "database"},
		Scoring: core.ScoringConfig{
			ModelPath:   "assets/model/model.json",
			EncoderPath: "assets/model/encoder.json",
		},
	}
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// CreateUser stores a user straight through the repository. An empty pwd leaves the user without password.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd string,
	role user.Role,
	class string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Username:  uname,
		Email:     email,
		Role:      role,
		ClassName: class,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreatePrediction stores a prediction record straight through the repository. An empty actorID means a self-prediction.
func CreatePrediction(
	t *testing.T,
	repo prediction.Repository,
	subjectID, actorID string,
	score float64,
	createdAt time.Time,
) prediction.Record {
	t.Helper()

	rec, err := repo.CreatePrediction(context.Background(), prediction.Record{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		ActorID:        actorID,
		Input:          SampleInput(),
		PredictedScore: prediction.NewScore(score),
		CreatedAt:      createdAt.UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePrediction() failed: %v", err)
	}
	return rec
}

// SampleInput is a valid, normalized input scoring 66 with the bundled model.
func SampleInput() prediction.Input {
	return prediction.Input{
		StudyHoursPerWeek:         10,
		AttendanceRate:            80,
		PastExamScores:            70,
		ParentalEducationLevel:    prediction.EducationMasters,
		InternetAccessAtHome:      prediction.Yes,
		ExtracurricularActivities: prediction.No,
	}
}
