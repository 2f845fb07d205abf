package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
)

var (
	orderingParam = "ordering"

	// accepted ordering fields: {query name: column}
	userOrderingFields = map[string]string{
		"username":  "username",
		"email":     "email",
		"role":      "role",
		"class":     "class_name",
		"createdAt": "created_at",
		// snake_case aliases
		"created_at": "created_at",
	}
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads a comma separated `ordering` param like "role,-createdAt". Unknown fields are ignored.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: col, Ascending: !descending})
	}
}

// bindPage reads the `limit` & `offset` params into a clamped core.Page.
func bindPage(ctx echo.Context) (core.Page, error) {
	var (
		limit  int
		offset int
	)
	err := echo.QueryParamsBinder(ctx).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return core.Page{}, bindingError(err)
	}

	var lim *int
	if ctx.QueryParam("limit") != "" {
		lim = &limit
	}
	return core.NewPage(lim, offset), nil
}

// bindingError turns an echo.BindingError into a field level core.ValidationError.
func bindingError(err error) error {
	var bErr *echo.BindingError
	if errors.As(err, &bErr) {
		return core.NewValidationError(err, core.FieldError{Field: bErr.Field, Error: "invalid value"})
	}
	return err
}

// Requests

type (
	RegisterRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	RegisterResponse struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	LoginRequest struct {
		Username string `json:"username" validate:"required_without=Email"`
		Email    string `json:"email" validate:"required_without=Username"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Access  string      `json:"access"`
		Refresh string      `json:"refresh"`
		User    interface{} `json:"user"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}

	RefreshResponse struct {
		Access string `json:"access"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ForgotPasswordResponse struct {
		Message          string `json:"message"`
		ExpiresInMinutes int    `json:"expiresInMinutes"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required,len=6,numeric"`
	}

	VerifyOTPResponse struct {
		Verified bool `json:"verified"`
	}

	ResetPasswordRequest struct {
		Email       string `json:"email" validate:"required,email"`
		OTP         string `json:"otp" validate:"required,len=6,numeric"`
		NewPassword string `json:"newPassword" validate:"required"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// PredictRequest holds the six prediction features; all of them are required.
	PredictRequest struct {
		StudyHoursPerWeek         *float64 `json:"studyHoursPerWeek" validate:"required"`
		AttendanceRate            *float64 `json:"attendanceRate" validate:"required"`
		PastExamScores            *float64 `json:"pastExamScores" validate:"required"`
		ParentalEducationLevel    string   `json:"parentalEducationLevel" validate:"required"`
		InternetAccessAtHome      string   `json:"internetAccessAtHome" validate:"required"`
		ExtracurricularActivities string   `json:"extracurricularActivities" validate:"required"`
	}

	StudentPredictRequest struct {
		StudentID string `json:"studentId" validate:"required"`
		PredictRequest
	}

	PredictResponse struct {
		Message string `json:"message"`
		prediction.Result
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	r.Username = core.CleanString(r.Username, true /* lower */)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

// Identifier is the username, or the email when no username was given.
func (r *LoginRequest) Identifier() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

func (r *RefreshRequest) Validate(validate *validator.Validate) error {
	r.Refresh = strings.Trim(strings.TrimSpace(r.Refresh), "\"'")
	return validate.Struct(r)
}

func (r *ForgotPasswordRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

func (r *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.OTP = core.CleanString(r.OTP)
	return validate.Struct(r)
}

func (r *ResetPasswordRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.OTP = core.CleanString(r.OTP)
	return validate.Struct(r)
}

func (r *PredictRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r *PredictRequest) Input() prediction.Input {
	in := prediction.Input{
		ParentalEducationLevel:    prediction.Education(r.ParentalEducationLevel),
		InternetAccessAtHome:      prediction.YesNo(r.InternetAccessAtHome),
		ExtracurricularActivities: prediction.YesNo(r.ExtracurricularActivities),
	}
	if r.StudyHoursPerWeek != nil {
		in.StudyHoursPerWeek = *r.StudyHoursPerWeek
	}
	if r.AttendanceRate != nil {
		in.AttendanceRate = *r.AttendanceRate
	}
	if r.PastExamScores != nil {
		in.PastExamScores = *r.PastExamScores
	}
	return in
}

func (r *StudentPredictRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	return validate.Struct(r)
}
