package prediction

import (
	"fmt"
	"strings"

	"github.com/trezcool/alama/core"
)

// Education is the canonical parental education level label.
type Education string

const (
	EducationHighSchool Education = "High School"
	EducationBachelors  Education = "Bachelors"
	EducationMasters    Education = "Masters"
	EducationPhD        Education = "PhD"
)

// YesNo is the canonical label of a boolean category.
type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

// Feature columns, in the order the artifacts were fitted with.
var (
	NumericFeatures     = []string{"Study_Hours_per_Week", "Attendance_Rate", "Past_Exam_Scores"}
	CategoricalFeatures = []string{"Parental_Education_Level", "Internet_Access_at_Home", "Extracurricular_Activities"}

	modelFeatures     = append(append([]string{}, NumericFeatures...), CategoricalFeatures...)
	categoricalFields = []string{"parentalEducationLevel", "internetAccessAtHome", "extracurricularActivities"}

	educationSpellings = map[string]Education{
		"highschool": EducationHighSchool,
		"bachelors":  EducationBachelors,
		"bachelor":   EducationBachelors,
		"masters":    EducationMasters,
		"master":     EducationMasters,
		"phd":        EducationPhD,
	}
	yesNoSpellings = map[string]YesNo{
		"yes": Yes, "y": Yes, "true": Yes, "1": Yes,
		"no": No, "n": No, "false": No, "0": No,
	}
)

type numericRange struct {
	field    string
	min, max float64
}

var (
	studyHoursRange = numericRange{field: "studyHoursPerWeek", min: 0, max: 168}
	attendanceRange = numericRange{field: "attendanceRate", min: 0, max: 100}
	pastScoreRange  = numericRange{field: "pastExamScores", min: 0, max: 100}
)

func (r numericRange) check(v float64) *core.FieldError {
	if v >= r.min && v <= r.max {
		return nil
	}
	return &core.FieldError{Field: r.field, Error: fmt.Sprintf("must be between %g and %g", r.min, r.max)}
}

// Input holds the six features of a prediction.
type Input struct {
	StudyHoursPerWeek         float64   `json:"studyHoursPerWeek"`
	AttendanceRate            float64   `json:"attendanceRate"`
	PastExamScores            float64   `json:"pastExamScores"`
	ParentalEducationLevel    Education `json:"parentalEducationLevel"`
	InternetAccessAtHome      YesNo     `json:"internetAccessAtHome"`
	ExtracurricularActivities YesNo     `json:"extracurricularActivities"`
}

// NormalizeEducation maps free-form spellings to the canonical label; unknown values are only trimmed.
func NormalizeEducation(s string) Education {
	s = strings.TrimSpace(s)
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if edu, ok := educationSpellings[key]; ok {
		return edu
	}
	return Education(s)
}

// NormalizeYesNo maps yes/y/true/1 and no/n/false/0 (any case) to Yes/No; unknown values are only trimmed.
func NormalizeYesNo(s string) YesNo {
	s = strings.TrimSpace(s)
	if yn, ok := yesNoSpellings[strings.ToLower(s)]; ok {
		return yn
	}
	return YesNo(s)
}

func (in Input) Normalize() Input {
	in.ParentalEducationLevel = NormalizeEducation(string(in.ParentalEducationLevel))
	in.InternetAccessAtHome = NormalizeYesNo(string(in.InternetAccessAtHome))
	in.ExtracurricularActivities = NormalizeYesNo(string(in.ExtracurricularActivities))
	return in
}

// Validate checks the numeric ranges (bounds inclusive).
func (in Input) Validate() error {
	var flds []core.FieldError
	for _, fe := range []*core.FieldError{
		studyHoursRange.check(in.StudyHoursPerWeek),
		attendanceRange.check(in.AttendanceRate),
		pastScoreRange.check(in.PastExamScores),
	} {
		if fe != nil {
			flds = append(flds, *fe)
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrInvalidRange, flds...)
	}
	return nil
}

func (in Input) numeric() []float64 {
	return []float64{in.StudyHoursPerWeek, in.AttendanceRate, in.PastExamScores}
}

func (in Input) categories() []string {
	return []string{string(in.ParentalEducationLevel), string(in.InternetAccessAtHome), string(in.ExtracurricularActivities)}
}
