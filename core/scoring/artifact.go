package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrArtifactNotFound = errors.New("model files not found")
	ErrFeatureMismatch  = errors.New("feature vector does not match the model")
)

type (
	// Scorer maps a fixed-order feature vector to a raw score.
	Scorer interface {
		Score(features []float64) (float64, error)
	}

	// Encoder maps categorical values (in feature order) to their numeric codes.
	Encoder interface {
		Encode(values []string) ([]float64, error)
	}

	// Featured is implemented by artifacts that declare the feature columns they were fitted on.
	Featured interface {
		FeatureNames() []string
	}
)

// CheckFeatures fails with ErrFeatureMismatch when artifact declares feature columns other than want, in order.
// Artifacts declaring no columns are accepted.
func CheckFeatures(artifact interface{}, want []string) error {
	f, ok := artifact.(Featured)
	if !ok {
		return nil
	}
	got := f.FeatureNames()
	if len(got) == 0 {
		return nil
	}
	if len(got) != len(want) {
		return errors.Wrapf(ErrFeatureMismatch, "got columns %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			return errors.Wrapf(ErrFeatureMismatch, "got columns %v, want %v", got, want)
		}
	}
	return nil
}

// EncodingError reports a categorical value the encoder was not fitted on.
type EncodingError struct {
	Index   int
	Feature string
	Value   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("unknown category %q for %s", e.Value, e.Feature)
}

// LinearModel is a fitted linear regression: intercept + Σ coefficient·feature.
type LinearModel struct {
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

var (
	_ Scorer   = (*LinearModel)(nil)
	_ Featured = (*LinearModel)(nil)
)

func (m *LinearModel) FeatureNames() []string { return m.Features }

func (m *LinearModel) Score(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, errors.Wrapf(ErrFeatureMismatch, "got %d features, want %d", len(features), len(m.Coefficients))
	}
	score := m.Intercept
	for i, x := range features {
		score += m.Coefficients[i] * x
	}
	return score, nil
}

// OrdinalEncoder encodes each categorical feature as the index of its value in the fitted categories.
type OrdinalEncoder struct {
	Features   []string   `json:"features"`
	Categories [][]string `json:"categories"`
}

var (
	_ Encoder  = (*OrdinalEncoder)(nil)
	_ Featured = (*OrdinalEncoder)(nil)
)

func (e *OrdinalEncoder) FeatureNames() []string { return e.Features }

func (e *OrdinalEncoder) Encode(values []string) ([]float64, error) {
	if len(values) != len(e.Categories) {
		return nil, errors.Wrapf(ErrFeatureMismatch, "got %d categorical values, want %d", len(values), len(e.Categories))
	}
	encoded := make([]float64, len(values))
	for i, v := range values {
		idx := -1
		for j, cat := range e.Categories[i] {
			if cat == v {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, &EncodingError{Index: i, Feature: e.feature(i), Value: v}
		}
		encoded[i] = float64(idx)
	}
	return encoded, nil
}

func (e *OrdinalEncoder) feature(i int) string {
	if i < len(e.Features) {
		return e.Features[i]
	}
	return fmt.Sprintf("feature %d", i)
}

// LoadLinearModel reads a JSON LinearModel artifact.
func LoadLinearModel(path string) (Scorer, error) {
	m := new(LinearModel)
	if err := readArtifact(path, m); err != nil {
		return nil, err
	}
	if len(m.Coefficients) == 0 || (len(m.Features) > 0 && len(m.Features) != len(m.Coefficients)) {
		return nil, errors.Errorf("invalid model artifact %s", path)
	}
	return m, nil
}

// LoadOrdinalEncoder reads a JSON OrdinalEncoder artifact.
func LoadOrdinalEncoder(path string) (Encoder, error) {
	e := new(OrdinalEncoder)
	if err := readArtifact(path, e); err != nil {
		return nil, err
	}
	if len(e.Categories) == 0 {
		return nil, errors.Errorf("invalid encoder artifact %s", path)
	}
	return e, nil
}

func readArtifact(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrArtifactNotFound, path)
		}
		return errors.Wrapf(err, "reading artifact %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding artifact %s", path)
	}
	return nil
}
