package ml

import (
	"errors"
	"fmt"
)

// MinMaxScaler is a fitted per-feature min-max scaler:
// x' = x*Scale[i] + Min[i], mapping the training range onto FeatureRange.
type MinMaxScaler struct {
	FeatureRange [2]float64 `json:"feature_range"`
	Min          []float64  `json:"min"`
	Scale        []float64  `json:"scale"`
	DataMin      []float64  `json:"data_min"`
	DataMax      []float64  `json:"data_max"`
}

func (s *MinMaxScaler) Transform(vector []float64) ([]float64, error) {
	if len(vector) != len(s.Scale) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Scale), len(vector))
	}
	out := make([]float64, len(vector))
	for i, value := range vector {
		out[i] = value*s.Scale[i] + s.Min[i]
	}
	return out, nil
}

func (s *MinMaxScaler) NumFeatures() int {
	return len(s.Scale)
}

func (s *MinMaxScaler) validate() error {
	if len(s.Scale) == 0 {
		return errors.New("scaler has no features")
	}
	if len(s.Min) != len(s.Scale) {
		return errors.New("scaler min and scale size mismatch")
	}
	if s.FeatureRange[0] >= s.FeatureRange[1] {
		return fmt.Errorf("invalid feature range %v", s.FeatureRange)
	}
	return nil
}

// LabelEncoder maps encoded class indices back to the original class names.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) Inverse(label int) (string, error) {
	if label < 0 || label >= len(e.Classes) {
		return "", fmt.Errorf("label %d not in encoder classes", label)
	}
	return e.Classes[label], nil
}

func (e *LabelEncoder) validate() error {
	if len(e.Classes) == 0 {
		return errors.New("label encoder has no classes")
	}
	return nil
}
