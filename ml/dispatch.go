package ml

import (
	"fmt"
)

type RiskLevel string

const (
	RiskHigh RiskLevel = "high"
	RiskLow  RiskLevel = "low"
)

// RiskFor maps a raw classifier output to a risk level. Only an exact 0 is
// high risk; every other value is low risk.
func RiskFor(prediction int) RiskLevel {
	if prediction == 0 {
		return RiskHigh
	}
	return RiskLow
}

func (r RiskLevel) Label() string {
	if r == RiskHigh {
		return "High Risk"
	}
	return "Low Risk"
}

type PredictionResult struct {
	Prediction int         `json:"prediction"`
	Risk       RiskLevel   `json:"risk"`
	Model      ModelChoice `json:"model"`
}

func (r PredictionResult) Label() string {
	return r.Risk.Label()
}

// Dispatcher routes a feature row to the classifier selected by the user.
type Dispatcher struct {
	bundle *ModelBundle
}

func NewDispatcher(bundle *ModelBundle) *Dispatcher {
	return &Dispatcher{bundle: bundle}
}

func (d *Dispatcher) Predict(choice ModelChoice, row FeatureRow) (result PredictionResult, err error) {
	kind, err := choice.Kind()
	if err != nil {
		return PredictionResult{}, err
	}
	classifier, ok := d.bundle.Classifiers[kind]
	if !ok || classifier == nil {
		return PredictionResult{}, fmt.Errorf("%w: no %s classifier in bundle", ErrUnknownModel, kind)
	}

	defer func() {
		if r := recover(); r != nil {
			result = PredictionResult{}
			err = fmt.Errorf("%w: %s: %v", ErrPrediction, kind, r)
		}
	}()

	prediction, err := classifier.Predict(row.Values)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("%w: %s: %v", ErrPrediction, kind, err)
	}
	return PredictionResult{
		Prediction: prediction,
		Risk:       RiskFor(prediction),
		Model:      choice,
	}, nil
}
