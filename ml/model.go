package ml

import (
	"errors"
	"fmt"
)

var (
	ErrMissingArtifact     = errors.New("model artifact not found")
	ErrDeserialization     = errors.New("model artifact could not be decoded")
	ErrSchemaInconsistency = errors.New("model variables were not loaded")
	ErrUnknownModel        = errors.New("model not recognized")
	ErrPrediction          = errors.New("prediction failed")
	ErrInvalidInput        = errors.New("invalid input")
)

// Classifier is implemented by every model carried in a bundle.
type Classifier interface {
	Predict(features []float64) (int, error)
}

type ModelKind string

const (
	KindKNN          ModelKind = "KNN"
	KindDecisionTree ModelKind = "DecisionTree"
	KindNeuralNet    ModelKind = "NeuralNet"
)

// ModelChoice is the tag a user selects in the form.
type ModelChoice string

const (
	ChoiceNN  ModelChoice = "Nn"
	ChoiceKNN ModelChoice = "Knn"
	ChoiceDT  ModelChoice = "Dt"
)

// ModelChoices lists the selector options in display order.
func ModelChoices() []ModelChoice {
	return []ModelChoice{ChoiceNN, ChoiceKNN, ChoiceDT}
}

func ParseModelChoice(tag string) (ModelChoice, error) {
	switch ModelChoice(tag) {
	case ChoiceKNN, ChoiceDT, ChoiceNN:
		return ModelChoice(tag), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, tag)
	}
}

func (c ModelChoice) Kind() (ModelKind, error) {
	switch c {
	case ChoiceKNN:
		return KindKNN, nil
	case ChoiceDT:
		return KindDecisionTree, nil
	case ChoiceNN:
		return KindNeuralNet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, string(c))
	}
}
