package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// KNN is a fitted k-nearest-neighbours classifier. Samples and Labels are
// the training set kept by the model.
type KNN struct {
	K       int         `json:"k"`
	Weights string      `json:"weights"`
	Metric  string      `json:"metric"`
	Samples [][]float64 `json:"samples"`
	Labels  []int       `json:"labels"`
}

type neighbour struct {
	distance float64
	label    int
}

func (m *KNN) Predict(features []float64) (int, error) {
	if len(m.Samples) == 0 {
		return 0, errors.New("model not trained")
	}
	dim := len(m.Samples[0])
	if len(features) != dim {
		return 0, fmt.Errorf("expected %d features, got %d", dim, len(features))
	}

	norm := 2.0
	if m.Metric == "manhattan" {
		norm = 1
	}
	neighbours := make([]neighbour, len(m.Samples))
	for i, sample := range m.Samples {
		neighbours[i] = neighbour{distance: floats.Distance(sample, features, norm), label: m.Labels[i]}
	}
	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})

	k := m.K
	if k <= 0 {
		return 0, errors.New("k must be positive")
	}
	if k > len(neighbours) {
		k = len(neighbours)
	}
	nearest := neighbours[:k]
	votes := make(map[int]float64)
	switch {
	case m.Weights == "distance" && nearest[0].distance == 0:
		// exact matches vote alone, one vote each
		for _, n := range nearest {
			if n.distance == 0 {
				votes[n.label]++
			}
		}
	case m.Weights == "distance":
		for _, n := range nearest {
			votes[n.label] += 1 / n.distance
		}
	default:
		for _, n := range nearest {
			votes[n.label]++
		}
	}

	labels := make([]int, 0, len(votes))
	for label := range votes {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	best := labels[0]
	for _, label := range labels[1:] {
		if votes[label] > votes[best] {
			best = label
		}
	}
	return best, nil
}

func (m *KNN) validate() error {
	if m.K <= 0 {
		return errors.New("knn: k must be positive")
	}
	if len(m.Samples) == 0 {
		return errors.New("knn: no samples")
	}
	if len(m.Samples) != len(m.Labels) {
		return errors.New("knn: samples and labels size mismatch")
	}
	dim := len(m.Samples[0])
	for i, sample := range m.Samples {
		if len(sample) != dim {
			return fmt.Errorf("knn: sample %d has %d features, want %d", i, len(sample), dim)
		}
	}
	switch m.Weights {
	case "", "uniform", "distance":
	default:
		return fmt.Errorf("knn: unsupported weights %q", m.Weights)
	}
	switch m.Metric {
	case "", "euclidean", "manhattan":
	default:
		return fmt.Errorf("knn: unsupported metric %q", m.Metric)
	}
	return nil
}
