package ml

import "testing"

func testNeuralNet() *NeuralNet {
	return &NeuralNet{
		Activation: "relu",
		Coefs: [][][]float64{
			{{0.1, 0}, {0, 3}},
			{{2}, {-2}},
		},
		Intercepts: [][]float64{{-4, 0}, {-1}},
		Classes:    []int{0, 1},
	}
}

func TestNeuralNetPredictBinary(t *testing.T) {
	model := testNeuralNet()
	if err := model.validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	cases := []struct {
		features []float64
		want     int
	}{
		{[]float64{33, 0}, 0},
		{[]float64{60, 0}, 1},
		{[]float64{60, 1}, 0},
	}
	for _, tc := range cases {
		label, err := model.Predict(tc.features)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", tc.features, err)
		}
		if label != tc.want {
			t.Fatalf("features %v: expected %d, got %d", tc.features, tc.want, label)
		}
	}
}

func TestNeuralNetPredictWithoutValidate(t *testing.T) {
	label, err := testNeuralNet().Predict([]float64{60, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected 1, got %d", label)
	}
}

func TestNeuralNetMulticlassArgmax(t *testing.T) {
	model := &NeuralNet{
		Activation: "identity",
		Coefs:      [][][]float64{{{1, -1, 0}}},
		Intercepts: [][]float64{{0, 0, 0.5}},
		Classes:    []int{7, 8, 9},
	}
	cases := map[float64]int{2: 7, -2: 8, 0: 9}
	for x, want := range cases {
		label, err := model.Predict([]float64{x})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != want {
			t.Fatalf("x=%v: expected %d, got %d", x, want, label)
		}
	}
}

func TestNeuralNetDimensionMismatch(t *testing.T) {
	if _, err := testNeuralNet().Predict([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestNeuralNetValidate(t *testing.T) {
	cases := map[string]*NeuralNet{
		"no layers": {Classes: []int{0, 1}},
		"bias mismatch": {
			Coefs:      [][][]float64{{{1}}},
			Intercepts: [][]float64{{1, 2}},
			Classes:    []int{0, 1},
		},
		"layer shape mismatch": {
			Coefs:      [][][]float64{{{1, 1}}, {{1}, {1}, {1}}},
			Intercepts: [][]float64{{0, 0}, {0}},
			Classes:    []int{0, 1},
		},
		"missing classes": {
			Coefs:      [][][]float64{{{1}}},
			Intercepts: [][]float64{{0}},
		},
		"unknown activation": {
			Activation: "softsign",
			Coefs:      [][][]float64{{{1}}},
			Intercepts: [][]float64{{0}},
			Classes:    []int{0, 1},
		},
	}
	for name, model := range cases {
		if err := model.validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
