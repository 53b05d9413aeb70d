package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NeuralNet is a fitted multi-layer perceptron. Coefs[i] is the n_in x n_out
// weight matrix of layer i and Intercepts[i] its bias vector. Hidden layers
// use Activation, the output layer is always logistic.
type NeuralNet struct {
	Activation string        `json:"activation"`
	Coefs      [][][]float64 `json:"coefs"`
	Intercepts [][]float64   `json:"intercepts"`
	Classes    []int         `json:"classes"`

	layers []denseLayer
}

type denseLayer struct {
	weights *mat.Dense
	bias    *mat.VecDense
}

func (nn *NeuralNet) Predict(features []float64) (int, error) {
	layers := nn.layers
	if layers == nil {
		var err error
		if layers, err = nn.build(); err != nil {
			return 0, err
		}
	}
	inputs, _ := layers[0].weights.Dims()
	if len(features) != inputs {
		return 0, fmt.Errorf("expected %d features, got %d", inputs, len(features))
	}

	x := mat.NewVecDense(len(features), append([]float64(nil), features...))
	for i, layer := range layers {
		var z mat.VecDense
		z.MulVec(layer.weights.T(), x)
		z.AddVec(&z, layer.bias)
		activation := nn.Activation
		if i == len(layers)-1 {
			activation = "logistic"
		}
		if err := activate(&z, activation); err != nil {
			return 0, err
		}
		x = &z
	}

	if x.Len() == 1 {
		if x.AtVec(0) > 0.5 {
			return nn.Classes[1], nil
		}
		return nn.Classes[0], nil
	}
	best := 0
	for i := 1; i < x.Len(); i++ {
		if x.AtVec(i) > x.AtVec(best) {
			best = i
		}
	}
	return nn.Classes[best], nil
}

func (nn *NeuralNet) validate() error {
	layers, err := nn.build()
	if err != nil {
		return err
	}
	if _, err := activationFunc(nn.Activation); err != nil {
		return err
	}
	nn.layers = layers
	return nil
}

func (nn *NeuralNet) build() ([]denseLayer, error) {
	if len(nn.Coefs) == 0 {
		return nil, errors.New("neural net has no layers")
	}
	if len(nn.Coefs) != len(nn.Intercepts) {
		return nil, errors.New("neural net coefs and intercepts size mismatch")
	}
	layers := make([]denseLayer, len(nn.Coefs))
	prevOut := -1
	for i, coef := range nn.Coefs {
		rows := len(coef)
		if rows == 0 || len(coef[0]) == 0 {
			return nil, fmt.Errorf("layer %d: empty weight matrix", i)
		}
		cols := len(coef[0])
		if prevOut != -1 && rows != prevOut {
			return nil, fmt.Errorf("layer %d: expected %d inputs, got %d", i, prevOut, rows)
		}
		data := make([]float64, 0, rows*cols)
		for r, row := range coef {
			if len(row) != cols {
				return nil, fmt.Errorf("layer %d: row %d has %d columns, want %d", i, r, len(row), cols)
			}
			data = append(data, row...)
		}
		if len(nn.Intercepts[i]) != cols {
			return nil, fmt.Errorf("layer %d: expected %d biases, got %d", i, cols, len(nn.Intercepts[i]))
		}
		layers[i] = denseLayer{
			weights: mat.NewDense(rows, cols, data),
			bias:    mat.NewVecDense(cols, append([]float64(nil), nn.Intercepts[i]...)),
		}
		prevOut = cols
	}

	switch {
	case prevOut == 1 && len(nn.Classes) != 2:
		return nil, fmt.Errorf("binary output needs 2 classes, got %d", len(nn.Classes))
	case prevOut > 1 && len(nn.Classes) != prevOut:
		return nil, fmt.Errorf("expected %d classes, got %d", prevOut, len(nn.Classes))
	}
	return layers, nil
}

func activate(v *mat.VecDense, name string) error {
	fn, err := activationFunc(name)
	if err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, fn(v.AtVec(i)))
	}
	return nil
}

func activationFunc(name string) (func(float64) float64, error) {
	switch name {
	case "", "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "tanh":
		return math.Tanh, nil
	case "logistic":
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, nil
	case "identity":
		return func(x float64) float64 { return x }, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}
