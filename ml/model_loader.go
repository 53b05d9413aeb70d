package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// bundleParts is the number of elements in a serialized bundle, in order:
// knn, decision tree, neural net, label encoder, feature columns, scaler.
const bundleParts = 6

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ModelBundle holds everything needed to serve predictions. It is built once
// by LoadBundle and never mutated afterwards, so it is safe to share.
type ModelBundle struct {
	Classifiers     map[ModelKind]Classifier
	ExpectedColumns []string
	LabelEncoder    *LabelEncoder
	Scaler          *MinMaxScaler
	Path            string
	LoadedAt        time.Time
}

type BundleInfo struct {
	Path           string    `json:"path"`
	LoadedAt       time.Time `json:"loaded_at"`
	Models         []string  `json:"models"`
	Columns        []string  `json:"columns"`
	Classes        []string  `json:"classes"`
	ScalerFeatures int       `json:"scaler_features"`
}

func LoadBundle(path string) (*ModelBundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	bundle, err := DecodeBundle(payload)
	if err != nil {
		return nil, err
	}
	bundle.Path = path
	return bundle, nil
}

func DecodeBundle(payload []byte) (*ModelBundle, error) {
	if bytes.HasPrefix(payload, zstdMagic) {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
		}
		defer decoder.Close()
		payload, err = decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDeserialization, err)
		}
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if len(parts) != bundleParts {
		return nil, fmt.Errorf("%w: expected %d elements, got %d", ErrDeserialization, bundleParts, len(parts))
	}

	knn := &KNN{}
	tree := &DecisionTree{}
	nn := &NeuralNet{}
	encoder := &LabelEncoder{}
	scaler := &MinMaxScaler{}
	var columns []string

	steps := []struct {
		name   string
		raw    json.RawMessage
		target interface{}
	}{
		{"knn", parts[0], knn},
		{"decision tree", parts[1], tree},
		{"neural net", parts[2], nn},
		{"label encoder", parts[3], encoder},
		{"columns", parts[4], &columns},
		{"scaler", parts[5], scaler},
	}
	for _, step := range steps {
		if err := json.Unmarshal(step.raw, step.target); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeserialization, step.name, err)
		}
	}

	validators := []struct {
		name string
		fn   func() error
	}{
		{"knn", knn.validate},
		{"decision tree", tree.validate},
		{"neural net", nn.validate},
		{"label encoder", encoder.validate},
		{"scaler", scaler.validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeserialization, v.name, err)
		}
	}

	// An empty column list is kept as nil; submissions then report it.
	if len(columns) == 0 {
		columns = nil
	}

	return &ModelBundle{
		Classifiers: map[ModelKind]Classifier{
			KindKNN:          knn,
			KindDecisionTree: tree,
			KindNeuralNet:    nn,
		},
		ExpectedColumns: columns,
		LabelEncoder:    encoder,
		Scaler:          scaler,
		LoadedAt:        time.Now(),
	}, nil
}

func (b *ModelBundle) Info() BundleInfo {
	models := make([]string, 0, len(b.Classifiers))
	for kind := range b.Classifiers {
		models = append(models, string(kind))
	}
	sort.Strings(models)

	info := BundleInfo{
		Path:     b.Path,
		LoadedAt: b.LoadedAt,
		Models:   models,
		Columns:  append([]string(nil), b.ExpectedColumns...),
	}
	if b.LabelEncoder != nil {
		info.Classes = append([]string(nil), b.LabelEncoder.Classes...)
	}
	if b.Scaler != nil {
		info.ScalerFeatures = b.Scaler.NumFeatures()
	}
	return info
}
