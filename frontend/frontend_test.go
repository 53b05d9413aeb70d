package frontend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"safedrive/ml"
)

var columns = []string{"age", "cartype_combi", "cartype_family", "cartype_minivan", "cartype_sport"}

type fakeClassifier struct {
	label   int
	err     error
	calls   int
	seen    []float64
	release chan struct{}
	entered chan struct{}
}

func (f *fakeClassifier) Predict(features []float64) (int, error) {
	f.calls++
	f.seen = features
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	return f.label, f.err
}

func newTestFrontend(t *testing.T, knn *fakeClassifier, cacheSize int) *Frontend {
	t.Helper()
	bundle := &ml.ModelBundle{
		Classifiers: map[ml.ModelKind]ml.Classifier{
			ml.KindKNN:          knn,
			ml.KindDecisionTree: &fakeClassifier{label: 1},
			ml.KindNeuralNet:    &fakeClassifier{err: errors.New("shape (1, 4) vs (1, 5)")},
		},
		ExpectedColumns: columns,
	}
	f, err := New(bundle, nil, Options{CacheSize: cacheSize, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestSubmitRendersPrediction(t *testing.T) {
	knn := &fakeClassifier{label: 0}
	f := newTestFrontend(t, knn, 0)

	outcome := f.Submit(context.Background(), ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: ml.ChoiceKNN})
	if outcome.State != Rendered {
		t.Fatalf("expected rendered, got %s (%v)", outcome.State, outcome.Err)
	}
	if outcome.Result.Label() != "High Risk" || outcome.Result.Model != ml.ChoiceKNN {
		t.Fatalf("unexpected result: %+v", outcome.Result)
	}
	want := []float64{33, 0, 1, 0, 0}
	for i := range want {
		if knn.seen[i] != want[i] {
			t.Fatalf("expected row %v, got %v", want, knn.seen)
		}
	}
}

func TestSubmitErrorsAreLocal(t *testing.T) {
	f := newTestFrontend(t, &fakeClassifier{label: 1}, 0)
	cases := []struct {
		in   ml.UserInput
		want error
	}{
		{ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: "Svm"}, ml.ErrUnknownModel},
		{ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: ml.ChoiceNN}, ml.ErrPrediction},
		{ml.UserInput{VehicleAge: 12, VehicleType: "family", ModelChoice: ml.ChoiceKNN}, ml.ErrInvalidInput},
		{ml.UserInput{VehicleAge: 40, VehicleType: "truck", ModelChoice: ml.ChoiceKNN}, ml.ErrInvalidInput},
	}
	for _, tc := range cases {
		outcome := f.Submit(context.Background(), tc.in)
		if outcome.State != Errored || !errors.Is(outcome.Err, tc.want) {
			t.Fatalf("%+v: expected errored with %v, got %s/%v", tc.in, tc.want, outcome.State, outcome.Err)
		}
	}

	// the session keeps working after failures
	outcome := f.Submit(context.Background(), ml.UserInput{VehicleAge: 50, VehicleType: "sport", ModelChoice: ml.ChoiceKNN})
	if outcome.State != Rendered || outcome.Result.Label() != "Low Risk" {
		t.Fatalf("expected low risk after errors, got %s/%v", outcome.State, outcome.Err)
	}
}

func TestSubmitSchemaInconsistency(t *testing.T) {
	bundle := &ml.ModelBundle{Classifiers: map[ml.ModelKind]ml.Classifier{ml.KindKNN: &fakeClassifier{}}}
	f, err := New(bundle, nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcome := f.Submit(context.Background(), ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: "Svm"})
	if !errors.Is(outcome.Err, ml.ErrSchemaInconsistency) {
		t.Fatalf("expected schema error before model lookup, got %v", outcome.Err)
	}
}

func TestHaltedFrontend(t *testing.T) {
	loadErr := fmt.Errorf("%w: models/risk-bundle.json", ml.ErrMissingArtifact)
	f, err := New(nil, loadErr, Options{ArtifactPath: "models/risk-bundle.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(f.Halted(), ml.ErrMissingArtifact) {
		t.Fatalf("expected halted with missing artifact, got %v", f.Halted())
	}
	outcome := f.Submit(context.Background(), ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: ml.ChoiceKNN})
	if outcome.State != Errored || !errors.Is(outcome.Err, ml.ErrMissingArtifact) {
		t.Fatalf("expected missing artifact, got %s/%v", outcome.State, outcome.Err)
	}
	if f.Bundle() != nil {
		t.Fatal("halted front-end must not expose a bundle")
	}
}

func TestNewRequiresBundleOrError(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Fatal("expected error without bundle")
	}
}

func TestSubmitCachesRenderedOutcomes(t *testing.T) {
	knn := &fakeClassifier{label: 1}
	f := newTestFrontend(t, knn, 4)
	in := ml.UserInput{VehicleAge: 45, VehicleType: "combi", ModelChoice: ml.ChoiceKNN}

	first := f.Submit(context.Background(), in)
	second := f.Submit(context.Background(), in)
	if first.Cached || !second.Cached {
		t.Fatalf("expected second submission to hit the cache: %v %v", first.Cached, second.Cached)
	}
	if first.Result != second.Result {
		t.Fatalf("cached result differs: %+v vs %+v", first.Result, second.Result)
	}
	if knn.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", knn.calls)
	}

	// failures are not cached
	bad := ml.UserInput{VehicleAge: 45, VehicleType: "combi", ModelChoice: ml.ChoiceNN}
	if f.Submit(context.Background(), bad).Cached || f.Submit(context.Background(), bad).Cached {
		t.Fatal("errored outcomes must not be cached")
	}
}

func TestSubmitCanceledContext(t *testing.T) {
	knn := &fakeClassifier{}
	f := newTestFrontend(t, knn, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := f.Submit(ctx, ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: ml.ChoiceKNN})
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", outcome.Err)
	}
	if knn.calls != 0 {
		t.Fatal("canceled submission must not reach the classifier")
	}
}

func TestSessionRejectsConcurrentSubmission(t *testing.T) {
	knn := &fakeClassifier{release: make(chan struct{}), entered: make(chan struct{})}
	f := newTestFrontend(t, knn, 0)
	session := f.NewSession()
	if session.State() != Idle || session.Last() != nil {
		t.Fatal("new session must be idle")
	}

	in := ml.UserInput{VehicleAge: 33, VehicleType: "family", ModelChoice: ml.ChoiceKNN}
	done := make(chan Outcome)
	go func() {
		outcome, err := session.Submit(context.Background(), in)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- outcome
	}()

	select {
	case <-knn.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for submission")
	}
	if session.State() != Submitted {
		t.Fatalf("expected submitted, got %s", session.State())
	}
	if _, err := session.Submit(context.Background(), in); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(knn.release)
	outcome := <-done
	if outcome.State != Rendered {
		t.Fatalf("expected rendered, got %s", outcome.State)
	}
	if session.State() != Idle {
		t.Fatalf("expected idle after submission, got %s", session.State())
	}
	if last := session.Last(); last == nil || last.State != Rendered {
		t.Fatalf("expected last outcome to be recorded, got %+v", last)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{Idle: "idle", Submitted: "submitted", Rendered: "rendered", Errored: "errored", State(9): "unknown"}
	for state, name := range want {
		if state.String() != name {
			t.Fatalf("expected %s, got %s", name, state.String())
		}
	}
}
