// Package frontend runs form submissions against a loaded model bundle.
//
// A submission moves Idle -> Submitted -> Rendered or Errored and the
// front-end is back to Idle for the next one. Nothing outlives a submission
// except the optional in-memory result cache, which is valid because a bundle
// never changes after it is loaded.
package frontend

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"safedrive/ml"
)

var ErrBusy = errors.New("submission already in progress")

type State int

const (
	Idle State = iota
	Submitted
	Rendered
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitted:
		return "submitted"
	case Rendered:
		return "rendered"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of one submission.
type Outcome struct {
	State  State
	Input  ml.UserInput
	Result ml.PredictionResult
	Err    error
	Cached bool
}

type Options struct {
	// ArtifactPath is only used in user-facing messages.
	ArtifactPath string
	CacheSize    int
	Logger       *zap.Logger
}

type Frontend struct {
	bundle     *ml.ModelBundle
	dispatcher *ml.Dispatcher
	loadErr    error
	artifact   string
	cache      *lru.Cache[ml.UserInput, ml.PredictionResult]
	logger     *zap.Logger
}

// New builds a front-end from the result of ml.LoadBundle. A non-nil loadErr
// halts the front-end: every submission fails with that error.
func New(bundle *ml.ModelBundle, loadErr error, opts Options) (*Frontend, error) {
	if bundle == nil && loadErr == nil {
		return nil, errors.New("frontend: bundle or load error required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Frontend{
		bundle:   bundle,
		loadErr:  loadErr,
		artifact: opts.ArtifactPath,
		logger:   logger,
	}
	if loadErr != nil {
		f.bundle = nil
		return f, nil
	}
	f.dispatcher = ml.NewDispatcher(bundle)
	if opts.CacheSize > 0 {
		cache, err := lru.New[ml.UserInput, ml.PredictionResult](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		f.cache = cache
	}
	return f, nil
}

// Halted returns the load error that stopped the front-end, if any.
func (f *Frontend) Halted() error {
	return f.loadErr
}

func (f *Frontend) Bundle() *ml.ModelBundle {
	return f.bundle
}

func (f *Frontend) ArtifactPath() string {
	return f.artifact
}

func (f *Frontend) Submit(ctx context.Context, in ml.UserInput) Outcome {
	logger := f.logger.With(
		zap.Int("age", in.VehicleAge),
		zap.String("vehicle_type", in.VehicleType),
		zap.String("model", string(in.ModelChoice)),
	)
	logger.Debug("submission", zap.Stringer("state", Submitted))

	result, cached, err := f.run(ctx, in)
	if err != nil {
		logger.Info("submission failed", zap.Stringer("state", Errored), zap.Error(err))
		return Outcome{State: Errored, Input: in, Err: err}
	}
	logger.Debug("submission rendered",
		zap.Stringer("state", Rendered),
		zap.Int("prediction", result.Prediction),
		zap.Bool("cached", cached))
	return Outcome{State: Rendered, Input: in, Result: result, Cached: cached}
}

func (f *Frontend) run(ctx context.Context, in ml.UserInput) (ml.PredictionResult, bool, error) {
	if f.loadErr != nil {
		return ml.PredictionResult{}, false, f.loadErr
	}
	if err := ctx.Err(); err != nil {
		return ml.PredictionResult{}, false, err
	}
	if err := in.Validate(); err != nil {
		return ml.PredictionResult{}, false, err
	}
	if f.cache != nil {
		if result, ok := f.cache.Get(in); ok {
			return result, true, nil
		}
	}

	row, err := ml.EncodeFeatures(in, f.bundle.ExpectedColumns)
	if err != nil {
		return ml.PredictionResult{}, false, err
	}
	f.logger.Debug("encoded features", zap.Any("features", row.Map()))
	result, err := f.dispatcher.Predict(in.ModelChoice, row)
	if err != nil {
		return ml.PredictionResult{}, false, err
	}
	if f.cache != nil {
		f.cache.Add(in, result)
	}
	return result, false, nil
}

// Session is one long-lived interactive client. It accepts one submission
// at a time and returns to Idle after each.
type Session struct {
	frontend *Frontend
	mu       sync.Mutex
	state    State
	last     *Outcome
}

func (f *Frontend) NewSession() *Session {
	return &Session{frontend: f, state: Idle}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the most recent outcome, or nil before the first submission.
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) Submit(ctx context.Context, in ml.UserInput) (Outcome, error) {
	s.mu.Lock()
	if s.state == Submitted {
		s.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	s.state = Submitted
	s.mu.Unlock()

	outcome := s.frontend.Submit(ctx, in)

	s.mu.Lock()
	s.state = Idle
	s.last = &outcome
	s.mu.Unlock()
	return outcome, nil
}
