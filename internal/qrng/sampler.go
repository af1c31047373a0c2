package qrng

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/metrics"
)

var (
	// ErrNegativeBound is returned for an upper bound below zero.
	ErrNegativeBound = errors.New("upper bound must be non-negative")
	// ErrInternalFault marks backend failures and malformed measurement results.
	ErrInternalFault = errors.New("random generator internal fault")
	// ErrAttemptsExhausted is returned when the rejection loop hits its cap.
	ErrAttemptsExhausted = fmt.Errorf("%w: attempts exhausted", ErrInternalFault)
	// ErrTooManyQubits is returned when a circuit is wider than the backend supports.
	ErrTooManyQubits = fmt.Errorf("%w: too many qubits", ErrInternalFault)
)

// Result is one accepted sample.
type Result struct {
	Value    int      `json:"value"`
	Circuit  *Circuit `json:"circuit"`
	Attempts int      `json:"attempts"`
	Backend  string   `json:"backend"`
}

// Sampler draws uniform integers in [0, N] by rejection sampling circuit runs.
type Sampler struct {
	backend     Backend
	maxAttempts int
	logger      *zap.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMaxAttempts caps the rejection loop; n <= 0 leaves it unbounded.
func WithMaxAttempts(n int) Option {
	return func(s *Sampler) {
		s.maxAttempts = n
	}
}

// WithLogger sets the logger used for rejected draws.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Sampler on backend.
func New(backend Backend, opts ...Option) (*Sampler, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	s := &Sampler{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Backend returns the name of the backend circuits run on.
func (s *Sampler) Backend() string {
	return s.backend.Name()
}

// SampleBounded returns a value uniformly distributed over [0, upperBound]
// together with the circuit that produced it. Each attempt builds and runs a
// fresh circuit; nothing carries over between attempts.
func (s *Sampler) SampleBounded(ctx context.Context, upperBound int) (Result, error) {
	if upperBound < 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrNegativeBound, upperBound)
	}
	name := s.backend.Name()
	width := Width(upperBound)

	for attempt := 1; ; attempt++ {
		if s.maxAttempts > 0 && attempt > s.maxAttempts {
			metrics.ObserveSample(name, attempt-1, ErrAttemptsExhausted)
			return Result{}, fmt.Errorf("%w: no value <= %d after %d attempts",
				ErrAttemptsExhausted, upperBound, s.maxAttempts)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("sample canceled: %w", err)
		}

		circuit := Uniform(width)
		counts, err := s.backend.Run(ctx, circuit, 1)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, fmt.Errorf("sample canceled: %w", ctxErr)
			}
			metrics.ObserveSample(name, attempt, err)
			if errors.Is(err, ErrInternalFault) {
				return Result{}, fmt.Errorf("run on %s: %w", name, err)
			}
			return Result{}, fmt.Errorf("%w: run on %s: %w", ErrInternalFault, name, err)
		}
		value, err := singleOutcome(counts, circuit.Clbits)
		if err != nil {
			metrics.ObserveSample(name, attempt, err)
			return Result{}, fmt.Errorf("read %s result: %w", name, err)
		}
		if value <= upperBound {
			metrics.ObserveSample(name, attempt, nil)
			return Result{
				Value:    value,
				Circuit:  circuit,
				Attempts: attempt,
				Backend:  name,
			}, nil
		}
		s.logger.Debug("rejected sample",
			zap.Int("value", value),
			zap.Int("upper_bound", upperBound),
			zap.Int("attempt", attempt),
		)
	}
}
