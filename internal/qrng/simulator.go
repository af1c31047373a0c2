package qrng

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// gate is a single-qubit unitary acting on the amplitudes of |0> and |1>.
type gate [2][2]complex128

var (
	hadamard = gate{
		{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
		{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
	}
	pauliX = gate{
		{0, 1},
		{1, 0},
	}
)

// Simulator evolves amplitudes shot by shot. Each shot starts from |0...0>,
// applies gates as unitaries and samples measurements by the Born rule,
// collapsing the measured qubit. Every supported gate acts on one qubit, so
// the state is always a product state and is held as one amplitude pair per
// qubit instead of a 2^n vector. It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	src rand.Source
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSeed makes measurement outcomes reproducible.
func WithSeed(seed uint64) SimulatorOption {
	return func(s *Simulator) {
		var key [32]byte
		binary.LittleEndian.PutUint64(key[:], seed)
		s.src = rand.NewChaCha8(key)
	}
}

// NewSimulator builds a simulator seeded from crypto/rand unless WithSeed is given.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		var key [32]byte
		_, _ = crand.Read(key[:])
		s.src = rand.NewChaCha8(key)
	}
	return s
}

// Name implements Backend.
func (s *Simulator) Name() string { return BackendSimulator }

// Run implements Backend.
func (s *Simulator) Run(ctx context.Context, c *Circuit, shots int) (Counts, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := checkShots(shots); err != nil {
		return nil, err
	}
	if err := checkWidth(c, BackendSimulator); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counts := Counts{}
	qubits := make([]amplitudes, c.Qubits)
	clbits := make([]byte, c.Clbits)
	for shot := 0; shot < shots; shot++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulator run: %w", err)
		}
		for i := range qubits {
			qubits[i] = ground
		}
		clear(clbits)
		for _, op := range c.Ops {
			switch op.Name {
			case OpH:
				qubits[op.Qubits[0]].apply(hadamard)
			case OpX:
				qubits[op.Qubits[0]].apply(pauliX)
			case OpMeasure:
				bit, err := qubits[op.Qubits[0]].measure(s.src)
				if err != nil {
					return nil, err
				}
				clbits[op.Clbits[0]] = bit
			}
		}
		counts[bitstring(clbits)]++
	}
	return counts, nil
}

// amplitudes holds alpha|0> + beta|1> for one qubit.
type amplitudes [2]complex128

var ground = amplitudes{1, 0}

func (a *amplitudes) apply(g gate) {
	*a = amplitudes{
		g[0][0]*a[0] + g[0][1]*a[1],
		g[1][0]*a[0] + g[1][1]*a[1],
	}
}

// measure draws an outcome weighted by |alpha|^2 and |beta|^2 and collapses
// the qubit onto it.
func (a *amplitudes) measure(src rand.Source) (byte, error) {
	weights := []float64{probability(a[0]), probability(a[1])}
	idx, ok := sampleuv.NewWeighted(weights, src).Take()
	if !ok {
		return 0, fmt.Errorf("%w: qubit has zero norm", ErrInternalFault)
	}
	*a = amplitudes{}
	a[idx] = 1
	return byte(idx), nil
}

func probability(amp complex128) float64 {
	return real(amp)*real(amp) + imag(amp)*imag(amp)
}
