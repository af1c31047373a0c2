package qrng

import (
	"context"
	"fmt"
	"strconv"
)

// MaxQubits is the widest circuit a backend runs. Outcomes are read back as
// a non-negative int, which 63 bits cover.
const MaxQubits = 63

// Counts maps a measured bitstring to how many shots produced it. Bitstrings
// list the highest classical bit first.
type Counts map[string]int

// Backend executes circuits.
type Backend interface {
	// Name identifies the backend in results, logs and metrics.
	Name() string
	// Run executes c shots times and returns the measurement counts.
	Run(ctx context.Context, c *Circuit, shots int) (Counts, error)
}

// Backend names accepted by NewBackend.
const (
	BackendSimulator = "simulator"
	BackendClassical = "classical"
)

// NewBackend returns the backend registered under name. seed is used by the
// simulator when non-zero.
func NewBackend(name string, seed uint64) (Backend, error) {
	switch name {
	case "", BackendSimulator:
		if seed != 0 {
			return NewSimulator(WithSeed(seed)), nil
		}
		return NewSimulator(), nil
	case BackendClassical:
		return NewClassical(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// bitstring renders classical bits with the highest index first.
func bitstring(clbits []byte) string {
	out := make([]byte, len(clbits))
	for i, b := range clbits {
		out[len(clbits)-1-i] = '0' + b
	}
	return string(out)
}

// singleOutcome extracts the value of a one-shot run measured into width bits.
func singleOutcome(counts Counts, width int) (int, error) {
	var (
		key   string
		total int
	)
	for k, n := range counts {
		if n < 0 {
			return 0, fmt.Errorf("%w: negative count for %q", ErrInternalFault, k)
		}
		if n > 0 {
			key = k
			total += n
		}
	}
	if total != 1 {
		return 0, fmt.Errorf("%w: expected exactly one shot, got %d", ErrInternalFault, total)
	}
	if len(key) != width {
		return 0, fmt.Errorf("%w: bitstring %q has %d bits, want %d", ErrInternalFault, key, len(key), width)
	}
	v, err := strconv.ParseUint(key, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bitstring %q: %v", ErrInternalFault, key, err)
	}
	return int(v), nil
}

func checkShots(shots int) error {
	if shots < 1 {
		return fmt.Errorf("%w: shots must be >= 1, got %d", ErrInternalFault, shots)
	}
	return nil
}

func checkWidth(c *Circuit, backend string) error {
	if c.Qubits > MaxQubits || c.Clbits > MaxQubits {
		return fmt.Errorf("%w: %d qubits, %s backend supports %d", ErrTooManyQubits, c.Qubits, backend, MaxQubits)
	}
	return nil
}
