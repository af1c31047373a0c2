package qrng

import (
	"context"
	"crypto/rand"
	"fmt"
)

// qubitState tracks one qubit of a product state reachable with H and X from |0>.
type qubitState uint8

const (
	stateZero qubitState = iota
	stateOne
	statePlus
	stateMinus
)

// Classical executes circuits built from H, X, barriers and measurements
// without a state vector. Every qubit stays in one of |0>, |1>, |+>, |->, so
// a measurement is either certain or a fair coin drawn from crypto/rand.
type Classical struct {
	read func([]byte) (int, error)
}

// NewClassical returns a backend reading entropy from crypto/rand.
func NewClassical() *Classical {
	return &Classical{read: rand.Read}
}

// Name implements Backend.
func (c *Classical) Name() string { return BackendClassical }

// Run implements Backend.
func (c *Classical) Run(ctx context.Context, circuit *Circuit, shots int) (Counts, error) {
	if err := circuit.validate(); err != nil {
		return nil, err
	}
	if err := checkShots(shots); err != nil {
		return nil, err
	}
	if err := checkWidth(circuit, BackendClassical); err != nil {
		return nil, err
	}

	counts := Counts{}
	states := make([]qubitState, circuit.Qubits)
	clbits := make([]byte, circuit.Clbits)
	coins := &coinSource{read: c.read}
	for shot := 0; shot < shots; shot++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("classical run: %w", err)
		}
		clear(states)
		clear(clbits)
		for _, op := range circuit.Ops {
			q := -1
			if len(op.Qubits) == 1 {
				q = op.Qubits[0]
			}
			switch op.Name {
			case OpH:
				states[q] ^= statePlus
			case OpX:
				if states[q] == stateZero || states[q] == stateOne {
					states[q] ^= stateOne
				}
			case OpMeasure:
				bit, err := measureState(&states[q], coins)
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

// measureState collapses s and returns the observed bit. The iota values are
// laid out so H toggles statePlus: zero<->plus and one<->minus.
func measureState(s *qubitState, coins *coinSource) (byte, error) {
	switch *s {
	case stateZero:
		return 0, nil
	case stateOne:
		return 1, nil
	default:
		bit, err := coins.next()
		if err != nil {
			return 0, err
		}
		*s = qubitState(bit)
		return bit, nil
	}
}

// coinSource hands out single random bits, refilling from read a byte at a time.
type coinSource struct {
	read func([]byte) (int, error)
	buf  [1]byte
	left int
}

func (c *coinSource) next() (byte, error) {
	if c.left == 0 {
		if _, err := c.read(c.buf[:]); err != nil {
			return 0, fmt.Errorf("%w: read entropy: %v", ErrInternalFault, err)
		}
		c.left = 8
	}
	c.left--
	return (c.buf[0] >> c.left) & 1, nil
}
