package qrng

import (
	"fmt"
	"math/bits"
	"strings"
)

// Operation names recorded in a Circuit.
const (
	OpH       = "h"
	OpX       = "x"
	OpBarrier = "barrier"
	OpMeasure = "measure"
)

// Op is one instruction of a circuit.
type Op struct {
	Name   string `json:"name"`
	Qubits []int  `json:"qubits"`
	Clbits []int  `json:"clbits,omitempty"`
}

// Circuit is an ordered list of operations over Qubits qubits and Clbits
// classical bits. Builder methods panic on out-of-range qubit indices.
type Circuit struct {
	Qubits int  `json:"qubits"`
	Clbits int  `json:"clbits"`
	Ops    []Op `json:"ops"`
}

// NewCircuit returns an empty circuit over qubits qubits and no classical bits.
func NewCircuit(qubits int) *Circuit {
	if qubits < 1 {
		panic(fmt.Sprintf("qrng: circuit needs at least one qubit, got %d", qubits))
	}
	return &Circuit{Qubits: qubits}
}

// Width returns the number of qubits needed to represent every integer in
// [0, upperBound]. Zero still needs one qubit.
func Width(upperBound int) int {
	if upperBound <= 0 {
		return 1
	}
	return bits.Len(uint(upperBound))
}

// Uniform builds the sampling circuit: a Hadamard on every qubit followed by
// MeasureAll.
func Uniform(qubits int) *Circuit {
	c := NewCircuit(qubits)
	for q := 0; q < qubits; q++ {
		c.H(q)
	}
	return c.MeasureAll()
}

// H appends a Hadamard gate on qubit q.
func (c *Circuit) H(q int) *Circuit {
	c.checkQubit(q)
	c.Ops = append(c.Ops, Op{Name: OpH, Qubits: []int{q}})
	return c
}

// X appends a Pauli-X gate on qubit q.
func (c *Circuit) X(q int) *Circuit {
	c.checkQubit(q)
	c.Ops = append(c.Ops, Op{Name: OpX, Qubits: []int{q}})
	return c
}

// Barrier appends a barrier across every qubit.
func (c *Circuit) Barrier() *Circuit {
	c.Ops = append(c.Ops, Op{Name: OpBarrier, Qubits: c.allQubits()})
	return c
}

// Measure appends a measurement of qubit q into classical bit clbit, growing
// the classical register when needed.
func (c *Circuit) Measure(q, clbit int) *Circuit {
	c.checkQubit(q)
	if clbit < 0 {
		panic(fmt.Sprintf("qrng: classical bit %d out of range", clbit))
	}
	if clbit >= c.Clbits {
		c.Clbits = clbit + 1
	}
	c.Ops = append(c.Ops, Op{Name: OpMeasure, Qubits: []int{q}, Clbits: []int{clbit}})
	return c
}

// MeasureAll appends a barrier and then measures qubit i into classical bit
// Clbits+i of a freshly appended register.
func (c *Circuit) MeasureAll() *Circuit {
	offset := c.Clbits
	c.Barrier()
	for q := 0; q < c.Qubits; q++ {
		c.Measure(q, offset+q)
	}
	return c
}

func (c *Circuit) checkQubit(q int) {
	if q < 0 || q >= c.Qubits {
		panic(fmt.Sprintf("qrng: qubit %d out of range [0, %d)", q, c.Qubits))
	}
}

func (c *Circuit) allQubits() []int {
	qs := make([]int, c.Qubits)
	for i := range qs {
		qs[i] = i
	}
	return qs
}

// validate rejects circuits a backend cannot execute.
func (c *Circuit) validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil circuit", ErrInternalFault)
	}
	if c.Qubits < 1 {
		return fmt.Errorf("%w: circuit has %d qubits", ErrInternalFault, c.Qubits)
	}
	for i, op := range c.Ops {
		for _, q := range op.Qubits {
			if q < 0 || q >= c.Qubits {
				return fmt.Errorf("%w: op %d (%s) addresses qubit %d", ErrInternalFault, i, op.Name, q)
			}
		}
		switch op.Name {
		case OpH, OpX, OpBarrier:
		case OpMeasure:
			if len(op.Qubits) != 1 || len(op.Clbits) != 1 || op.Clbits[0] < 0 || op.Clbits[0] >= c.Clbits {
				return fmt.Errorf("%w: op %d is a malformed measurement", ErrInternalFault, i)
			}
		default:
			return fmt.Errorf("%w: unsupported op %q", ErrInternalFault, op.Name)
		}
	}
	return nil
}

// String returns the text drawing of the circuit.
func (c *Circuit) String() string {
	return c.Draw()
}

const (
	cellWire     = "───"
	cellLink     = "─╫─"
	cellClassic  = "═══"
	cellClassHit = "═╩═"
)

type drawColumn struct {
	cells []string
	clbit int
}

// Draw renders the circuit as text, one row per qubit plus the classical
// register and its bit indices:
//
//	   q_0: ─H──░──M────
//	   q_1: ─H──░──╫──M─
//	meas: 2/═══════╩══╩═
//	               0  1
func (c *Circuit) Draw() string {
	columns := c.layout()

	labels := make([]string, c.Qubits+2)
	for q := 0; q < c.Qubits; q++ {
		labels[q] = fmt.Sprintf("q_%d: ", q)
	}
	labels[c.Qubits] = fmt.Sprintf("meas: %d/", c.Clbits)
	labels[c.Qubits+1] = ""
	width := 0
	for _, l := range labels {
		if n := len([]rune(l)); n > width {
			width = n
		}
	}

	rows := make([]strings.Builder, c.Qubits+2)
	for i, l := range labels {
		rows[i].WriteString(strings.Repeat(" ", width-len([]rune(l))))
		rows[i].WriteString(l)
	}
	for _, col := range columns {
		for q := 0; q < c.Qubits; q++ {
			cell := col.cells[q]
			if cell == "" {
				cell = cellWire
			}
			rows[q].WriteString(cell)
		}
		if col.clbit >= 0 {
			rows[c.Qubits].WriteString(cellClassHit)
			rows[c.Qubits+1].WriteString(fmt.Sprintf(" %-2d", col.clbit))
		} else {
			rows[c.Qubits].WriteString(cellClassic)
			rows[c.Qubits+1].WriteString("   ")
		}
	}

	out := make([]string, 0, len(rows))
	for i := range rows {
		out = append(out, strings.TrimRight(rows[i].String(), " "))
	}
	return strings.Join(out, "\n")
}

// layout assigns operations to columns. Gates on distinct qubits share a
// column; measurements each take their own so the classical wire reads left to
// right.
func (c *Circuit) layout() []drawColumn {
	next := make([]int, c.Qubits)
	nextClassical := 0
	var columns []drawColumn

	ensure := func(col int) {
		for len(columns) <= col {
			columns = append(columns, drawColumn{cells: make([]string, c.Qubits), clbit: -1})
		}
	}

	for _, op := range c.Ops {
		col := 0
		for _, q := range op.Qubits {
			col = max(col, next[q])
		}
		if op.Name == OpMeasure {
			col = max(col, nextClassical)
		}
		ensure(col)

		switch op.Name {
		case OpBarrier:
			for _, q := range op.Qubits {
				columns[col].cells[q] = "─░─"
				next[q] = col + 1
			}
		case OpMeasure:
			q := op.Qubits[0]
			columns[col].cells[q] = "─M─"
			columns[col].clbit = op.Clbits[0]
			// The result travels down to the classical wire.
			for below := q + 1; below < c.Qubits; below++ {
				if columns[col].cells[below] == "" {
					columns[col].cells[below] = cellLink
				}
				next[below] = max(next[below], col+1)
			}
			next[q] = col + 1
			nextClassical = col + 1
		default:
			q := op.Qubits[0]
			columns[col].cells[q] = "─" + strings.ToUpper(op.Name) + "─"
			next[q] = col + 1
		}
	}
	return columns
}
