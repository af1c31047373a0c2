// Package qrng draws bounded random integers by measuring a uniform
// superposition.
//
// For an inclusive upper bound N the sampler builds a circuit with
// bits.Len(N) qubits (at least one), applies a Hadamard gate to each, measures
// every qubit into its own classical bit and reads the outcome as an unsigned
// integer. Outcomes above N are rejected and a fresh circuit is run, so every
// value in [0, N] is equally likely.
//
// Two backends execute circuits of up to MaxQubits qubits: Simulator, which
// evolves amplitudes and samples them by the Born rule, and Classical, which
// draws the measurement outcomes from crypto/rand.
package qrng
