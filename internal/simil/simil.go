// Package simil implements the similarity primitives: dot product, cosine
// distance, squared L2 distance, and Hamming distance over bit-packed
// bytes. CosineDistance is the distance the façade hands the HNSW graph and
// the one the binary-quantization rescorer ranks exact vectors by.
//
// Dot, Cosine and L2 each have a scalar reference implementation and a
// vectorized path backed by github.com/viterin/vek, which dispatches to
// SIMD on supported architectures at runtime; Hamming has a single
// per-byte popcount implementation. The two paths are required to agree
// within 1e-4 absolute for magnitudes in [-1e3, 1e3]; Dot/DotScalar (etc.)
// are exported mainly so tests can assert that agreement directly.
package simil

import (
	"math"
	"math/bits"

	"github.com/viterin/vek/vek32"
)

// Dot returns the dot product of a and b using the vectorized path.
// Callers must ensure len(a) == len(b); length mismatch is a contract
// violation of the layer above (spec: "Errors: length mismatch is a
// contract violation of the caller").
func Dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// DotScalar is the scalar reference implementation of Dot, computed with
// fused multiply-add to reduce rounding drift against the vectorized path.
func DotScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum = float32(math.FMA(float64(a[i]), float64(b[i]), float64(sum)))
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, in [-1, 1]. Returns 0 if
// either vector has zero norm (no defined direction).
func Cosine(a, b []float32) float32 {
	dot := Dot(a, b)
	normA := float32(math.Sqrt(float64(Dot(a, a))))
	normB := float32(math.Sqrt(float64(Dot(b, b))))
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (normA * normB)
	return clamp(sim)
}

// CosineScalar is the scalar reference implementation of Cosine.
func CosineScalar(a, b []float32) float32 {
	dot := DotScalar(a, b)
	normA := float32(math.Sqrt(float64(DotScalar(a, a))))
	normB := float32(math.Sqrt(float64(DotScalar(b, b))))
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot / (normA * normB))
}

// CosineDistance returns 1-Cosine(a,b), the distance HNSW sorts by
// (ascending = closer). A zero-norm vector is treated as maximally distant.
func CosineDistance(a, b []float32) float32 {
	normA := Dot(a, a)
	normB := Dot(b, b)
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - Cosine(a, b)
}

// L2 returns the squared Euclidean distance between a and b, computed via
// the dot-product identity |a-b|^2 = dot(a,a) + dot(b,b) - 2*dot(a,b) so it
// can reuse the vectorized Dot path. Small negative results caused by
// floating-point cancellation when a and b are nearly identical are
// clamped to zero.
func L2(a, b []float32) float32 {
	d := Dot(a, a) + Dot(b, b) - 2*Dot(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// L2Scalar is the scalar reference implementation of L2, summing squared
// differences directly (no cancellation) rather than via the dot identity.
func L2Scalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum = float32(math.FMA(diff, diff, float64(sum)))
	}
	return sum
}

// Hamming returns the number of differing bits between two equal-length,
// bit-packed byte slices (MSB-first within each byte, per spec §3's BQ
// vector layout). It uses math/bits.OnesCount8, the population-count
// primitive the spec calls for, applied per byte of the XOR.
func Hamming(a, b []byte) int {
	total := 0
	for i := range a {
		total += bits.OnesCount8(a[i] ^ b[i])
	}
	return total
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
