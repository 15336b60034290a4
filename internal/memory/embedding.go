package memory

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"regexp"
	"strings"
)

// Dim is the embedding dimension.
const Dim = 256

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// Tokenize lowercases text and splits it into alphanumeric/underscore tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Embed maps text to a deterministic L2-normalized vector. Each token is
// hashed with SHA-256; the first four bytes (little-endian) pick the bucket
// and the low bit of the fifth byte picks the sign. Text without tokens
// yields the zero vector.
func Embed(text string) []float64 {
	vec := make([]float64, Dim)
	for _, tok := range Tokenize(text) {
		h := sha256.Sum256([]byte(tok))
		idx := binary.LittleEndian.Uint32(h[0:4]) % Dim
		sign := 1.0
		if h[4]&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// empty, their lengths differ, or either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	// sqrt(na*nb) keeps cosine(a, a) exactly 1
	return math.Max(-1, math.Min(1, dot/math.Sqrt(na*nb)))
}
