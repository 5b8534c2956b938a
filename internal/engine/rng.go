package engine

import (
	"encoding/binary"
	"strconv"
)

// drawSeparator joins the server seed, client seed and counter in the hashed message.
const drawSeparator = ':'

// Stream derives independent uniform draws from a seed pair. It holds no
// mutable state: every draw is a pure function of (pair, drawIndex).
type Stream struct {
	hasher Hasher
}

// NewStream returns a stream over h. A nil hasher means SHA-256.
func NewStream(h Hasher) Stream {
	if h == nil {
		h = SHA256
	}
	return Stream{hasher: h}
}

// Draw returns the value in [0, 1) for the given draw index:
// H(serverSeed ":" clientSeed ":" (nonce+drawIndex)), first 8 bytes big-endian,
// top 53 bits scaled by 2^-53.
func (s Stream) Draw(pair SeedPair, drawIndex uint64) float64 {
	sum := s.hasher.Sum(drawMessage(pair, drawIndex))
	return digestToFloat(sum)
}

// Draws returns draws 0..count-1 for the pair.
func (s Stream) Draws(pair SeedPair, count int) []float64 {
	return s.DrawsInto(make([]float64, count), pair, count)
}

// DrawsInto fills dst with draws 0..count-1, growing it when it is too short.
func (s Stream) DrawsInto(dst []float64, pair SeedPair, count int) []float64 {
	if len(dst) < count {
		dst = make([]float64, count)
	}
	for i := 0; i < count; i++ {
		dst[i] = s.Draw(pair, uint64(i))
	}
	return dst[:count]
}

// Draw is Stream.Draw over SHA-256.
func Draw(pair SeedPair, drawIndex uint64) float64 {
	return NewStream(SHA256).Draw(pair, drawIndex)
}

func drawMessage(pair SeedPair, drawIndex uint64) []byte {
	msg := make([]byte, 0, len(pair.ServerSeed)+len(pair.ClientSeed)+22)
	msg = append(msg, pair.ServerSeed...)
	msg = append(msg, drawSeparator)
	msg = append(msg, pair.ClientSeed...)
	msg = append(msg, drawSeparator)
	return strconv.AppendUint(msg, pair.Nonce+drawIndex, 10)
}

// digestToFloat maps the first 8 digest bytes onto [0, 1). Only 53 bits are
// kept so the quotient is exact in float64 and can never round up to 1.
func digestToFloat(sum [32]byte) float64 {
	u := binary.BigEndian.Uint64(sum[:8]) >> 11
	return float64(u) / (1 << 53)
}
