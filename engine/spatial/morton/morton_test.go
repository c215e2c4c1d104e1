package morton

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownVector(t *testing.T) {
	const x, y, z = 0b1100, 0b0101, 0b1000
	const want = 0b101011000010

	assert.Equal(t, uint64(want), Encode(x, y, z))
	assert.Equal(t, uint64(want), EncodeMagicBits(x, y, z))

	dx, dy, dz := Decode(want)
	assert.Equal(t, [3]uint32{x, y, z}, [3]uint32{dx, dy, dz})
}

func TestAxisPlacement(t *testing.T) {
	assert.Equal(t, uint64(1), Encode(1, 0, 0))
	assert.Equal(t, uint64(2), Encode(0, 1, 0))
	assert.Equal(t, uint64(4), Encode(0, 0, 1))
	assert.Equal(t, uint64(1)<<60, Encode(1<<20, 0, 0))
	assert.Equal(t, uint64(1)<<62, EncodeMagicBits(0, 0, 1<<20))
}

func TestEncodersAgreeExhaustiveSmall(t *testing.T) {
	for x := range uint32(32) {
		for y := range uint32(32) {
			for z := range uint32(32) {
				require.Equal(t, Encode(x, y, z), EncodeMagicBits(x, y, z), "(%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for range 10000 {
		x := uint32(rng.Intn(MaxCoordinate + 1))
		y := uint32(rng.Intn(MaxCoordinate + 1))
		z := uint32(rng.Intn(MaxCoordinate + 1))

		naive := Encode(x, y, z)
		magic := EncodeMagicBits(x, y, z)
		require.Equal(t, naive, magic)

		dx, dy, dz := Decode(magic)
		require.Equal(t, [3]uint32{x, y, z}, [3]uint32{dx, dy, dz})

		nx, ny, nz := DecodeNaive(naive)
		require.Equal(t, [3]uint32{x, y, z}, [3]uint32{nx, ny, nz})
	}
}

func TestMaxCoordinate(t *testing.T) {
	code := EncodeMagicBits(MaxCoordinate, MaxCoordinate, MaxCoordinate)
	assert.Equal(t, uint64(1)<<63-1, code)
	assert.Equal(t, Encode(MaxCoordinate, MaxCoordinate, MaxCoordinate), code)

	x, y, z := Decode(code)
	assert.Equal(t, uint32(MaxCoordinate), x)
	assert.Equal(t, uint32(MaxCoordinate), y)
	assert.Equal(t, uint32(MaxCoordinate), z)
}

func TestInputsAreMaskedTo21Bits(t *testing.T) {
	assert.Equal(t, Encode(5, 6, 7), Encode(5|1<<21, 6|1<<25, 7|1<<31))
	assert.Equal(t, EncodeMagicBits(5, 6, 7), EncodeMagicBits(5|1<<21, 6|1<<25, 7|1<<31))
}

func TestSort(t *testing.T) {
	coords := [][3]uint32{{1, 1, 1}, {0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	Sort(coords)
	assert.Equal(t, [][3]uint32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}}, coords)
}
