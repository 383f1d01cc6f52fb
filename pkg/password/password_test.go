package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for _, n := range []int{8, 20, 50, 70, 100} {
		pw, err := Generate(n)
		require.NoError(t, err, "length %d", n)
		assert.Len(t, pw, n)
		for _, c := range pw {
			assert.True(t, strings.ContainsRune(alphabet, c))
		}
	}
}

func TestGenerateRejectsLength(t *testing.T) {
	for _, n := range []int{2, 7, 101, 200} {
		_, err := Generate(n)
		assert.ErrorIs(t, err, ErrLength, "length %d", n)
	}
}

func TestGenerateVaries(t *testing.T) {
	a, err := Generate(32)
	require.NoError(t, err)
	b, err := Generate(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
