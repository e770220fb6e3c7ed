package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newHashers(t *testing.T) map[string]*Hasher {
	t.Helper()

	b, err := New(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	a, err := New(AlgorithmArgon2id, 0)
	require.NoError(t, err)

	return map[string]*Hasher{AlgorithmBcrypt: b, AlgorithmArgon2id: a}
}

func TestHasher_RoundTrip(t *testing.T) {
	for name, h := range newHashers(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"longenough1", "pässwörd-ünïcode", strings.Repeat("x", 64)} {
				encoded, err := h.Hash(p)
				require.NoError(t, err)

				assert.NotEqual(t, p, encoded)
				assert.True(t, h.Verify(p, encoded))
				assert.False(t, h.Verify(p+"!", encoded))
			}
		})
	}
}

func TestHasher_RejectsOverlongInput(t *testing.T) {
	for name, h := range newHashers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := h.Hash(strings.Repeat("é", 37))
			assert.ErrorIs(t, err, ErrPasswordTooLong)

			encoded, err := h.Hash(strings.Repeat("é", 36))
			require.NoError(t, err)
			assert.True(t, h.Verify(strings.Repeat("é", 36), encoded))
		})
	}
}

func TestHasher_SaltedPerCall(t *testing.T) {
	for name, h := range newHashers(t) {
		t.Run(name, func(t *testing.T) {
			first, err := h.Hash("longenough1")
			require.NoError(t, err)
			second, err := h.Hash("longenough1")
			require.NoError(t, err)

			assert.NotEqual(t, first, second)
		})
	}
}

func TestHasher_VerifiesEitherFormat(t *testing.T) {
	hashers := newHashers(t)

	fromArgon, err := hashers[AlgorithmArgon2id].Hash("longenough1")
	require.NoError(t, err)
	fromBcrypt, err := hashers[AlgorithmBcrypt].Hash("longenough1")
	require.NoError(t, err)

	assert.True(t, hashers[AlgorithmBcrypt].Verify("longenough1", fromArgon))
	assert.True(t, hashers[AlgorithmArgon2id].Verify("longenough1", fromBcrypt))
}

func TestHasher_RejectsGarbage(t *testing.T) {
	h := newHashers(t)[AlgorithmBcrypt]

	assert.False(t, h.Verify("longenough1", ""))
	assert.False(t, h.Verify("longenough1", "longenough1"))
	assert.False(t, h.Verify("longenough1", "$argon2id$v=19$broken"))
}

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("md5", 0)
	require.Error(t, err)

	_, err = New(AlgorithmBcrypt, 99)
	require.Error(t, err)
}
