package kmsjwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDERToJOSE(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("header.payload"))

	t.Run("produces 64 byte r||s that verifies", func(t *testing.T) {
		der, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
		require.NoError(t, err)

		sig, err := derToJOSE(der)
		require.NoError(t, err)
		require.Len(t, sig, 64)

		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		assert.True(t, ecdsa.Verify(&priv.PublicKey, digest[:], r, s))
	})

	t.Run("short scalars are left padded", func(t *testing.T) {
		small := make([]byte, 64)
		small[31], small[63] = 7, 9
		der, err := joseToDER(small)
		require.NoError(t, err)
		back, err := derToJOSE(der)
		require.NoError(t, err)
		assert.Equal(t, small, back)
	})

	t.Run("rejects zero scalars", func(t *testing.T) {
		der, err := joseToDER(make([]byte, 64))
		require.NoError(t, err)
		_, err = derToJOSE(der)
		assert.ErrorIs(t, err, errBadSignature)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := derToJOSE([]byte{0x30, 0x03, 0x02, 0x01})
		assert.ErrorIs(t, err, errBadSignature)

		_, err = derToJOSE(nil)
		assert.ErrorIs(t, err, errBadSignature)
	})

	t.Run("round trips through joseToDER", func(t *testing.T) {
		der, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
		require.NoError(t, err)
		sig, err := derToJOSE(der)
		require.NoError(t, err)

		back, err := joseToDER(sig)
		require.NoError(t, err)
		assert.True(t, ecdsa.VerifyASN1(&priv.PublicKey, digest[:], back))
	})

	t.Run("joseToDER rejects wrong length", func(t *testing.T) {
		_, err := joseToDER(make([]byte, 63))
		assert.ErrorIs(t, err, errBadSignature)
	})
}
