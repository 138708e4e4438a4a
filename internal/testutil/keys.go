package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"go-clinic-api/internal/security"
)

var (
	keyOnce sync.Once
	keyPair *security.KeyPair
	keyErr  error
)

// KeyPair returns a process-wide RSA key pair; generating one per test is slow.
func KeyPair(t testing.TB) *security.KeyPair {
	t.Helper()

	keyOnce.Do(func() {
		var private *rsa.PrivateKey
		private, keyErr = rsa.GenerateKey(rand.Reader, 2048)
		if keyErr != nil {
			return
		}
		keyPair, keyErr = security.NewKeyPair(private, &private.PublicKey)
	})

	require.NoError(t, keyErr)
	return keyPair
}

// HashPassword hashes with the minimum bcrypt cost to keep tests fast.
func HashPassword(t testing.TB, password string) string {
	t.Helper()

	hash, err := security.HashPassword(password, 4)
	require.NoError(t, err)
	return hash
}
