package security

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
)

var ErrInvalidKey = errors.New("invalid key material")

// KeyPair is loaded once at startup and only read afterwards.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
	KeyID   string
}

// LoadKeyPair reads the signing and verification keys. Each source is either a
// file path or literal PEM text.
func LoadKeyPair(privateSource string, publicSource string) (*KeyPair, error) {
	privateDER, err := readKeySource(privateSource)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	publicDER, err := readKeySource(publicSource)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	privateKey, err := parsePrivateKey(privateDER)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, err := parsePublicKey(publicDER)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewKeyPair(privateKey, publicKey)
}

func NewKeyPair(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) (*KeyPair, error) {
	if privateKey == nil || publicKey == nil {
		return nil, fmt.Errorf("%w: both keys are required", ErrInvalidKey)
	}

	if !privateKey.PublicKey.Equal(publicKey) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrInvalidKey)
	}

	kid, err := keyID(publicKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{Private: privateKey, Public: publicKey, KeyID: kid}, nil
}

func readKeySource(source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty key source", ErrInvalidKey)
	}

	raw := source
	if !strings.Contains(source, "-----BEGIN") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}

	return decodePEMBody(raw)
}

// decodePEMBody drops the armor lines and whitespace and base64-decodes what
// remains. Escaped newlines from single-line env values are accepted.
func decodePEMBody(raw string) ([]byte, error) {
	raw = strings.ReplaceAll(raw, `\n`, "\n")

	var body strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body.WriteString(strings.Join(strings.Fields(line), ""))
	}

	if body.Len() == 0 {
		return nil, fmt.Errorf("%w: empty PEM body", ErrInvalidKey)
	}

	der, err := base64.StdEncoding.DecodeString(body.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return der, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not RSA", ErrInvalidKey)
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return key, nil
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is not RSA", ErrInvalidKey)
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return key, nil
}

func keyID(publicKey *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}

	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS publishes the verification key so other instances can check tokens
// without holding the signing key.
func (k *KeyPair) JWKS() JWKSet {
	return JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: k.KeyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(k.Public.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.Public.E)).Bytes()),
	}}}
}
