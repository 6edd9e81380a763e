package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// ErrKeyExists is returned when keygen would overwrite an existing key.
var ErrKeyExists = errors.New("key file already exists")

// KeyPair names the files written by GenerateKeyPair.
type KeyPair struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Fingerprint    string
}

// GenerateKeyPair writes a new ECDSA P-256 token signing key and its
// public key to dir as <name>.key and <name>.pub. The server verifies
// bearer tokens with the public key; the token command signs with the
// private key.
func GenerateKeyPair(dir, name string) (*KeyPair, error) {
	kp := &KeyPair{
		PrivateKeyPath: filepath.Join(dir, name+".key"),
		PublicKeyPath:  filepath.Join(dir, name+".pub"),
	}
	for _, p := range []string{kp.PrivateKeyPath, kp.PublicKeyPath} {
		if _, err := os.Stat(p); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrKeyExists, p)
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	privateKeyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	publicKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyDER})
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyDER})

	if err := os.WriteFile(kp.PrivateKeyPath, privateKeyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(kp.PublicKeyPath, publicKeyPEM, 0644); err != nil {
		os.Remove(kp.PrivateKeyPath)
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	sum := sha256.Sum256(publicKeyDER)
	kp.Fingerprint = base58.Encode(sum[:])

	log.Info().Str("fingerprint", kp.Fingerprint).Str("path", kp.PublicKeyPath).Msg("signing key generated")

	return kp, nil
}

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature, so the CLI can warn before the server rejects it.
func TokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
