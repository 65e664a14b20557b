package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// Signature scheme prefix recorded in manifest key ids
const (
	SigPrefixEd25519 = "ed25519"
	SigSeparator     = ":"
)

var (
	// ErrSigningNotConfigured means no key pair was supplied
	ErrSigningNotConfigured = errors.New("signing key pair not configured")
	// ErrKeyMismatch means the public key does not belong to the private key
	ErrKeyMismatch = errors.New("public key does not match private key")
)

// ManifestSigner produces detached signatures over canonical manifest bytes
type ManifestSigner interface {
	Sign(data []byte) (string, error)
	KeyID() string
	PublicKey() ed25519.PublicKey
}

// Ed25519Signer signs with a single static key pair supplied as raw key
// material. Key problems surface on Sign so callers can degrade to unsigned.
type Ed25519Signer struct {
	keyID   string
	privRaw []byte
	pubRaw  []byte
	err     error
}

// NewEd25519Signer builds a signer from base64 encoded keys. The private key
// may be a 32 byte seed or a 64 byte expanded key.
func NewEd25519Signer(keyID, privateKeyBase64, publicKeyBase64 string) *Ed25519Signer {
	s := &Ed25519Signer{keyID: keyID}
	if privateKeyBase64 == "" || publicKeyBase64 == "" {
		s.err = ErrSigningNotConfigured
		return s
	}
	var err error
	if s.privRaw, err = base64.StdEncoding.DecodeString(privateKeyBase64); err != nil {
		s.err = fmt.Errorf("failed to decode private key: %w", err)
		return s
	}
	if s.pubRaw, err = base64.StdEncoding.DecodeString(publicKeyBase64); err != nil {
		s.err = fmt.Errorf("failed to decode public key: %w", err)
	}
	return s
}

// NewEd25519SignerFromKey wraps an already parsed private key
func NewEd25519SignerFromKey(keyID string, priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{
		keyID:   keyID,
		privRaw: priv,
		pubRaw:  priv.Public().(ed25519.PublicKey),
	}
}

// Configured reports whether both keys were supplied
func (s *Ed25519Signer) Configured() bool {
	return !errors.Is(s.err, ErrSigningNotConfigured)
}

// Validate parses the key material without signing anything
func (s *Ed25519Signer) Validate() error {
	_, _, err := s.keys()
	return err
}

// KeyID returns the scheme-qualified key id, e.g. "ed25519:evidence-2025"
func (s *Ed25519Signer) KeyID() string {
	return SigPrefixEd25519 + SigSeparator + s.keyID
}

// PublicKey returns the verification key, or nil if it is unusable
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	_, pub, err := s.keys()
	if err != nil {
		return nil
	}
	return pub
}

// Sign returns the base64 encoded ed25519 signature of data
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	priv, _, err := s.keys()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data)), nil
}

func (s *Ed25519Signer) keys() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if s.err != nil {
		return nil, nil, s.err
	}

	var priv ed25519.PrivateKey
	switch len(s.privRaw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(s.privRaw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(s.privRaw)
	default:
		return nil, nil, fmt.Errorf("invalid private key size: %d", len(s.privRaw))
	}

	if len(s.pubRaw) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("invalid public key size: %d", len(s.pubRaw))
	}
	pub := ed25519.PublicKey(s.pubRaw)
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), pub) {
		return nil, nil, ErrKeyMismatch
	}
	return priv, pub, nil
}

// VerifySignature checks a base64 signature against data
func VerifySignature(pub ed25519.PublicKey, data []byte, signatureBase64 string) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size: %d", len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return ed25519.Verify(pub, data, sig), nil
}

var _ ManifestSigner = (*Ed25519Signer)(nil)
