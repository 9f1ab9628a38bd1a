// Package security implements the cross-cutting PnC security services: DIN
// SPEC 70121/ISO 15118-2 contract certificate chain verification,
// signature creation/verification over canonically encoded elements, and
// ECDH-based encryption of the contract private key sent during
// CertificateInstallation. It owns no certificate store
// and no TLS listener; callers supply root pools and keys.
package security

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/mash-protocol/mash-go/pkg/codec"
)

// Chain verification errors.
var (
	ErrEmptyChain      = errors.New("security: certificate chain is empty")
	ErrTooManySubCAs   = errors.New("security: more than 2 sub-CA certificates in chain")
	ErrCertExpired     = errors.New("security: certificate has expired")
	ErrCertNotYetValid = errors.New("security: certificate is not yet valid")
	ErrChainInvalid    = errors.New("security: certificate chain does not verify against the supplied roots")
	ErrRevoked         = errors.New("security: certificate has been revoked")
)

// RevocationChecker reports whether a certificate (passed as its parsed
// *x509.Certificate) has been revoked. It is consulted during VerifyChain so the OCSP
// or CRL source can stay entirely outside this package.
type RevocationChecker interface {
	IsRevoked(cert *x509.Certificate) (bool, error)
}

// NoRevocationCheck is a RevocationChecker that never flags a certificate
// as revoked, used by default when no revocation source is configured.
type NoRevocationCheck struct{}

func (NoRevocationCheck) IsRevoked(*x509.Certificate) (bool, error) { return false, nil }

// VerifyChain validates a leaf certificate plus up to two intermediate
// (sub-CA) certificates against roots: validity window, chain-length
// invariant (at most 2 sub-CAs, mirroring the DIN/ISO PKI hierarchy of
// V2G root -> OEM/CPO sub-CA -> sub-CA -> leaf), path validation against
// roots, and revocation.
func VerifyChain(leafDER []byte, intermediateDER [][]byte, roots *x509.CertPool, revocation RevocationChecker) (*x509.Certificate, error) {
	if len(leafDER) == 0 {
		return nil, ErrEmptyChain
	}
	if len(intermediateDER) > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooManySubCAs, len(intermediateDER))
	}
	if revocation == nil {
		revocation = NoRevocationCheck{}
	}

	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		return nil, fmt.Errorf("security: parse leaf certificate: %w", err)
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return nil, ErrCertNotYetValid
	}
	if now.After(leaf.NotAfter) {
		return nil, ErrCertExpired
	}

	intermediates := x509.NewCertPool()
	for _, der := range intermediateDER {
		ic, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("security: parse intermediate certificate: %w", err)
		}
		if now.After(ic.NotAfter) {
			return nil, ErrCertExpired
		}
		if now.Before(ic.NotBefore) {
			return nil, ErrCertNotYetValid
		}
		intermediates.AddCert(ic)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainInvalid, err)
	}

	revoked, err := revocation.IsRevoked(leaf)
	if err != nil {
		return nil, fmt.Errorf("security: revocation check: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	return leaf, nil
}

// Canonicalize returns the canonical byte encoding of an element to be
// signed or verified, via the reference codec. A production deployment
// signs over the canonical EXI encoding instead; this package only ever
// needs a stable, deterministic byte string, which the CBOR codec already
// guarantees through canonical key ordering.
func Canonicalize(element any) ([]byte, error) {
	return codec.NewCBORCodec().Encode(element)
}

// Sign produces an ECDSA signature (ASN.1 DER) over the canonical encoding
// of each element, concatenated in order. ISO 15118-2 signs several
// elements together (e.g. contract cert chain, encrypted private key, DH
// public key, EMAID) with one signature.
func Sign(key *ecdsa.PrivateKey, elements ...any) ([]byte, error) {
	digest, err := digestElements(elements)
	if err != nil {
		return nil, err
	}
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

// Verify checks an ECDSA signature over the canonical encoding of each
// element, concatenated in order.
func Verify(pub *ecdsa.PublicKey, sig []byte, elements ...any) error {
	digest, err := digestElements(elements)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(pub, digest, sig) {
		return errors.New("security: signature verification failed")
	}
	return nil
}

func digestElements(elements []any) ([]byte, error) {
	h := sha256.New()
	for _, el := range elements {
		b, err := Canonicalize(el)
		if err != nil {
			return nil, fmt.Errorf("security: canonicalize signed element: %w", err)
		}
		h.Write(b)
	}
	return h.Sum(nil), nil
}

// contractKeyHKDFInfo is the fixed HKDF "info" parameter for contract
// private key wrapping. Binding it to a fixed context string prevents the
// derived key from being reused for an unrelated purpose if the same ECDH
// shared secret is ever computed again.
var contractKeyHKDFInfo = []byte("iso15118 contract private key encryption")

// EncryptContractPrivateKey wraps the contract private key for
// CertificateInstallationRes. It generates an ephemeral P-256 ECDH key
// pair, derives a 256-bit AES key from the shared secret with
// HKDF-SHA256, and seals privateKey with AES-GCM. Returned are the
// ciphertext with the GCM nonce prepended (EncryptedPrivateKey) and the
// ephemeral public key (DHPublicKey).
func EncryptContractPrivateKey(evccPub *ecdh.PublicKey, privateKey []byte) (ciphertext, ephemeralPub []byte, err error) {
	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("security: generate ephemeral ECDH key: %w", err)
	}

	shared, err := ephemeral.ECDH(evccPub)
	if err != nil {
		return nil, nil, fmt.Errorf("security: ECDH: %w", err)
	}

	aesKey, err := deriveAESKey(shared)
	if err != nil {
		return nil, nil, err
	}

	sealed, err := aesGCMSeal(aesKey, privateKey)
	if err != nil {
		return nil, nil, err
	}

	return sealed, ephemeral.PublicKey().Bytes(), nil
}

// DecryptContractPrivateKey reverses EncryptContractPrivateKey given the
// EVCC's static private key and the EVSE's ephemeral public key bytes.
func DecryptContractPrivateKey(evccPriv *ecdh.PrivateKey, ephemeralPubBytes, ciphertext []byte) ([]byte, error) {
	curve := ecdh.P256()
	ephemeralPub, err := curve.NewPublicKey(ephemeralPubBytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse ephemeral public key: %w", err)
	}

	shared, err := evccPriv.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("security: ECDH: %w", err)
	}

	aesKey, err := deriveAESKey(shared)
	if err != nil {
		return nil, err
	}

	return aesGCMOpen(aesKey, ciphertext)
}

func deriveAESKey(shared []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, shared, nil, contractKeyHKDFInfo)
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("security: HKDF expand: %w", err)
	}
	return key, nil
}

// ZeroPublicKey is a convenience for tests that need a fixed, meaningless
// key-sized byte string (e.g. to build a minimal failed-response shape).
// It is the P-256 base point's X coordinate only, not a parseable point
// encoding.
func ZeroPublicKey() []byte {
	return elliptic.P256().Params().Gx.Bytes()
}
