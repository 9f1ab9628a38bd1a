// Package testpki builds V2G-style certificate hierarchies for tests: a
// self-signed root, zero to two sub-CAs, and a leaf, each signed by the
// level above it. It exists only so state-machine and security tests can
// exercise VerifyChain and Sign/Verify against real DER-encoded ECDSA
// certificates without standing up an actual PKI.
package testpki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// Cert pairs a parsed certificate with its own private key, so a test can
// sign with a CA's key to issue the certificate below it, or with a
// leaf's key to produce a possession-of-key signature (e.g. OEM
// provisioning's self-signature over its own leaf DER).
type Cert struct {
	Certificate *x509.Certificate
	DER         []byte
	PrivateKey  *ecdsa.PrivateKey
}

// Chain is a root-to-leaf hierarchy generated by NewChain.
type Chain struct {
	Root     Cert
	SubCAs   []Cert
	Leaf     Cert
}

// LeafDER returns the leaf certificate's raw DER, the shape VerifyChain
// expects for its leafDER argument.
func (c Chain) LeafDER() []byte { return c.Leaf.DER }

// IntermediateDER returns the sub-CA certificates' raw DER in root-to-leaf
// order, the shape VerifyChain expects for its intermediateDER argument.
func (c Chain) IntermediateDER() [][]byte {
	der := make([][]byte, len(c.SubCAs))
	for i, ca := range c.SubCAs {
		der[i] = ca.DER
	}
	return der
}

// RootPool returns an x509.CertPool containing only the root certificate.
func (c Chain) RootPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(c.Root.Certificate)
	return pool
}

// Options configures NewChain.
type Options struct {
	// NumSubCAs is how many sub-CA certificates to insert between the
	// root and the leaf (0, 1, or 2 are the cases VerifyChain cares
	// about; a value above 2 is useful for exercising the chain-depth
	// invariant it rejects).
	NumSubCAs int
	// LeafCommonName becomes the leaf certificate's Subject.CommonName,
	// the field CertificateInstallation reads back out as an EMAID.
	LeafCommonName string
	// NotBefore/NotAfter bound the leaf certificate's validity window.
	// The zero value picks a one-year window starting now.
	NotBefore, NotAfter time.Time
}

// NewChain builds a root CA, opts.NumSubCAs intermediate CAs, and a leaf,
// each ECDSA P-256 and each signed by the certificate above it.
func NewChain(opts Options) (Chain, error) {
	now := time.Now()
	if opts.NotBefore.IsZero() {
		opts.NotBefore = now.Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = now.Add(365 * 24 * time.Hour)
	}
	if opts.LeafCommonName == "" {
		opts.LeafCommonName = "DEADBEEF12345678"
	}

	root, err := selfSignedCA("Test V2G Root CA", now.Add(-time.Hour), now.Add(10*365*24*time.Hour), 1+opts.NumSubCAs)
	if err != nil {
		return Chain{}, fmt.Errorf("testpki: generate root: %w", err)
	}

	chain := Chain{Root: root}
	signer := root
	for i := 0; i < opts.NumSubCAs; i++ {
		pathLen := opts.NumSubCAs - i - 1
		sub, err := signedCA(fmt.Sprintf("Test Sub-CA %d", i+1), now.Add(-time.Hour), now.Add(5*365*24*time.Hour), pathLen, signer)
		if err != nil {
			return Chain{}, fmt.Errorf("testpki: generate sub-CA %d: %w", i+1, err)
		}
		chain.SubCAs = append(chain.SubCAs, sub)
		signer = sub
	}

	leaf, err := signedLeaf(opts.LeafCommonName, opts.NotBefore, opts.NotAfter, signer)
	if err != nil {
		return Chain{}, fmt.Errorf("testpki: generate leaf: %w", err)
	}
	chain.Leaf = leaf

	return chain, nil
}

func selfSignedCA(cn string, notBefore, notAfter time.Time, maxPathLen int) (Cert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Cert{}, err
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test V2G PKI"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            maxPathLen,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return Cert{}, err
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Cert{}, err
	}
	return Cert{Certificate: parsed, DER: der, PrivateKey: key}, nil
}

func signedCA(cn string, notBefore, notAfter time.Time, maxPathLen int, signer Cert) (Cert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Cert{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Cert{}, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test V2G PKI"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            maxPathLen,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, signer.Certificate, &key.PublicKey, signer.PrivateKey)
	if err != nil {
		return Cert{}, err
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Cert{}, err
	}
	return Cert{Certificate: parsed, DER: der, PrivateKey: key}, nil
}

func signedLeaf(cn string, notBefore, notAfter time.Time, signer Cert) (Cert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Cert{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Cert{}, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test V2G PKI"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, signer.Certificate, &key.PublicKey, signer.PrivateKey)
	if err != nil {
		return Cert{}, err
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Cert{}, err
	}
	return Cert{Certificate: parsed, DER: der, PrivateKey: key}, nil
}

// CorruptSignature flips the trailing bytes of a DER-encoded certificate
// so it parses but fails signature verification, for exercising
// VerifyChain's failure path.
func CorruptSignature(der []byte) []byte {
	corrupted := make([]byte, len(der))
	copy(corrupted, der)
	for i := len(corrupted) - 10; i < len(corrupted); i++ {
		corrupted[i] ^= 0xFF
	}
	return corrupted
}
