// Package pemstore loads the PEM-encoded certificate and key material a
// deployment's config.Config points at into the x509.CertPool, DER
// chains, and ecdsa.PrivateKey values the state machines and security
// package actually take as Deps.
package pemstore

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
)

// Errors returned when a PEM file doesn't contain what its caller asked for.
var (
	ErrNoCertificates = errors.New("pemstore: no CERTIFICATE blocks found")
	ErrInvalidPEM     = errors.New("pemstore: invalid PEM data")
)

// LoadRootPool reads every CERTIFICATE block in path into an x509.CertPool,
// for config.Config's V2GRootCertPath and MORootCertPath bundles.
func LoadRootPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pemstore: read %s: %w", path, err)
	}

	pool := x509.NewCertPool()
	n := 0
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("pemstore: parse certificate in %s: %w", path, err)
		}
		pool.AddCert(cert)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}

// LoadChain reads path as a leaf certificate followed by zero or more
// intermediate (sub-CA) certificates, in the order CertificateInstallation
// and PaymentDetails expect a dtype.CertificateChain to carry them.
func LoadChain(path string) (dtype.CertificateChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dtype.CertificateChain{}, fmt.Errorf("pemstore: read %s: %w", path, err)
	}

	var ders [][]byte
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		ders = append(ders, block.Bytes)
	}
	if len(ders) == 0 {
		return dtype.CertificateChain{}, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}

	chain := dtype.CertificateChain{Leaf: ders[0], Intermediates: ders[1:]}
	return chain, chain.Validate()
}

// LoadKey reads an EC PRIVATE KEY block from path, for config.Config's
// CPSSigningKeyPath.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pemstore: read %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidPEM)
	}
	return x509.ParseECPrivateKey(block.Bytes)
}
