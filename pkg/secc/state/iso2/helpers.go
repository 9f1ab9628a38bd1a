package iso2

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

// ecdhPublicKeyFromCert extracts the ECDH-usable form of a certificate's
// ECDSA (P-256) public key, the point CertificateInstallation's contract
// private key encryption step targets.
func ecdhPublicKeyFromCert(leaf *x509.Certificate) (*ecdh.PublicKey, error) {
	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("iso2: certificate public key is not ECDSA")
	}
	return pub.ECDH()
}

func randRead(b []byte) (int, error) {
	return rand.Read(b)
}
