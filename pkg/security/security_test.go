package security_test

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/security"
	"github.com/mash-protocol/mash-go/pkg/security/testpki"
)

// alwaysRevoked is a RevocationChecker stub for exercising VerifyChain's
// revocation branch without standing up a real CRL/OCSP source.
type alwaysRevoked struct{}

func (alwaysRevoked) IsRevoked(*x509.Certificate) (bool, error) { return true, nil }

func TestVerifyChain_ValidNoSubCA(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 0})
	require.NoError(t, err)

	leaf, err := security.VerifyChain(chain.LeafDER(), chain.IntermediateDER(), chain.RootPool(), security.NoRevocationCheck{})
	require.NoError(t, err)
	assert.Equal(t, chain.Leaf.Certificate.SerialNumber, leaf.SerialNumber)
}

func TestVerifyChain_ValidTwoSubCAs(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 2})
	require.NoError(t, err)

	_, err = security.VerifyChain(chain.LeafDER(), chain.IntermediateDER(), chain.RootPool(), security.NoRevocationCheck{})
	require.NoError(t, err)
}

func TestVerifyChain_TooManySubCAs(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 3})
	require.NoError(t, err)

	_, err = security.VerifyChain(chain.LeafDER(), chain.IntermediateDER(), chain.RootPool(), security.NoRevocationCheck{})
	assert.ErrorIs(t, err, security.ErrTooManySubCAs)
}

func TestVerifyChain_EmptyLeaf(t *testing.T) {
	_, err := security.VerifyChain(nil, nil, nil, security.NoRevocationCheck{})
	assert.ErrorIs(t, err, security.ErrEmptyChain)
}

func TestVerifyChain_WrongRoot(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 1})
	require.NoError(t, err)
	other, err := testpki.NewChain(testpki.Options{NumSubCAs: 1})
	require.NoError(t, err)

	_, err = security.VerifyChain(chain.LeafDER(), chain.IntermediateDER(), other.RootPool(), security.NoRevocationCheck{})
	assert.ErrorIs(t, err, security.ErrChainInvalid)
}

func TestVerifyChain_CorruptedSignature(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 0})
	require.NoError(t, err)

	corrupted := testpki.CorruptSignature(chain.LeafDER())
	_, err = security.VerifyChain(corrupted, chain.IntermediateDER(), chain.RootPool(), security.NoRevocationCheck{})
	assert.ErrorIs(t, err, security.ErrChainInvalid)
}

func TestVerifyChain_Revoked(t *testing.T) {
	chain, err := testpki.NewChain(testpki.Options{NumSubCAs: 0})
	require.NoError(t, err)

	_, err = security.VerifyChain(chain.LeafDER(), chain.IntermediateDER(), chain.RootPool(), alwaysRevoked{})
	assert.ErrorIs(t, err, security.ErrRevoked)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sig, err := security.Sign(key, "hello", 42, []byte{1, 2, 3})
	require.NoError(t, err)

	err = security.Verify(&key.PublicKey, sig, "hello", 42, []byte{1, 2, 3})
	assert.NoError(t, err)
}

func TestSignVerify_TamperedElement(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sig, err := security.Sign(key, "hello", 42)
	require.NoError(t, err)

	err = security.Verify(&key.PublicKey, sig, "hello", 43)
	assert.Error(t, err)
}

func TestContractPrivateKeyEncryption_RoundTrip(t *testing.T) {
	evccKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	privateKey := []byte("a perfectly ordinary contract private key")

	ciphertext, ephemeralPub, err := security.EncryptContractPrivateKey(evccKey.PublicKey(), privateKey)
	require.NoError(t, err)

	plaintext, err := security.DecryptContractPrivateKey(evccKey, ephemeralPub, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, privateKey, plaintext)
}

func TestContractPrivateKeyEncryption_WrongPrivateKeyFails(t *testing.T) {
	evccKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	ciphertext, ephemeralPub, err := security.EncryptContractPrivateKey(evccKey.PublicKey(), []byte("secret"))
	require.NoError(t, err)

	_, err = security.DecryptContractPrivateKey(otherKey, ephemeralPub, ciphertext)
	assert.Error(t, err)
}
