package redirect

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestGenerateRSAKeys will generate a test RSA key pair, returning the
// public key as a PEM-encoded PKIX block along with the private key.
func TestGenerateRSAKeys(t *testing.T) (pubPEM string, priv *rsa.PrivateKey) {
	t.Helper()
	require := require.New(t)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)

	derBytes, err := x509.MarshalPKIXPublicKey(priv.Public())
	require.NoError(err)
	pubPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}))
	return pubPEM, priv
}

// TestGenerateRSACert will generate a self-signed test certificate for the
// given RSA key, returning it as a PEM-encoded block. Handy for exercising
// the certificate form of RS256 key material.
func TestGenerateRSACert(t *testing.T, priv *rsa.PrivateKey) string {
	t.Helper()
	require := require.New(t)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-signing-cert"},
		NotBefore:    time.Now().Add(-1 * time.Minute),
		NotAfter:     time.Now().Add(1 * time.Hour),
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, priv.Public(), priv)
	require.NoError(err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: derBytes,
	}))
}

// TestSignIDToken will bundle the provided claims into a test signed
// id_token. The key must be a []byte secret for HS256 or an
// *rsa.PrivateKey for RS256.
func TestSignIDToken(t *testing.T, alg Alg, key interface{}, claims jwt.Claims, privateClaims interface{}) string {
	t.Helper()
	require := require.New(t)
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	raw, err := jwt.Signed(sig).
		Claims(claims).
		Claims(privateClaims).
		CompactSerialize()
	require.NoError(err)
	return raw
}

// TestIDTokenClaims returns a baseline claim set for domain/clientID that a
// verifier for the same configuration will accept, expiring expireIn from
// now.
func TestIDTokenClaims(t *testing.T, domain string, clientID string, subject string, expireIn time.Duration) jwt.Claims {
	t.Helper()
	require := require.New(t)
	issuer, err := Issuer(domain)
	require.NoError(err)
	now := time.Now()
	return jwt.Claims{
		Issuer:   issuer,
		Subject:  subject,
		Audience: jwt.Audience{clientID},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(expireIn)),
	}
}
