package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signer produces Kalshi API key authentication headers.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSigner parses a PEM-encoded RSA private key (PKCS#8 or PKCS#1).
// Escaped "\n" sequences, as found in single-line .env values, are accepted.
func NewSigner(keyID string, pemData []byte) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("api key id must not be empty")
	}
	block, _ := pem.Decode(unescapeNewlines(pemData))
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}

	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not an RSA key")
		}
		key = rsaKey
	} else if rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = rsaKey
	} else {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Signer{keyID: keyID, key: key, now: time.Now}, nil
}

// Headers signs timestamp+method+path with RSA-PSS/SHA-256.
func (s *Signer) Headers(method, path string) (http.Header, error) {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	digest := sha256.Sum256([]byte(ts + method + path))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	h := http.Header{}
	h.Set("KALSHI-ACCESS-KEY", s.keyID)
	h.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	h.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	return h, nil
}

func unescapeNewlines(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) && b[i+1] == 'n' {
			out = append(out, '\n')
			i++
			continue
		}
		out = append(out, b[i])
	}
	return out
}
