// Package signer builds the signed form body expected by the MFC partner API.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrMissingCredentials is returned when either API key is empty.
var ErrMissingCredentials = errors.New("MFC API keys are not set")

// Credentials holds the partner key pair.
type Credentials struct {
	PublicKey  string
	PrivateKey string
}

// Signer computes request signatures for one key pair. It is safe for
// concurrent use.
type Signer struct {
	publicKey  string
	privateKey []byte
}

// New validates the key pair and returns a Signer.
func New(creds Credentials) (*Signer, error) {
	if strings.TrimSpace(creds.PublicKey) == "" || strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, ErrMissingCredentials
	}
	return &Signer{
		publicKey:  creds.PublicKey,
		privateKey: []byte(creds.PrivateKey),
	}, nil
}

// BaseString returns the canonical string the signature is computed over:
// key=<public>&jan=<code>&available=<0|1>.
func (s *Signer) BaseString(code string, available bool) string {
	return "key=" + encodeURIComponent(s.publicKey) +
		"&jan=" + encodeURIComponent(code) +
		"&available=" + availableFlag(available)
}

// Signature returns base64(HMAC-SHA256(privateKey, base)).
func (s *Signer) Signature(base string) string {
	mac := hmac.New(sha256.New, s.privateKey)
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Body returns the x-www-form-urlencoded request body with the fields in
// the fixed order key, jan, available, s, price, url.
func (s *Signer) Body(code string, available bool, price int64, rawURL string) string {
	sig := s.Signature(s.BaseString(code, available))

	var b strings.Builder
	b.WriteString("key=")
	b.WriteString(url.QueryEscape(s.publicKey))
	b.WriteString("&jan=")
	b.WriteString(url.QueryEscape(code))
	b.WriteString("&available=")
	b.WriteString(availableFlag(available))
	b.WriteString("&s=")
	b.WriteString(url.QueryEscape(sig))
	b.WriteString("&price=")
	b.WriteString(strconv.FormatInt(price, 10))
	b.WriteString("&url=")
	b.WriteString(url.QueryEscape(rawURL))
	return b.String()
}

func availableFlag(available bool) string {
	if available {
		return "1"
	}
	return "0"
}

// uriComponentReplacer turns url.QueryEscape output into what JavaScript's
// encodeURIComponent produces, which the vendor verifies signatures against.
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}
