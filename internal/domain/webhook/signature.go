package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Headers taking part in webhook authentication.
const (
	HeaderSignature      = "X-Signature"
	HeaderEncryptionType = "Encryption-Type"
)

// SignatureInput holds the request values covered by the provider's
// signature. Header values are taken verbatim; a missing header is "".
type SignatureInput struct {
	ContentLength  string
	ContentType    string
	EncryptionType string
	Event          string
	// SessionID is nil when the body has no session_id field.
	SessionID *string
}

// CanonicalString builds the string the provider signs:
//
//	Content-Length|<v>|Content-Type|<v>|Encryption-Type|<v>|event|<v>[|session_id|<v>]
//
// The order is fixed by the provider and must not change.
func CanonicalString(in SignatureInput) string {
	var b strings.Builder
	write := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('|')
		b.WriteString(value)
		b.WriteByte('|')
	}

	write("Content-Length", in.ContentLength)
	write("Content-Type", in.ContentType)
	write("Encryption-Type", in.EncryptionType)
	write("event", in.Event)
	if in.SessionID != nil {
		write("session_id", *in.SessionID)
	}

	return strings.TrimSuffix(b.String(), "|")
}

// Verifier authenticates webhook deliveries with a shared HMAC-SHA256 secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign returns base64(HMAC-SHA256(secret, CanonicalString(in))).
func (v *Verifier) Sign(in SignatureInput) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(CanonicalString(in)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected value in constant time.
func (v *Verifier) Verify(in SignatureInput, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	if !hmac.Equal([]byte(v.Sign(in)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
