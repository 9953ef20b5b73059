// Package signing implements the ECDSA-P256/SHA-512 request-signing scheme
// used by certain broker endpoints (device pairing and similar flows that sit
// alongside, but are not part of, the phone/PIN+OTP web-login path).
//
// Grounded on the P1363-to-DER conversion shape: crypto/ecdsa's SignASN1
// already emits DER, but some backends (and this broker's signing scheme)
// expect raw r||s (P1363) on the wire in other contexts; here the broker
// instead wants a base64'd DER SEQUENCE{r,s}, so we build that sequence
// ourselves from the raw fixed-width r/s halves to match the wire format
// byte for byte rather than relying on whatever shape a given stdlib version
// happens to produce.
package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Signature is the pair of fields the broker expects on a signed request.
type Signature struct {
	Timestamp string
	Signature string
}

// Sign computes the timestamped ECDSA-P256/SHA-512 signature over payload,
// matching the wire format `timestamp + "." + json(payload)`.
func Sign(key *ecdsa.PrivateKey, payload any) (Signature, error) {
	return sign(key, payload, time.Now())
}

// sign is the testable core: it takes an explicit timestamp so tests can
// assert exact message bytes without depending on wall-clock time.
func sign(key *ecdsa.PrivateKey, payload any, now time.Time) (Signature, error) {
	if key == nil {
		return Signature{}, fmt.Errorf("signing: key is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Signature{}, fmt.Errorf("signing: marshal payload: %w", err)
	}
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	message := timestamp + "." + string(body)

	digest := sha512.Sum512([]byte(message))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return Signature{}, fmt.Errorf("signing: ecdsa sign: %w", err)
	}

	der, err := encodeDER(r, s)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		Timestamp: timestamp,
		Signature: base64.StdEncoding.EncodeToString(der),
	}, nil
}

// encodeDER builds the ASN.1 DER encoding of SEQUENCE { INTEGER r, INTEGER s }
// from raw, unsigned big-endian integers, applying the minimal-encoding rule
// (strip redundant leading zero bytes; reinsert exactly one 0x00 whenever the
// high bit of the most significant retained byte is set, so the INTEGER is
// never misread as negative).
func encodeDER(r, s *big.Int) ([]byte, error) {
	if r.Sign() < 0 || s.Sign() < 0 {
		return nil, fmt.Errorf("signing: negative ecdsa component")
	}
	rBytes := asn1Integer(r)
	sBytes := asn1Integer(s)

	body := make([]byte, 0, len(rBytes)+len(sBytes))
	body = append(body, rBytes...)
	body = append(body, sBytes...)

	out := make([]byte, 0, len(body)+4)
	out = append(out, 0x30)
	out = appendLength(out, len(body))
	out = append(out, body...)
	return out, nil
}

// asn1Integer encodes a single non-negative big.Int as a DER INTEGER TLV.
func asn1Integer(v *big.Int) []byte {
	raw := v.Bytes()
	// Strip leading zero bytes to the minimal non-negative representation.
	for len(raw) > 1 && raw[0] == 0x00 {
		raw = raw[1:]
	}
	if len(raw) == 0 {
		raw = []byte{0x00}
	}
	// Re-insert a single 0x00 prefix if the high bit would otherwise be read as a sign bit.
	if raw[0]&0x80 != 0 {
		padded := make([]byte, len(raw)+1)
		copy(padded[1:], raw)
		raw = padded
	}
	out := make([]byte, 0, len(raw)+4)
	out = append(out, 0x02)
	out = appendLength(out, len(raw))
	out = append(out, raw...)
	return out
}

// appendLength appends a DER length field (short or long form) for n bytes.
func appendLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	var lenBytes []byte
	for v := n; v > 0; v >>= 8 {
		lenBytes = append([]byte{byte(v)}, lenBytes...)
	}
	dst = append(dst, byte(0x80|len(lenBytes)))
	return append(dst, lenBytes...)
}

// GenerateKey creates a new P-256 signing key for device-pairing-style flows.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
