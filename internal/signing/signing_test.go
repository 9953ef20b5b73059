package signing

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"encoding/asn1"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestSignProducesVerifiableDERSignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	payload := map[string]any{"phoneNumber": "+491234567890", "pin": "1234"}
	now := time.UnixMilli(1_700_000_000_123)

	sig, err := sign(key, payload, now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig.Timestamp != "1700000000123" {
		t.Fatalf("unexpected timestamp: %s", sig.Timestamp)
	}

	der, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	var parsed struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("signature is not valid DER: %v", err)
	}

	message := sig.Timestamp + "." + `{"phoneNumber":"+491234567890","pin":"1234"}`
	digest := sha512.Sum512([]byte(message))
	if !ecdsa.Verify(&key.PublicKey, digest[:], parsed.R, parsed.S) {
		t.Fatal("signature does not verify against the expected message")
	}
}

func TestSignRejectsNilKey(t *testing.T) {
	if _, err := Sign(nil, map[string]any{}); err == nil {
		t.Fatal("expected error for nil key")
	}
}

func TestEncodeDERMinimalEncoding(t *testing.T) {
	// r has a leading zero byte that must be stripped; s has a high bit set
	// in its most significant retained byte and must get a 0x00 pad byte.
	r := new(big.Int).SetBytes([]byte{0x00, 0x01, 0x02})
	s := new(big.Int).SetBytes([]byte{0xFF, 0x01})

	der, err := encodeDER(r, s)
	if err != nil {
		t.Fatalf("encodeDER: %v", err)
	}

	var parsed struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("not valid DER: %v", err)
	}
	if parsed.R.Cmp(r) != 0 {
		t.Fatalf("R mismatch: got %v want %v", parsed.R, r)
	}
	if parsed.S.Cmp(s) != 0 {
		t.Fatalf("S mismatch: got %v want %v", parsed.S, s)
	}

	// Confirm minimality: the encoded R TLV should be exactly 0x02 0x02 0x01 0x02 (no extra 0x00).
	if strings.Count(string(der), string([]byte{0x02, 0x02, 0x01, 0x02})) != 1 {
		t.Fatalf("expected minimal INTEGER encoding for R, got % x", der)
	}
}

func TestAsn1IntegerZero(t *testing.T) {
	out := asn1Integer(big.NewInt(0))
	want := []byte{0x02, 0x01, 0x00}
	if string(out) != string(want) {
		t.Fatalf("zero encoding mismatch: got % x want % x", out, want)
	}
}
