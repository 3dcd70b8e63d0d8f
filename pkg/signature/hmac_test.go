package signature

import (
	"strings"
	"testing"
)

func TestVerify(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay_123","status":"succeeded"}}`)
	sig := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    []byte
		want      bool
	}{
		{"valid", body, sig, secret, true},
		{"valid uppercase hex", body, strings.ToUpper(sig), secret, true},
		{"tampered body", []byte(strings.Replace(string(body), "pay_123", "pay_999", 1)), sig, secret, false},
		{"wrong secret", body, sig, []byte("other"), false},
		{"missing secret", body, sig, nil, false},
		{"empty secret", body, Sign(body, []byte{}), []byte{}, false},
		{"missing signature", body, "", secret, false},
		{"not hex", body, "zz" + sig[2:], secret, false},
		{"truncated", body, sig[:10], secret, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Verify(tc.body, tc.signature, tc.secret); got != tc.want {
				t.Errorf("Verify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	got := Sign([]byte("what do ya want for nothing?"), []byte("Jefe"))
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}
}
