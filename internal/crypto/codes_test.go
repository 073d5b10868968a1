package crypto

import (
	"strings"
	"testing"
)

func TestVerificationCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewVerificationCode()
		if err != nil {
			t.Fatalf("code error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if code[0] == '0' {
			t.Fatalf("expected non-zero leading digit, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
	}
}

func TestRegistrationAndExamCodes(t *testing.T) {
	reg, err := NewRegistrationCode()
	if err != nil {
		t.Fatalf("registration code error: %v", err)
	}
	if len(reg) != 6 || strings.ToLower(reg) != reg {
		t.Fatalf("expected 6 lowercase chars, got %q", reg)
	}

	exam, err := NewExamCode()
	if err != nil {
		t.Fatalf("exam code error: %v", err)
	}
	if len(exam) != 6 || strings.ToUpper(exam) != exam {
		t.Fatalf("expected 6 uppercase chars, got %q", exam)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("stripe:tok_1") != HashToken("stripe:tok_1") {
		t.Fatalf("expected stable hash")
	}
	if HashToken("stripe:tok_1") == HashToken("stripe:tok_2") {
		t.Fatalf("expected distinct hashes")
	}
}
