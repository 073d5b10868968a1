package crypto

import (
	"crypto/sha256"
	"encoding/base64"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	digits            = "0123456789"
	lowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
	upperAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	CodeLength = 6
)

// NewVerificationCode returns a 6-digit numeric one-time code. The first
// digit is never zero, so the code always reads as a 6-digit number.
func NewVerificationCode() (string, error) {
	first, err := gonanoid.Generate(digits[1:], 1)
	if err != nil {
		return "", err
	}
	rest, err := gonanoid.Generate(digits, CodeLength-1)
	if err != nil {
		return "", err
	}
	return first + rest, nil
}

// NewRegistrationCode returns the shared join secret handed to a teacher.
func NewRegistrationCode() (string, error) {
	return gonanoid.Generate(lowerAlphanumeric, CodeLength)
}

// NewExamCode returns the join code students type to enter an exam.
func NewExamCode() (string, error) {
	return gonanoid.Generate(upperAlphanumeric, CodeLength)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
