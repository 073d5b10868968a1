package model

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidID = errors.New("invalid_id")

// ID is a 128-bit identifier. The canonical hyphenated string is the only
// form exchanged with callers; the raw 16 bytes stay behind the repository.
type ID uuid.UUID

func NewID() ID {
	return ID(uuid.New())
}

// ParseID accepts only the canonical 36-character hyphenated form.
func ParseID(value string) (ID, error) {
	if len(value) != 36 {
		return ID{}, ErrInvalidID
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	return ID(parsed), nil
}

func IDFromBytes(b []byte) (ID, error) {
	parsed, err := uuid.FromBytes(b)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	return ID(parsed), nil
}

func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return uuid.UUID(id).String()
}

func (id ID) Bytes() []byte {
	b := [16]byte(id)
	return b[:]
}

func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
