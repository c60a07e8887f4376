package repository

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DefaultPageSize is used when a caller does not configure one.
const DefaultPageSize = 100

// MaxPageSize caps a single page request.
const MaxPageSize = 10000

// EffectivePageSize clamps size into [1, MaxPageSize], defaulting when unset.
func EffectivePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// cursorData is the payload of a stateless continuation cursor.
type cursorData struct {
	Position any `json:"p"`
}

// EncodeCursor encodes a backend position as an opaque URL-safe cursor.
func EncodeCursor(position any) (string, error) {
	if position == nil {
		return "", nil
	}
	raw, err := json.Marshal(cursorData{Position: position})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor decodes a cursor produced by EncodeCursor into target.
func DecodeCursor(cursor string, target any) error {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return fmt.Errorf("invalid cursor format: %w", err)
	}
	data := cursorData{Position: target}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid cursor data: %w", err)
	}
	return nil
}
