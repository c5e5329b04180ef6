package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Binary casts to []byte.
type Binary struct {
	Options
}

func (Binary) Kind() Kind { return KindBinary }

func (Binary) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return x
	case string:
		return []byte(x)
	}
	return []byte(fmt.Sprint(v))
}

func (b Binary) Serialize(v any) (any, error) { return b.Cast(v), nil }

// JSON decodes textual input and serializes values as JSON text.
type JSON struct {
	Options
}

func (JSON) Kind() Kind { return KindJSON }

func (JSON) Cast(v any) any {
	var raw []byte
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	case json.RawMessage:
		raw = x
	default:
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (j JSON) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(j.Cast(v))
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

// UUID casts to uuid.UUID and serializes to the canonical string form.
type UUID struct {
	Options
}

func (UUID) Kind() Kind { return KindUUID }

func (UUID) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case uuid.UUID:
		return x
	case string:
		id, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		return id
	case []byte:
		if len(x) == 16 {
			id, err := uuid.FromBytes(x)
			if err != nil {
				return nil
			}
			return id
		}
		return UUID{}.Cast(string(x))
	}
	return nil
}

func (u UUID) Serialize(v any) (any, error) {
	id, ok := u.Cast(v).(uuid.UUID)
	if !ok {
		return nil, nil
	}
	return id.String(), nil
}

// Secret holds plain text in memory and stores a bcrypt digest.
// Values that already look like a bcrypt digest are stored unchanged.
type Secret struct {
	Options
	Cost int
}

func (Secret) Kind() Kind { return KindSecret }

func (Secret) Cast(v any) any { return castString(v) }

func (s Secret) Serialize(v any) (any, error) {
	plain, ok := castString(v).(string)
	if !ok {
		return nil, nil
	}
	if isDigest(plain) {
		return plain, nil
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches the stored digest.
func (Secret) Verify(digest, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

func isDigest(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
