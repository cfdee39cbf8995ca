package ir

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ref points at an entity in an EntityTable by (Type, ID).
// A Ref never owns its target; it is resolved by lookup at read time, which
// keeps cyclic entity graphs free of pointer cycles.
type Ref struct {
	Type string
	ID   string
}

func (Ref) irValue() {}

// NewRef creates a Ref.
func NewRef(typeName, id string) Ref {
	return Ref{Type: typeName, ID: id}
}

// Key renders the reference as "Type:ID".
func (r Ref) Key() string {
	return r.Type + ":" + r.ID
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	return r.Key()
}

// MarshalJSON renders the reference as {"__ref":"Type:ID"}.
func (r Ref) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(r.Key())
	if err != nil {
		return nil, err
	}
	return append(append([]byte(`{"__ref":`), key...), '}'), nil
}

// ParseRefKey is the inverse of Ref.Key. IDs may contain ':'; the type may not.
func ParseRefKey(key string) (Ref, bool) {
	typeName, id, ok := strings.Cut(key, ":")
	if !ok || typeName == "" {
		return Ref{}, false
	}
	return Ref{Type: typeName, ID: id}, true
}

// IDString renders an identity value. Only String and Int identities are valid.
func IDString(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	default:
		return "", false
	}
}
