package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows the algorithm to change.
const (
	DomainAction = "graphcache/action/v1"
	DomainTable  = "graphcache/table/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionDigest identifies a dispatched action by its sequence number and
// content. Error actions hash their error text.
func ActionDigest(seq int64, a Action) (string, error) {
	if a.IsError {
		return EntryDigest(seq, a.Kind, true, nil, a.Err.Error())
	}
	return EntryDigest(seq, a.Kind, false, a.Payload.Object(), "")
}

// EntryDigest computes ActionDigest from journaled parts: the decoded
// payload for updates, the error text for errors.
func EntryDigest(seq int64, kind ActionKind, isError bool, payload Value, errText string) (string, error) {
	obj := Object{
		"kind":     String(kind),
		"seq":      Int(seq),
		"is_error": Bool(isError),
	}
	if isError {
		obj["error"] = String(errText)
	} else {
		obj["payload"] = payload
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionDigest: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// TableDigest hashes the full content of a table. Two tables with equal
// content have equal digests regardless of map identity.
func TableDigest(t EntityTable) (string, error) {
	canonical, err := MarshalCanonical(t.Object())
	if err != nil {
		return "", fmt.Errorf("TableDigest: %w", err)
	}
	return hashWithDomain(DomainTable, canonical), nil
}
