package journal

import (
	"context"
	"fmt"

	"github.com/roach88/graphcache/internal/ir"
)

// Mismatch is an entry that failed verification.
type Mismatch struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// Verify recomputes the digest of every entry and checks that sequence
// numbers are dense from 1. It returns the entries that fail; an empty
// result means the journal is intact.
func (j *Journal) Verify(ctx context.Context) ([]Mismatch, error) {
	entries, err := j.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return VerifyEntries(entries), nil
}

// VerifyEntries is Verify over entries already read.
func VerifyEntries(entries []Entry) []Mismatch {
	mismatches := []Mismatch{}
	for i, e := range entries {
		if want := int64(i + 1); e.Seq != want {
			mismatches = append(mismatches, Mismatch{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("sequence gap: expected %d", want),
			})
		}

		var payload ir.Value = ir.Null{}
		if !e.IsError {
			decoded, err := ir.DecodeJSON([]byte(e.Payload))
			if err != nil {
				mismatches = append(mismatches, Mismatch{Seq: e.Seq, Reason: fmt.Sprintf("payload: %v", err)})
				continue
			}
			payload = decoded
		}

		digest, err := ir.EntryDigest(e.Seq, ir.ActionKind(e.Kind), e.IsError, payload, e.Error)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Seq: e.Seq, Reason: err.Error()})
			continue
		}
		if digest != e.Digest {
			mismatches = append(mismatches, Mismatch{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("digest mismatch: stored %s, computed %s", e.Digest, digest),
			})
		}
	}
	return mismatches
}
