package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfeidau/traceledger/internal/models"
)

// GenesisHash is the PrevHash of the first record in every log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalRecord is the hashed form of a record. Field order is fixed and
// encoding/json sorts map keys, so the encoding is stable.
type canonicalRecord struct {
	Sequence  int64             `json:"sequence"`
	Timestamp string            `json:"timestamp"`
	Kind      models.EventKind  `json:"kind"`
	Ledger    string            `json:"ledger"`
	Key       string            `json:"key"`
	SubKey    string            `json:"sub_key"`
	Values    map[string]string `json:"values"`
	Caller    models.Identity   `json:"caller"`
	PrevHash  string            `json:"prev_hash"`
}

// ComputeHash returns the hex SHA-256 of rec's canonical encoding. rec.Hash
// is ignored.
func ComputeHash(rec *models.AuditRecord) (string, error) {
	values := rec.Values
	if values == nil {
		values = map[string]string{}
	}
	data, err := json.Marshal(canonicalRecord{
		Sequence:  rec.Sequence,
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Kind:      rec.Kind,
		Ledger:    rec.Ledger,
		Key:       rec.Key,
		SubKey:    rec.SubKey,
		Values:    values,
		Caller:    rec.Caller,
		PrevHash:  rec.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode audit record %d: %w", rec.Sequence, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
