package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
)

// Fingerprint is a SHA-256 digest over the full content of a viral-load
// dataset: columns, and for each record its index, date, site, reading and raw
// cells. Equal content always yields the same fingerprint.
func Fingerprint(ds ViralLoadDataset) string {
	h := sha256.New()
	writeStrings(h, ds.Columns)
	writeInt(h, int64(len(ds.Records)))
	for _, r := range ds.Records {
		writeInt(h, int64(r.Index))
		writeInt(h, r.CollectionDate.Unix())
		writeStrings(h, []string{r.CollectionSite})
		if r.ViralLoadN1.Valid {
			writeInt(h, 1)
			writeInt(h, int64(math.Float64bits(r.ViralLoadN1.Value)))
		} else {
			writeInt(h, 0)
		}
		writeStrings(h, r.Cells)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID produces a deterministic ID for a viral-load record so downstream
// consumers can upsert idempotently when the same sheet is published again.
func RecordID(r ViralLoadRecord) string {
	input := fmt.Sprintf("%s|%s|%d", r.CollectionSite, r.CollectionDate.Format(DateLayout), r.Index)
	sum := sha256.Sum256([]byte(input))
	return "vl-" + hex.EncodeToString(sum[:8])
}

// writeStrings length-prefixes every value so ["ab","c"] and ["a","bc"] differ.
func writeStrings(h hash.Hash, values []string) {
	writeInt(h, int64(len(values)))
	for _, v := range values {
		writeInt(h, int64(len(v)))
		h.Write([]byte(v))
	}
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}
