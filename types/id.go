package types

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// NewId builds a record id from a timestamp and a content hash. The nanosecond
// prefix keeps ids of one room in chronological order under lexicographic
// comparison, the hash suffix distinguishes records created within the same
// nanosecond.
func NewId(ts time.Time, v interface{}) (string, error) {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%016x", ts.UnixNano(), h), nil
}
