package idhash

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

var alertSeq atomic.Int64

// NewAlertID generates a globally unique alert ID: a monotonic counter
// (unique within this process) concatenated with a random suffix (unique
// across processes sharing the same counter start, e.g. after a restart).
func NewAlertID() string {
	seq := alertSeq.Add(1)

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// the counter alone rather than panic on ID generation.
		return fmt.Sprintf("alert-%d", seq)
	}
	return fmt.Sprintf("alert-%d-%s", seq, hex.EncodeToString(buf[:]))
}
