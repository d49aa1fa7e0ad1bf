package ledger

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// referencePrefix keeps references recognizable in logs and support tickets.
const referencePrefix = "TXN-"

// NewReference generates a transaction reference. ULIDs are sortable by
// creation time and collision-resistant; the unique index on the reference
// column is the backstop, with generation retried on conflict.
func NewReference() string {
	return referencePrefix + ulid.MustNew(ulid.Now(), rand.Reader).String()
}
