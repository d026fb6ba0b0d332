package pipeline

import (
	"log"
	"os"

	"github.com/google/uuid"
)

// newRunLogger returns a logger prefixed with a short correlation id so
// that concurrent backfill/daemon/build-bars runs over different pairs
// (or disjoint windows of the same pair) can be told apart in combined
// log output.
func newRunLogger(op string) *log.Logger {
	id := uuid.New().String()[:8]
	return log.New(os.Stderr, "["+op+" "+id+"] ", log.LstdFlags)
}
