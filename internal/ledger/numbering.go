package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	creditNumberPrefix = "CR"
	creditNumberWidth  = 6

	// maxNumberAttempts bounds credit number allocation, counting both numbers found
	// taken by the existence check and inserts rejected by the unique index.
	maxNumberAttempts = 5
)

func creditNumberPrefixFor(t time.Time) string {
	return fmt.Sprintf("%s-%d-", creditNumberPrefix, t.Year())
}

func formatCreditNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%0*d", prefix, creditNumberWidth, seq)
}

// sequenceOf extracts the numeric tail of a credit number carrying prefix.
// Unparseable or foreign numbers count as zero.
func sequenceOf(prefix, number string) int64 {
	if !strings.HasPrefix(number, prefix) {
		return 0
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}
