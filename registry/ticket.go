/*
ticket.go - Ticket number (numero_fiche) generation

PURPOSE:
  Produces the human-readable reference assigned to every operation at
  creation time: {prefix}-{YYYYMMDD}-{seq}, e.g. ATB-20240115-001.
  The sequence restarts at 1 each day per prefix and grows without bound
  (ATB-20240115-1000 is valid after 999).

ALLOCATION:
  NextTicket scans the store for the highest existing ticket of the same
  prefix+day and increments its trailing segment. The scan runs on the
  caller's store handle: the writer calls it inside its write transaction,
  so under SQLite's single-writer lock two requests cannot compute the
  same "next" sequence for a day.

DEGRADED MODE:
  When the scan itself fails, the generator falls back to the current Unix
  timestamp in place of the sequence. The ticket stays unique and keeps the
  prefix-date structure but loses the small-counter readability; the
  fallback is logged at ERROR so it never happens silently.

SEE ALSO:
  - writer.go: the only caller on the write path
*/
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const ticketDateFormat = "20060102"

// TicketPrefix maps an operation category to its three-letter ticket prefix.
// Unknown categories get the generic OPR prefix.
func TicketPrefix(cat Category) string {
	switch cat {
	case CategoryAttribution:
		return "ATB"
	case CategoryRestitution:
		return "RST"
	case CategoryIncident:
		return "ICD"
	default:
		return "OPR"
	}
}

// NextTicket returns the next ticket number for the given category and day.
// It never fails: a store error switches to the timestamp fallback.
func NextTicket(ctx context.Context, src TicketSource, log *zap.Logger, cat Category, today time.Time) string {
	prefix := TicketPrefix(cat)
	day := today.Format(ticketDateFormat)

	last, err := src.LastTicket(ctx, prefix, today)
	if err != nil {
		log.Error("ticket sequence scan failed, using timestamp suffix",
			zap.String("prefix", prefix),
			zap.String("day", day),
			zap.Error(err))
		return fmt.Sprintf("%s-%s-%d", prefix, day, time.Now().Unix())
	}

	seq := 1
	if last != "" {
		if n, ok := trailingSequence(last); ok {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, day, seq)
}

// trailingSequence extracts the numeric segment after the last dash.
func trailingSequence(ticket string) (int, bool) {
	i := strings.LastIndexByte(ticket, '-')
	if i < 0 || i == len(ticket)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(ticket[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
