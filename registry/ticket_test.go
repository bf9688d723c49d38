package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sedima/asset-registry/registry"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeTicketSource returns a canned last ticket (or error) per call.
type fakeTicketSource struct {
	last string
	err  error
}

func (f fakeTicketSource) LastTicket(ctx context.Context, prefix string, day time.Time) (string, error) {
	return f.last, f.err
}

var jan15 = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// =============================================================================
// SEQUENCE TESTS
// =============================================================================

func TestNextTicket_FirstOfDay(t *testing.T) {
	// GIVEN: No ticket exists for this prefix+day
	// WHEN: Generating a ticket
	// THEN: The sequence starts at 001

	got := registry.NextTicket(context.Background(), fakeTicketSource{}, zap.NewNop(), registry.CategoryAttribution, jan15)
	assert.Equal(t, "ATB-20240115-001", got)
}

func TestNextTicket_IncrementsExisting(t *testing.T) {
	// GIVEN: The day's highest ticket ends in 007
	// WHEN: Generating a ticket
	// THEN: The next one ends in 008

	src := fakeTicketSource{last: "ATB-20240115-007"}
	got := registry.NextTicket(context.Background(), src, zap.NewNop(), registry.CategoryAttribution, jan15)
	assert.Equal(t, "ATB-20240115-008", got)
}

func TestNextTicket_GrowsPastThreeDigits(t *testing.T) {
	// GIVEN: 999 tickets already allocated today
	// WHEN: Generating the thousandth
	// THEN: The sequence keeps growing, without zero-padding truncation

	src := fakeTicketSource{last: "RST-20240115-999"}
	got := registry.NextTicket(context.Background(), src, zap.NewNop(), registry.CategoryRestitution, jan15)
	assert.Equal(t, "RST-20240115-1000", got)
}

func TestNextTicket_UnparseableLastTicket(t *testing.T) {
	// GIVEN: The stored ticket has a non-numeric tail (legacy data)
	// WHEN: Generating a ticket
	// THEN: The sequence restarts at 001 instead of failing

	src := fakeTicketSource{last: "ICD-20240115-brouillon"}
	got := registry.NextTicket(context.Background(), src, zap.NewNop(), registry.CategoryIncident, jan15)
	assert.Equal(t, "ICD-20240115-001", got)
}

func TestNextTicket_ScanErrorFallsBackToTimestamp(t *testing.T) {
	// GIVEN: The sequence scan fails
	// WHEN: Generating a ticket
	// THEN: The ticket keeps the prefix-date structure with a timestamp tail

	src := fakeTicketSource{err: errors.New("database is locked")}
	got := registry.NextTicket(context.Background(), src, zap.NewNop(), registry.CategoryAttribution, jan15)

	assert.True(t, strings.HasPrefix(got, "ATB-20240115-"), "got %q", got)
	tail := strings.TrimPrefix(got, "ATB-20240115-")
	assert.Greater(t, len(tail), 3, "timestamp tail expected, got %q", tail)
}

func TestTicketPrefix_PerCategory(t *testing.T) {
	assert.Equal(t, "ATB", registry.TicketPrefix(registry.CategoryAttribution))
	assert.Equal(t, "RST", registry.TicketPrefix(registry.CategoryRestitution))
	assert.Equal(t, "ICD", registry.TicketPrefix(registry.CategoryIncident))
	assert.Equal(t, "OPR", registry.TicketPrefix(registry.Category("autre")))
}
