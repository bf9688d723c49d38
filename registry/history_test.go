package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sedima/asset-registry/registry"
)

// seedMixedHistory records an attribution of SN-100 followed by an incident
// mentioning the same serial.
func seedMixedHistory(t *testing.T) (*registry.Writer, registry.Store) {
	t.Helper()
	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	req := validHandover("SN-100")
	req.Lines[0].HandoverDate = "2024-01-10"
	_, err := w.CreateAttribution(ctx, req)
	require.NoError(t, err)

	_, err = w.CreateIncident(ctx, registry.IncidentRequest{
		ReporterName:   "Claire Moreau",
		ReporterPhone:  "0601020304",
		IncidentDate:   "2024-03-01",
		AffectedSerial: "SN-100",
		AffectedAssets: []string{"Laptop", "Chargeur"},
		Natures:        []string{"Ne demarre plus", "Batterie gonflee"},
	})
	require.NoError(t, err)

	return w, store
}

func TestSearchHistory_SerialMatchesBothKinds(t *testing.T) {
	// GIVEN: A handover and an incident referencing the same serial
	// WHEN: Filtering the history on that serial
	// THEN: Both rows come back, incident columns synthesized for display

	_, store := seedMixedHistory(t)

	rows, err := registry.SearchHistory(context.Background(), store, registry.HistoryFilter{Serial: "SN-100"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var incident, handover *registry.HistoryRow
	for i := range rows {
		switch rows[i].Category {
		case registry.CategoryIncident:
			incident = &rows[i]
		case registry.CategoryAttribution:
			handover = &rows[i]
		}
	}
	require.NotNil(t, incident)
	require.NotNil(t, handover)

	assert.Equal(t, "Martin Dupont", handover.EmployeeName)
	assert.Equal(t, "SN-100", handover.SerialNumber)
	assert.Equal(t, "Laptop", handover.EquipmentType)

	// The incident's serial resolved to the cataloged item, so its equipment
	// columns come from the joins, not the synthesized fallbacks.
	assert.Equal(t, "Claire Moreau", incident.EmployeeName)
	assert.Equal(t, "SN-100", incident.SerialNumber)
	assert.Equal(t, "Laptop", incident.EquipmentType)
	assert.Equal(t, "ThinkPad T14", incident.Model)
}

func TestSearchHistory_UnlinkedIncidentSynthesized(t *testing.T) {
	// GIVEN: An incident whose serial matches nothing in the catalog
	// WHEN: Filtering the history on that serial
	// THEN: The display columns come from the incident's own fields

	w, store := newTestWriter(t)
	ctx := context.Background()

	_, err := w.CreateIncident(ctx, registry.IncidentRequest{
		ReporterName:   "Claire Moreau",
		ReporterPhone:  "0601020304",
		AffectedSerial: "SN-INCONNU",
		AffectedAssets: []string{"Laptop", "Chargeur"},
		Natures:        []string{"Ne demarre plus", "Batterie gonflee"},
	})
	require.NoError(t, err)

	rows, err := registry.SearchHistory(ctx, store, registry.HistoryFilter{Serial: "SN-INCONNU"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Claire Moreau", rows[0].EmployeeName)
	assert.Equal(t, "SN-INCONNU", rows[0].SerialNumber)
	assert.Equal(t, "Laptop, Chargeur", rows[0].EquipmentType)
	assert.Equal(t, "Ne demarre plus, Batterie gonflee", rows[0].Model)
}

func TestSearchHistory_OrderedMostRecentFirst(t *testing.T) {
	// GIVEN: Rows spanning several operation dates
	// WHEN: Searching without filters
	// THEN: Rows come back most recent operation date first

	_, store := seedMixedHistory(t)

	rows, err := registry.SearchHistory(context.Background(), store, registry.HistoryFilter{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)

	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].Date, rows[i].Date,
			"row %d (%s) should not be older than row %d (%s)", i-1, rows[i-1].Date, i, rows[i].Date)
	}
}

func TestSearchHistory_CategoryFilter(t *testing.T) {
	_, store := seedMixedHistory(t)

	rows, err := registry.SearchHistory(context.Background(), store, registry.HistoryFilter{Category: registry.CategoryIncident})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, registry.CategoryIncident, rows[0].Category)
}

func TestSearchHistory_EmployeeMatchesReporter(t *testing.T) {
	// GIVEN: An incident whose reporter is not a linked employee
	// WHEN: Filtering the history on the reporter's name
	// THEN: The incident row matches through declarant_nom

	_, store := seedMixedHistory(t)

	rows, err := registry.SearchHistory(context.Background(), store, registry.HistoryFilter{Employee: "Moreau"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, registry.CategoryIncident, rows[0].Category)
}

func TestSearchHistory_DateRange(t *testing.T) {
	_, store := seedMixedHistory(t)

	rows, err := registry.SearchHistory(context.Background(), store, registry.HistoryFilter{
		DateFrom: "2024-02-01",
		DateTo:   "2024-03-31",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03-01", rows[0].Date)
}
