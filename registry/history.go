/*
history.go - Unified history read path

PURPOSE:
  Runs the filtered history search and post-processes incident rows so the
  admin UI can render one homogeneous table. Handover rows come out of the
  store with real equipment columns (via joins); incident rows store their
  asset references as JSON-encoded label lists and free-form serial text,
  which get flattened into the same display columns here.

ORDERING:
  Most recent operation date first, ties broken by descending id. The
  ordering is applied by the store query, not here.

SEE ALSO:
  - store/sqlite: filter-to-WHERE composition
  - api/handlers.go: the /api/historique endpoint
*/
package registry

import (
	"context"
	"encoding/json"
	"strings"
)

// SearchHistory runs the filter against the store and synthesizes the display
// columns of incident rows.
func SearchHistory(ctx context.Context, s Store, f HistoryFilter) ([]HistoryRow, error) {
	rows, err := s.SearchHistory(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].synthesize()
	}
	return rows, nil
}

// synthesize fills the equipment display columns of an incident row from its
// JSON-encoded asset list and free-form fields. Handover rows are untouched.
func (r *HistoryRow) synthesize() {
	if r.Category != CategoryIncident {
		return
	}
	if r.EmployeeName == "" {
		r.EmployeeName = r.ReporterName
	}
	if r.SerialNumber == "" {
		r.SerialNumber = r.AffectedSerial
	}
	if r.EquipmentType == "" {
		r.EquipmentType = joinJSONList(r.AffectedAssets)
	}
	if r.Model == "" {
		r.Model = joinJSONList(r.Natures)
	}
}

// joinJSONList renders a JSON-encoded string list as "a, b, c". Anything that
// does not parse is returned as-is; the legacy data contains a few plain
// comma-separated values predating the JSON encoding.
func joinJSONList(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return raw
	}
	return strings.Join(items, ", ")
}
