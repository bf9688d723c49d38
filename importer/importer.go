/*
Package importer loads reference data into the registry from CSV exports.

PURPOSE:
  Bulk seeding of departments, employees and equipment from the HR and
  inventory exports. Each file import runs as one transaction and is
  recorded in import_runs with a uuid for audit.

INPUT FORMATS (CSV with header row):
  services:   nom, description
  employes:   nom, service, email, telephone
  materiels:  type, modele, serie, serviceAchat, prixAchat

NORMALIZATION:
  Department names in the HR export are free text. Names are matched
  against the canonical list after accent stripping and case folding, with
  an alias table for the historical spellings (DSI, Informatique, ...).
  Unmatched names are created as-is rather than dropped.

SEE ALSO:
  - cmd/importer: the CLI entry point
  - registry/resolver.go: the lookup-or-create primitives reused here
*/
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sedima/asset-registry/registry"
)

// serviceAliases maps historical free-text spellings (accent-stripped,
// lowercased) to the canonical department name.
var serviceAliases = map[string]string{
	"dsi":                            "Informatique",
	"informatique":                   "Informatique",
	"service informatique":           "Informatique",
	"it":                             "Informatique",
	"rh":                             "Ressources Humaines",
	"ressources humaines":            "Ressources Humaines",
	"drh":                            "Ressources Humaines",
	"compta":                         "Comptabilite",
	"comptabilite":                   "Comptabilite",
	"finance":                        "Comptabilite",
	"direction generale":             "Direction",
	"direction":                      "Direction",
	"dg":                             "Direction",
	"commercial":                     "Commercial",
	"service commercial":             "Commercial",
	"ventes":                         "Commercial",
	"logistique":                     "Logistique",
	"technique":                      "Technique",
	"services techniques":            "Technique",
	"maintenance":                    "Technique",
	"accueil":                        "Accueil",
	"secretariat":                    "Accueil",
}

// Result summarizes one file import.
type Result struct {
	RunID    string
	Imported int
	Skipped  int
}

// Importer loads CSV exports into the store.
type Importer struct {
	store registry.TxStore
	log   *zap.Logger
	newID func() string
}

// New returns an Importer. newID produces the uuid recorded per run.
func New(store registry.TxStore, log *zap.Logger, newID func() string) *Importer {
	return &Importer{store: store, log: log, newID: newID}
}

// =============================================================================
// SERVICES
// =============================================================================

// ImportServices loads the department list. Expected columns: nom,
// description. Existing departments get their description refreshed; rows
// missing nom are skipped and counted.
func (im *Importer) ImportServices(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := readCSV(r, []string{"nom"})
	if err != nil {
		return nil, err
	}

	result := Result{RunID: im.newID()}
	err = im.store.WithTx(ctx, func(s registry.Store) error {
		for _, row := range rows {
			name := CanonicalService(row["nom"])
			if name == "" {
				result.Skipped++
				continue
			}

			deptID, err := registry.ResolveOrCreateDepartment(ctx, s, name)
			if err != nil {
				return fmt.Errorf("service %q: %w", name, err)
			}
			if desc := strings.TrimSpace(row["description"]); desc != "" {
				if err := s.UpdateDepartmentDescription(ctx, deptID, desc); err != nil {
					return fmt.Errorf("service %q: %w", name, err)
				}
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ImportEmployees loads an HR export. Expected columns: nom, service, email,
// telephone. Rows missing nom or service are skipped and counted.
func (im *Importer) ImportEmployees(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := readCSV(r, []string{"nom", "service"})
	if err != nil {
		return nil, err
	}

	result := Result{RunID: im.newID()}
	err = im.store.WithTx(ctx, func(s registry.Store) error {
		for _, row := range rows {
			name := strings.TrimSpace(row["nom"])
			service := CanonicalService(row["service"])
			if name == "" || service == "" {
				result.Skipped++
				continue
			}

			deptID, err := registry.ResolveOrCreateDepartment(ctx, s, service)
			if err != nil {
				return fmt.Errorf("service %q: %w", service, err)
			}
			empID, err := registry.ResolveEmployee(ctx, s, name, deptID)
			if err != nil {
				return fmt.Errorf("employe %q: %w", name, err)
			}

			email := strings.TrimSpace(row["email"])
			tel := strings.TrimSpace(row["telephone"])
			if email != "" || tel != "" {
				if err := s.UpdateEmployeeContact(ctx, empID, email, tel); err != nil {
					return fmt.Errorf("employe %q: %w", name, err)
				}
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// EQUIPMENT
// =============================================================================

// ImportEquipment loads an inventory export. Expected columns: type, modele,
// serie, serviceAchat, prixAchat. Imported items start disponible. Rows
// missing type or serie are skipped and counted.
func (im *Importer) ImportEquipment(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := readCSV(r, []string{"type", "serie"})
	if err != nil {
		return nil, err
	}

	result := Result{RunID: im.newID()}
	err = im.store.WithTx(ctx, func(s registry.Store) error {
		for _, row := range rows {
			typeName := strings.TrimSpace(row["type"])
			serial := strings.TrimSpace(row["serie"])
			if typeName == "" || serial == "" {
				result.Skipped++
				continue
			}

			typeID, err := registry.ResolveEquipmentType(ctx, s, typeName)
			if err != nil {
				return fmt.Errorf("type %q: %w", typeName, err)
			}

			price := decimal.Zero
			if raw := strings.TrimSpace(row["prixAchat"]); raw != "" {
				p, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
				if err != nil {
					im.log.Warn("unparseable price, keeping zero",
						zap.String("serie", serial),
						zap.String("prix", raw))
				} else {
					price = p
				}
			}

			line := registry.EquipmentLine{
				Type:          typeName,
				Model:         strings.TrimSpace(row["modele"]),
				Serial:        serial,
				PurchaseDept:  strings.TrimSpace(row["serviceAchat"]),
				PurchasePrice: price,
			}
			if _, err := registry.ResolveEquipment(ctx, s, line, typeID, registry.StatusDisponible); err != nil {
				return fmt.Errorf("serie %q: %w", serial, err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// SERVICE NAME NORMALIZATION
// =============================================================================

// CanonicalService maps a free-text department name to its canonical form.
// Matching is accent- and case-insensitive; unknown names are returned
// trimmed but otherwise untouched.
func CanonicalService(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	key := strings.ToLower(stripAccents(trimmed))
	if canonical, ok := serviceAliases[key]; ok {
		return canonical
	}
	return trimmed
}

// stripAccents removes combining marks: "Comptabilité" -> "Comptabilite".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// =============================================================================
// CSV READING
// =============================================================================

// readCSV parses a headered CSV into column-name-keyed rows. Returns an error
// when a required column is missing from the header.
func readCSV(r io.Reader, required []string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("lecture en-tete: %w", err)
	}
	cols := make(map[int]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		cols[i] = name
		seen[name] = true
	}
	for _, req := range required {
		if !seen[req] {
			return nil, fmt.Errorf("colonne manquante: %s", req)
		}
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(record))
		for i, v := range record {
			if name, ok := cols[i]; ok {
				row[name] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
