/*
writer.go - Operation writer

PURPOSE:
  Orchestrates one inbound write request end to end:

    VALIDATING -> RESOLVING_EMPLOYEE -> PROCESSING_EQUIPMENT_LINES (loop)
               -> WRITING_SIGNATURES -> DONE

  with ABORTED reachable from any step on first error.

ATOMICITY:
  Everything after validation runs inside a single store transaction:
  resolver writes, the operation rows and the three signature rows commit
  together or not at all. A failure on line 2 of 3 leaves no trace of
  lines 1 and 2. (The legacy service committed each statement
  independently; that partial-failure behavior is a defect, not a
  contract, and is deliberately not preserved.)

TICKETS:
  One ticket number is generated per request, before the equipment loop,
  and shared by every operation row the request creates. Generation runs
  inside the same transaction, which serializes allocation per
  category+day under SQLite's write lock.

SIGNATURES:
  Exactly three signature rows (redaction, validation, destinataire) are
  written per attribution/restitution request, all referencing the FIRST
  operation row created, even when the request carried several equipment
  lines.

INCIDENTS:
  Incidents require only the reporter name and phone. Employee and
  equipment linkage is best-effort: a failed resolution is logged at WARN
  and the incident is recorded unlinked. This mirrors the legacy behavior
  but makes the degradation observable instead of silent.

SEE ALSO:
  - resolver.go: natural-key resolution used at each step
  - ticket.go: numero_fiche generation
*/
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const dateFormat = "2006-01-02"

// Writer creates attribution, restitution and incident records.
type Writer struct {
	store TxStore
	log   *zap.Logger
	now   func() time.Time
}

// NewWriter returns a Writer backed by the given store.
func NewWriter(store TxStore, log *zap.Logger) *Writer {
	return &Writer{store: store, log: log, now: time.Now}
}

// =============================================================================
// ATTRIBUTION / RESTITUTION
// =============================================================================

// CreateAttribution records the handout of one or more equipment items to an
// employee. Every touched equipment row ends up attribue.
func (w *Writer) CreateAttribution(ctx context.Context, req HandoverRequest) (*WriteResult, error) {
	return w.createHandover(ctx, CategoryAttribution, req)
}

// CreateRestitution records the return of one or more equipment items.
// Every touched equipment row ends up disponible. Equipment missing from the
// catalog is created on the fly rather than rejected, so restituting an item
// that was never formally attributed still works.
func (w *Writer) CreateRestitution(ctx context.Context, req HandoverRequest) (*WriteResult, error) {
	return w.createHandover(ctx, CategoryRestitution, req)
}

func (w *Writer) createHandover(ctx context.Context, cat Category, req HandoverRequest) (*WriteResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	status := StatusAttribue
	if cat == CategoryRestitution {
		status = StatusDisponible
	}

	var result WriteResult
	err := w.store.WithTx(ctx, func(s Store) error {
		dept, err := ResolveDepartment(ctx, s, req.Department)
		if err != nil {
			return err
		}
		employeeID, err := ResolveEmployee(ctx, s, req.EmployeeName, dept.ID)
		if err != nil {
			return err
		}

		today := w.now()
		ticket := NextTicket(ctx, s, w.log, cat, today)

		var ids []int64
		for _, line := range req.Lines {
			typeID, err := ResolveEquipmentType(ctx, s, line.Type)
			if err != nil {
				return err
			}
			equipmentID, err := ResolveEquipment(ctx, s, line, typeID, status)
			if err != nil {
				return err
			}

			opID, err := s.InsertOperation(ctx, Operation{
				TicketNumber: ticket,
				Category:     cat,
				EmployeeID:   &employeeID,
				EquipmentID:  &equipmentID,
				Date:         today.Format(dateFormat),
				HandoverDate: line.HandoverDate,
				ReturnDate:   line.ReturnDate,
				Reason:       req.Reason,
			})
			if err != nil {
				return err
			}
			ids = append(ids, opID)
		}

		if err := w.writeSignatures(ctx, s, ids[0], req); err != nil {
			return err
		}

		result = WriteResult{OperationIDs: ids, TicketNumber: ticket}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("handover recorded",
		zap.String("type_operation", string(cat)),
		zap.String("numero_fiche", result.TicketNumber),
		zap.Int("lignes", len(result.OperationIDs)))
	return &result, nil
}

// writeSignatures inserts the three signer rows against the first operation id.
func (w *Writer) writeSignatures(ctx context.Context, s Store, operationID int64, req HandoverRequest) error {
	blocks := []struct {
		role  SignatureRole
		block SignerBlock
		image string
	}{
		{RoleRedaction, req.Redaction, req.Signatures.Redaction},
		{RoleValidation, req.Validation, req.Signatures.Validation},
		{RoleDestinataire, req.Destinataire, req.Signatures.Destinataire},
	}
	for _, b := range blocks {
		_, err := s.InsertSignature(ctx, Signature{
			OperationID: operationID,
			Role:        b.role,
			Name:        b.block.Name,
			Title:       b.block.Title,
			Date:        b.block.Date,
			Image:       b.image,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// INCIDENTS
// =============================================================================

// CreateIncident records a standalone incident report.
func (w *Writer) CreateIncident(ctx context.Context, req IncidentRequest) (*IncidentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var result IncidentResult
	err := w.store.WithTx(ctx, func(s Store) error {
		today := w.now()
		ticket := NextTicket(ctx, s, w.log, CategoryIncident, today)

		var employeeID *int64
		if req.Department != "" {
			if id, err := w.linkEmployee(ctx, s, req); err != nil {
				w.log.Warn("incident employee linkage failed, recording unlinked",
					zap.String("declarant", req.ReporterName),
					zap.String("service", req.Department),
					zap.Error(err))
			} else {
				employeeID = &id
			}
		}

		var equipmentID *int64
		if req.AffectedSerial != "" {
			eq, err := s.GetEquipmentBySerial(ctx, req.AffectedSerial)
			if err != nil {
				w.log.Warn("incident equipment linkage failed, recording unlinked",
					zap.String("numero_serie", req.AffectedSerial),
					zap.Error(err))
			} else if eq != nil {
				equipmentID = &eq.ID
			}
		}

		date := req.IncidentDate
		if date == "" {
			date = today.Format(dateFormat)
		}

		opID, err := s.InsertOperation(ctx, Operation{
			TicketNumber:    ticket,
			Category:        CategoryIncident,
			EmployeeID:      employeeID,
			EquipmentID:     equipmentID,
			Date:            date,
			ReporterName:    req.ReporterName,
			ReporterPhone:   req.ReporterPhone,
			ReporterEmail:   req.ReporterEmail,
			ReporterRole:    req.ReporterRole,
			AffectedSerial:  req.AffectedSerial,
			AffectedAssets:  req.AffectedAssets,
			IncidentNatures: req.Natures,
			Notes:           req.Notes,
			SignatureImage:  req.SignatureImage,
		})
		if err != nil {
			return err
		}

		result = IncidentResult{OperationID: opID, TicketNumber: ticket}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("incident recorded",
		zap.String("numero_fiche", result.TicketNumber),
		zap.Int64("operation_id", result.OperationID))
	return &result, nil
}

// linkEmployee resolves the reporter to an employee row. Unlike the handover
// path, the incident path auto-creates the department.
func (w *Writer) linkEmployee(ctx context.Context, s Store, req IncidentRequest) (int64, error) {
	deptID, err := ResolveOrCreateDepartment(ctx, s, req.Department)
	if err != nil {
		return 0, err
	}
	return ResolveEmployee(ctx, s, req.ReporterName, deptID)
}

// =============================================================================
// REQUEST VALIDATION
// =============================================================================

func (r HandoverRequest) validate() error {
	if strings.TrimSpace(r.EmployeeName) == "" {
		return &ValidationError{Field: "nom"}
	}
	if strings.TrimSpace(r.Department) == "" {
		return &ValidationError{Field: "service"}
	}
	if len(r.Lines) == 0 {
		return &ValidationError{Field: "materiels"}
	}
	for i, line := range r.Lines {
		if strings.TrimSpace(line.Type) == "" {
			return &ValidationError{Field: fmt.Sprintf("materiels[%d].type", i)}
		}
		if strings.TrimSpace(line.Serial) == "" {
			return &ValidationError{Field: fmt.Sprintf("materiels[%d].serie", i)}
		}
	}
	signers := []struct {
		name  string
		block SignerBlock
	}{
		{"redaction", r.Redaction},
		{"validation", r.Validation},
		{"destinataire", r.Destinataire},
	}
	for _, s := range signers {
		if strings.TrimSpace(s.block.Name) == "" {
			return &ValidationError{Field: s.name + ".nom"}
		}
		if strings.TrimSpace(s.block.Title) == "" {
			return &ValidationError{Field: s.name + ".fonction"}
		}
		if strings.TrimSpace(s.block.Date) == "" {
			return &ValidationError{Field: s.name + ".date"}
		}
	}
	if r.Signatures.Redaction == "" {
		return &ValidationError{Field: "signatures.redaction"}
	}
	if r.Signatures.Validation == "" {
		return &ValidationError{Field: "signatures.validation"}
	}
	if r.Signatures.Destinataire == "" {
		return &ValidationError{Field: "signatures.destinataire"}
	}
	return nil
}

func (r IncidentRequest) validate() error {
	if strings.TrimSpace(r.ReporterName) == "" {
		return &ValidationError{Field: "declarant_nom"}
	}
	if strings.TrimSpace(r.ReporterPhone) == "" {
		return &ValidationError{Field: "telephone"}
	}
	return nil
}
