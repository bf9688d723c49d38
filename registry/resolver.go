/*
resolver.go - Lookup-or-create on natural keys

PURPOSE:
  Resolves business identifiers (department name, employee name+department,
  equipment type name, equipment serial number) to durable row ids,
  creating the row when absent and updating mutable fields when present.

PATTERN:
  Every resolver is an explicit two-step: SELECT by natural key, INSERT on
  miss. A unique-constraint failure on the insert means another writer
  created the row between the two steps; the resolver retries the lookup
  once instead of failing. No engine-specific conflict clauses.

FAILURE:
  Any store failure aborts the resolver with the underlying error. There is
  no partial state to clean up: resolvers run on the caller's store handle,
  which on the write path is a transaction.

SEE ALSO:
  - writer.go: drives these during request processing
  - cmd/importer: drives these during bulk import
*/
package registry

import (
	"context"
	"errors"
)

// ResolveDepartment resolves a department by name, without creating it.
// The attribution/restitution path never auto-creates departments; only the
// incident path and bulk import do.
func ResolveDepartment(ctx context.Context, s Store, name string) (*Department, error) {
	d, err := s.GetDepartmentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &NotFoundError{Kind: "service", Key: name}
	}
	return d, nil
}

// ResolveOrCreateDepartment resolves a department by name, creating it when
// absent.
func ResolveOrCreateDepartment(ctx context.Context, s Store, name string) (int64, error) {
	d, err := s.GetDepartmentByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if d != nil {
		return d.ID, nil
	}

	id, err := s.InsertDepartment(ctx, Department{Name: name})
	if errors.Is(err, ErrDuplicateKey) {
		d, err = s.GetDepartmentByName(ctx, name)
		if err != nil {
			return 0, err
		}
		return d.ID, nil
	}
	return id, err
}

// ResolveEmployee resolves an employee by (name, department), creating the
// row when absent. Contact fields are not touched here; only bulk import
// updates them.
func ResolveEmployee(ctx context.Context, s Store, name string, departmentID int64) (int64, error) {
	e, err := s.GetEmployee(ctx, name, departmentID)
	if err != nil {
		return 0, err
	}
	if e != nil {
		return e.ID, nil
	}

	id, err := s.InsertEmployee(ctx, Employee{Name: name, DepartmentID: departmentID})
	if errors.Is(err, ErrDuplicateKey) {
		e, err = s.GetEmployee(ctx, name, departmentID)
		if err != nil {
			return 0, err
		}
		return e.ID, nil
	}
	return id, err
}

// ResolveEquipmentType resolves an equipment type by name, creating it when
// absent. The legacy service silently dropped equipment rows whose type was
// missing from the catalog; creating the type instead keeps the operation
// row consistent.
func ResolveEquipmentType(ctx context.Context, s Store, name string) (int64, error) {
	t, err := s.GetEquipmentTypeByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if t != nil {
		return t.ID, nil
	}

	id, err := s.InsertEquipmentType(ctx, name)
	if errors.Is(err, ErrDuplicateKey) {
		t, err = s.GetEquipmentTypeByName(ctx, name)
		if err != nil {
			return 0, err
		}
		return t.ID, nil
	}
	return id, err
}

// ResolveEquipment resolves an equipment item by serial number, creating the
// row when absent and updating mutable fields when present. The target status
// is decided by the calling operation (attribue for attribution, disponible
// for restitution); the resolver does not own status semantics.
func ResolveEquipment(ctx context.Context, s Store, line EquipmentLine, typeID int64, status Status) (int64, error) {
	eq, err := s.GetEquipmentBySerial(ctx, line.Serial)
	if err != nil {
		return 0, err
	}
	if eq != nil {
		return eq.ID, updateEquipment(ctx, s, eq, line, typeID, status)
	}

	fresh := Equipment{
		TypeID:        typeID,
		Model:         line.Model,
		SerialNumber:  line.Serial,
		PurchaseDept:  line.PurchaseDept,
		PurchaseDate:  line.HandoverDate,
		PurchasePrice: line.PurchasePrice,
		Status:        status,
	}
	id, err := s.InsertEquipment(ctx, fresh)
	if errors.Is(err, ErrDuplicateKey) {
		eq, err = s.GetEquipmentBySerial(ctx, line.Serial)
		if err != nil {
			return 0, err
		}
		return eq.ID, updateEquipment(ctx, s, eq, line, typeID, status)
	}
	return id, err
}

func updateEquipment(ctx context.Context, s Store, eq *Equipment, line EquipmentLine, typeID int64, status Status) error {
	eq.TypeID = typeID
	eq.Status = status
	if line.Model != "" {
		eq.Model = line.Model
	}
	if line.PurchaseDept != "" {
		eq.PurchaseDept = line.PurchaseDept
	}
	if !line.PurchasePrice.IsZero() {
		eq.PurchasePrice = line.PurchasePrice
	}
	return s.UpdateEquipment(ctx, *eq)
}
