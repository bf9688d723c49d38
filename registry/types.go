/*
Package registry implements the core of the IT asset registry: handing
equipment out to employees (attribution), taking it back (restitution),
and recording standalone incident reports.

PURPOSE:
  Domain types and storage interfaces shared by the ticket generator,
  the entity resolvers and the operation writer. The SQL lives in
  store/sqlite; this package only talks to the Store interfaces.

VOCABULARY:
  The database schema and the JSON API predate this service and are in
  French (services, employes, materiels, numero_fiche...). Go identifiers
  are English; column and JSON names keep the legacy French.

KEY TYPES:
  Department, Employee, EquipmentType, Equipment: catalog rows, each with
  a natural key (name, name+department, name, serial number).

  Operation:  one attribution/restitution line or one incident report.
  Signature:  signer block attached to an operation (three per request).

  HandoverRequest / IncidentRequest: validated write requests.
  WriteResult: created operation ids plus the shared ticket number.

SEE ALSO:
  - writer.go: orchestration and the per-request state machine
  - resolver.go: lookup-or-create on natural keys
  - ticket.go: numero_fiche generation
  - store/sqlite: the Store implementation
*/
package registry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Category is the kind of operation recorded in the registry.
type Category string

const (
	CategoryAttribution Category = "attribution"
	CategoryRestitution Category = "restitution"
	CategoryIncident    Category = "incident"
)

// Status is the lifecycle state of an equipment item.
type Status string

const (
	StatusAttribue   Status = "attribue"   // handed out to an employee
	StatusDisponible Status = "disponible" // back in stock
)

// SignatureRole tags one of the three signer blocks of a request.
type SignatureRole string

const (
	RoleRedaction    SignatureRole = "redaction"
	RoleValidation   SignatureRole = "validation"
	RoleDestinataire SignatureRole = "destinataire"
)

// =============================================================================
// CATALOG ROWS
// =============================================================================

// Department is a company service (natural key: name).
type Department struct {
	ID          int64
	Name        string
	Description string
}

// Employee belongs to exactly one department. The natural key is
// (name, department): the same name in two departments is two employees.
type Employee struct {
	ID           int64
	Name         string
	DepartmentID int64
	Email        string
	Telephone    string
}

// EquipmentType is reference data ("Laptop", "Ecran", ...).
type EquipmentType struct {
	ID   int64
	Name string
}

// Equipment is a physical item identified by its serial number.
// Type, model and purchase metadata are mutable attributes of the row.
type Equipment struct {
	ID             int64
	TypeID         int64
	Model          string
	SerialNumber   string
	PurchaseDept   string
	PurchaseDate   string // YYYY-MM-DD, pass-through from forms
	PurchasePrice  decimal.Decimal
	Status         Status
}

// =============================================================================
// OPERATIONS AND SIGNATURES
// =============================================================================

// Operation is one row of the registry. Attribution/restitution rows link an
// employee and an equipment item; incident rows carry the reporter fields
// instead and may have null linkage. Rows are immutable once created:
// corrections are new rows.
type Operation struct {
	ID           int64
	TicketNumber string
	Category     Category
	EmployeeID   *int64
	EquipmentID  *int64
	Date         string // operation date, YYYY-MM-DD
	HandoverDate string // date_remise, optional
	ReturnDate   string // date_restitution, optional
	Reason       string

	// Incident-only fields.
	ReporterName    string
	ReporterPhone   string
	ReporterEmail   string
	ReporterRole    string
	AffectedSerial  string
	AffectedAssets  []string // JSON-encoded in storage
	IncidentNatures []string // JSON-encoded in storage
	Notes           string
	SignatureImage  string // embedded PNG data URL

	CreatedAt time.Time
}

// Signature is one signer block persisted against an operation. Exactly three
// are written per attribution/restitution request, all referencing the first
// operation row created by that request.
type Signature struct {
	ID          int64
	OperationID int64
	Role        SignatureRole
	Name        string
	Title       string
	Date        string
	Image       string
}

// =============================================================================
// WRITE REQUESTS
// =============================================================================

// SignerBlock identifies one of the three signers of a handover form.
type SignerBlock struct {
	Name  string
	Title string
	Date  string
}

// SignatureImages carries the three embedded signature PNGs.
type SignatureImages struct {
	Redaction    string
	Validation   string
	Destinataire string
}

// EquipmentLine is one equipment row of a handover form.
type EquipmentLine struct {
	Type          string
	Model         string
	Serial        string
	PurchaseDept  string
	PurchasePrice decimal.Decimal
	HandoverDate  string
	ReturnDate    string
}

// HandoverRequest is a validated attribution or restitution form.
type HandoverRequest struct {
	EmployeeName string
	Department   string
	Lines        []EquipmentLine
	Reason       string

	Redaction    SignerBlock
	Validation   SignerBlock
	Destinataire SignerBlock
	Signatures   SignatureImages
}

// IncidentRequest is a validated incident report. Only the reporter name and
// phone are required; everything else is optional.
type IncidentRequest struct {
	ReporterName   string
	ReporterPhone  string
	ReporterEmail  string
	ReporterRole   string
	Department     string
	IncidentDate   string
	AffectedSerial string
	AffectedAssets []string
	Natures        []string
	Notes          string
	SignatureImage string
}

// WriteResult is returned on a successful attribution/restitution.
type WriteResult struct {
	OperationIDs []int64
	TicketNumber string
}

// IncidentResult is returned on a successful incident report.
type IncidentResult struct {
	OperationID  int64
	TicketNumber string
}

// OperationDetail is an Operation joined with its display names, as served by
// the detail endpoints.
type OperationDetail struct {
	Operation
	EmployeeName  string
	ServiceName   string
	EquipmentType string
	Model         string
	SerialNumber  string
}

// =============================================================================
// HISTORY (read path)
// =============================================================================

// HistoryFilter is the optional filter set of the history endpoint.
// Zero values mean "no filter".
type HistoryFilter struct {
	Employee  string   // substring; matches linked employee OR incident reporter
	Service   string   // exact department name
	Type      string   // equipment type substring
	Serial    string   // substring; matches equipment serial OR incident serial
	DateFrom  string   // YYYY-MM-DD inclusive
	DateTo    string   // YYYY-MM-DD inclusive
	Category  Category // empty = all
}

// HistoryRow is the unified projection over handover and incident rows.
// For incidents the equipment columns are synthesized from the JSON-encoded
// asset list and the free-form serial field (see history.go).
type HistoryRow struct {
	ID            int64
	TicketNumber  string
	Category      Category
	Date          string
	HandoverDate  string
	ReturnDate    string
	EmployeeName  string
	ServiceName   string
	EquipmentType string
	Model         string
	SerialNumber  string

	// Raw incident fields, consumed by Synthesize.
	ReporterName   string
	AffectedSerial string
	AffectedAssets string // JSON as stored
	Natures        string // JSON as stored
}

// =============================================================================
// STORAGE INTERFACES
// =============================================================================

// TicketSource is the slice of the store the ticket generator needs.
type TicketSource interface {
	// LastTicket returns the lexicographically greatest ticket number matching
	// {prefix}-{YYYYMMDD}-* for the given day, or "" when none exists.
	LastTicket(ctx context.Context, prefix string, day time.Time) (string, error)
}

// Store is the persistence surface of the registry. store/sqlite implements
// it twice: once on the shared *sql.DB and once bound to an open transaction
// (see TxStore).
type Store interface {
	TicketSource

	// Catalog.
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartmentByName(ctx context.Context, name string) (*Department, error)
	InsertDepartment(ctx context.Context, d Department) (int64, error)
	UpdateDepartmentDescription(ctx context.Context, id int64, description string) error

	ListEquipmentTypes(ctx context.Context) ([]EquipmentType, error)
	GetEquipmentTypeByName(ctx context.Context, name string) (*EquipmentType, error)
	InsertEquipmentType(ctx context.Context, name string) (int64, error)

	GetEmployee(ctx context.Context, name string, departmentID int64) (*Employee, error)
	InsertEmployee(ctx context.Context, e Employee) (int64, error)
	UpdateEmployeeContact(ctx context.Context, id int64, email, telephone string) error

	GetEquipmentBySerial(ctx context.Context, serial string) (*Equipment, error)
	InsertEquipment(ctx context.Context, e Equipment) (int64, error)
	UpdateEquipment(ctx context.Context, e Equipment) error

	// Operations.
	InsertOperation(ctx context.Context, op Operation) (int64, error)
	InsertSignature(ctx context.Context, sig Signature) (int64, error)
	GetOperation(ctx context.Context, id int64) (*OperationDetail, error)
	GetSignatures(ctx context.Context, operationID int64) ([]Signature, error)
	SearchHistory(ctx context.Context, f HistoryFilter) ([]HistoryRow, error)
}

// TxStore is a Store that can open a transactional scope. The callback
// receives a Store bound to the transaction; returning an error rolls
// everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
