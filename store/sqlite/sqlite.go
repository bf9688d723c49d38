/*
Package sqlite provides the SQLite-backed implementation of registry.TxStore.

PURPOSE:
  All SQL of the service lives here: schema, single-statement queries,
  last-insert-id retrieval and the transactional scope used by the
  operation writer. The same patterns apply to MySQL (the legacy engine) -
  only dialect details differ.

KEY TABLES:
  services:        departments, unique name
  types_materiel:  equipment type catalog, unique name
  employes:        unique (nom, service_id) - same name in two departments
                   is two employees
  materiels:       equipment items, unique numero_serie
  operations:      one row per handover line or incident report, immutable
  signatures:      three rows per handover request
  import_runs:     bulk-import audit trail

TRANSACTIONS:
  WithTx opens a transaction and hands the callback a Store bound to it.
  The connection string requests immediate-mode transactions, so the write
  lock is taken at BEGIN: ticket-number allocation and the lookup-or-create
  sequences inside a request cannot interleave with another writer.

UNIQUE CONSTRAINTS:
  Natural-key inserts map UNIQUE violations to registry.ErrDuplicateKey so
  resolvers can retry their lookup (see registry/resolver.go).

WAL MODE:
  The database is opened with WAL so readers are never blocked by the
  single writer.

USAGE:
  store, err := sqlite.New("./data/registry.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - registry/types.go: the Store/TxStore interfaces implemented here
  - registry/writer.go: the transactional caller
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sedima/asset-registry/registry"
)

// Store implements registry.TxStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS types_materiel (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS employes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL,
		service_id INTEGER NOT NULL REFERENCES services(id),
		email TEXT NOT NULL DEFAULT '',
		telephone TEXT NOT NULL DEFAULT '',
		UNIQUE(nom, service_id)
	);

	CREATE INDEX IF NOT EXISTS idx_employes_service
		ON employes(service_id);

	CREATE TABLE IF NOT EXISTS materiels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type_id INTEGER NOT NULL REFERENCES types_materiel(id),
		modele TEXT NOT NULL DEFAULT '',
		numero_serie TEXT NOT NULL UNIQUE,
		service_achat TEXT NOT NULL DEFAULT '',
		date_achat TEXT NOT NULL DEFAULT '',
		prix_achat TEXT NOT NULL DEFAULT '',
		statut TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_materiels_type
		ON materiels(type_id);

	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		numero_fiche TEXT NOT NULL,
		type_operation TEXT NOT NULL,
		employe_id INTEGER REFERENCES employes(id),
		materiel_id INTEGER REFERENCES materiels(id),
		date_operation TEXT NOT NULL,
		date_remise TEXT NOT NULL DEFAULT '',
		date_restitution TEXT NOT NULL DEFAULT '',
		motif TEXT NOT NULL DEFAULT '',
		declarant_nom TEXT NOT NULL DEFAULT '',
		declarant_telephone TEXT NOT NULL DEFAULT '',
		declarant_email TEXT NOT NULL DEFAULT '',
		declarant_poste TEXT NOT NULL DEFAULT '',
		numero_serie_actif TEXT NOT NULL DEFAULT '',
		materiel_touche TEXT NOT NULL DEFAULT '',
		natures TEXT NOT NULL DEFAULT '',
		autres_infos TEXT NOT NULL DEFAULT '',
		signature_png TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Ticket scan (prefix+day prefix match) and history ordering.
	CREATE INDEX IF NOT EXISTS idx_operations_numero_fiche
		ON operations(numero_fiche);
	CREATE INDEX IF NOT EXISTS idx_operations_date
		ON operations(date_operation DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_operations_employe
		ON operations(employe_id);
	CREATE INDEX IF NOT EXISTS idx_operations_materiel
		ON operations(materiel_id);

	CREATE TABLE IF NOT EXISTS signatures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL REFERENCES operations(id),
		type_signature TEXT NOT NULL,
		nom TEXT NOT NULL,
		fonction TEXT NOT NULL DEFAULT '',
		date_signature TEXT NOT NULL DEFAULT '',
		fichier_signature TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_signatures_operation
		ON signatures(operation_id);

	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		kind TEXT NOT NULL,
		rows_imported INTEGER NOT NULL,
		rows_skipped INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx; every query helper takes one
// so the same code serves the shared handle and an open transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL SCOPE (registry.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The Store handed to fn is
// bound to the transaction; returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(registry.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore implements registry.Store against an open transaction. It bypasses
// the parent mutex: WithTx already holds the write lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LastTicket(ctx context.Context, prefix string, day time.Time) (string, error) {
	return lastTicket(ctx, ts.tx, prefix, day)
}

func (ts *txStore) ListDepartments(ctx context.Context) ([]registry.Department, error) {
	return listDepartments(ctx, ts.tx)
}

func (ts *txStore) GetDepartmentByName(ctx context.Context, name string) (*registry.Department, error) {
	return getDepartmentByName(ctx, ts.tx, name)
}

func (ts *txStore) InsertDepartment(ctx context.Context, d registry.Department) (int64, error) {
	return insertDepartment(ctx, ts.tx, d)
}

func (ts *txStore) UpdateDepartmentDescription(ctx context.Context, id int64, description string) error {
	return updateDepartmentDescription(ctx, ts.tx, id, description)
}

func (ts *txStore) ListEquipmentTypes(ctx context.Context) ([]registry.EquipmentType, error) {
	return listEquipmentTypes(ctx, ts.tx)
}

func (ts *txStore) GetEquipmentTypeByName(ctx context.Context, name string) (*registry.EquipmentType, error) {
	return getEquipmentTypeByName(ctx, ts.tx, name)
}

func (ts *txStore) InsertEquipmentType(ctx context.Context, name string) (int64, error) {
	return insertEquipmentType(ctx, ts.tx, name)
}

func (ts *txStore) GetEmployee(ctx context.Context, name string, departmentID int64) (*registry.Employee, error) {
	return getEmployee(ctx, ts.tx, name, departmentID)
}

func (ts *txStore) InsertEmployee(ctx context.Context, e registry.Employee) (int64, error) {
	return insertEmployee(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEmployeeContact(ctx context.Context, id int64, email, telephone string) error {
	return updateEmployeeContact(ctx, ts.tx, id, email, telephone)
}

func (ts *txStore) GetEquipmentBySerial(ctx context.Context, serial string) (*registry.Equipment, error) {
	return getEquipmentBySerial(ctx, ts.tx, serial)
}

func (ts *txStore) InsertEquipment(ctx context.Context, e registry.Equipment) (int64, error) {
	return insertEquipment(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEquipment(ctx context.Context, e registry.Equipment) error {
	return updateEquipment(ctx, ts.tx, e)
}

func (ts *txStore) InsertOperation(ctx context.Context, op registry.Operation) (int64, error) {
	return insertOperation(ctx, ts.tx, op)
}

func (ts *txStore) InsertSignature(ctx context.Context, sig registry.Signature) (int64, error) {
	return insertSignature(ctx, ts.tx, sig)
}

func (ts *txStore) GetOperation(ctx context.Context, id int64) (*registry.OperationDetail, error) {
	return getOperation(ctx, ts.tx, id)
}

func (ts *txStore) GetSignatures(ctx context.Context, operationID int64) ([]registry.Signature, error) {
	return getSignatures(ctx, ts.tx, operationID)
}

func (ts *txStore) SearchHistory(ctx context.Context, f registry.HistoryFilter) ([]registry.HistoryRow, error) {
	return searchHistory(ctx, ts.tx, f)
}

// =============================================================================
// STORE METHODS (shared handle)
// =============================================================================

func (s *Store) LastTicket(ctx context.Context, prefix string, day time.Time) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastTicket(ctx, s.db, prefix, day)
}

func (s *Store) ListDepartments(ctx context.Context) ([]registry.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDepartments(ctx, s.db)
}

func (s *Store) GetDepartmentByName(ctx context.Context, name string) (*registry.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDepartmentByName(ctx, s.db, name)
}

func (s *Store) InsertDepartment(ctx context.Context, d registry.Department) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertDepartment(ctx, s.db, d)
}

func (s *Store) UpdateDepartmentDescription(ctx context.Context, id int64, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDepartmentDescription(ctx, s.db, id, description)
}

func (s *Store) ListEquipmentTypes(ctx context.Context) ([]registry.EquipmentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEquipmentTypes(ctx, s.db)
}

func (s *Store) GetEquipmentTypeByName(ctx context.Context, name string) (*registry.EquipmentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEquipmentTypeByName(ctx, s.db, name)
}

func (s *Store) InsertEquipmentType(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEquipmentType(ctx, s.db, name)
}

func (s *Store) GetEmployee(ctx context.Context, name string, departmentID int64) (*registry.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, name, departmentID)
}

func (s *Store) InsertEmployee(ctx context.Context, e registry.Employee) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEmployee(ctx, s.db, e)
}

func (s *Store) UpdateEmployeeContact(ctx context.Context, id int64, email, telephone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEmployeeContact(ctx, s.db, id, email, telephone)
}

func (s *Store) GetEquipmentBySerial(ctx context.Context, serial string) (*registry.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEquipmentBySerial(ctx, s.db, serial)
}

func (s *Store) InsertEquipment(ctx context.Context, e registry.Equipment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEquipment(ctx, s.db, e)
}

func (s *Store) UpdateEquipment(ctx context.Context, e registry.Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEquipment(ctx, s.db, e)
}

func (s *Store) InsertOperation(ctx context.Context, op registry.Operation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOperation(ctx, s.db, op)
}

func (s *Store) InsertSignature(ctx context.Context, sig registry.Signature) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSignature(ctx, s.db, sig)
}

func (s *Store) GetOperation(ctx context.Context, id int64) (*registry.OperationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOperation(ctx, s.db, id)
}

func (s *Store) GetSignatures(ctx context.Context, operationID int64) ([]registry.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSignatures(ctx, s.db, operationID)
}

func (s *Store) SearchHistory(ctx context.Context, f registry.HistoryFilter) ([]registry.HistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return searchHistory(ctx, s.db, f)
}

// =============================================================================
// TICKETS
// =============================================================================

func lastTicket(ctx context.Context, q dbtx, prefix string, day time.Time) (string, error) {
	pattern := fmt.Sprintf("%s-%s-%%", prefix, day.Format("20060102"))

	var ticket string
	err := q.QueryRowContext(ctx,
		"SELECT numero_fiche FROM operations WHERE numero_fiche LIKE ? ORDER BY numero_fiche DESC LIMIT 1",
		pattern,
	).Scan(&ticket)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to scan ticket sequence: %w", err)
	}
	return ticket, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func listDepartments(ctx context.Context, q dbtx) ([]registry.Department, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, nom, description FROM services ORDER BY nom")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []registry.Department
	for rows.Next() {
		var d registry.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func getDepartmentByName(ctx context.Context, q dbtx, name string) (*registry.Department, error) {
	var d registry.Department
	err := q.QueryRowContext(ctx,
		"SELECT id, nom, description FROM services WHERE nom = ?", name,
	).Scan(&d.ID, &d.Name, &d.Description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func insertDepartment(ctx context.Context, q dbtx, d registry.Department) (int64, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO services (nom, description) VALUES (?, ?)", d.Name, d.Description)
	if err != nil {
		return 0, mapUniqueErr(err)
	}
	return res.LastInsertId()
}

func updateDepartmentDescription(ctx context.Context, q dbtx, id int64, description string) error {
	_, err := q.ExecContext(ctx,
		"UPDATE services SET description = ? WHERE id = ?", description, id)
	return err
}

func listEquipmentTypes(ctx context.Context, q dbtx) ([]registry.EquipmentType, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, nom FROM types_materiel ORDER BY nom")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []registry.EquipmentType
	for rows.Next() {
		var t registry.EquipmentType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func getEquipmentTypeByName(ctx context.Context, q dbtx, name string) (*registry.EquipmentType, error) {
	var t registry.EquipmentType
	err := q.QueryRowContext(ctx,
		"SELECT id, nom FROM types_materiel WHERE nom = ?", name,
	).Scan(&t.ID, &t.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func insertEquipmentType(ctx context.Context, q dbtx, name string) (int64, error) {
	res, err := q.ExecContext(ctx, "INSERT INTO types_materiel (nom) VALUES (?)", name)
	if err != nil {
		return 0, mapUniqueErr(err)
	}
	return res.LastInsertId()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func getEmployee(ctx context.Context, q dbtx, name string, departmentID int64) (*registry.Employee, error) {
	var e registry.Employee
	err := q.QueryRowContext(ctx,
		"SELECT id, nom, service_id, email, telephone FROM employes WHERE nom = ? AND service_id = ?",
		name, departmentID,
	).Scan(&e.ID, &e.Name, &e.DepartmentID, &e.Email, &e.Telephone)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func insertEmployee(ctx context.Context, q dbtx, e registry.Employee) (int64, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO employes (nom, service_id, email, telephone) VALUES (?, ?, ?, ?)",
		e.Name, e.DepartmentID, e.Email, e.Telephone)
	if err != nil {
		return 0, mapUniqueErr(err)
	}
	return res.LastInsertId()
}

func updateEmployeeContact(ctx context.Context, q dbtx, id int64, email, telephone string) error {
	_, err := q.ExecContext(ctx,
		"UPDATE employes SET email = ?, telephone = ? WHERE id = ?", email, telephone, id)
	return err
}

// =============================================================================
// EQUIPMENT
// =============================================================================

func getEquipmentBySerial(ctx context.Context, q dbtx, serial string) (*registry.Equipment, error) {
	var (
		e     registry.Equipment
		price string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, type_id, modele, numero_serie, service_achat, date_achat, prix_achat, statut
		 FROM materiels WHERE numero_serie = ?`, serial,
	).Scan(&e.ID, &e.TypeID, &e.Model, &e.SerialNumber, &e.PurchaseDept, &e.PurchaseDate, &price, &e.Status)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.PurchasePrice = parsePrice(price)
	return &e, nil
}

func insertEquipment(ctx context.Context, q dbtx, e registry.Equipment) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO materiels (type_id, modele, numero_serie, service_achat, date_achat, prix_achat, statut)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TypeID, e.Model, e.SerialNumber, e.PurchaseDept, e.PurchaseDate, formatPrice(e.PurchasePrice), e.Status)
	if err != nil {
		return 0, mapUniqueErr(err)
	}
	return res.LastInsertId()
}

func updateEquipment(ctx context.Context, q dbtx, e registry.Equipment) error {
	_, err := q.ExecContext(ctx,
		`UPDATE materiels
		 SET type_id = ?, modele = ?, service_achat = ?, date_achat = ?, prix_achat = ?, statut = ?
		 WHERE id = ?`,
		e.TypeID, e.Model, e.PurchaseDept, e.PurchaseDate, formatPrice(e.PurchasePrice), e.Status, e.ID)
	return err
}

// =============================================================================
// OPERATIONS AND SIGNATURES
// =============================================================================

func insertOperation(ctx context.Context, q dbtx, op registry.Operation) (int64, error) {
	assetsJSON, err := marshalList(op.AffectedAssets)
	if err != nil {
		return 0, err
	}
	naturesJSON, err := marshalList(op.IncidentNatures)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO operations
		 (numero_fiche, type_operation, employe_id, materiel_id, date_operation,
		  date_remise, date_restitution, motif,
		  declarant_nom, declarant_telephone, declarant_email, declarant_poste,
		  numero_serie_actif, materiel_touche, natures, autres_infos, signature_png,
		  created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.TicketNumber,
		op.Category,
		nullID(op.EmployeeID),
		nullID(op.EquipmentID),
		op.Date,
		op.HandoverDate,
		op.ReturnDate,
		op.Reason,
		op.ReporterName,
		op.ReporterPhone,
		op.ReporterEmail,
		op.ReporterRole,
		op.AffectedSerial,
		assetsJSON,
		naturesJSON,
		op.Notes,
		op.SignatureImage,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert operation: %w", err)
	}
	return res.LastInsertId()
}

func insertSignature(ctx context.Context, q dbtx, sig registry.Signature) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO signatures (operation_id, type_signature, nom, fonction, date_signature, fichier_signature)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sig.OperationID, sig.Role, sig.Name, sig.Title, sig.Date, sig.Image)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signature: %w", err)
	}
	return res.LastInsertId()
}

func getOperation(ctx context.Context, q dbtx, id int64) (*registry.OperationDetail, error) {
	var (
		d                    registry.OperationDetail
		employeeID           sql.NullInt64
		equipmentID          sql.NullInt64
		assetsJSON           string
		naturesJSON          string
		createdAt            string
		empName, serviceName sql.NullString
		eqType, model        sql.NullString
		serial               sql.NullString
	)

	err := q.QueryRowContext(ctx,
		`SELECT o.id, o.numero_fiche, o.type_operation, o.employe_id, o.materiel_id,
		        o.date_operation, o.date_remise, o.date_restitution, o.motif,
		        o.declarant_nom, o.declarant_telephone, o.declarant_email, o.declarant_poste,
		        o.numero_serie_actif, o.materiel_touche, o.natures, o.autres_infos, o.signature_png,
		        o.created_at,
		        e.nom, s.nom, tm.nom, m.modele, m.numero_serie
		 FROM operations o
		 LEFT JOIN employes e ON o.employe_id = e.id
		 LEFT JOIN services s ON e.service_id = s.id
		 LEFT JOIN materiels m ON o.materiel_id = m.id
		 LEFT JOIN types_materiel tm ON m.type_id = tm.id
		 WHERE o.id = ?`, id,
	).Scan(
		&d.ID, &d.TicketNumber, &d.Category, &employeeID, &equipmentID,
		&d.Date, &d.HandoverDate, &d.ReturnDate, &d.Reason,
		&d.ReporterName, &d.ReporterPhone, &d.ReporterEmail, &d.ReporterRole,
		&d.AffectedSerial, &assetsJSON, &naturesJSON, &d.Notes, &d.SignatureImage,
		&createdAt,
		&empName, &serviceName, &eqType, &model, &serial,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	if employeeID.Valid {
		d.EmployeeID = &employeeID.Int64
	}
	if equipmentID.Valid {
		d.EquipmentID = &equipmentID.Int64
	}
	d.AffectedAssets = unmarshalList(assetsJSON)
	d.IncidentNatures = unmarshalList(naturesJSON)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.EmployeeName = empName.String
	d.ServiceName = serviceName.String
	d.EquipmentType = eqType.String
	d.Model = model.String
	d.SerialNumber = serial.String

	return &d, nil
}

func getSignatures(ctx context.Context, q dbtx, operationID int64) ([]registry.Signature, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, operation_id, type_signature, nom, fonction, date_signature, fichier_signature
		 FROM signatures WHERE operation_id = ? ORDER BY id`, operationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signatures []registry.Signature
	for rows.Next() {
		var sig registry.Signature
		if err := rows.Scan(&sig.ID, &sig.OperationID, &sig.Role, &sig.Name, &sig.Title, &sig.Date, &sig.Image); err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return signatures, rows.Err()
}

// =============================================================================
// HISTORY
// =============================================================================

func searchHistory(ctx context.Context, q dbtx, f registry.HistoryFilter) ([]registry.HistoryRow, error) {
	query := `
		SELECT o.id, o.numero_fiche, o.type_operation, o.date_operation,
		       o.date_remise, o.date_restitution,
		       e.nom, s.nom, tm.nom, m.modele, m.numero_serie,
		       o.declarant_nom, o.numero_serie_actif, o.materiel_touche, o.natures
		FROM operations o
		LEFT JOIN employes e ON o.employe_id = e.id
		LEFT JOIN services s ON e.service_id = s.id
		LEFT JOIN materiels m ON o.materiel_id = m.id
		LEFT JOIN types_materiel tm ON m.type_id = tm.id
		WHERE 1=1
	`
	var args []any

	if f.Employee != "" {
		query += " AND (e.nom LIKE ? OR o.declarant_nom LIKE ?)"
		like := "%" + f.Employee + "%"
		args = append(args, like, like)
	}
	if f.Service != "" {
		query += " AND s.nom = ?"
		args = append(args, f.Service)
	}
	if f.Type != "" {
		query += " AND tm.nom LIKE ?"
		args = append(args, "%"+f.Type+"%")
	}
	if f.Serial != "" {
		query += " AND (m.numero_serie LIKE ? OR o.numero_serie_actif LIKE ?)"
		like := "%" + f.Serial + "%"
		args = append(args, like, like)
	}
	if f.DateFrom != "" {
		query += " AND o.date_operation >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += " AND o.date_operation <= ?"
		args = append(args, f.DateTo)
	}
	if f.Category != "" {
		query += " AND o.type_operation = ?"
		args = append(args, f.Category)
	}

	query += " ORDER BY o.date_operation DESC, o.id DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []registry.HistoryRow
	for rows.Next() {
		var (
			r                    registry.HistoryRow
			empName, serviceName sql.NullString
			eqType, model        sql.NullString
			serial               sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.TicketNumber, &r.Category, &r.Date,
			&r.HandoverDate, &r.ReturnDate,
			&empName, &serviceName, &eqType, &model, &serial,
			&r.ReporterName, &r.AffectedSerial, &r.AffectedAssets, &r.Natures,
		); err != nil {
			return nil, err
		}
		r.EmployeeName = empName.String
		r.ServiceName = serviceName.String
		r.EquipmentType = eqType.String
		r.Model = model.String
		r.SerialNumber = serial.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// =============================================================================
// IMPORT RUNS
// =============================================================================

// ImportRun is one bulk-import execution, recorded for audit.
type ImportRun struct {
	ID           string // uuid
	Source       string // file path
	Kind         string // services | employes | materiels
	RowsImported int
	RowsSkipped  int
}

// RecordImportRun persists a bulk-import audit row.
func (s *Store) RecordImportRun(ctx context.Context, run ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, kind, rows_imported, rows_skipped, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Kind, run.RowsImported, run.RowsSkipped,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func marshalList(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func formatPrice(p decimal.Decimal) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}

func parsePrice(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Decimal{}
	}
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}
	}
	return p
}

func mapUniqueErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", registry.ErrDuplicateKey, err)
	}
	return err
}
