package registry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sedima/asset-registry/registry"
	"github.com/sedima/asset-registry/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestWriter(t *testing.T) (*registry.Writer, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return registry.NewWriter(store, zap.NewNop()), store
}

func seedDepartment(t *testing.T, store *sqlite.Store, name string) {
	t.Helper()
	_, err := store.InsertDepartment(context.Background(), registry.Department{Name: name})
	require.NoError(t, err)
}

// validHandover returns a complete single-line request for the given serial.
func validHandover(serial string) registry.HandoverRequest {
	return registry.HandoverRequest{
		EmployeeName: "Martin Dupont",
		Department:   "Informatique",
		Lines: []registry.EquipmentLine{{
			Type:          "Laptop",
			Model:         "ThinkPad T14",
			Serial:        serial,
			PurchaseDept:  "Informatique",
			PurchasePrice: decimal.RequireFromString("1250.50"),
			HandoverDate:  "2024-01-15",
		}},
		Reason:       "nouveau poste",
		Redaction:    registry.SignerBlock{Name: "Alice Petit", Title: "Technicienne", Date: "2024-01-15"},
		Validation:   registry.SignerBlock{Name: "Bruno Leroy", Title: "Responsable DSI", Date: "2024-01-15"},
		Destinataire: registry.SignerBlock{Name: "Martin Dupont", Title: "Comptable", Date: "2024-01-15"},
		Signatures: registry.SignatureImages{
			Redaction:    "data:image/png;base64,AAA=",
			Validation:   "data:image/png;base64,BBB=",
			Destinataire: "data:image/png;base64,CCC=",
		},
	}
}

func today() string {
	return time.Now().Format("20060102")
}

// =============================================================================
// ATTRIBUTION
// =============================================================================

func TestCreateAttribution_SingleLine(t *testing.T) {
	// GIVEN: An existing department and a fresh serial number
	// WHEN: Recording an attribution
	// THEN: One operation row, an ATB-...-001 ticket and three signatures exist

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	result, err := w.CreateAttribution(ctx, validHandover("SN-001"))
	require.NoError(t, err)
	require.Len(t, result.OperationIDs, 1)
	assert.Equal(t, fmt.Sprintf("ATB-%s-001", today()), result.TicketNumber)

	detail, err := store.GetOperation(ctx, result.OperationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, registry.CategoryAttribution, detail.Category)
	assert.Equal(t, "Martin Dupont", detail.EmployeeName)
	assert.Equal(t, "Informatique", detail.ServiceName)
	assert.Equal(t, "SN-001", detail.SerialNumber)
	assert.Equal(t, "nouveau poste", detail.Reason)

	sigs, err := store.GetSignatures(ctx, result.OperationIDs[0])
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	roles := []registry.SignatureRole{sigs[0].Role, sigs[1].Role, sigs[2].Role}
	assert.ElementsMatch(t, roles, []registry.SignatureRole{
		registry.RoleRedaction, registry.RoleValidation, registry.RoleDestinataire,
	})

	eq, err := store.GetEquipmentBySerial(ctx, "SN-001")
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, registry.StatusAttribue, eq.Status)
	assert.True(t, eq.PurchasePrice.Equal(decimal.RequireFromString("1250.50")))
}

func TestCreateAttribution_TicketSequencePerDay(t *testing.T) {
	// GIVEN: One attribution already recorded today
	// WHEN: Recording a second one
	// THEN: The second ticket continues the day's sequence

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	first, err := w.CreateAttribution(ctx, validHandover("SN-001"))
	require.NoError(t, err)
	second, err := w.CreateAttribution(ctx, validHandover("SN-002"))
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("ATB-%s-001", today()), first.TicketNumber)
	assert.Equal(t, fmt.Sprintf("ATB-%s-002", today()), second.TicketNumber)
}

func TestCreateAttribution_MultiLine_SharedTicketAndSignatures(t *testing.T) {
	// GIVEN: A request with two equipment lines
	// WHEN: Recording the attribution
	// THEN: Both rows share the ticket; the signatures hang off the first row only

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	req := validHandover("SN-001")
	req.Lines = append(req.Lines, registry.EquipmentLine{Type: "Ecran", Model: "Dell U2422H", Serial: "SN-002"})

	result, err := w.CreateAttribution(ctx, req)
	require.NoError(t, err)
	require.Len(t, result.OperationIDs, 2)

	for _, id := range result.OperationIDs {
		detail, err := store.GetOperation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, result.TicketNumber, detail.TicketNumber)
	}

	sigsFirst, err := store.GetSignatures(ctx, result.OperationIDs[0])
	require.NoError(t, err)
	assert.Len(t, sigsFirst, 3)
	sigsSecond, err := store.GetSignatures(ctx, result.OperationIDs[1])
	require.NoError(t, err)
	assert.Empty(t, sigsSecond)
}

func TestCreateAttribution_UnknownDepartment_NotFound(t *testing.T) {
	// GIVEN: The request names a department missing from the catalog
	// WHEN: Recording the attribution
	// THEN: The request fails with not-found and nothing is persisted

	w, store := newTestWriter(t)
	ctx := context.Background()

	_, err := w.CreateAttribution(ctx, validHandover("SN-001"))
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))

	rows, err := store.SearchHistory(ctx, registry.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateAttribution_MissingField_Validation(t *testing.T) {
	// GIVEN: A request missing the destinataire signature image
	// WHEN: Recording the attribution
	// THEN: The validation error names the field and nothing is persisted

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	req := validHandover("SN-001")
	req.Signatures.Destinataire = ""

	_, err := w.CreateAttribution(ctx, req)
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
	assert.Contains(t, err.Error(), "signatures.destinataire")

	rows, err := store.SearchHistory(ctx, registry.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateAttribution_MissingLineSerial_Validation(t *testing.T) {
	w, store := newTestWriter(t)
	seedDepartment(t, store, "Informatique")

	req := validHandover("SN-001")
	req.Lines[0].Serial = "   "

	_, err := w.CreateAttribution(context.Background(), req)
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
	assert.Contains(t, err.Error(), "materiels[0].serie")
}

// =============================================================================
// RESTITUTION
// =============================================================================

func TestCreateRestitution_ReusesEquipmentRow(t *testing.T) {
	// GIVEN: An equipment item previously attributed
	// WHEN: Recording its restitution
	// THEN: The same equipment row flips to disponible; a RST ticket is issued

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	_, err := w.CreateAttribution(ctx, validHandover("SN-001"))
	require.NoError(t, err)
	attributed, err := store.GetEquipmentBySerial(ctx, "SN-001")
	require.NoError(t, err)

	ret := validHandover("SN-001")
	ret.Lines[0].HandoverDate = ""
	ret.Lines[0].ReturnDate = "2024-06-30"
	result, err := w.CreateRestitution(ctx, ret)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("RST-%s-001", today()), result.TicketNumber)

	returned, err := store.GetEquipmentBySerial(ctx, "SN-001")
	require.NoError(t, err)
	assert.Equal(t, attributed.ID, returned.ID, "restitution must not duplicate the equipment row")
	assert.Equal(t, registry.StatusDisponible, returned.Status)
}

func TestCreateRestitution_UnknownSerial_CreatesEquipment(t *testing.T) {
	// GIVEN: A serial number never seen before
	// WHEN: Recording its restitution
	// THEN: The equipment row is created disponible instead of rejecting

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	_, err := w.CreateRestitution(ctx, validHandover("SN-JAMAIS-VU"))
	require.NoError(t, err)

	eq, err := store.GetEquipmentBySerial(ctx, "SN-JAMAIS-VU")
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, registry.StatusDisponible, eq.Status)
}

// =============================================================================
// INCIDENTS
// =============================================================================

func TestCreateIncident_MinimalFields(t *testing.T) {
	// GIVEN: An incident report carrying only the required reporter fields
	// WHEN: Recording it
	// THEN: The operation is created unlinked with an ICD ticket

	w, store := newTestWriter(t)
	ctx := context.Background()

	result, err := w.CreateIncident(ctx, registry.IncidentRequest{
		ReporterName:  "Claire Moreau",
		ReporterPhone: "0601020304",
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("ICD-%s-001", today()), result.TicketNumber)

	detail, err := store.GetOperation(ctx, result.OperationID)
	require.NoError(t, err)
	assert.Equal(t, registry.CategoryIncident, detail.Category)
	assert.Nil(t, detail.EmployeeID)
	assert.Nil(t, detail.EquipmentID)
	assert.Equal(t, "Claire Moreau", detail.ReporterName)
	assert.Equal(t, time.Now().Format("2006-01-02"), detail.Date)
}

func TestCreateIncident_MissingPhone_Validation(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.CreateIncident(context.Background(), registry.IncidentRequest{ReporterName: "Claire Moreau"})
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
	assert.Contains(t, err.Error(), "telephone")
}

func TestCreateIncident_LinksEmployeeAndEquipment(t *testing.T) {
	// GIVEN: The reporter's department and the affected serial exist
	// WHEN: Recording the incident
	// THEN: The operation links both rows

	w, store := newTestWriter(t)
	ctx := context.Background()
	seedDepartment(t, store, "Informatique")

	_, err := w.CreateAttribution(ctx, validHandover("SN-001"))
	require.NoError(t, err)

	result, err := w.CreateIncident(ctx, registry.IncidentRequest{
		ReporterName:   "Martin Dupont",
		ReporterPhone:  "0601020304",
		Department:     "Informatique",
		IncidentDate:   "2024-02-01",
		AffectedSerial: "SN-001",
		AffectedAssets: []string{"Laptop", "Station d'accueil"},
		Natures:        []string{"Ecran casse"},
	})
	require.NoError(t, err)

	detail, err := store.GetOperation(ctx, result.OperationID)
	require.NoError(t, err)
	require.NotNil(t, detail.EmployeeID)
	require.NotNil(t, detail.EquipmentID)
	assert.Equal(t, "2024-02-01", detail.Date)
	assert.Equal(t, []string{"Laptop", "Station d'accueil"}, detail.AffectedAssets)
}

func TestCreateIncident_UnknownDepartment_RecordsUnlinked(t *testing.T) {
	// GIVEN: The reporter names a department; resolution will auto-create it
	// WHEN: Recording the incident
	// THEN: The incident links the auto-created employee row

	w, store := newTestWriter(t)
	ctx := context.Background()

	result, err := w.CreateIncident(ctx, registry.IncidentRequest{
		ReporterName:  "Claire Moreau",
		ReporterPhone: "0601020304",
		Department:    "Service Inconnu",
	})
	require.NoError(t, err)

	detail, err := store.GetOperation(ctx, result.OperationID)
	require.NoError(t, err)
	assert.NotNil(t, detail.EmployeeID, "incident path auto-creates the department")

	dept, err := store.GetDepartmentByName(ctx, "Service Inconnu")
	require.NoError(t, err)
	assert.NotNil(t, dept)
}
