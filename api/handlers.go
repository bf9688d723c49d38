/*
handlers.go - HTTP handlers of the asset registry

PURPOSE:
  Exposes the registry over REST. Handles HTTP request/response, JSON
  serialization, and delegates every write to registry.Writer.

ENDPOINTS:
  Reference data:
    GET  /api/services            List departments
    GET  /api/types-materiel      List equipment types

  Writes:
    POST /api/attribution         Record an equipment handout
    POST /api/restitution         Record an equipment return
    POST /api/incidents           Record an incident report

  Reads:
    GET  /api/historique          Filtered unified history
    GET  /api/operation/{id}      Handover detail with signatures
    GET  /api/incident/{id}       Incident detail

  Ops:
    GET  /api/health              Liveness probe

ERROR HANDLING:
  Every response carries the {success: bool} envelope. Domain errors map
  to HTTP status via errors.Is:
  - validation errors  -> 400 with the failing field in the message
  - not found          -> 404
  - anything else      -> 500, message redacted unless Debug

SECURITY NOTE:
  The service runs on the internal network behind the office reverse
  proxy; there is no authentication layer here.

SEE ALSO:
  - dto.go: request/response structures and domain conversions
  - server.go: router setup and middleware
  - registry/writer.go: the write orchestration behind POST handlers
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sedima/asset-registry/registry"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies of the HTTP layer.
type Handler struct {
	Store  registry.TxStore
	Writer *registry.Writer
	Log    *zap.Logger

	// Debug exposes internal error details in 500 responses.
	Debug bool
}

// NewHandler wires a handler around the given store.
func NewHandler(store registry.TxStore, log *zap.Logger, debug bool) *Handler {
	return &Handler{
		Store:  store,
		Writer: registry.NewWriter(store, log),
		Log:    log,
		Debug:  debug,
	}
}

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Log.Error("response encoding failed", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeDomainError maps a registry error to an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case registry.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case registry.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		body := map[string]any{"success": false, "error": "erreur interne"}
		if h.Debug {
			body["details"] = err.Error()
		}
		h.writeJSON(w, http.StatusInternalServerError, body)
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListServices returns every department.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Store.ListDepartments(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]ServiceDTO, len(depts))
	for i, d := range depts {
		out[i] = ServiceDTO{ID: d.ID, Nom: d.Name, Description: d.Description}
	}
	h.writeData(w, out)
}

// ListEquipmentTypes returns every equipment type.
func (h *Handler) ListEquipmentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListEquipmentTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]TypeMaterielDTO, len(types))
	for i, t := range types {
		out[i] = TypeMaterielDTO{ID: t.ID, Nom: t.Name}
	}
	h.writeData(w, out)
}

// =============================================================================
// WRITES
// =============================================================================

// CreateAttribution records an equipment handout.
func (h *Handler) CreateAttribution(w http.ResponseWriter, r *http.Request) {
	h.createHandover(w, r, registry.CategoryAttribution)
}

// CreateRestitution records an equipment return.
func (h *Handler) CreateRestitution(w http.ResponseWriter, r *http.Request) {
	h.createHandover(w, r, registry.CategoryRestitution)
}

func (h *Handler) createHandover(w http.ResponseWriter, r *http.Request, cat registry.Category) {
	var req HandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "corps JSON invalide")
		return
	}

	var (
		result *registry.WriteResult
		err    error
	)
	if cat == registry.CategoryRestitution {
		result, err = h.Writer.CreateRestitution(r.Context(), req.toDomain())
	} else {
		result, err = h.Writer.CreateAttribution(r.Context(), req.toDomain())
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"operation_ids": result.OperationIDs,
		"numero_fiche":  result.TicketNumber,
	})
}

// CreateIncident records a standalone incident report.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req IncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "corps JSON invalide")
		return
	}

	result, err := h.Writer.CreateIncident(r.Context(), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"id":           result.OperationID,
		"numero_fiche": result.TicketNumber,
	})
}

// =============================================================================
// READS
// =============================================================================

// GetHistory serves the filtered unified history.
//
// Query parameters: employe, service, type_materiel, serie, date_debut,
// date_fin, type_operation. All optional; empty means no filter.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := registry.HistoryFilter{
		Employee: q.Get("employe"),
		Service:  q.Get("service"),
		Type:     q.Get("type_materiel"),
		Serial:   q.Get("serie"),
		DateFrom: q.Get("date_debut"),
		DateTo:   q.Get("date_fin"),
		Category: registry.Category(q.Get("type_operation")),
	}

	rows, err := registry.SearchHistory(r.Context(), h.Store, filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]HistoryRowDTO, len(rows))
	for i, row := range rows {
		out[i] = toHistoryRowDTO(row)
	}
	h.writeData(w, out)
}

// GetOperation serves a handover operation with its signatures.
func (h *Handler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.Store.GetOperation(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if detail == nil {
		h.writeError(w, http.StatusNotFound, "operation non trouvee: "+strconv.FormatInt(id, 10))
		return
	}
	sigs, err := h.Store.GetSignatures(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := OperationDetailDTO{Operation: toOperationDTO(*detail)}
	for _, s := range sigs {
		out.Signatures = append(out.Signatures, toSignatureDTO(s))
	}
	h.writeData(w, out)
}

// GetIncident serves an incident report detail.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.Store.GetOperation(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if detail == nil || detail.Category != registry.CategoryIncident {
		h.writeError(w, http.StatusNotFound, "incident non trouve: "+strconv.FormatInt(id, 10))
		return
	}
	h.writeData(w, toIncidentDTO(*detail))
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "identifiant invalide")
		return 0, false
	}
	return id, true
}
