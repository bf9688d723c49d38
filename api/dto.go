/*
dto.go - JSON contract of the registry API

PURPOSE:
  Request/response structures for the HTTP layer. The JSON field names are
  the legacy French contract consumed by the existing frontend; these types
  decouple it from the Go domain model in the registry package.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

ENVELOPE:
  Every response is wrapped in {success: bool, ...}; see handlers.go.

SEE ALSO:
  - handlers.go: decoding, validation delegation, envelope writing
  - registry/types.go: the domain-side equivalents
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sedima/asset-registry/registry"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ServiceDTO is a department row.
type ServiceDTO struct {
	ID          int64  `json:"id"`
	Nom         string `json:"nom"`
	Description string `json:"description,omitempty"`
}

// TypeMaterielDTO is an equipment type row.
type TypeMaterielDTO struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

// =============================================================================
// HANDOVER REQUESTS (attribution / restitution)
// =============================================================================

// SignerDTO is one signer block of a handover form.
type SignerDTO struct {
	Nom      string `json:"nom"`
	Fonction string `json:"fonction"`
	Date     string `json:"date"`
}

// SignaturesDTO carries the three embedded signature images.
type SignaturesDTO struct {
	Redaction    string `json:"redaction"`
	Validation   string `json:"validation"`
	Destinataire string `json:"destinataire"`
}

// MaterielLineDTO is one equipment line of a handover form.
type MaterielLineDTO struct {
	Type            string          `json:"type"`
	Modele          string          `json:"modele"`
	Serie           string          `json:"serie"`
	ServiceAchat    string          `json:"serviceAchat,omitempty"`
	PrixAchat       decimal.Decimal `json:"prixAchat"`
	DateRemise      string          `json:"dateRemise,omitempty"`
	DateRestitution string          `json:"dateRestitution,omitempty"`
}

// HandoverRequest is the body of POST /api/attribution and /api/restitution.
type HandoverRequest struct {
	Nom          string            `json:"nom"`
	Service      string            `json:"service"`
	Materiels    []MaterielLineDTO `json:"materiels"`
	Motif        string            `json:"motif,omitempty"`
	Redaction    SignerDTO         `json:"redaction"`
	Validation   SignerDTO         `json:"validation"`
	Destinataire SignerDTO         `json:"destinataire"`
	Signatures   SignaturesDTO     `json:"signatures"`
}

// =============================================================================
// INCIDENTS
// =============================================================================

// IncidentRequest is the body of POST /api/incidents.
type IncidentRequest struct {
	DeclarantNom     string   `json:"declarant_nom"`
	Telephone        string   `json:"telephone"`
	Email            string   `json:"email,omitempty"`
	Poste            string   `json:"poste,omitempty"`
	Service          string   `json:"service,omitempty"`
	DateIncident     string   `json:"date_incident,omitempty"`
	NumeroSerieActif string   `json:"numero_serie_actif,omitempty"`
	MaterielTouche   []string `json:"materiel_touche,omitempty"`
	Natures          []string `json:"natures,omitempty"`
	AutresInfos      string   `json:"autres_infos,omitempty"`
	SignaturePNG     string   `json:"signature_png,omitempty"`
}

// =============================================================================
// READ MODELS
// =============================================================================

// HistoryRowDTO is one row of the unified history table. For incident rows
// the equipment columns carry the synthesized display values.
type HistoryRowDTO struct {
	ID              int64  `json:"id"`
	NumeroFiche     string `json:"numero_fiche"`
	TypeOperation   string `json:"type_operation"`
	DateOperation   string `json:"date_operation"`
	DateRemise      string `json:"date_remise,omitempty"`
	DateRestitution string `json:"date_restitution,omitempty"`
	EmployeNom      string `json:"employe_nom"`
	ServiceNom      string `json:"service_nom,omitempty"`
	TypeMateriel    string `json:"type_materiel"`
	Modele          string `json:"modele"`
	NumeroSerie     string `json:"numero_serie"`
}

// OperationDTO is the detail view of a handover operation.
type OperationDTO struct {
	ID              int64  `json:"id"`
	NumeroFiche     string `json:"numero_fiche"`
	TypeOperation   string `json:"type_operation"`
	DateOperation   string `json:"date_operation"`
	DateRemise      string `json:"date_remise,omitempty"`
	DateRestitution string `json:"date_restitution,omitempty"`
	Motif           string `json:"motif,omitempty"`
	EmployeNom      string `json:"employe_nom,omitempty"`
	ServiceNom      string `json:"service_nom,omitempty"`
	TypeMateriel    string `json:"type_materiel,omitempty"`
	Modele          string `json:"modele,omitempty"`
	NumeroSerie     string `json:"numero_serie,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// SignatureDTO is one signer row of an operation detail.
type SignatureDTO struct {
	TypeSignature    string `json:"type_signature"`
	Nom              string `json:"nom"`
	Fonction         string `json:"fonction"`
	DateSignature    string `json:"date_signature"`
	FichierSignature string `json:"fichier_signature,omitempty"`
}

// OperationDetailDTO bundles an operation with its signatures.
type OperationDetailDTO struct {
	Operation  OperationDTO   `json:"operation"`
	Signatures []SignatureDTO `json:"signatures"`
}

// IncidentDTO is the detail view of an incident, with the JSON-encoded list
// fields parsed back into arrays.
type IncidentDTO struct {
	ID               int64    `json:"id"`
	NumeroFiche      string   `json:"numero_fiche"`
	DateIncident     string   `json:"date_incident"`
	DeclarantNom     string   `json:"declarant_nom"`
	Telephone        string   `json:"telephone"`
	Email            string   `json:"email,omitempty"`
	Poste            string   `json:"poste,omitempty"`
	EmployeNom       string   `json:"employe_nom,omitempty"`
	ServiceNom       string   `json:"service_nom,omitempty"`
	NumeroSerieActif string   `json:"numero_serie_actif,omitempty"`
	MaterielTouche   []string `json:"materiel_touche,omitempty"`
	Natures          []string `json:"natures,omitempty"`
	AutresInfos      string   `json:"autres_infos,omitempty"`
	SignaturePNG     string   `json:"signature_png,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (r HandoverRequest) toDomain() registry.HandoverRequest {
	lines := make([]registry.EquipmentLine, len(r.Materiels))
	for i, m := range r.Materiels {
		lines[i] = registry.EquipmentLine{
			Type:          m.Type,
			Model:         m.Modele,
			Serial:        m.Serie,
			PurchaseDept:  m.ServiceAchat,
			PurchasePrice: m.PrixAchat,
			HandoverDate:  m.DateRemise,
			ReturnDate:    m.DateRestitution,
		}
	}
	return registry.HandoverRequest{
		EmployeeName: r.Nom,
		Department:   r.Service,
		Lines:        lines,
		Reason:       r.Motif,
		Redaction:    registry.SignerBlock{Name: r.Redaction.Nom, Title: r.Redaction.Fonction, Date: r.Redaction.Date},
		Validation:   registry.SignerBlock{Name: r.Validation.Nom, Title: r.Validation.Fonction, Date: r.Validation.Date},
		Destinataire: registry.SignerBlock{Name: r.Destinataire.Nom, Title: r.Destinataire.Fonction, Date: r.Destinataire.Date},
		Signatures: registry.SignatureImages{
			Redaction:    r.Signatures.Redaction,
			Validation:   r.Signatures.Validation,
			Destinataire: r.Signatures.Destinataire,
		},
	}
}

func (r IncidentRequest) toDomain() registry.IncidentRequest {
	return registry.IncidentRequest{
		ReporterName:   r.DeclarantNom,
		ReporterPhone:  r.Telephone,
		ReporterEmail:  r.Email,
		ReporterRole:   r.Poste,
		Department:     r.Service,
		IncidentDate:   r.DateIncident,
		AffectedSerial: r.NumeroSerieActif,
		AffectedAssets: r.MaterielTouche,
		Natures:        r.Natures,
		Notes:          r.AutresInfos,
		SignatureImage: r.SignaturePNG,
	}
}

func toHistoryRowDTO(r registry.HistoryRow) HistoryRowDTO {
	return HistoryRowDTO{
		ID:              r.ID,
		NumeroFiche:     r.TicketNumber,
		TypeOperation:   string(r.Category),
		DateOperation:   r.Date,
		DateRemise:      r.HandoverDate,
		DateRestitution: r.ReturnDate,
		EmployeNom:      r.EmployeeName,
		ServiceNom:      r.ServiceName,
		TypeMateriel:    r.EquipmentType,
		Modele:          r.Model,
		NumeroSerie:     r.SerialNumber,
	}
}

func toOperationDTO(d registry.OperationDetail) OperationDTO {
	return OperationDTO{
		ID:              d.ID,
		NumeroFiche:     d.TicketNumber,
		TypeOperation:   string(d.Category),
		DateOperation:   d.Date,
		DateRemise:      d.HandoverDate,
		DateRestitution: d.ReturnDate,
		Motif:           d.Reason,
		EmployeNom:      d.EmployeeName,
		ServiceNom:      d.ServiceName,
		TypeMateriel:    d.EquipmentType,
		Modele:          d.Model,
		NumeroSerie:     d.SerialNumber,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
}

func toIncidentDTO(d registry.OperationDetail) IncidentDTO {
	return IncidentDTO{
		ID:               d.ID,
		NumeroFiche:      d.TicketNumber,
		DateIncident:     d.Date,
		DeclarantNom:     d.ReporterName,
		Telephone:        d.ReporterPhone,
		Email:            d.ReporterEmail,
		Poste:            d.ReporterRole,
		EmployeNom:       d.EmployeeName,
		ServiceNom:       d.ServiceName,
		NumeroSerieActif: d.AffectedSerial,
		MaterielTouche:   d.AffectedAssets,
		Natures:          d.IncidentNatures,
		AutresInfos:      d.Notes,
		SignaturePNG:     d.SignatureImage,
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
	}
}

func toSignatureDTO(s registry.Signature) SignatureDTO {
	return SignatureDTO{
		TypeSignature:    string(s.Role),
		Nom:              s.Name,
		Fonction:         s.Title,
		DateSignature:    s.Date,
		FichierSignature: s.Image,
	}
}
