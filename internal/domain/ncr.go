package domain

import (
	"strings"
	"time"
)

type DispositionDecision string

const (
	DispositionUseAsIs          DispositionDecision = "USE_AS_IS"
	DispositionRework           DispositionDecision = "REWORK"
	DispositionScrap            DispositionDecision = "SCRAP"
	DispositionReturnToSupplier DispositionDecision = "RETURN_TO_SUPPLIER"
)

func (d DispositionDecision) Valid() bool {
	switch d {
	case DispositionUseAsIs, DispositionRework, DispositionScrap, DispositionReturnToSupplier:
		return true
	}
	return false
}

type NCRStatus string

const (
	NCROpen            NCRStatus = "OPEN"
	NCRPendingApproval NCRStatus = "PENDING_APPROVAL"
	NCRDispositioned   NCRStatus = "DISPOSITIONED"
	NCRClosed          NCRStatus = "CLOSED"
)

// Disposition the MRB decision on nonconforming product
type Disposition struct {
	Decision         DispositionDecision `json:"decision"`
	RootCause        string              `json:"rootCause"`
	CorrectiveAction string              `json:"correctiveAction"`
	PreventiveAction string              `json:"preventiveAction"`
	ResponsibleID    string              `json:"responsibleId"`
	DueDate          *time.Time          `json:"dueDate,omitempty"`
}

// MissingFields lists the disposition fields that are still empty.
func (d Disposition) MissingFields() []string {
	var missing []string
	if d.Decision == "" {
		missing = append(missing, "decision")
	}
	if strings.TrimSpace(d.RootCause) == "" {
		missing = append(missing, "rootCause")
	}
	if strings.TrimSpace(d.CorrectiveAction) == "" {
		missing = append(missing, "correctiveAction")
	}
	if strings.TrimSpace(d.PreventiveAction) == "" {
		missing = append(missing, "preventiveAction")
	}
	if strings.TrimSpace(d.ResponsibleID) == "" {
		missing = append(missing, "responsibleId")
	}
	if d.DueDate == nil || d.DueDate.IsZero() {
		missing = append(missing, "dueDate")
	}
	return missing
}

// NCRRecord non-conformance record
type NCRRecord struct {
	Meta
	NCRNumber        string         `json:"ncrNumber"`
	TicketID         string         `json:"ticketId,omitempty"`
	ComplaintID      string         `json:"complaintId,omitempty"`
	JobNumber        string         `json:"jobNumber,omitempty"`
	ItemID           string         `json:"itemId,omitempty"`
	SupplierID       string         `json:"supplierId,omitempty"`
	Description      string         `json:"description"`
	QuantityAffected int            `json:"quantityAffected"`
	RaisedBy         string         `json:"raisedBy"`
	Status           NCRStatus      `json:"status"`
	Disposition      *Disposition   `json:"disposition,omitempty"`
	DispositionedBy  string         `json:"dispositionedBy,omitempty"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	RejectionReason  string         `json:"rejectionReason,omitempty"`
	ClosedAt         *time.Time     `json:"closedAt,omitempty"`
	History          []HistoryEntry `json:"history"`
}

func (n NCRRecord) RecordDate() time.Time { return n.CreatedAt }
func (n NCRRecord) RecordStatus() string  { return string(n.Status) }
func (n NCRRecord) SearchText() string {
	return joinSearch(n.NCRNumber, n.JobNumber, n.Description)
}
