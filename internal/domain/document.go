package domain

import "time"

// DocumentType controlled document categories
type DocumentType string

const (
	DocTypeSOP             DocumentType = "SOP"
	DocTypeWorkInstruction DocumentType = "WORK_INSTRUCTION"
	DocTypeForm            DocumentType = "FORM"
	DocTypePolicy          DocumentType = "POLICY"
	DocTypeSpecification   DocumentType = "SPECIFICATION"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeSOP, DocTypeWorkInstruction, DocTypeForm, DocTypePolicy, DocTypeSpecification:
		return true
	}
	return false
}

// DocumentStatus document control lifecycle
type DocumentStatus string

const (
	DocDraft           DocumentStatus = "DRAFT"
	DocPendingApproval DocumentStatus = "PENDING_APPROVAL"
	DocApproved        DocumentStatus = "APPROVED"
	DocRejected        DocumentStatus = "REJECTED"
	DocArchived        DocumentStatus = "ARCHIVED"
)

// Approval one approver signature
type Approval struct {
	UserID   string    `json:"userId"`
	SignedAt time.Time `json:"signedAt"`
	Comment  string    `json:"comment,omitempty"`
}

// Document controlled document revision. Each revision is its own record;
// revisions of the same document share DocNumber.
type Document struct {
	Meta
	DocNumber         string         `json:"docNumber"`
	Title             string         `json:"title"`
	DocType           DocumentType   `json:"docType"`
	Department        string         `json:"department"`
	Version           int            `json:"version"`
	Status            DocumentStatus `json:"status"`
	Content           string         `json:"content"`
	AuthorID          string         `json:"authorId"`
	ApproverIDs       []string       `json:"approverIds"`
	Approvals         []Approval     `json:"approvals"`
	RejectionReason   string         `json:"rejectionReason,omitempty"`
	EffectiveDate     *time.Time     `json:"effectiveDate,omitempty"`
	PreviousVersionID string         `json:"previousVersionId,omitempty"`
	History           []HistoryEntry `json:"history"`
}

func (d Document) RecordDate() time.Time { return d.CreatedAt }
func (d Document) RecordStatus() string  { return string(d.Status) }
func (d Document) SearchText() string {
	return joinSearch(d.DocNumber, d.Title, string(d.DocType), d.Department)
}

// IsApprover reports whether userID is one of the required approvers.
func (d *Document) IsApprover(userID string) bool {
	for _, id := range d.ApproverIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasSigned reports whether userID already signed the current round.
func (d *Document) HasSigned(userID string) bool {
	for _, a := range d.Approvals {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// FullySigned reports whether every required approver has signed.
func (d *Document) FullySigned() bool {
	if len(d.ApproverIDs) == 0 {
		return false
	}
	for _, id := range d.ApproverIDs {
		if !d.HasSigned(id) {
			return false
		}
	}
	return true
}
