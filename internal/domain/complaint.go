package domain

import "time"

type ComplaintStatus string

const (
	ComplaintNew           ComplaintStatus = "NEW"
	ComplaintInvestigating ComplaintStatus = "INVESTIGATING"
	ComplaintResponded     ComplaintStatus = "RESPONDED"
	ComplaintClosed        ComplaintStatus = "CLOSED"
	ComplaintRejected      ComplaintStatus = "REJECTED"
)

// CustomerComplaint complaint received from a customer
type CustomerComplaint struct {
	Meta
	ComplaintNumber string          `json:"complaintNumber"`
	CustomerID      string          `json:"customerId"`
	ItemID          string          `json:"itemId,omitempty"`
	JobNumber       string          `json:"jobNumber,omitempty"`
	ReceivedDate    time.Time       `json:"receivedDate"`
	Description     string          `json:"description"`
	Severity        Severity        `json:"severity"`
	Status          ComplaintStatus `json:"status"`
	Investigation   string          `json:"investigation,omitempty"`
	RootCause       string          `json:"rootCause,omitempty"`
	Response        string          `json:"response,omitempty"`
	NCRID           string          `json:"ncrId,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
	History         []HistoryEntry  `json:"history"`
}

func (c CustomerComplaint) RecordDate() time.Time { return c.ReceivedDate }
func (c CustomerComplaint) RecordStatus() string  { return string(c.Status) }
func (c CustomerComplaint) SearchText() string {
	return joinSearch(c.ComplaintNumber, c.JobNumber, c.Description)
}

// ComplaintNotice structured complaint notice sent back to the customer
type ComplaintNotice struct {
	ComplaintNumber string          `json:"complaintNumber"`
	IssuedAt        time.Time       `json:"issuedAt"`
	CustomerName    string          `json:"customerName"`
	ContactName     string          `json:"contactName,omitempty"`
	ContactEmail    string          `json:"contactEmail,omitempty"`
	ItemCode        string          `json:"itemCode,omitempty"`
	ItemName        string          `json:"itemName,omitempty"`
	JobNumber       string          `json:"jobNumber,omitempty"`
	ReceivedDate    time.Time       `json:"receivedDate"`
	Description     string          `json:"description"`
	Investigation   string          `json:"investigation,omitempty"`
	RootCause       string          `json:"rootCause,omitempty"`
	Response        string          `json:"response,omitempty"`
	NCRNumber       string          `json:"ncrNumber,omitempty"`
	Status          ComplaintStatus `json:"status"`
}
