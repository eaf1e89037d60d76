package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
	TicketEscalated  TicketStatus = "ESCALATED"
)

// QATicket shop-floor quality issue raised against a job
type QATicket struct {
	Meta
	TicketNumber string         `json:"ticketNumber"`
	JobNumber    string         `json:"jobNumber"`
	CustomerID   string         `json:"customerId,omitempty"`
	ItemID       string         `json:"itemId,omitempty"`
	Machine      string         `json:"machine,omitempty"`
	Issue        string         `json:"issue"`
	Priority     Priority       `json:"priority"`
	RaisedBy     string         `json:"raisedBy"`
	AssignedTo   string         `json:"assignedTo,omitempty"`
	Status       TicketStatus   `json:"status"`
	Resolution   string         `json:"resolution,omitempty"`
	NCRID        string         `json:"ncrId,omitempty"`
	History      []HistoryEntry `json:"history"`
}

func (t QATicket) RecordDate() time.Time { return t.CreatedAt }
func (t QATicket) RecordStatus() string  { return string(t.Status) }
func (t QATicket) SearchText() string {
	return joinSearch(t.TicketNumber, t.JobNumber, t.Machine, t.Issue)
}
