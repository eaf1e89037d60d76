package domain

import "time"

// IncidentType safety incident categories
type IncidentType string

const (
	IncidentNearMiss       IncidentType = "NEAR_MISS"
	IncidentFirstAid       IncidentType = "FIRST_AID"
	IncidentLostTime       IncidentType = "LOST_TIME"
	IncidentPropertyDamage IncidentType = "PROPERTY_DAMAGE"
	IncidentEnvironmental  IncidentType = "ENVIRONMENTAL"
)

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentNearMiss, IncidentFirstAid, IncidentLostTime, IncidentPropertyDamage, IncidentEnvironmental:
		return true
	}
	return false
}

// Severity shared by incidents and complaints
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "OPEN"
	IncidentInvestigating IncidentStatus = "INVESTIGATING"
	IncidentClosed        IncidentStatus = "CLOSED"
)

// SafetyIncident workplace safety report
type SafetyIncident struct {
	Meta
	IncidentNumber   string         `json:"incidentNumber"`
	Date             time.Time      `json:"date"`
	ReportedBy       string         `json:"reportedBy"`
	Location         string         `json:"location"`
	IncidentType     IncidentType   `json:"incidentType"`
	Severity         Severity       `json:"severity"`
	Description      string         `json:"description"`
	InjuredPerson    string         `json:"injuredPerson,omitempty"`
	ImmediateAction  string         `json:"immediateAction,omitempty"`
	RootCause        string         `json:"rootCause,omitempty"`
	CorrectiveAction string         `json:"correctiveAction,omitempty"`
	Status           IncidentStatus `json:"status"`
	ClosedAt         *time.Time     `json:"closedAt,omitempty"`
	History          []HistoryEntry `json:"history"`
}

func (i SafetyIncident) RecordDate() time.Time { return i.Date }
func (i SafetyIncident) RecordStatus() string  { return string(i.Status) }
func (i SafetyIncident) SearchText() string {
	return joinSearch(i.IncidentNumber, i.Location, string(i.IncidentType), i.Description, i.InjuredPerson)
}
