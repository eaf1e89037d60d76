package domain

import "time"

type TrainingStatus string

const (
	TrainingAssigned  TrainingStatus = "ASSIGNED"
	TrainingCompleted TrainingStatus = "COMPLETED"
	TrainingOverdue   TrainingStatus = "OVERDUE"
)

// TrainingRecord a user's read-and-understood training on a document version
type TrainingRecord struct {
	Meta
	UserID          string         `json:"userId"`
	DocumentID      string         `json:"documentId"`
	DocumentVersion int            `json:"documentVersion"`
	AssignedBy      string         `json:"assignedBy"`
	AssignedDate    time.Time      `json:"assignedDate"`
	DueDate         *time.Time     `json:"dueDate,omitempty"`
	Status          TrainingStatus `json:"status"`
	CompletedDate   *time.Time     `json:"completedDate,omitempty"`
	Score           *int           `json:"score,omitempty"`
}

func (t TrainingRecord) RecordDate() time.Time { return t.AssignedDate }
func (t TrainingRecord) RecordStatus() string  { return string(t.Status) }
func (t TrainingRecord) SearchText() string    { return joinSearch(t.UserID, t.DocumentID) }

// EffectiveStatus derives OVERDUE for open records past their due date.
func (t TrainingRecord) EffectiveStatus(now time.Time) TrainingStatus {
	if t.Status == TrainingCompleted {
		return TrainingCompleted
	}
	if t.DueDate != nil && now.After(*t.DueDate) {
		return TrainingOverdue
	}
	return TrainingAssigned
}
