package domain

import "time"

type InspectionResult string

const (
	InspectionPass InspectionResult = "PASS"
	InspectionFail InspectionResult = "FAIL"
)

// InspectionCheck one measured parameter
type InspectionCheck struct {
	Parameter     string `json:"parameter"`
	Specification string `json:"specification"`
	Measured      string `json:"measured"`
	Pass          bool   `json:"pass"`
}

// QAInspection final/in-process inspection of a job
type QAInspection struct {
	Meta
	JobNumber   string            `json:"jobNumber"`
	CustomerID  string            `json:"customerId,omitempty"`
	ItemID      string            `json:"itemId,omitempty"`
	InspectorID string            `json:"inspectorId"`
	Date        time.Time         `json:"date"`
	LotSize     int               `json:"lotSize"`
	SampleSize  int               `json:"sampleSize"`
	Checks      []InspectionCheck `json:"checks"`
	Result      InspectionResult  `json:"result"`
	COANumber   string            `json:"coaNumber,omitempty"`
	Remarks     string            `json:"remarks,omitempty"`
}

func (q QAInspection) RecordDate() time.Time { return q.Date }
func (q QAInspection) RecordStatus() string  { return string(q.Result) }
func (q QAInspection) SearchText() string {
	return joinSearch(q.JobNumber, q.COANumber, q.Remarks)
}

// Evaluate PASS only when there is at least one check and every check passed.
func (q *QAInspection) Evaluate() InspectionResult {
	if len(q.Checks) == 0 {
		return InspectionFail
	}
	for _, c := range q.Checks {
		if !c.Pass {
			return InspectionFail
		}
	}
	return InspectionPass
}

// CertificateOfAnalysis payload a client renders as the COA document
type CertificateOfAnalysis struct {
	COANumber    string            `json:"coaNumber"`
	IssuedAt     time.Time         `json:"issuedAt"`
	JobNumber    string            `json:"jobNumber"`
	Customer     *Customer         `json:"customer,omitempty"`
	Item         *MasterItem       `json:"item,omitempty"`
	Inspector    string            `json:"inspector"`
	InspectedOn  time.Time         `json:"inspectedOn"`
	LotSize      int               `json:"lotSize"`
	SampleSize   int               `json:"sampleSize"`
	Checks       []InspectionCheck `json:"checks"`
	Conclusion   string            `json:"conclusion"`
	InspectionID string            `json:"inspectionId"`
}
