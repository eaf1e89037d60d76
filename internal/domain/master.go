package domain

import "time"

// MasterItem product / material master entry
type MasterItem struct {
	Meta
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Unit          string `json:"unit"`
	Specification string `json:"specification,omitempty"`
	Active        bool   `json:"active"`
}

func (m MasterItem) RecordDate() time.Time { return m.CreatedAt }
func (m MasterItem) RecordStatus() string  { return activeStatus(m.Active) }
func (m MasterItem) SearchText() string    { return joinSearch(m.Code, m.Name, m.Category) }

// Customer master entry
type Customer struct {
	Meta
	Code        string `json:"code"`
	Name        string `json:"name"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Active      bool   `json:"active"`
}

func (c Customer) RecordDate() time.Time { return c.CreatedAt }
func (c Customer) RecordStatus() string  { return activeStatus(c.Active) }
func (c Customer) SearchText() string    { return joinSearch(c.Code, c.Name, c.ContactName, c.Email) }

// Supplier master entry
type Supplier struct {
	Meta
	Code        string `json:"code"`
	Name        string `json:"name"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email,omitempty"`
	Approved    bool   `json:"approved"`
	Active      bool   `json:"active"`
}

func (s Supplier) RecordDate() time.Time { return s.CreatedAt }
func (s Supplier) RecordStatus() string  { return activeStatus(s.Active) }
func (s Supplier) SearchText() string    { return joinSearch(s.Code, s.Name, s.ContactName, s.Email) }

func activeStatus(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "INACTIVE"
}
