package entity

import "time"

// Company carries the denormalized status fields the effect synchronizer
// writes. The registry platform owns the full company record; this engine
// only touches status and the attribute document.
type Company struct {
	ID         int64     `json:"id"`
	RegNumber  string    `json:"reg_number"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Attributes string    `json:"attributes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegistryApplication is one filing a company has open with the registry.
// Business effects cascade a parallel status onto all open applications of
// the target company.
type RegistryApplication struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
