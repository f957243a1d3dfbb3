package canteen

import (
	"encoding/json"
	"strings"

	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
)

// StallPatch changes the fields it sets. ClearTenant removes the tenant
// reference and wins over TenantID.
type StallPatch struct {
	StallNumber *string  `json:"stall_number,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Location    *string  `json:"location,omitempty"`
	MonthlyRent *float64 `json:"monthly_rent,omitempty"`
	IsOccupied  *bool    `json:"is_occupied,omitempty"`
	TenantID    *int64   `json:"tenant_id,omitempty"`
	ClearTenant bool     `json:"-"`
	Description *string  `json:"description,omitempty"`
}

func (p StallPatch) Apply(s Stall) Stall {
	setString(&s.StallNumber, p.StallNumber)
	setString(&s.Name, p.Name)
	setString(&s.Location, p.Location)
	setFloat(&s.MonthlyRent, p.MonthlyRent)
	setBool(&s.IsOccupied, p.IsOccupied)
	setString(&s.Description, p.Description)
	switch {
	case p.ClearTenant:
		s.TenantID = nil
	case p.TenantID != nil:
		id := *p.TenantID
		s.TenantID = &id
	}
	return s
}

func (p StallPatch) Validate() error {
	if err := notBlank("stall_number", p.StallNumber); err != nil {
		return err
	}
	if err := notBlank("name", p.Name); err != nil {
		return err
	}
	if p.MonthlyRent != nil && *p.MonthlyRent < 0 {
		return dualstore.Invalid("monthly_rent", "must not be negative")
	}
	if p.TenantID != nil && *p.TenantID <= 0 {
		return dualstore.Invalid("tenant_id", "must be positive")
	}
	return nil
}

// MarshalJSON sends an explicit null tenant_id for ClearTenant.
func (p StallPatch) MarshalJSON() ([]byte, error) {
	type plain StallPatch
	data, err := json.Marshal(plain(p))
	if err != nil || !p.ClearTenant {
		return data, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["tenant_id"] = nil
	return json.Marshal(fields)
}

// UnmarshalJSON reads an explicit null tenant_id as ClearTenant.
func (p *StallPatch) UnmarshalJSON(data []byte) error {
	type plain StallPatch
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["tenant_id"]
	decoded.ClearTenant = ok && string(raw) == "null"
	*p = StallPatch(decoded)
	return nil
}

// TenantPatch changes the fields it sets.
type TenantPatch struct {
	Name          *string `json:"name,omitempty"`
	BusinessName  *string `json:"business_name,omitempty"`
	ContactNumber *string `json:"contact_number,omitempty"`
	Email         *string `json:"email,omitempty"`
	Address       *string `json:"address,omitempty"`
}

func (p TenantPatch) Apply(t Tenant) Tenant {
	setString(&t.Name, p.Name)
	setString(&t.BusinessName, p.BusinessName)
	setString(&t.ContactNumber, p.ContactNumber)
	setString(&t.Email, p.Email)
	setString(&t.Address, p.Address)
	return t
}

func (p TenantPatch) Validate() error {
	if err := notBlank("name", p.Name); err != nil {
		return err
	}
	if p.Email != nil {
		return validateEmail(*p.Email)
	}
	return nil
}

// ContractPatch changes the fields it sets.
type ContractPatch struct {
	StallID     *int64   `json:"stall_id,omitempty"`
	TenantID    *int64   `json:"tenant_id,omitempty"`
	StartDate   *Date    `json:"start_date,omitempty"`
	EndDate     *Date    `json:"end_date,omitempty"`
	MonthlyRent *float64 `json:"monthly_rent,omitempty"`
	Deposit     *float64 `json:"deposit,omitempty"`
	Terms       *string  `json:"terms,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

func (p ContractPatch) Apply(c Contract) Contract {
	if p.StallID != nil {
		c.StallID = *p.StallID
	}
	if p.TenantID != nil {
		c.TenantID = *p.TenantID
	}
	if p.StartDate != nil {
		c.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	setFloat(&c.MonthlyRent, p.MonthlyRent)
	setFloat(&c.Deposit, p.Deposit)
	setString(&c.Terms, p.Terms)
	setBool(&c.IsActive, p.IsActive)
	return c
}

func (p ContractPatch) Validate() error {
	if p.StallID != nil && *p.StallID <= 0 {
		return dualstore.Invalid("stall_id", "must be positive")
	}
	if p.TenantID != nil && *p.TenantID <= 0 {
		return dualstore.Invalid("tenant_id", "must be positive")
	}
	if p.StartDate != nil && p.StartDate.IsZero() {
		return dualstore.Invalid("start_date", "must not be empty")
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.IsZero() && p.EndDate.Before(*p.StartDate) {
		return dualstore.Invalid("end_date", "must not precede start_date")
	}
	if p.MonthlyRent != nil && *p.MonthlyRent < 0 {
		return dualstore.Invalid("monthly_rent", "must not be negative")
	}
	if p.Deposit != nil && *p.Deposit < 0 {
		return dualstore.Invalid("deposit", "must not be negative")
	}
	return nil
}

// PaymentPatch changes the fields it sets.
type PaymentPatch struct {
	Amount          *float64 `json:"amount,omitempty"`
	DueDate         *Date    `json:"due_date,omitempty"`
	IsPaid          *bool    `json:"is_paid,omitempty"`
	PaidDate        *Date    `json:"paid_date,omitempty"`
	PaymentMethod   *string  `json:"payment_method,omitempty"`
	ReferenceNumber *string  `json:"reference_number,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
}

func (p PaymentPatch) Apply(pay Payment) Payment {
	setFloat(&pay.Amount, p.Amount)
	if p.DueDate != nil {
		pay.DueDate = *p.DueDate
	}
	setBool(&pay.IsPaid, p.IsPaid)
	if p.PaidDate != nil {
		pay.PaidDate = *p.PaidDate
	}
	setString(&pay.PaymentMethod, p.PaymentMethod)
	setString(&pay.ReferenceNumber, p.ReferenceNumber)
	setString(&pay.Notes, p.Notes)
	return pay
}

func (p PaymentPatch) Validate() error {
	if p.Amount != nil && *p.Amount < 0 {
		return dualstore.Invalid("amount", "must not be negative")
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return dualstore.Invalid("due_date", "must not be empty")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func notBlank(field string, v *string) error {
	if v != nil && strings.TrimSpace(*v) == "" {
		return dualstore.Invalid(field, "must not be empty")
	}
	return nil
}
