package canteen

import "time"

// Stall is a rentable canteen space.
type Stall struct {
	ID          int64     `json:"id,omitempty"`
	StallNumber string    `json:"stall_number"`
	Name        string    `json:"name"`
	Location    string    `json:"location,omitempty"`
	MonthlyRent float64   `json:"monthly_rent"`
	IsOccupied  bool      `json:"is_occupied"`
	TenantID    *int64    `json:"tenant_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tenant is a business renting, or able to rent, a stall.
type Tenant struct {
	ID            int64     `json:"id,omitempty"`
	Name          string    `json:"name"`
	BusinessName  string    `json:"business_name,omitempty"`
	ContactNumber string    `json:"contact_number,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Contract leases one stall to one tenant. A stall has at most one active
// contract at a time; callers enforce that.
type Contract struct {
	ID          int64     `json:"id,omitempty"`
	StallID     int64     `json:"stall_id"`
	TenantID    int64     `json:"tenant_id"`
	StartDate   Date      `json:"start_date"`
	EndDate     Date      `json:"end_date"`
	MonthlyRent float64   `json:"monthly_rent"`
	Deposit     float64   `json:"deposit"`
	Terms       string    `json:"terms,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Payment is the rent due from one tenant for one stall and billing period.
type Payment struct {
	ID              int64     `json:"id,omitempty"`
	StallID         int64     `json:"stall_id"`
	TenantID        int64     `json:"tenant_id"`
	Month           string    `json:"month"`
	Year            int       `json:"year"`
	Amount          float64   `json:"amount"`
	DueDate         Date      `json:"due_date"`
	IsPaid          bool      `json:"is_paid"`
	PaidDate        Date      `json:"paid_date"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Period returns the billing period of p. ok is false when the stored month
// token cannot be parsed.
func (p Payment) Period() (period Period, ok bool) {
	m, err := ParseMonth(p.Month)
	if err != nil {
		return Period{}, false
	}
	return Period{Month: m, Year: p.Year}, true
}

// InPeriod reports whether p bills period.
func (p Payment) InPeriod(period Period) bool {
	got, ok := p.Period()
	return ok && got == period
}

// Status is the derived state of a payment.
type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

// PaymentStatus derives the state of p at now. A paid payment is never
// overdue; an unpaid one is overdue once its due date is behind today.
func PaymentStatus(p Payment, now time.Time) Status {
	if p.IsPaid {
		return StatusPaid
	}
	if !p.DueDate.IsZero() && p.DueDate.Before(DateOf(now)) {
		return StatusOverdue
	}
	return StatusPending
}

// DashboardStats summarises occupancy and the current billing period.
type DashboardStats struct {
	Period           Period  `json:"-"`
	TotalStalls      int     `json:"total_stalls"`
	OccupiedStalls   int     `json:"occupied_stalls"`
	VacantStalls     int     `json:"vacant_stalls"`
	ActiveContracts  int     `json:"active_contracts"`
	TotalMonthlyRent float64 `json:"total_monthly_rent"`
	PaidThisMonth    float64 `json:"paid_this_month"`
	UnpaidThisMonth  float64 `json:"unpaid_this_month"`
	OverduePayments  int     `json:"overdue_payments"`
}

// PaymentDetails is the metadata recorded when a payment is settled. A zero
// PaidDate means today.
type PaymentDetails struct {
	PaidDate        Date   `json:"paid_date"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Notes           string `json:"notes,omitempty"`
}
