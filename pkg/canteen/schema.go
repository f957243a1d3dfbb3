package canteen

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
)

// Cache keys of the four collections.
const (
	StallsKey    = "canteen_stalls"
	TenantsKey   = "canteen_tenants"
	ContractsKey = "canteen_contracts"
	PaymentsKey  = "canteen_payments"
)

// Remote resource paths.
const (
	stallsPath    = "stalls"
	tenantsPath   = "tenants"
	contractsPath = "contracts"
	paymentsPath  = "payments"
)

func stallSchema() dualstore.Schema[Stall, int64] {
	return dualstore.Schema[Stall, int64]{
		Name:    stallsPath,
		Key:     func(s Stall) int64 { return s.ID },
		WithKey: func(s Stall, id int64) Stall { s.ID = id; return s },
		Stamp: func(s Stall, created, updated time.Time) Stall {
			if !created.IsZero() {
				s.CreatedAt = created
			}
			s.UpdatedAt = updated
			return s
		},
		Validate: validateStall,
		NewKey:   dualstore.IntKeys[int64](),
	}
}

func tenantSchema() dualstore.Schema[Tenant, int64] {
	return dualstore.Schema[Tenant, int64]{
		Name:    tenantsPath,
		Key:     func(t Tenant) int64 { return t.ID },
		WithKey: func(t Tenant, id int64) Tenant { t.ID = id; return t },
		Stamp: func(t Tenant, created, updated time.Time) Tenant {
			if !created.IsZero() {
				t.CreatedAt = created
			}
			t.UpdatedAt = updated
			return t
		},
		Validate: validateTenant,
		NewKey:   dualstore.IntKeys[int64](),
	}
}

func contractSchema() dualstore.Schema[Contract, int64] {
	return dualstore.Schema[Contract, int64]{
		Name:    contractsPath,
		Key:     func(c Contract) int64 { return c.ID },
		WithKey: func(c Contract, id int64) Contract { c.ID = id; return c },
		Stamp: func(c Contract, created, updated time.Time) Contract {
			if !created.IsZero() {
				c.CreatedAt = created
			}
			c.UpdatedAt = updated
			return c
		},
		Validate: validateContract,
		NewKey:   dualstore.IntKeys[int64](),
	}
}

func paymentSchema() dualstore.Schema[Payment, int64] {
	return dualstore.Schema[Payment, int64]{
		Name:    paymentsPath,
		Key:     func(p Payment) int64 { return p.ID },
		WithKey: func(p Payment, id int64) Payment { p.ID = id; return p },
		Stamp: func(p Payment, created, updated time.Time) Payment {
			if !created.IsZero() {
				p.CreatedAt = created
			}
			p.UpdatedAt = updated
			return p
		},
		Validate: validatePayment,
		NewKey:   dualstore.IntKeys[int64](),
	}
}

func validateStall(s Stall) error {
	if strings.TrimSpace(s.StallNumber) == "" {
		return dualstore.Invalid("stall_number", "is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return dualstore.Invalid("name", "is required")
	}
	if s.MonthlyRent < 0 {
		return dualstore.Invalid("monthly_rent", "must not be negative")
	}
	return nil
}

func validateTenant(t Tenant) error {
	if strings.TrimSpace(t.Name) == "" {
		return dualstore.Invalid("name", "is required")
	}
	return validateEmail(t.Email)
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return dualstore.Invalid("email", "is not a valid address")
	}
	return nil
}

func validateContract(c Contract) error {
	switch {
	case c.StallID <= 0:
		return dualstore.Invalid("stall_id", "is required")
	case c.TenantID <= 0:
		return dualstore.Invalid("tenant_id", "is required")
	case c.StartDate.IsZero():
		return dualstore.Invalid("start_date", "is required")
	case !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate):
		return dualstore.Invalid("end_date", "must not precede start_date")
	case c.MonthlyRent < 0:
		return dualstore.Invalid("monthly_rent", "must not be negative")
	case c.Deposit < 0:
		return dualstore.Invalid("deposit", "must not be negative")
	}
	return nil
}

func validatePayment(p Payment) error {
	switch {
	case p.StallID <= 0:
		return dualstore.Invalid("stall_id", "is required")
	case p.TenantID <= 0:
		return dualstore.Invalid("tenant_id", "is required")
	case p.Year <= 0:
		return dualstore.Invalid("year", "is required")
	case p.Amount < 0:
		return dualstore.Invalid("amount", "must not be negative")
	case p.DueDate.IsZero():
		return dualstore.Invalid("due_date", "is required")
	}
	if _, err := ParseMonth(p.Month); err != nil {
		return dualstore.Invalid("month", "is not a month name")
	}
	return nil
}

// OccupiedStalls selects stalls by occupancy.
func OccupiedStalls(occupied bool) dualstore.Filter[Stall] {
	return dualstore.Where(
		url.Values{"is_occupied": {boolParam(occupied)}},
		func(s Stall) bool { return s.IsOccupied == occupied },
	)
}

// ActiveContracts selects contracts whose active flag is set.
func ActiveContracts() dualstore.Filter[Contract] {
	return dualstore.Where(
		url.Values{"is_active": {"1"}},
		func(c Contract) bool { return c.IsActive },
	)
}

// ContractsForStall selects every contract of one stall.
func ContractsForStall(stallID int64) dualstore.Filter[Contract] {
	return dualstore.Where(
		url.Values{"stall_id": {strconv.FormatInt(stallID, 10)}},
		func(c Contract) bool { return c.StallID == stallID },
	)
}

// PaymentsForPeriod selects the payments billing period.
func PaymentsForPeriod(period Period) dualstore.Filter[Payment] {
	return dualstore.Where(
		url.Values{"month": {period.Token()}, "year": {strconv.Itoa(period.Year)}},
		func(p Payment) bool { return p.InPeriod(period) },
	)
}

// UnpaidPayments selects payments not yet settled.
func UnpaidPayments() dualstore.Filter[Payment] {
	return dualstore.Where(
		url.Values{"is_paid": {"0"}},
		func(p Payment) bool { return !p.IsPaid },
	)
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
