package canteen

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
)

const (
	actionMarkPaid        = "mark-paid"
	actionGenerateMonthly = "generate-monthly"
)

// MarkPaid settles payment id, recording details on it.
func (s *Service) MarkPaid(ctx context.Context, id int64, details PaymentDetails) (Payment, error) {
	if details.PaidDate.IsZero() {
		details.PaidDate = DateOf(s.now())
	}
	paid := true
	patch := PaymentPatch{
		IsPaid:          &paid,
		PaidDate:        &details.PaidDate,
		PaymentMethod:   optional(details.PaymentMethod),
		ReferenceNumber: optional(details.ReferenceNumber),
		Notes:           optional(details.Notes),
	}
	return s.payments.Action(ctx, id, actionMarkPaid, details, patch)
}

type generateRequest struct {
	Month  string `json:"month"`
	Year   int    `json:"year"`
	DueDay int    `json:"due_day"`
}

type billingKey struct {
	stallID  int64
	tenantID int64
}

// GenerateMonthly creates one payment for period per active contract, unless
// the contract's stall and tenant already have one for that period. Calling
// it again for the same period creates nothing. The active contracts are read
// once, before any payment is considered.
func (s *Service) GenerateMonthly(ctx context.Context, period Period) ([]Payment, error) {
	if !period.Valid() {
		return nil, dualstore.Invalid("period", "month and year are required")
	}
	contracts, err := s.contracts.List(ctx, ActiveContracts())
	if err != nil {
		return nil, err
	}
	due := period.Day(s.dueDay)

	local := func(current []Payment, create func(Payment) Payment) ([]Payment, error) {
		billed := make(map[billingKey]struct{}, len(current))
		for _, p := range current {
			if p.InPeriod(period) {
				billed[billingKey{p.StallID, p.TenantID}] = struct{}{}
			}
		}
		var out []Payment
		for _, c := range contracts {
			if !c.IsActive {
				continue
			}
			k := billingKey{c.StallID, c.TenantID}
			if _, ok := billed[k]; ok {
				continue
			}
			billed[k] = struct{}{}
			out = append(out, create(Payment{
				StallID:  c.StallID,
				TenantID: c.TenantID,
				Month:    period.Token(),
				Year:     period.Year,
				Amount:   c.MonthlyRent,
				DueDate:  due,
			}))
		}
		return out, nil
	}

	body := generateRequest{Month: period.Token(), Year: period.Year, DueDay: s.dueDay}
	created, err := s.payments.Bulk(ctx, actionGenerateMonthly, body, local)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generated monthly payments",
		zap.Stringer("period", period),
		zap.Int("active_contracts", len(contracts)),
		zap.Int("created", len(created)),
	)
	return created, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
