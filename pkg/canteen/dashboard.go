package canteen

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DashboardStats summarises occupancy, rent and the current period's
// payments. The three collections are listed concurrently, each through its
// own remote-or-cache path, and nothing is cached between calls.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	now := s.now()
	period := PeriodOf(now)

	var (
		stalls    []Stall
		contracts []Contract
		payments  []Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stalls, err = s.stalls.List(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		contracts, err = s.contracts.List(gctx, ActiveContracts())
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.payments.List(gctx, PaymentsForPeriod(period))
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return computeStats(period, now, stalls, contracts, payments), nil
}

func computeStats(period Period, now time.Time, stalls []Stall, contracts []Contract, payments []Payment) DashboardStats {
	stats := DashboardStats{Period: period, TotalStalls: len(stalls)}
	for _, st := range stalls {
		if st.IsOccupied {
			stats.OccupiedStalls++
		}
	}
	stats.VacantStalls = stats.TotalStalls - stats.OccupiedStalls

	for _, c := range contracts {
		if !c.IsActive {
			continue
		}
		stats.ActiveContracts++
		stats.TotalMonthlyRent += c.MonthlyRent
	}

	for _, p := range payments {
		if !p.InPeriod(period) {
			continue
		}
		switch PaymentStatus(p, now) {
		case StatusPaid:
			stats.PaidThisMonth += p.Amount
		case StatusOverdue:
			stats.OverduePayments++
			stats.UnpaidThisMonth += p.Amount
		default:
			stats.UnpaidThisMonth += p.Amount
		}
	}
	return stats
}
