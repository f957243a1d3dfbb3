package canteen_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posrental/canteen_sdk_go/internal/httpx"
	"github.com/posrental/canteen_sdk_go/pkg/canteen"
	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/mock"
)

var testNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func newOfflineService(t *testing.T) (*canteen.Service, *mock.Mock) {
	t.Helper()
	store := mock.New()
	svc, err := canteen.New(store, nil, canteen.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, store
}

// newUnreachableService points every collection at a server that never
// answers within the remote timeout.
func newUnreachableService(t *testing.T) *canteen.Service {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client, err := httpx.NewClient(srv.URL + "/api")
	require.NoError(t, err)
	remotes, err := canteen.NewHTTPRemotes(client)
	require.NoError(t, err)

	svc, err := canteen.New(mock.New(), remotes,
		canteen.WithClock(func() time.Time { return testNow }),
		canteen.WithTimeout(30*time.Millisecond),
	)
	require.NoError(t, err)
	return svc
}

func TestOfflineTenantCreateIsReadable(t *testing.T) {
	ctx := context.Background()
	svc := newUnreachableService(t)

	created, err := svc.Tenants().Create(ctx, canteen.Tenant{Name: "Ana", BusinessName: "Ana's Stall"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, testNow, created.CreatedAt)
	assert.Equal(t, testNow, created.UpdatedAt)

	got, err := svc.Tenants().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	all, err := svc.Tenants().List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []canteen.Tenant{created}, all)
}

func TestStallDefaultsSeededOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOfflineService(t)

	stalls, err := svc.Stalls().List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, stalls, 6)
	for _, s := range stalls {
		assert.False(t, s.IsOccupied)
	}

	for _, s := range stalls {
		require.NoError(t, svc.Stalls().Delete(ctx, s.ID))
	}
	stalls, err = svc.Stalls().List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, stalls, "an emptied collection must not be reseeded")

	tenants, err := svc.Tenants().List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func seedContracts(t *testing.T, svc *canteen.Service, rents ...float64) []canteen.Contract {
	t.Helper()
	ctx := context.Background()
	var out []canteen.Contract
	for i, rent := range rents {
		c, err := svc.Contracts().Create(ctx, canteen.Contract{
			StallID:     int64(i + 1),
			TenantID:    int64(100 + i),
			StartDate:   canteen.NewDate(2026, time.January, 1),
			MonthlyRent: rent,
			IsActive:    true,
		})
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestGenerateMonthlyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOfflineService(t)
	seedContracts(t, svc, 4000, 4500, 5000)

	_, err := svc.Contracts().Create(ctx, canteen.Contract{
		StallID: 4, TenantID: 200, StartDate: canteen.NewDate(2025, time.June, 1), MonthlyRent: 9000,
	})
	require.NoError(t, err)

	period := canteen.Period{Month: time.October, Year: 2026}
	first, err := svc.GenerateMonthly(ctx, period)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := svc.GenerateMonthly(ctx, period)
	require.NoError(t, err)
	assert.Empty(t, second)

	payments, err := svc.Payments().List(ctx, canteen.PaymentsForPeriod(period))
	require.NoError(t, err)
	require.Len(t, payments, 3)

	seen := map[int64]bool{}
	for _, p := range payments {
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
		assert.Equal(t, "October", p.Month)
		assert.Equal(t, canteen.NewDate(2026, time.October, canteen.DefaultDueDay), p.DueDate)
		assert.False(t, p.IsPaid)
	}

	next, err := svc.GenerateMonthly(ctx, canteen.Period{Month: time.November, Year: 2026})
	require.NoError(t, err)
	assert.Len(t, next, 3)
}

func TestGenerateMonthlyRejectsInvalidPeriod(t *testing.T) {
	svc, _ := newOfflineService(t)
	_, err := svc.GenerateMonthly(context.Background(), canteen.Period{})
	assert.True(t, errors.Is(err, dualstore.ErrValidation))
}

func TestMarkPaidOffline(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOfflineService(t)
	seedContracts(t, svc, 4000)

	generated, err := svc.GenerateMonthly(ctx, canteen.PeriodOf(testNow))
	require.NoError(t, err)
	require.Len(t, generated, 1)

	paid, err := svc.MarkPaid(ctx, generated[0].ID, canteen.PaymentDetails{PaymentMethod: "cash", ReferenceNumber: "OR-1"})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, canteen.DateOf(testNow), paid.PaidDate)
	assert.Equal(t, "cash", paid.PaymentMethod)
	assert.Equal(t, "OR-1", paid.ReferenceNumber)
	assert.Equal(t, canteen.StatusPaid, canteen.PaymentStatus(paid, testNow))

	_, err = svc.MarkPaid(ctx, 12345, canteen.PaymentDetails{})
	assert.True(t, errors.Is(err, dualstore.ErrNotFound))
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOfflineService(t)

	occupied := true
	for _, id := range []int64{1, 2} {
		_, err := svc.Stalls().Update(ctx, id, canteen.StallPatch{IsOccupied: &occupied})
		require.NoError(t, err)
	}
	seedContracts(t, svc, 4000, 6000)

	created, err := svc.GenerateMonthly(ctx, canteen.PeriodOf(testNow))
	require.NoError(t, err)
	require.Len(t, created, 2)
	_, err = svc.MarkPaid(ctx, created[0].ID, canteen.PaymentDetails{PaymentMethod: "gcash"})
	require.NoError(t, err)

	// Last month's unpaid payment must not count towards this period.
	_, err = svc.Payments().Create(ctx, canteen.Payment{
		StallID: 1, TenantID: 100, Month: "September", Year: 2026, Amount: 4000,
		DueDate: canteen.NewDate(2026, time.September, 5),
	})
	require.NoError(t, err)

	stats, err := svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalStalls)
	assert.Equal(t, 2, stats.OccupiedStalls)
	assert.Equal(t, 4, stats.VacantStalls)
	assert.Equal(t, 2, stats.ActiveContracts)
	assert.Equal(t, 10000.0, stats.TotalMonthlyRent)
	assert.Equal(t, created[0].Amount, stats.PaidThisMonth)
	assert.Equal(t, created[1].Amount, stats.UnpaidThisMonth)
	assert.Equal(t, 10000.0, stats.PaidThisMonth+stats.UnpaidThisMonth)
	// Due on the 5th, today is the 16th.
	assert.Equal(t, 1, stats.OverduePayments)
}

func TestPaymentStatus(t *testing.T) {
	due := canteen.NewDate(2026, time.October, 5)
	p := canteen.Payment{DueDate: due}

	assert.Equal(t, canteen.StatusPending, canteen.PaymentStatus(p, time.Date(2026, 10, 5, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, canteen.StatusOverdue, canteen.PaymentStatus(p, time.Date(2026, 10, 6, 0, 0, 1, 0, time.UTC)))

	p.IsPaid = true
	assert.Equal(t, canteen.StatusPaid, canteen.PaymentStatus(p, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newOfflineService(t)

	cases := []struct {
		name  string
		run   func() error
		field string
	}{
		{"tenant without name", func() error {
			_, err := svc.Tenants().Create(ctx, canteen.Tenant{BusinessName: "x"})
			return err
		}, "name"},
		{"tenant bad email", func() error {
			_, err := svc.Tenants().Create(ctx, canteen.Tenant{Name: "Ana", Email: "not-an-email"})
			return err
		}, "email"},
		{"contract end before start", func() error {
			_, err := svc.Contracts().Create(ctx, canteen.Contract{
				StallID: 1, TenantID: 1,
				StartDate: canteen.NewDate(2026, 5, 1), EndDate: canteen.NewDate(2026, 4, 1),
			})
			return err
		}, "end_date"},
		{"payment bad month", func() error {
			_, err := svc.Payments().Create(ctx, canteen.Payment{
				StallID: 1, TenantID: 1, Month: "Smarch", Year: 2026, DueDate: canteen.NewDate(2026, 1, 5),
			})
			return err
		}, "month"},
		{"stall negative rent patch", func() error {
			rent := -1.0
			_, err := svc.Stalls().Update(ctx, 1, canteen.StallPatch{MonthlyRent: &rent})
			return err
		}, "monthly_rent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			var verr *dualstore.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Zero(t, store.Writes())
}

func TestStallPatchClearTenant(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOfflineService(t)

	tenantID := int64(42)
	occupied := true
	s, err := svc.Stalls().Update(ctx, 3, canteen.StallPatch{TenantID: &tenantID, IsOccupied: &occupied})
	require.NoError(t, err)
	require.NotNil(t, s.TenantID)
	assert.Equal(t, int64(42), *s.TenantID)

	vacant := false
	s, err = svc.Stalls().Update(ctx, 3, canteen.StallPatch{ClearTenant: true, IsOccupied: &vacant})
	require.NoError(t, err)
	assert.Nil(t, s.TenantID)
	assert.False(t, s.IsOccupied)
	assert.Equal(t, "Stall 3", s.Name)
}
