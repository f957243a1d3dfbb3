package dualstore_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posrental/canteen_sdk_go/internal/metrics"
	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
	"github.com/posrental/canteen_sdk_go/pkg/localcache"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/mock"
)

type note struct {
	ID        int64     `json:"id,omitempty"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type notePatch struct {
	Title *string `json:"title,omitempty"`
	Done  *bool   `json:"done,omitempty"`
}

func (p notePatch) Apply(n note) note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Done != nil {
		n.Done = *p.Done
	}
	return n
}

func (p notePatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return dualstore.Invalid("title", "must not be empty")
	}
	return nil
}

func noteSchema() dualstore.Schema[note, int64] {
	return dualstore.Schema[note, int64]{
		Name:    "notes",
		Key:     func(n note) int64 { return n.ID },
		WithKey: func(n note, id int64) note { n.ID = id; return n },
		Stamp: func(n note, created, updated time.Time) note {
			if !created.IsZero() {
				n.CreatedAt = created
			}
			n.UpdatedAt = updated
			return n
		},
		Validate: func(n note) error {
			if n.Title == "" {
				return dualstore.Invalid("title", "is required")
			}
			return nil
		},
		NewKey: dualstore.IntKeys[int64](),
	}
}

// fakeRemote is an in-process remote store that can be switched off.
type fakeRemote struct {
	mu     sync.Mutex
	down   bool
	delay  time.Duration
	notes  map[int64]note
	nextID int64
	calls  int
	bulk   []note
}

func newFakeRemote(seed ...note) *fakeRemote {
	r := &fakeRemote{notes: map[int64]note{}, nextID: 100}
	for _, n := range seed {
		r.notes[n.ID] = n
	}
	return r
}

func (r *fakeRemote) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.calls++
	down, delay := r.down, r.delay
	r.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if down {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (r *fakeRemote) setDown(down bool) {
	r.mu.Lock()
	r.down = down
	r.mu.Unlock()
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRemote) List(ctx context.Context, query url.Values) ([]note, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []note{}
	for _, n := range r.notes {
		if query.Get("done") == "1" && !n.Done {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRemote) Get(ctx context.Context, id int64) (note, error) {
	if err := r.enter(ctx); err != nil {
		return note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return note{}, fmt.Errorf("http error: status=404")
	}
	return n, nil
}

func (r *fakeRemote) Create(ctx context.Context, n note) (note, error) {
	if err := r.enter(ctx); err != nil {
		return note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.UpdatedAt = n.CreatedAt
	r.notes[n.ID] = n
	return n, nil
}

func (r *fakeRemote) Update(ctx context.Context, id int64, patch any) (note, error) {
	if err := r.enter(ctx); err != nil {
		return note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return note{}, fmt.Errorf("http error: status=404")
	}
	n = patch.(notePatch).Apply(n)
	r.notes[id] = n
	return n, nil
}

func (r *fakeRemote) Delete(ctx context.Context, id int64) error {
	if err := r.enter(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id)
	return nil
}

func (r *fakeRemote) ItemAction(ctx context.Context, id int64, action string, body any) (note, error) {
	if err := r.enter(ctx); err != nil {
		return note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.notes[id]
	n.Done = true
	r.notes[id] = n
	return n, nil
}

func (r *fakeRemote) CollectionAction(ctx context.Context, action string, body any) ([]note, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}
	return r.bulk, nil
}

type fixture struct {
	client  *dualstore.Client[note, int64]
	remote  *fakeRemote
	store   *mock.Mock
	cache   *localcache.Collection[note]
	metrics *metrics.Metrics
	now     time.Time
}

func newFixture(t *testing.T, rs *fakeRemote, opts ...dualstore.Option) *fixture {
	t.Helper()
	f := &fixture{
		remote:  rs,
		store:   mock.New(),
		metrics: metrics.Nop(),
		now:     time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
	cache, err := localcache.NewCollection[note](f.store, "notes", nil)
	require.NoError(t, err)
	f.cache = cache

	opts = append([]dualstore.Option{
		dualstore.WithMetrics(f.metrics),
		dualstore.WithClock(func() time.Time { return f.now }),
		dualstore.WithTimeout(200 * time.Millisecond),
	}, opts...)

	var client *dualstore.Client[note, int64]
	if rs == nil {
		client, err = dualstore.New[note, int64](noteSchema(), nil, cache, opts...)
	} else {
		client, err = dualstore.New[note, int64](noteSchema(), rs, cache, opts...)
	}
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *fixture) cached(t *testing.T) []note {
	t.Helper()
	items, err := f.cache.Load(context.Background())
	require.NoError(t, err)
	return items
}

func TestListRemoteReplacesWholeCache(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 1, Title: "one"}, note{ID: 2, Title: "two"})
	f := newFixture(t, rs)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 9, Title: "stale"}, {ID: 1, Title: "old one"}}))

	items, err := f.client.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 1, Title: "one"}, {ID: 2, Title: "two"}}, items)
	assert.Equal(t, items, f.cached(t))
}

func TestListFallsBackAndFiltersLocally(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote()
	rs.setDown(true)
	f := newFixture(t, rs)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 1, Title: "a", Done: true}, {ID: 2, Title: "b"}}))

	done := dualstore.Where(url.Values{"done": {"1"}}, func(n note) bool { return n.Done })
	items, err := f.client.List(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 1, Title: "a", Done: true}}, items)

	all, err := f.client.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("notes", "list")))
}

func TestListFilteredRemoteReplacesOnlyMatchingRecords(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 1, Title: "a", Done: true}, note{ID: 3, Title: "c", Done: true})
	f := newFixture(t, rs)
	require.NoError(t, f.cache.Replace(ctx, []note{
		{ID: 1, Title: "a-old", Done: true},
		{ID: 2, Title: "b"},
		{ID: 4, Title: "deleted upstream", Done: true},
	}))

	done := dualstore.Where(url.Values{"done": {"1"}}, func(n note) bool { return n.Done })
	items, err := f.client.List(ctx, done)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.ElementsMatch(t, []note{
		{ID: 2, Title: "b"},
		{ID: 1, Title: "a", Done: true},
		{ID: 3, Title: "c", Done: true},
	}, f.cached(t))
}

func TestGetRemoteWarmsCacheAndFallsBack(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 7, Title: "remote"})
	f := newFixture(t, rs)

	got, err := f.client.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Title)

	rs.setDown(true)
	got, err = f.client.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Title)

	_, err = f.client.Get(ctx, 8)
	assert.True(t, errors.Is(err, dualstore.ErrNotFound))
}

func TestCreateRemoteAppendsToCache(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote()
	f := newFixture(t, rs)

	created, err := f.client.Create(ctx, note{Title: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(101), created.ID)
	assert.Equal(t, []note{created}, f.cached(t))

	rs.setDown(true)
	got, err := f.client.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateOfflineGeneratesUniqueKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	// The first candidate for the frozen clock is already taken.
	clash := f.now.UnixMilli() * 1000
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: clash, Title: "existing"}}))

	seen := map[int64]bool{clash: true}
	for i := 0; i < 50; i++ {
		rec, err := f.client.Create(ctx, note{Title: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "duplicate key %d", rec.ID)
		seen[rec.ID] = true
		assert.Equal(t, f.now, rec.CreatedAt)
		assert.Equal(t, f.now, rec.UpdatedAt)
	}
	assert.Len(t, f.cached(t), 51)
}

func TestCreateValidationFailsBeforeAnyStore(t *testing.T) {
	rs := newFakeRemote()
	f := newFixture(t, rs)

	_, err := f.client.Create(context.Background(), note{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dualstore.ErrValidation))

	var verr *dualstore.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Field)
	assert.Zero(t, rs.callCount())
	assert.Zero(t, f.store.Writes())
}

func TestUpdateOfflineMergesPatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 5, Title: "draft", CreatedAt: created, UpdatedAt: created}}))

	done := true
	updated, err := f.client.Update(ctx, 5, notePatch{Done: &done})
	require.NoError(t, err)
	assert.Equal(t, note{ID: 5, Title: "draft", Done: true, CreatedAt: created, UpdatedAt: f.now}, updated)
	assert.Equal(t, []note{updated}, f.cached(t))

	_, err = f.client.Update(ctx, 6, notePatch{Done: &done})
	assert.True(t, errors.Is(err, dualstore.ErrNotFound))

	empty := ""
	_, err = f.client.Update(ctx, 5, notePatch{Title: &empty})
	assert.True(t, errors.Is(err, dualstore.ErrValidation))
}

func TestUpdateRemoteReplacesCachedEntryOnlyWhenPresent(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 1, Title: "one"}, note{ID: 2, Title: "two"})
	f := newFixture(t, rs)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 1, Title: "one"}}))

	title := "uno"
	got, err := f.client.Update(ctx, 1, notePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "uno", got.Title)
	assert.Equal(t, []note{{ID: 1, Title: "uno"}}, f.cached(t))

	title = "dos"
	_, err = f.client.Update(ctx, 2, notePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: 1, Title: "uno"}}, f.cached(t))
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	for _, online := range []bool{true, false} {
		online := online
		t.Run(fmt.Sprintf("online=%v", online), func(t *testing.T) {
			rs := newFakeRemote(note{ID: 1, Title: "one"})
			f := newFixture(t, rs)
			require.NoError(t, f.cache.Replace(ctx, []note{{ID: 1, Title: "one"}}))
			rs.setDown(!online)

			require.NoError(t, f.client.Delete(ctx, 1))
			require.NoError(t, f.client.Delete(ctx, 1), "second delete must succeed")
			require.NoError(t, f.client.Delete(ctx, 42), "deleting a key that never existed must succeed")

			_, err := f.client.Get(ctx, 1)
			assert.True(t, errors.Is(err, dualstore.ErrNotFound))
			assert.Empty(t, f.cached(t))
		})
	}
}

func TestRemoteTimeoutTriggersFallback(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 1, Title: "remote"})
	rs.delay = time.Second
	f := newFixture(t, rs, dualstore.WithTimeout(20*time.Millisecond))
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 1, Title: "cached"}}))

	start := time.Now()
	items, err := f.client.List(ctx, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []note{{ID: 1, Title: "cached"}}, items)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemoteRequests.WithLabelValues("notes", "list", metrics.OutcomeUnavailable)))
}

func TestCallerCancellationIsNotMasked(t *testing.T) {
	rs := newFakeRemote()
	f := newFixture(t, rs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.List(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActionFallsBackToPatch(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote(note{ID: 3, Title: "x"})
	f := newFixture(t, rs)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 3, Title: "x"}}))

	done := true
	got, err := f.client.Action(ctx, 3, "complete", nil, notePatch{Done: &done})
	require.NoError(t, err)
	assert.True(t, got.Done)

	rs.setDown(true)
	require.NoError(t, f.cache.Replace(ctx, []note{{ID: 3, Title: "x"}}))
	got, err = f.client.Action(ctx, 3, "complete", nil, notePatch{Done: &done})
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, f.now, got.UpdatedAt)

	_, err = f.client.Action(ctx, 3, "", nil, notePatch{})
	assert.True(t, errors.Is(err, dualstore.ErrValidation))
}

func TestBulk(t *testing.T) {
	ctx := context.Background()
	rs := newFakeRemote()
	rs.bulk = []note{{ID: 11, Title: "r1"}, {ID: 12, Title: "r2"}}
	f := newFixture(t, rs)

	local := func(current []note, create func(note) note) ([]note, error) {
		out := []note{}
		for _, title := range []string{"l1", "l2"} {
			exists := false
			for _, n := range current {
				if n.Title == title {
					exists = true
				}
			}
			if !exists {
				out = append(out, create(note{Title: title}))
			}
		}
		return out, nil
	}

	got, err := f.client.Bulk(ctx, "generate", nil, local)
	require.NoError(t, err)
	assert.Equal(t, rs.bulk, got)
	assert.Len(t, f.cached(t), 2)

	rs.setDown(true)
	got, err = f.client.Bulk(ctx, "generate", nil, local)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Len(t, f.cached(t), 4)

	got, err = f.client.Bulk(ctx, "generate", nil, local)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, f.cached(t), 4)
}

func TestNewValidatesSchema(t *testing.T) {
	cache, err := localcache.NewCollection[note](mock.New(), "notes", nil)
	require.NoError(t, err)

	_, err = dualstore.New[note, int64](dualstore.Schema[note, int64]{Name: "notes"}, nil, cache)
	require.Error(t, err)

	_, err = dualstore.New[note, int64](noteSchema(), nil, nil)
	require.Error(t, err)
}

func TestIntKeysIncreaseUnderFrozenClock(t *testing.T) {
	gen := dualstore.IntKeys[int64]()
	now := time.Unix(1_700_000_000, 0)
	a := gen(now, nil)
	b := gen(now, nil)
	c := gen(now.Add(-time.Hour), nil)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestStringKeys(t *testing.T) {
	gen := dualstore.StringKeys()
	a := gen(time.Now(), nil)
	b := gen(time.Now(), func(string) bool { return false })
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "local-")
}
