package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/memstore"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

var today = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	clock     *clock.FakeClock
	engine    *booking.Engine
	screening *model.Screening
	notifier  *recordingNotifier
	cache     *mapCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	sc, err := st.SeedDemo(today)
	require.NoError(t, err)
	clk := clock.Fake(today)
	n := &recordingNotifier{}
	c := newMapCache()
	return &fixture{
		store:     st,
		clock:     clk,
		screening: sc,
		notifier:  n,
		cache:     c,
		engine: booking.NewEngine(st,
			booking.WithClock(clk),
			booking.WithNotifier(n),
			booking.WithCache(c),
		),
	}
}

func (f *fixture) available(t *testing.T) int {
	t.Helper()
	sc, err := f.store.Screening(context.Background(), f.screening.ID)
	require.NoError(t, err)
	return sc.AvailableSeats
}

func (f *fixture) assertCounterInvariant(t *testing.T) {
	t.Helper()
	assert.Equal(t, f.screening.Capacity()-f.store.ActiveTicketCount(f.screening.ID), f.available(t))
}

func (f *fixture) book(t *testing.T, user uint64, seats ...string) *booking.Booking {
	t.Helper()
	b, err := f.engine.Book(context.Background(), booking.BookRequest{ScreeningID: f.screening.ID, Seats: seats, UserID: user})
	require.NoError(t, err)
	return b
}

type recordingNotifier struct {
	mu        sync.Mutex
	booked    []*booking.Booking
	cancelled []*model.Ticket
}

func (r *recordingNotifier) TicketsBooked(_ context.Context, b *booking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.booked = append(r.booked, b)
}

func (r *recordingNotifier) TicketCancelled(_ context.Context, t *model.Ticket, _ *model.Screening) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, t)
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[uint64]model.SeatSet
	versions    map[uint64]int
	hits        int
	invalidated int
	stale       int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uint64]model.SeatSet), versions: make(map[uint64]int)}
}

func (c *mapCache) Get(_ context.Context, id uint64) (model.SeatSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if ok {
		c.hits++
		return s.Clone(), true
	}
	return nil, false
}

func (c *mapCache) Version(_ context.Context, id uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprint(c.versions[id]), true
}

func (c *mapCache) Put(_ context.Context, id uint64, version string, s model.SeatSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != fmt.Sprint(c.versions[id]) {
		c.stale++
		return
	}
	c.entries[id] = s.Clone()
}

func (c *mapCache) Invalidate(_ context.Context, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	delete(c.entries, id)
	c.invalidated++
}

func TestBookTwoSeatsDecrementsCounter(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 54, f.available(t))

	// Bring the screening to 50 available, as in the booking walkthrough.
	f.book(t, 9, "6-6", "6-7", "6-8", "6-9")
	require.Equal(t, 50, f.available(t))

	b := f.book(t, 42, "2-1", "2-2")
	require.Len(t, b.Tickets, 2)
	assert.Equal(t, 48, f.available(t))
	assert.Equal(t, 48, b.Screening.AvailableSeats)
	for _, tk := range b.Tickets {
		assert.NotZero(t, tk.ID)
		assert.Equal(t, uint64(42), tk.UserID)
		assert.Equal(t, model.TicketActive, tk.Status)
		assert.Equal(t, f.screening.PriceCents, tk.PriceCents)
		assert.Regexp(t, `^TICKET-[0-9A-F]{32}$`, tk.Code)
	}
	assert.NotEqual(t, b.Tickets[0].Code, b.Tickets[1].Code)
	assert.Equal(t, []model.Seat{{Row: 2, Number: 1}, {Row: 2, Number: 2}}, b.Seats())
	assert.Equal(t, "The Grand Premiere", b.Screening.Summary().Title)
	f.assertCounterInvariant(t)
}

func TestBookConflictIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1, "3-5")
	before := f.available(t)

	_, err := f.engine.Book(context.Background(), booking.BookRequest{
		ScreeningID: f.screening.ID, Seats: []string{"3-5", "3-6"}, UserID: 2,
	})
	var conflict *booking.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.Seat{{Row: 3, Number: 5}}, conflict.ConflictingSeats())
	assert.Equal(t, "seat 5 in row 3 taken", conflict.Error())

	occupied, err := f.engine.OccupiedSeats(context.Background(), f.screening.ID)
	require.NoError(t, err)
	assert.False(t, occupied.Has(model.Seat{Row: 3, Number: 6}))
	assert.Equal(t, before, f.available(t))
	f.assertCounterInvariant(t)
}

// lockBypassStore hands out transactions whose first occupancy check
// sees nothing, as if a competing ticket had been written without the
// screening lock.  The insert then trips the active-seat index.
type lockBypassStore struct {
	*memstore.Store
}

func (s lockBypassStore) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &blindFirstCheckTx{Tx: tx}, nil
}

type blindFirstCheckTx struct {
	booking.Tx
	checks int
}

func (t *blindFirstCheckTx) ActiveSeats(ctx context.Context, sc *model.Screening, seats []model.Seat) ([]model.Seat, error) {
	t.checks++
	if t.checks == 1 {
		return nil, nil
	}
	return t.Tx.ActiveSeats(ctx, sc, seats)
}

func TestBookIndexConflictNamesOnlyTakenSeats(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1, "3-5")
	before := f.available(t)

	e := booking.NewEngine(lockBypassStore{f.store}, booking.WithClock(f.clock))
	_, err := e.Book(context.Background(), booking.BookRequest{
		ScreeningID: f.screening.ID, Seats: []string{"3-6", "3-5", "3-4"}, UserID: 2,
	})
	var conflict *booking.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.Seat{{Row: 3, Number: 5}}, conflict.Seats)
	assert.Equal(t, before, f.available(t))
	f.assertCounterInvariant(t)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string][]string{
		"empty":     {},
		"nil":       nil,
		"malformed": {"3-5", "B7"},
		"zero row":  {"0-1"},
		"off grid":  {"7-1"},
		"off row":   {"1-10"},
	}
	for name, seats := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.Book(context.Background(), booking.BookRequest{ScreeningID: f.screening.ID, Seats: seats, UserID: 1})
			var ve *booking.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
	assert.Equal(t, 54, f.available(t))
}

func TestBookUnknownScreening(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Book(context.Background(), booking.BookRequest{ScreeningID: 999, Seats: []string{"1-1"}, UserID: 1})
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestBookDeduplicatesSeats(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 1, "1-1", "1-2", "1-1")
	assert.Len(t, b.Tickets, 2)
	assert.Equal(t, 52, f.available(t))
}

func TestParseSeatsKeepsFirstOccurrenceOrder(t *testing.T) {
	seats, err := booking.ParseSeats([]string{"2-2", "1-1", "2-2"})
	require.NoError(t, err)
	assert.Equal(t, []model.Seat{{Row: 2, Number: 2}, {Row: 1, Number: 1}}, seats)
}

func TestConcurrentBookingsOfOneSeat(t *testing.T) {
	f := newFixture(t)
	const attempts = 32

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			<-start
			seats := []string{"4-4", fmt.Sprintf("%d-1", user%5+1)}
			_, err := f.engine.Book(context.Background(), booking.BookRequest{
				ScreeningID: f.screening.ID, Seats: seats, UserID: user,
			})
			results <- err
		}(uint64(i + 1))
	}
	close(start)
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict *booking.SeatConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Contains(t, conflict.ConflictingSeats(), model.Seat{Row: 4, Number: 4})
	}
	assert.Equal(t, 1, wins)

	occupied, err := f.store.OccupiedSeats(context.Background(), f.screening.ID)
	require.NoError(t, err)
	assert.Len(t, occupied, 2)
	f.assertCounterInvariant(t)
}

func TestConcurrentDisjointBookingsAllSucceed(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for row := 1; row <= 6; row++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			seats := []string{fmt.Sprintf("%d-1", row), fmt.Sprintf("%d-2", row)}
			_, err := f.engine.Book(context.Background(), booking.BookRequest{ScreeningID: f.screening.ID, Seats: seats, UserID: uint64(row)})
			errs <- err
		}(row)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 42, f.available(t))
	f.assertCounterInvariant(t)
}

func TestCancelCutoffBoundary(t *testing.T) {
	cases := []struct {
		name   string
		before time.Duration
		ok     bool
	}{
		{"2h01m before", 2*time.Hour + time.Minute, true},
		{"exactly 2h before", 2 * time.Hour, false},
		{"1h59m before", 2*time.Hour - time.Minute, false},
		{"after start", -time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.book(t, 7, "5-5")
			f.clock.Set(f.screening.StartsAt.Add(-tc.before))

			got, err := f.engine.Cancel(context.Background(), b.Tickets[0].ID, 7)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, model.TicketCancelled, got.Status)
				require.NotNil(t, got.CancelledAt)
				assert.Equal(t, 54, f.available(t))
			} else {
				var cwe *booking.CancellationWindowError
				require.ErrorAs(t, err, &cwe)
				assert.Equal(t, 2*time.Hour, cwe.Cutoff)
				assert.Equal(t, "tickets can only be cancelled more than 2 hours before the screening", cwe.Error())
				assert.Equal(t, 53, f.available(t))
			}
			f.assertCounterInvariant(t)
		})
	}
}

func TestCancelFreesSeatForRebooking(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 7, "5-5")
	_, err := f.engine.Cancel(context.Background(), b.Tickets[0].ID, 7)
	require.NoError(t, err)

	again := f.book(t, 8, "5-5")
	assert.Equal(t, uint64(8), again.Tickets[0].UserID)
	f.assertCounterInvariant(t)
}

func TestCancelNotFoundCases(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 7, "5-5")
	id := b.Tickets[0].ID

	_, err := f.engine.Cancel(context.Background(), id, 8)
	assert.ErrorIs(t, err, booking.ErrNotFound, "other user's ticket")

	_, err = f.engine.Cancel(context.Background(), 9999, 7)
	assert.ErrorIs(t, err, booking.ErrNotFound, "missing ticket")

	_, err = f.engine.Cancel(context.Background(), id, 7)
	require.NoError(t, err)
	_, err = f.engine.Cancel(context.Background(), id, 7)
	assert.ErrorIs(t, err, booking.ErrNotFound, "already cancelled")
	assert.Equal(t, 54, f.available(t))
}

func TestConcurrentCancelsReleaseOnce(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 7, "5-5")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Cancel(context.Background(), b.Tickets[0].ID, 7); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 54, f.available(t))
}

func TestOccupiedSeatsIsIdempotentAndCached(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1, "1-1", "6-9")

	first, err := f.engine.OccupiedSeats(context.Background(), f.screening.ID)
	require.NoError(t, err)
	second, err := f.engine.OccupiedSeats(context.Background(), f.screening.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"1-1", "6-9"}, second.Strings())
	assert.Equal(t, 1, f.cache.hits)

	f.book(t, 2, "2-2")
	third, err := f.engine.OccupiedSeats(context.Background(), f.screening.ID)
	require.NoError(t, err)
	assert.True(t, third.Has(model.Seat{Row: 2, Number: 2}))
}

// afterOccupancyRead runs hook once, right after the store has answered
// an occupancy read and before the engine caches the answer.
type afterOccupancyRead struct {
	*memstore.Store
	once sync.Once
	hook func()
}

func (s *afterOccupancyRead) OccupiedSeats(ctx context.Context, id uint64) (model.SeatSet, error) {
	seats, err := s.Store.OccupiedSeats(ctx, id)
	s.once.Do(s.hook)
	return seats, err
}

func TestOccupiedSeatsReadRacingCommitIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second replica sharing the cache commits 2-1 while the reader's
	// store query is in flight.
	other := booking.NewEngine(f.store, booking.WithClock(f.clock), booking.WithCache(f.cache))
	slow := &afterOccupancyRead{Store: f.store, hook: func() {
		_, err := other.Book(ctx, booking.BookRequest{ScreeningID: f.screening.ID, Seats: []string{"2-1"}, UserID: 8})
		require.NoError(t, err)
	}}
	reader := booking.NewEngine(slow, booking.WithClock(f.clock), booking.WithCache(f.cache))

	before, err := reader.OccupiedSeats(ctx, f.screening.ID)
	require.NoError(t, err)
	assert.Empty(t, before)
	assert.Equal(t, 1, f.cache.stale)

	after, err := reader.OccupiedSeats(ctx, f.screening.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2-1"}, after.Strings())
}

func TestOccupiedSeatsUnknownScreening(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.OccupiedSeats(context.Background(), 404)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestNotifierSeesCommittedChangesOnly(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 1, "1-1")
	_, _ = f.engine.Book(context.Background(), booking.BookRequest{ScreeningID: f.screening.ID, Seats: []string{"1-1"}, UserID: 2})
	_, err := f.engine.Cancel(context.Background(), b.Tickets[0].ID, 1)
	require.NoError(t, err)

	assert.Len(t, f.notifier.booked, 1)
	assert.Len(t, f.notifier.cancelled, 1)
	assert.Equal(t, 2, f.cache.invalidated)
}

func TestSeatMap(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1, "3-5")
	sc, cells, err := f.engine.SeatMap(context.Background(), f.screening.ID)
	require.NoError(t, err)
	assert.Equal(t, f.screening.ID, sc.ID)
	require.Len(t, cells, 54)
	assert.Equal(t, seatmap.Reserved, cells[(3-1)*9+(5-1)].State)
	assert.Equal(t, 53, seatmap.FreeCount(cells))
}

func TestUpcomingAndTicketsForUser(t *testing.T) {
	f := newFixture(t)
	f.book(t, 5, "1-3", "1-4")
	f.book(t, 6, "2-3")

	list, err := f.engine.Upcoming(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	f.clock.Set(f.screening.StartsAt.Add(time.Minute))
	list, err = f.engine.Upcoming(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	mine, err := f.engine.TicketsForUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Hall 1", mine[0].HallName)
	assert.Equal(t, "The Grand Premiere", mine[0].FilmTitle)
}

type failingStore struct {
	booking.Store
}

func (failingStore) Begin(context.Context) (booking.Tx, error) {
	return nil, errors.New("connection refused")
}

func TestInfrastructureFailureIsNotADomainError(t *testing.T) {
	e := booking.NewEngine(failingStore{})
	_, err := e.Book(context.Background(), booking.BookRequest{ScreeningID: 1, Seats: []string{"1-1"}, UserID: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, booking.ErrNotFound)
	var conflict *booking.SeatConflictError
	assert.False(t, errors.As(err, &conflict))
}
