package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

func newScreening(t *testing.T) (*Store, *model.Screening) {
	t.Helper()
	s := New()
	sc, err := s.SeedDemo(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s, sc
}

func ticketFor(sc *model.Screening, seat model.Seat) *model.Ticket {
	return &model.Ticket{
		UserID: 1, ScreeningID: sc.ID, FilmID: sc.FilmID, HallID: sc.HallID,
		SessionStart: sc.StartsAt, Seat: seat, Status: model.TicketActive, Code: seat.String(),
	}
}

func TestSeedDemo(t *testing.T) {
	_, sc := newScreening(t)
	assert.Equal(t, 54, sc.AvailableSeats)
	assert.Equal(t, 6, sc.Rows)
	assert.Equal(t, 9, sc.SeatsPerRow)
	assert.Equal(t, time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC), sc.StartsAt)
}

func TestCreateScreeningRejectsTakenSlotAndUnknownRefs(t *testing.T) {
	s, sc := newScreening(t)
	ctx := context.Background()

	_, err := s.CreateScreening(ctx, model.NewScreening{FilmID: sc.FilmID, HallID: sc.HallID, StartsAt: sc.StartsAt})
	assert.ErrorIs(t, err, booking.ErrSlotTaken)

	_, err = s.CreateScreening(ctx, model.NewScreening{FilmID: 99, HallID: sc.HallID, StartsAt: sc.StartsAt})
	assert.ErrorIs(t, err, booking.ErrNotFound)

	_, err = s.CreateScreening(ctx, model.NewScreening{FilmID: sc.FilmID, HallID: 99, StartsAt: sc.StartsAt})
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s, sc := newScreening(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.LockScreening(ctx, sc.ID)
	require.NoError(t, err)
	require.NoError(t, tx.InsertTickets(ctx, []*model.Ticket{ticketFor(sc, model.Seat{Row: 1, Number: 1})}))
	require.NoError(t, tx.AdjustAvailable(ctx, sc.ID, -1))
	require.NoError(t, tx.Rollback())

	occupied, err := s.OccupiedSeats(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, occupied)
	got, err := s.Screening(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 54, got.AvailableSeats)
	assert.ErrorIs(t, tx.Commit(), errTxDone)
}

func TestInsertRejectsSecondActiveTicket(t *testing.T) {
	s, sc := newScreening(t)
	ctx := context.Background()
	seat := model.Seat{Row: 2, Number: 2}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertTickets(ctx, []*model.Ticket{ticketFor(sc, seat)}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()
	err = tx2.InsertTickets(ctx, []*model.Ticket{ticketFor(sc, seat)})
	assert.ErrorIs(t, err, booking.ErrSeatTaken)
}

func TestAdjustAvailableUnderflow(t *testing.T) {
	s, sc := newScreening(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	assert.ErrorIs(t, tx.AdjustAvailable(ctx, sc.ID, -55), booking.ErrCounterUnderflow)
	assert.NoError(t, tx.AdjustAvailable(ctx, sc.ID, -54))
}

func TestLockScreeningBlocksSecondTransaction(t *testing.T) {
	s, sc := newScreening(t)
	ctx := context.Background()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = first.LockScreening(ctx, sc.ID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := s.Begin(ctx)
		if err != nil {
			return
		}
		if _, err := second.LockScreening(ctx, sc.ID); err == nil {
			close(acquired)
		}
		_ = second.Rollback()
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction locked a screening that was still held")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, first.Commit())
	wg.Wait()
	select {
	case <-acquired:
	default:
		t.Fatal("second transaction never acquired the lock")
	}
}

func TestLockScreeningHonoursContext(t *testing.T) {
	s, sc := newScreening(t)
	first, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = first.LockScreening(context.Background(), sc.ID)
	require.NoError(t, err)
	defer first.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = second.LockScreening(ctx, sc.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_ = second.Rollback()
}

func TestCreateFilmAndHallRejectDuplicates(t *testing.T) {
	st := New()
	ctx := context.Background()

	f, err := st.CreateFilm(ctx, "Vertigo", 128)
	require.NoError(t, err)
	_, err = st.CreateFilm(ctx, "Vertigo", 90)
	assert.ErrorIs(t, err, booking.ErrNameTaken)

	h, err := st.CreateHall(ctx, "Hall 2", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, h.Capacity())
	_, err = st.CreateHall(ctx, "Hall 2", 4, 5)
	assert.ErrorIs(t, err, booking.ErrNameTaken)

	var verr *booking.ValidationError
	_, err = st.CreateHall(ctx, "Broken", 0, 5)
	assert.ErrorAs(t, err, &verr)

	sc, err := st.CreateScreening(ctx, model.NewScreening{
		FilmID: f.ID, HallID: h.ID, StartsAt: time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC), PriceCents: 800,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, sc.AvailableSeats)
}
