// Package memstore is an in-memory booking.Store.  It serves local runs
// without MySQL and the engine's tests.  Isolation matches the MySQL
// store: a transaction holds a per-screening lock from LockScreening
// until Commit or Rollback, and a unique active-seat index rejects
// duplicates at insert time.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

type seatKey struct {
	filmID uint64
	hallID uint64
	start  int64
	seat   model.Seat
}

func keyFor(t *model.Ticket) seatKey {
	return seatKey{filmID: t.FilmID, hallID: t.HallID, start: t.SessionStart.UnixNano(), seat: t.Seat}
}

// Store keeps films, halls, screenings and tickets in maps.
type Store struct {
	mu         sync.Mutex
	films      map[uint64]model.Film
	halls      map[uint64]model.Hall
	screenings map[uint64]model.Screening
	tickets    map[uint64]model.Ticket
	active     map[seatKey]uint64 // unique index over active tickets
	locks      map[uint64]chan struct{}
	nextID     map[string]uint64
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		films:      make(map[uint64]model.Film),
		halls:      make(map[uint64]model.Hall),
		screenings: make(map[uint64]model.Screening),
		tickets:    make(map[uint64]model.Ticket),
		active:     make(map[seatKey]uint64),
		locks:      make(map[uint64]chan struct{}),
		nextID:     make(map[string]uint64),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// id hands out the next id for table.  Must be called with s.mu held.
func (s *Store) id(table string) uint64 {
	s.nextID[table]++
	return s.nextID[table]
}

// AddFilm inserts a film and returns it with its id.
func (s *Store) AddFilm(title string, durationMin int) model.Film {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := model.Film{ID: s.id("films"), Title: title, DurationMin: durationMin, CreatedAt: s.now()}
	s.films[f.ID] = f
	return f
}

// AddHall inserts a hall and returns it with its id.
func (s *Store) AddHall(name string, rows, seatsPerRow int) model.Hall {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := model.Hall{ID: s.id("halls"), Name: name, Rows: rows, SeatsPerRow: seatsPerRow, CreatedAt: s.now()}
	s.halls[h.ID] = h
	return h
}

// CreateFilm adds a film.  Titles are unique.
func (s *Store) CreateFilm(_ context.Context, title string, durationMin int) (*model.Film, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.films {
		if f.Title == title {
			return nil, fmt.Errorf("film %q: %w", title, booking.ErrNameTaken)
		}
	}
	f := model.Film{ID: s.id("films"), Title: title, DurationMin: durationMin, CreatedAt: s.now()}
	s.films[f.ID] = f
	return &f, nil
}

// CreateHall adds a hall.  Names are unique and both dimensions must be
// positive.
func (s *Store) CreateHall(_ context.Context, name string, rows, seatsPerRow int) (*model.Hall, error) {
	if err := (seatmap.Layout{Rows: rows, SeatsPerRow: seatsPerRow}).Validate(); err != nil {
		return nil, &booking.ValidationError{Reason: err.Error()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.halls {
		if h.Name == name {
			return nil, fmt.Errorf("hall %q: %w", name, booking.ErrNameTaken)
		}
	}
	h := model.Hall{ID: s.id("halls"), Name: name, Rows: rows, SeatsPerRow: seatsPerRow, CreatedAt: s.now()}
	s.halls[h.ID] = h
	return &h, nil
}

// CreateScreening schedules a film.  The counter starts at the hall's
// capacity.
func (s *Store) CreateScreening(_ context.Context, in model.NewScreening) (*model.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	film, ok := s.films[in.FilmID]
	if !ok {
		return nil, fmt.Errorf("film %d: %w", in.FilmID, booking.ErrNotFound)
	}
	hall, ok := s.halls[in.HallID]
	if !ok {
		return nil, fmt.Errorf("hall %d: %w", in.HallID, booking.ErrNotFound)
	}
	start := in.StartsAt.UTC().Truncate(time.Second)
	for _, existing := range s.screenings {
		if existing.HallID == hall.ID && existing.StartsAt.Equal(start) {
			return nil, booking.ErrSlotTaken
		}
	}
	sc := model.Screening{
		ID:             s.id("screenings"),
		FilmID:         film.ID,
		FilmTitle:      film.Title,
		HallID:         hall.ID,
		HallName:       hall.Name,
		Rows:           hall.Rows,
		SeatsPerRow:    hall.SeatsPerRow,
		StartsAt:       start,
		PriceCents:     in.PriceCents,
		AvailableSeats: hall.Capacity(),
		CreatedAt:      s.now(),
	}
	s.screenings[sc.ID] = sc
	return &sc, nil
}

// Screening implements booking.Store.
func (s *Store) Screening(_ context.Context, id uint64) (*model.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.screenings[id]
	if !ok {
		return nil, fmt.Errorf("screening %d: %w", id, booking.ErrNotFound)
	}
	return &sc, nil
}

// OccupiedSeats implements booking.Store.
func (s *Store) OccupiedSeats(_ context.Context, screeningID uint64) (model.SeatSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.screenings[screeningID]
	if !ok {
		return nil, fmt.Errorf("screening %d: %w", screeningID, booking.ErrNotFound)
	}
	set := model.NewSeatSet()
	for _, t := range s.tickets {
		if t.Status.IsActive() && t.FilmID == sc.FilmID && t.HallID == sc.HallID && t.SessionStart.Equal(sc.StartsAt) {
			set.Add(t.Seat)
		}
	}
	return set, nil
}

// Upcoming implements booking.Store.
func (s *Store) Upcoming(_ context.Context, from time.Time, limit int) ([]model.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Screening, 0)
	for _, sc := range s.screenings {
		if !sc.StartsAt.Before(from) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TicketsForUser implements booking.Store.
func (s *Store) TicketsForUser(_ context.Context, userID uint64) ([]model.TicketDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TicketDetail, 0)
	for _, t := range s.tickets {
		if t.UserID != userID || !t.Status.IsActive() {
			continue
		}
		sc := s.screenings[t.ScreeningID]
		out = append(out, model.TicketDetail{Ticket: t, FilmTitle: sc.FilmTitle, HallName: sc.HallName})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionStart.Equal(out[j].SessionStart) {
			return out[i].SessionStart.Before(out[j].SessionStart)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ActiveTicketCount counts active tickets of a screening.  Used to
// check the counter invariant.
func (s *Store) ActiveTicketCount(screeningID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.ScreeningID == screeningID && t.Status.IsActive() {
			n++
		}
	}
	return n
}

// lockFor returns the lock channel of a screening.  Must be called
// with s.mu held.
func (s *Store) lockFor(screeningID uint64) chan struct{} {
	l, ok := s.locks[screeningID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[screeningID] = l
	}
	return l
}

// Begin implements booking.Store.
func (s *Store) Begin(ctx context.Context) (booking.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{store: s, held: make(map[uint64]chan struct{})}, nil
}
