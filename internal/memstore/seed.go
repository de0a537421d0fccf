package memstore

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SeedDemo adds a film, a 6×9 hall and a screening tomorrow at 19:00
// UTC, mirroring the demo rows cmd/migrate --seed writes to MySQL.
func (s *Store) SeedDemo(now time.Time) (*model.Screening, error) {
	film := s.AddFilm("The Grand Premiere", 118)
	hall := s.AddHall("Hall 1", 6, 9)
	day := now.UTC().AddDate(0, 0, 1)
	start := time.Date(day.Year(), day.Month(), day.Day(), 19, 0, 0, 0, time.UTC)
	return s.CreateScreening(context.Background(), model.NewScreening{
		FilmID:     film.ID,
		HallID:     hall.ID,
		StartsAt:   start,
		PriceCents: 1200,
	})
}
