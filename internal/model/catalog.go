package model

import "time"

// NewScreening is an administrator's request to schedule a film.
type NewScreening struct {
	FilmID     uint64
	HallID     uint64
	StartsAt   time.Time
	PriceCents uint32
}
