package model

import "time"

// Screening is a scheduled showing of a film in a hall.  The hall
// layout is carried along so callers can build a seat map or validate
// seats without another lookup.
//
// Fields:
//
//	ID             – primary key identifier.
//	FilmID         – film being screened.
//	FilmTitle      – films.title, joined on read.
//	HallID         – hall the screening takes place in.
//	HallName       – halls.name, joined on read.
//	Rows           – halls.seat_rows.
//	SeatsPerRow    – halls.seats_per_row.
//	StartsAt       – session start, always UTC.
//	PriceCents     – price charged per seat.
//	AvailableSeats – remaining seats; capacity minus active tickets.
//	CreatedAt      – creation timestamp.
type Screening struct {
	ID             uint64    // screenings.id
	FilmID         uint64    // screenings.film_id
	FilmTitle      string    // films.title
	HallID         uint64    // screenings.hall_id
	HallName       string    // halls.name
	Rows           int       // halls.seat_rows
	SeatsPerRow    int       // halls.seats_per_row
	StartsAt       time.Time // screenings.starts_at
	PriceCents     uint32    // screenings.price_cents
	AvailableSeats int       // screenings.available_seats
	CreatedAt      time.Time // screenings.created_at
}

// Capacity is the number of seats in the screening's hall.
func (s *Screening) Capacity() int { return s.Rows * s.SeatsPerRow }

// Summary is the short form returned alongside booked tickets.
type Summary struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Hall  string    `json:"hall"`
}

// Summary returns the confirmation summary for the screening.
func (s *Screening) Summary() Summary {
	return Summary{Title: s.FilmTitle, Date: s.StartsAt, Hall: s.HallName}
}
