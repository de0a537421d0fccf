package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedSeat is returned by ParseSeat for anything that is not a
// "{row}-{number}" pair of positive integers.
var ErrMalformedSeat = errors.New("malformed seat identifier")

// Seat identifies a physical seat inside a hall grid.  Both Row and
// Number are 1-indexed.
type Seat struct {
	Row    int // tickets.seat_row
	Number int // tickets.seat_number
}

// ParseSeat converts the wire form "3-5" into a Seat.  Leading and
// trailing whitespace is ignored; everything else must match exactly.
func ParseSeat(raw string) (Seat, error) {
	s := strings.TrimSpace(raw)
	row, num, ok := strings.Cut(s, "-")
	if !ok {
		return Seat{}, fmt.Errorf("%w: %q", ErrMalformedSeat, raw)
	}
	r, err := strconv.Atoi(row)
	if err != nil || r < 1 || row != strconv.Itoa(r) {
		return Seat{}, fmt.Errorf("%w: %q", ErrMalformedSeat, raw)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || num != strconv.Itoa(n) {
		return Seat{}, fmt.Errorf("%w: %q", ErrMalformedSeat, raw)
	}
	return Seat{Row: r, Number: n}, nil
}

// String returns the wire form of the seat.
func (s Seat) String() string {
	return strconv.Itoa(s.Row) + "-" + strconv.Itoa(s.Number)
}

// Describe returns the human form used in conflict messages.
func (s Seat) Describe() string {
	return fmt.Sprintf("seat %d in row %d", s.Number, s.Row)
}

// Less orders seats row-major.
func (s Seat) Less(o Seat) bool {
	if s.Row != o.Row {
		return s.Row < o.Row
	}
	return s.Number < o.Number
}

// SortSeats sorts in place, row-major ascending.
func SortSeats(seats []Seat) {
	sort.Slice(seats, func(i, j int) bool { return seats[i].Less(seats[j]) })
}

// SeatStrings converts seats to their wire form, keeping order.
func SeatStrings(seats []Seat) []string {
	out := make([]string, 0, len(seats))
	for _, s := range seats {
		out = append(out, s.String())
	}
	return out
}

// SeatSet is an unordered set of seats.  The zero value is not usable;
// build one with NewSeatSet.
type SeatSet map[Seat]struct{}

// NewSeatSet returns a set containing the given seats.
func NewSeatSet(seats ...Seat) SeatSet {
	set := make(SeatSet, len(seats))
	for _, s := range seats {
		set[s] = struct{}{}
	}
	return set
}

// ParseSeatSet parses a list of wire identifiers into a set.
func ParseSeatSet(raw []string) (SeatSet, error) {
	set := make(SeatSet, len(raw))
	for _, r := range raw {
		s, err := ParseSeat(r)
		if err != nil {
			return nil, err
		}
		set[s] = struct{}{}
	}
	return set, nil
}

func (set SeatSet) Add(s Seat) { set[s] = struct{}{} }

func (set SeatSet) Remove(s Seat) { delete(set, s) }

func (set SeatSet) Has(s Seat) bool {
	_, ok := set[s]
	return ok
}

// Sorted returns the members row-major.
func (set SeatSet) Sorted() []Seat {
	out := make([]Seat, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	SortSeats(out)
	return out
}

// Strings returns the members in wire form, row-major.
func (set SeatSet) Strings() []string {
	return SeatStrings(set.Sorted())
}

// Clone returns an independent copy.
func (set SeatSet) Clone() SeatSet {
	out := make(SeatSet, len(set))
	for s := range set {
		out[s] = struct{}{}
	}
	return out
}
