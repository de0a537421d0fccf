// Package seatmap enumerates the seats of a hall layout and tags each
// one free or reserved against an occupancy snapshot.
package seatmap

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// State of a seat in a generated map.
type State string

const (
	Free     State = "free"
	Reserved State = "reserved"
)

// Layout is a hall's rectangular grid.
type Layout struct {
	Rows        int
	SeatsPerRow int
}

// ErrInvalidLayout is returned by Validate for non-positive dimensions.
var ErrInvalidLayout = errors.New("invalid hall layout")

// LayoutOf returns the layout of the screening's hall.
func LayoutOf(s *model.Screening) Layout {
	return Layout{Rows: s.Rows, SeatsPerRow: s.SeatsPerRow}
}

func (l Layout) Validate() error {
	if l.Rows < 1 || l.SeatsPerRow < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidLayout, l.Rows, l.SeatsPerRow)
	}
	return nil
}

func (l Layout) Capacity() int { return l.Rows * l.SeatsPerRow }

// Contains reports whether seat lies inside the grid.
func (l Layout) Contains(seat model.Seat) bool {
	return seat.Row >= 1 && seat.Row <= l.Rows &&
		seat.Number >= 1 && seat.Number <= l.SeatsPerRow
}

// Cell is one seat of a generated map.
type Cell struct {
	Seat  model.Seat
	State State
}

// Generate lists every seat of the layout in row-major order, marking
// seats present in occupied as Reserved.  Occupied seats outside the
// layout are ignored.  The result depends only on the arguments.
func Generate(layout Layout, occupied model.SeatSet) []Cell {
	if layout.Rows < 1 || layout.SeatsPerRow < 1 {
		return nil
	}
	cells := make([]Cell, 0, layout.Capacity())
	for row := 1; row <= layout.Rows; row++ {
		for num := 1; num <= layout.SeatsPerRow; num++ {
			seat := model.Seat{Row: row, Number: num}
			state := Free
			if occupied.Has(seat) {
				state = Reserved
			}
			cells = append(cells, Cell{Seat: seat, State: state})
		}
	}
	return cells
}

// FreeCount counts Free cells.
func FreeCount(cells []Cell) int {
	n := 0
	for _, c := range cells {
		if c.State == Free {
			n++
		}
	}
	return n
}

// Render writes the map as a text grid: '.' free, 'x' reserved and
// 'o' for seats in selected.  Row numbers prefix each line and seat
// numbers head the grid.
func Render(w io.Writer, layout Layout, cells []Cell, selected model.SeatSet) error {
	var b strings.Builder
	b.WriteString("    ")
	for num := 1; num <= layout.SeatsPerRow; num++ {
		fmt.Fprintf(&b, "%3d", num)
	}
	b.WriteString("\n")
	for i, c := range cells {
		if c.Seat.Number == 1 {
			fmt.Fprintf(&b, "%3d ", c.Seat.Row)
		}
		mark := "."
		switch {
		case selected.Has(c.Seat):
			mark = "o"
		case c.State == Reserved:
			mark = "x"
		}
		b.WriteString("  " + mark)
		if c.Seat.Number == layout.SeatsPerRow || i == len(cells)-1 {
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
