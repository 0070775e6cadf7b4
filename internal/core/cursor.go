package core

import "time"

// Cursor is the (year, month) currently on screen.
type Cursor struct {
	Year  int
	Month time.Month
}

// CursorAt returns the cursor for t's month.
func CursorAt(t time.Time) Cursor {
	return Cursor{Year: t.Year(), Month: t.Month()}
}

// Prev moves one month back.
func (c Cursor) Prev() Cursor {
	t := time.Date(c.Year, c.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return Cursor{Year: t.Year(), Month: t.Month()}
}

// Next moves one month forward unless that would pass now's month, in which
// case c is returned unchanged.
func (c Cursor) Next(now time.Time) Cursor {
	if !c.CanAdvance(now) {
		return c
	}
	t := time.Date(c.Year, c.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Cursor{Year: t.Year(), Month: t.Month()}
}

// CanAdvance is false once the cursor reaches or passes now's month.
func (c Cursor) CanAdvance(now time.Time) bool {
	return c.index() < CursorAt(now).index()
}

// After reports whether c lies in a later month than now.
func (c Cursor) After(now time.Time) bool {
	return c.index() > CursorAt(now).index()
}

// Valid reports whether Month is 1-12.
func (c Cursor) Valid() bool {
	return c.Month >= time.January && c.Month <= time.December
}

func (c Cursor) index() int {
	return c.Year*12 + int(c.Month) - 1
}
