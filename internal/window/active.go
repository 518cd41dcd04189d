package window

import "fmt"

// ActiveIndex points at the greatest tick whose index is <= the active tick.
// Valid is false when the active tick sits below every tick in the list.
type ActiveIndex struct {
	Pos   int
	Valid bool
}

// NoActive is the empty pointer.
var NoActive = ActiveIndex{}

// ActiveAt returns a pointer to pos.
func ActiveAt(pos int) ActiveIndex {
	return ActiveIndex{Pos: pos, Valid: true}
}

func (a ActiveIndex) String() string {
	if !a.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", a.Pos)
}

// InvariantViolation is raised (as a panic value) when pointer bookkeeping
// would reference a position that does not exist. It indicates a logic defect.
type InvariantViolation struct {
	Msg string
}

func (v InvariantViolation) Error() string {
	return "invariant violation: " + v.Msg
}

func violate(format string, args ...any) {
	panic(InvariantViolation{Msg: fmt.Sprintf(format, args...)})
}

func (a ActiveIndex) forward(size int) ActiveIndex {
	next := ActiveAt(0)
	if a.Valid {
		next = ActiveAt(a.Pos + 1)
	}
	if next.Pos >= size {
		violate("active index %d past list of %d ticks", next.Pos, size)
	}
	return next
}

func (a ActiveIndex) back() ActiveIndex {
	if !a.Valid {
		violate("cannot move empty active index backwards")
	}
	if a.Pos == 0 {
		return NoActive
	}
	return ActiveAt(a.Pos - 1)
}
