package ticklist

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sort"
)

var (
	ErrUnsorted  = errors.New("ticks not strictly increasing")
	ErrZeroDelta = errors.New("zero liquidity delta")
)

// Tick is the net liquidity change applied when the price crosses Index moving up.
// Pinned marks a window boundary event that must survive a zero delta.
type Tick struct {
	Index          int32
	LiquidityDelta *big.Int
	Pinned         bool
}

// List is a sparse set of ticks ordered strictly by Index.
type List struct {
	ticks []Tick
}

// New returns an empty list.
func New(capacity int) *List {
	return &List{ticks: make([]Tick, 0, capacity)}
}

// FromTicks builds a list from ticks already sorted by index. Zero deltas are
// dropped since they carry no liquidity change.
func FromTicks(ticks []Tick) (*List, error) {
	l := New(len(ticks) + 2)
	for _, t := range ticks {
		if t.LiquidityDelta == nil || t.LiquidityDelta.Sign() == 0 {
			continue
		}
		if n := len(l.ticks); n > 0 && l.ticks[n-1].Index >= t.Index {
			return nil, fmt.Errorf("%w: %d after %d", ErrUnsorted, t.Index, l.ticks[n-1].Index)
		}
		l.ticks = append(l.ticks, Tick{
			Index:          t.Index,
			LiquidityDelta: new(big.Int).Set(t.LiquidityDelta),
			Pinned:         t.Pinned,
		})
	}
	return l, nil
}

func (l *List) Len() int {
	return len(l.ticks)
}

// At returns the tick at position pos.
func (l *List) At(pos int) Tick {
	return l.ticks[pos]
}

// Ticks returns a copy of the underlying ticks.
func (l *List) Ticks() []Tick {
	out := make([]Tick, len(l.ticks))
	for i, t := range l.ticks {
		out[i] = Tick{Index: t.Index, LiquidityDelta: new(big.Int).Set(t.LiquidityDelta), Pinned: t.Pinned}
	}
	return out
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	return &List{ticks: l.Ticks()}
}

// FindNearestAtOrBelow returns the position of the tick with the greatest index
// <= target. ok is false when the list is empty or target is below the first tick.
func (l *List) FindNearestAtOrBelow(target int32) (pos int, ok bool) {
	// first position with Index > target
	i := sort.Search(len(l.ticks), func(i int) bool {
		return l.ticks[i].Index > target
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// InsertAt places t at pos, shifting later ticks right.
func (l *List) InsertAt(pos int, t Tick) {
	if pos < 0 || pos > len(l.ticks) {
		panic(fmt.Sprintf("ticklist: insert position %d out of range [0,%d]", pos, len(l.ticks)))
	}
	t.LiquidityDelta = new(big.Int).Set(t.LiquidityDelta)
	l.ticks = slices.Insert(l.ticks, pos, t)
}

// RemoveAt deletes and returns the tick at pos.
func (l *List) RemoveAt(pos int) Tick {
	if pos < 0 || pos >= len(l.ticks) {
		panic(fmt.Sprintf("ticklist: remove position %d out of range [0,%d)", pos, len(l.ticks)))
	}
	t := l.ticks[pos]
	l.ticks = slices.Delete(l.ticks, pos, pos+1)
	return t
}

// MergeDeltaAt adds delta to the tick at pos and returns the merged value.
func (l *List) MergeDeltaAt(pos int, delta *big.Int) *big.Int {
	merged := new(big.Int).Add(l.ticks[pos].LiquidityDelta, delta)
	l.ticks[pos].LiquidityDelta = merged
	return new(big.Int).Set(merged)
}

// Pin marks the tick at pos as a protected boundary event.
func (l *List) Pin(pos int) {
	l.ticks[pos].Pinned = true
}

// Validate checks ordering and that only pinned ticks carry a zero delta.
func (l *List) Validate() error {
	for i, t := range l.ticks {
		if i > 0 && l.ticks[i-1].Index >= t.Index {
			return fmt.Errorf("%w: %d after %d", ErrUnsorted, t.Index, l.ticks[i-1].Index)
		}
		if t.LiquidityDelta == nil || (t.LiquidityDelta.Sign() == 0 && !t.Pinned) {
			return fmt.Errorf("%w at tick %d", ErrZeroDelta, t.Index)
		}
	}
	return nil
}

// PrefixLiquidity sums the deltas of every tick with index <= tick, which is the
// liquidity active at that tick.
func (l *List) PrefixLiquidity(tick int32) *big.Int {
	sum := new(big.Int)
	for _, t := range l.ticks {
		if t.Index > tick {
			break
		}
		sum.Add(sum, t.LiquidityDelta)
	}
	return sum
}
