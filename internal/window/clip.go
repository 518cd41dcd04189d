package window

import (
	"errors"
	"fmt"
	"math/big"

	"tickWindow/internal/ticklist"
)

var (
	ErrDataIntegrity = errors.New("data integrity")
	ErrInvalidWindow = errors.New("invalid window")

	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// Input is the partial pool state returned for a bounded tick range.
type Input struct {
	ActiveTick int32
	// Liquidity is the true in-range liquidity at ActiveTick.
	Liquidity *big.Int
	MinTick   int32
	MaxTick   int32
	Ticks     *ticklist.List
}

// Result is the clipped list together with its active index.
type Result struct {
	Ticks           *ticklist.List
	ActiveTickIndex ActiveIndex
	MinAction       Action
	MaxAction       Action
}

// Clip injects boundary ticks at MinTick and MaxTick so that the list carries
// the liquidity contributed by ticks outside the window. in.Ticks is modified in
// place. Inconsistent pool data is reported as ErrDataIntegrity.
func Clip(in Input) (Result, error) {
	if in.Liquidity == nil || in.Liquidity.Sign() < 0 {
		return Result{}, fmt.Errorf("%w: negative liquidity %v", ErrDataIntegrity, in.Liquidity)
	}
	if in.MinTick > in.ActiveTick || in.ActiveTick >= in.MaxTick {
		return Result{}, fmt.Errorf("%w: active tick %d outside [%d, %d)", ErrInvalidWindow, in.ActiveTick, in.MinTick, in.MaxTick)
	}

	list := in.Ticks
	if list == nil {
		list = ticklist.New(2)
	}
	if n := list.Len(); n > 0 {
		if first, last := list.At(0).Index, list.At(n-1).Index; first < in.MinTick || last > in.MaxTick {
			return Result{}, fmt.Errorf("%w: ticks [%d, %d] exceed window [%d, %d]", ErrDataIntegrity, first, last, in.MinTick, in.MaxTick)
		}
	}

	active, minDelta, cutoff := boundaryDeltas(list, in.ActiveTick, in.Liquidity)

	active, minAction := ApplyTickUpdate(list, in.ActiveTick, active, Update{
		Target:      in.MinTick,
		Delta:       minDelta,
		ForceInsert: true,
		Pin:         true,
	})
	active, maxAction := ApplyTickUpdate(list, in.ActiveTick, active, Update{
		Target:      in.MaxTick,
		Delta:       cutoff,
		UpperBound:  true,
		ForceInsert: true,
		Pin:         true,
	})

	checkActiveIndex(list, in.ActiveTick, active)
	if err := checkLiquidity(list, active, in.Liquidity); err != nil {
		return Result{}, err
	}

	return Result{
		Ticks:           list,
		ActiveTickIndex: active,
		MinAction:       minAction,
		MaxAction:       maxAction,
	}, nil
}

// boundaryDeltas walks the list once. It returns the active index, the delta
// owed at the lower bound by ticks below the window, and the liquidity that
// must be cut off once the price passes the upper bound.
func boundaryDeltas(list *ticklist.List, activeTick int32, liquidity *big.Int) (ActiveIndex, *big.Int, *big.Int) {
	running := new(big.Int)
	var (
		active   ActiveIndex
		minDelta *big.Int
	)

	for i := 0; i < list.Len(); i++ {
		tick := list.At(i)
		if minDelta == nil && tick.Index > activeTick {
			if i > 0 {
				active = ActiveAt(i - 1)
			}
			minDelta = new(big.Int).Sub(liquidity, running)
			running.Set(liquidity)
		}
		running.Add(running, tick.LiquidityDelta)
	}

	if minDelta == nil {
		if list.Len() > 0 {
			active = ActiveAt(list.Len() - 1)
		}
		minDelta = new(big.Int).Sub(liquidity, running)
		running.Set(liquidity)
	}

	return active, minDelta, running
}

func checkActiveIndex(list *ticklist.List, activeTick int32, active ActiveIndex) {
	if !active.Valid {
		if list.Len() > 0 && list.At(0).Index <= activeTick {
			violate("active index empty but tick %d <= active tick %d", list.At(0).Index, activeTick)
		}
		return
	}
	if active.Pos < 0 || active.Pos >= list.Len() {
		violate("active index %d out of range for %d ticks", active.Pos, list.Len())
	}
	if idx := list.At(active.Pos).Index; idx > activeTick {
		violate("tick %d at active index %d is above active tick %d", idx, active.Pos, activeTick)
	}
	if next := active.Pos + 1; next < list.Len() && list.At(next).Index <= activeTick {
		violate("tick %d after active index %d is not above active tick %d", list.At(next).Index, active.Pos, activeTick)
	}
}

// checkLiquidity integrates the clipped list. Every level must be a valid
// uint128 and the level at the active index must be the true liquidity.
func checkLiquidity(list *ticklist.List, active ActiveIndex, liquidity *big.Int) error {
	level := new(big.Int)
	atActive := new(big.Int)
	for i := 0; i < list.Len(); i++ {
		tick := list.At(i)
		level.Add(level, tick.LiquidityDelta)
		if level.Sign() < 0 {
			return fmt.Errorf("%w: liquidity %s after tick %d", ErrDataIntegrity, level, tick.Index)
		}
		if level.Cmp(maxUint128) > 0 {
			return fmt.Errorf("%w: liquidity overflow after tick %d", ErrDataIntegrity, tick.Index)
		}
		if active.Valid && i == active.Pos {
			atActive.Set(level)
		}
	}

	if atActive.Cmp(liquidity) != 0 {
		violate("liquidity at active index is %s, want %s", atActive, liquidity)
	}
	if level.Sign() != 0 {
		violate("liquidity above window is %s, want 0", level)
	}
	return nil
}
