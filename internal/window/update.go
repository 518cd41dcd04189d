package window

import (
	"math/big"

	"tickWindow/internal/ticklist"
)

// Action describes how a tick update landed in the list.
type Action string

const (
	ActionInserted Action = "inserted"
	ActionMerged   Action = "merged"
	ActionFolded   Action = "folded"
	ActionRemoved  Action = "removed"
)

// Update is a single liquidity change applied at Target.
type Update struct {
	Target int32
	Delta  *big.Int
	// UpperBound inverts Delta: liquidity leaves when the price crosses Target upwards.
	UpperBound bool
	// ForceInsert materializes a tick at Target even when the delta could be
	// folded into the first or last tick instead.
	ForceInsert bool
	// Pin protects the tick at Target from removal when its delta reaches zero.
	Pin bool
}

// ApplyTickUpdate applies u to list and returns the repaired active index.
func ApplyTickUpdate(list *ticklist.List, activeTick int32, active ActiveIndex, u Update) (ActiveIndex, Action) {
	delta := new(big.Int).Set(u.Delta)
	if u.UpperBound {
		delta.Neg(delta)
	}

	nearest, found := list.FindNearestAtOrBelow(u.Target)

	if !found || list.At(nearest).Index != u.Target {
		if !u.ForceInsert && list.Len() > 0 {
			switch {
			case !found:
				return mergeAt(list, activeTick, active, 0, delta, false, ActionFolded)
			case nearest == list.Len()-1:
				return mergeAt(list, activeTick, active, nearest, delta, false, ActionFolded)
			}
		}

		pos := 0
		if found {
			pos = nearest + 1
		}
		list.InsertAt(pos, ticklist.Tick{Index: u.Target, LiquidityDelta: delta, Pinned: u.Pin})
		if activeTick >= u.Target {
			active = active.forward(list.Len())
		}
		return active, ActionInserted
	}

	return mergeAt(list, activeTick, active, nearest, delta, u.Pin, ActionMerged)
}

func mergeAt(list *ticklist.List, activeTick int32, active ActiveIndex, pos int, delta *big.Int, pin bool, action Action) (ActiveIndex, Action) {
	if pin {
		list.Pin(pos)
	}
	merged := list.MergeDeltaAt(pos, delta)
	tick := list.At(pos)
	if merged.Sign() != 0 || tick.Pinned {
		return active, action
	}

	list.RemoveAt(pos)
	if activeTick >= tick.Index {
		active = active.back()
	}
	return active, ActionRemoved
}
