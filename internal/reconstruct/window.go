package reconstruct

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"tickWindow/internal/ekubo"
	"tickWindow/internal/model"
	"tickWindow/internal/pools"
	"tickWindow/internal/ticklist"
	"tickWindow/internal/window"
)

// Window builds the sorted tick list from fetched quote data and clips it to
// the fetched range.
func Window(q ekubo.QuoteData) (window.Result, error) {
	ticks := make([]ticklist.Tick, 0, len(q.Ticks)+2)
	for _, t := range q.Ticks {
		ticks = append(ticks, ticklist.Tick{Index: t.Number, LiquidityDelta: t.LiquidityDelta})
	}
	list, err := ticklist.FromTicks(ticks)
	if err != nil {
		return window.Result{}, fmt.Errorf("%w: %w", window.ErrDataIntegrity, err)
	}

	return window.Clip(window.Input{
		ActiveTick: q.Tick,
		Liquidity:  q.Liquidity,
		MinTick:    q.MinTick,
		MaxTick:    q.MaxTick,
		Ticks:      list,
	})
}

// PoolModel describes a target for storage.
func PoolModel(chainID uint64, target pools.Target) model.Pool {
	cfg := target.Key.ParsedConfig()
	return model.Pool{
		ChainID:     chainID,
		PoolID:      target.Key.ID().Hex(),
		Name:        target.Name,
		Token0:      target.Key.Token0.Hex(),
		Token1:      target.Key.Token1.Hex(),
		Extension:   cfg.Extension.Hex(),
		Fee:         cfg.Fee,
		TickSpacing: cfg.TickSpacing,
	}
}

// BuildSnapshot converts a clipped window into its storage form. sqrtRatio is
// the decoded X128 value.
func BuildSnapshot(pool model.Pool, blockNumber, timestamp uint64, q ekubo.QuoteData, sqrtRatio *uint256.Int, res window.Result) model.Snapshot {
	snap := model.Snapshot{
		Pool:         pool,
		BlockNumber:  blockNumber,
		Timestamp:    timestamp,
		ActiveTick:   q.Tick,
		SqrtRatio:    sqrtRatio.Dec(),
		Liquidity:    "0",
		MinTick:      q.MinTick,
		MaxTick:      q.MaxTick,
		FetchedTicks: len(q.Ticks),
		Ticks:        make([]model.TickRecord, 0, res.Ticks.Len()),
	}
	if q.Liquidity != nil {
		snap.Liquidity = q.Liquidity.String()
	}
	if res.ActiveTickIndex.Valid {
		pos := res.ActiveTickIndex.Pos
		snap.ActiveTickIndex = &pos
	}
	for i := 0; i < res.Ticks.Len(); i++ {
		tick := res.Ticks.At(i)
		snap.Ticks = append(snap.Ticks, model.TickRecord{
			Index:          tick.Index,
			LiquidityDelta: tick.LiquidityDelta.String(),
			Boundary:       tick.Pinned,
		})
	}
	return snap
}

func decodeSqrtRatio(raw *big.Int) (*uint256.Int, error) {
	fixed, err := ekubo.FloatSqrtRatioToFixed(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: sqrt ratio %s: %w", window.ErrDataIntegrity, hexutil.EncodeBig(orZero(raw)), err)
	}
	return fixed, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
