package window

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickWindow/internal/ticklist"
)

type tickSpec struct {
	index  int32
	delta  int64
	pinned bool
}

func buildList(t *testing.T, specs ...tickSpec) *ticklist.List {
	t.Helper()
	ticks := make([]ticklist.Tick, 0, len(specs))
	for _, s := range specs {
		ticks = append(ticks, ticklist.Tick{Index: s.index, LiquidityDelta: big.NewInt(s.delta), Pinned: s.pinned})
	}
	l, err := ticklist.FromTicks(ticks)
	require.NoError(t, err)
	return l
}

func assertTicks(t *testing.T, l *ticklist.List, want ...tickSpec) {
	t.Helper()
	require.Equal(t, len(want), l.Len(), "tick count")
	for i, w := range want {
		got := l.At(i)
		assert.Equal(t, w.index, got.Index, "index at %d", i)
		assert.Equal(t, w.delta, got.LiquidityDelta.Int64(), "delta at %d", i)
		assert.Equal(t, w.pinned, got.Pinned, "pinned at %d", i)
	}
}

func describe(l *ticklist.List) []string {
	out := make([]string, 0, l.Len())
	for _, tick := range l.Ticks() {
		out = append(out, fmt.Sprintf("%d:%s:%t", tick.Index, tick.LiquidityDelta, tick.Pinned))
	}
	return out
}

func TestClipEmptyWindow(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 0,
		Liquidity:  big.NewInt(1000),
		MinTick:    -100,
		MaxTick:    100,
		Ticks:      ticklist.New(0),
	})
	require.NoError(t, err)

	assertTicks(t, res.Ticks,
		tickSpec{-100, 1000, true},
		tickSpec{100, -1000, true},
	)
	assert.Equal(t, ActiveAt(0), res.ActiveTickIndex)
	assert.Equal(t, ActionInserted, res.MinAction)
	assert.Equal(t, ActionInserted, res.MaxAction)
}

func TestClipNilTicks(t *testing.T) {
	res, err := Clip(Input{ActiveTick: 5, Liquidity: big.NewInt(7), MinTick: 0, MaxTick: 10})
	require.NoError(t, err)
	assertTicks(t, res.Ticks, tickSpec{0, 7, true}, tickSpec{10, -7, true})
}

func TestClipMergesIntoLowerBound(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 50,
		Liquidity:  big.NewInt(1000),
		MinTick:    -100,
		MaxTick:    200,
		Ticks:      buildList(t, tickSpec{index: -100, delta: 500}),
	})
	require.NoError(t, err)

	assertTicks(t, res.Ticks,
		tickSpec{-100, 1000, true},
		tickSpec{200, -1000, true},
	)
	assert.Equal(t, ActiveAt(0), res.ActiveTickIndex)
	assert.Equal(t, ActionMerged, res.MinAction)
	assert.Equal(t, ActionInserted, res.MaxAction)
}

func TestClipActiveBelowFirstTick(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 0,
		Liquidity:  big.NewInt(200),
		MinTick:    -100,
		MaxTick:    100,
		Ticks:      buildList(t, tickSpec{index: 10, delta: 300}, tickSpec{index: 50, delta: -300}),
	})
	require.NoError(t, err)

	assertTicks(t, res.Ticks,
		tickSpec{-100, 200, true},
		tickSpec{10, 300, false},
		tickSpec{50, -300, false},
		tickSpec{100, -200, true},
	)
	assert.Equal(t, ActiveAt(0), res.ActiveTickIndex)
}

func TestClipActiveBetweenTicks(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 30,
		Liquidity:  big.NewInt(500),
		MinTick:    -100,
		MaxTick:    100,
		Ticks: buildList(t,
			tickSpec{index: -50, delta: 400},
			tickSpec{index: 20, delta: 100},
			tickSpec{index: 60, delta: -100},
		),
	})
	require.NoError(t, err)

	// nothing below the window, so the lower boundary is a pinned zero
	assertTicks(t, res.Ticks,
		tickSpec{-100, 0, true},
		tickSpec{-50, 400, false},
		tickSpec{20, 100, false},
		tickSpec{60, -100, false},
		tickSpec{100, -400, true},
	)
	assert.Equal(t, ActiveAt(2), res.ActiveTickIndex)
	assert.NoError(t, res.Ticks.Validate())
}

func TestClipActiveOnTick(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 20,
		Liquidity:  big.NewInt(900),
		MinTick:    -100,
		MaxTick:    100,
		Ticks:      buildList(t, tickSpec{index: 20, delta: 100}, tickSpec{index: 40, delta: -50}),
	})
	require.NoError(t, err)

	assertTicks(t, res.Ticks,
		tickSpec{-100, 800, true},
		tickSpec{20, 100, false},
		tickSpec{40, -50, false},
		tickSpec{100, -850, true},
	)
	assert.Equal(t, ActiveAt(1), res.ActiveTickIndex)
}

func TestClipIsIdempotent(t *testing.T) {
	in := Input{
		ActiveTick: 5,
		Liquidity:  big.NewInt(1200),
		MinTick:    -60,
		MaxTick:    60,
		Ticks: buildList(t,
			tickSpec{index: -30, delta: 200},
			tickSpec{index: 10, delta: 300},
			tickSpec{index: 40, delta: -100},
		),
	}
	first, err := Clip(in)
	require.NoError(t, err)
	want := describe(first.Ticks)

	second, err := Clip(Input{
		ActiveTick: in.ActiveTick,
		Liquidity:  in.Liquidity,
		MinTick:    in.MinTick,
		MaxTick:    in.MaxTick,
		Ticks:      first.Ticks.Clone(),
	})
	require.NoError(t, err)

	assert.Equal(t, want, describe(second.Ticks))
	assert.Equal(t, first.ActiveTickIndex, second.ActiveTickIndex)
	assert.Equal(t, ActionMerged, second.MinAction)
	assert.Equal(t, ActionMerged, second.MaxAction)
}

func TestClipDataIntegrity(t *testing.T) {
	testCases := []struct {
		name string
		in   Input
		want error
	}{
		{
			name: "liquidity goes negative above active tick",
			in: Input{
				ActiveTick: 0,
				Liquidity:  big.NewInt(1000),
				MinTick:    -100,
				MaxTick:    100,
				Ticks:      buildList(t, tickSpec{index: 50, delta: -2000}),
			},
			want: ErrDataIntegrity,
		},
		{
			name: "negative true liquidity",
			in:   Input{ActiveTick: 0, Liquidity: big.NewInt(-1), MinTick: -1, MaxTick: 1},
			want: ErrDataIntegrity,
		},
		{
			name: "missing liquidity",
			in:   Input{ActiveTick: 0, MinTick: -1, MaxTick: 1},
			want: ErrDataIntegrity,
		},
		{
			name: "tick outside window",
			in: Input{
				ActiveTick: 0,
				Liquidity:  big.NewInt(10),
				MinTick:    -100,
				MaxTick:    100,
				Ticks:      buildList(t, tickSpec{index: -200, delta: 10}),
			},
			want: ErrDataIntegrity,
		},
		{
			name: "overflow",
			in: Input{
				ActiveTick: 0,
				Liquidity:  new(big.Int).Lsh(big.NewInt(1), 128),
				MinTick:    -1,
				MaxTick:    1,
			},
			want: ErrDataIntegrity,
		},
		{
			name: "active tick at upper bound",
			in:   Input{ActiveTick: 100, Liquidity: big.NewInt(1), MinTick: -100, MaxTick: 100},
			want: ErrInvalidWindow,
		},
		{
			name: "active tick below lower bound",
			in:   Input{ActiveTick: -101, Liquidity: big.NewInt(1), MinTick: -100, MaxTick: 100},
			want: ErrInvalidWindow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Clip(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClipNegativeBelowActiveIsAbsorbed(t *testing.T) {
	res, err := Clip(Input{
		ActiveTick: 0,
		Liquidity:  big.NewInt(1000),
		MinTick:    -100,
		MaxTick:    100,
		Ticks:      buildList(t, tickSpec{index: -50, delta: -2000}),
	})
	require.NoError(t, err)
	assertTicks(t, res.Ticks,
		tickSpec{-100, 3000, true},
		tickSpec{-50, -2000, false},
		tickSpec{100, -1000, true},
	)
	assert.Equal(t, ActiveAt(1), res.ActiveTickIndex)
}

// TestClipMatchesFullTickData clips random windows out of a full set of
// positions and compares every level inside the window with the full data.
func TestClipMatchesFullTickData(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		full := map[int32]int64{}
		for p := 0; p < 1+rng.Intn(12); p++ {
			lower := int32(rng.Intn(400) - 200)
			upper := lower + int32(1+rng.Intn(150))
			amount := int64(1 + rng.Intn(1000))
			full[lower] += amount
			full[upper] -= amount
		}

		minTick := int32(rng.Intn(200) - 150)
		maxTick := minTick + int32(2+rng.Intn(200))
		activeTick := minTick + int32(rng.Intn(int(maxTick-minTick)))

		fullLevel := func(tick int32) int64 {
			var sum int64
			for idx, d := range full {
				if idx <= tick {
					sum += d
				}
			}
			return sum
		}

		var partial []ticklist.Tick
		for idx := minTick; idx <= maxTick; idx++ {
			if d, ok := full[idx]; ok && d != 0 {
				partial = append(partial, ticklist.Tick{Index: idx, LiquidityDelta: big.NewInt(d)})
			}
		}
		list, err := ticklist.FromTicks(partial)
		require.NoError(t, err)

		res, err := Clip(Input{
			ActiveTick: activeTick,
			Liquidity:  big.NewInt(fullLevel(activeTick)),
			MinTick:    minTick,
			MaxTick:    maxTick,
			Ticks:      list,
		})
		require.NoError(t, err, "round %d", round)

		require.NoError(t, res.Ticks.Validate())
		pos, ok := res.Ticks.FindNearestAtOrBelow(activeTick)
		require.True(t, ok)
		require.Equal(t, ActiveAt(pos), res.ActiveTickIndex, "round %d", round)

		for tick := minTick; tick < maxTick; tick++ {
			require.Equal(t, fullLevel(tick), res.Ticks.PrefixLiquidity(tick).Int64(), "round %d tick %d", round, tick)
		}
		require.Zero(t, res.Ticks.PrefixLiquidity(maxTick).Sign())
	}
}
