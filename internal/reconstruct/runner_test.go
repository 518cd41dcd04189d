package reconstruct

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tickWindow/internal/ekubo"
	"tickWindow/internal/metrics"
	"tickWindow/internal/model"
	"tickWindow/internal/pools"
)

const (
	usdc       = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	usdt       = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	weth       = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdcConfig = "0x00000000000000000000000000000000000000000001a36e2eb1c43200000032"
	priceOne   = "39614081261743854815199363072"
)

type fakeQuotes struct {
	mu     sync.Mutex
	data   map[common.Hash]ekubo.QuoteData
	err    error
	calls  int
	blocks []uint64
}

func (f *fakeQuotes) QuoteData(_ context.Context, keys []ekubo.PoolKey, _ uint32, blockNumber *big.Int) ([]ekubo.QuoteData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.blocks = append(f.blocks, blockNumber.Uint64())
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ekubo.QuoteData, len(keys))
	for i, key := range keys {
		out[i] = f.data[key.ID()]
	}
	return out, nil
}

type fakeBlocks struct {
	latest uint64
}

func (f *fakeBlocks) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeBlocks) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}
func (f *fakeBlocks) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

type fakeTokens struct{}

func (fakeTokens) Meta(_ context.Context, token common.Address) (model.TokenMeta, error) {
	return model.TokenMeta{Address: token.Hex(), Decimals: 6}, nil
}

type memoryStorage struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
	errors    []model.ReconstructError
}

func (m *memoryStorage) PutSnapshots(_ context.Context, snapshots []model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
	return nil
}

func (m *memoryStorage) PutErrors(_ context.Context, records []model.ReconstructError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, records...)
	return nil
}

func mustTarget(t *testing.T, name, token0, token1 string) pools.Target {
	t.Helper()
	key, err := ekubo.NewPoolKey(token0, token1, usdcConfig)
	if err != nil {
		t.Fatalf("pool key: %v", err)
	}
	return pools.Target{Name: name, Key: key}
}

func mustInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid int: " + s)
	}
	return v
}

func healthyQuote() ekubo.QuoteData {
	return ekubo.QuoteData{
		Tick:      0,
		SqrtRatio: mustInt(priceOne),
		Liquidity: big.NewInt(1000),
		MinTick:   -100,
		MaxTick:   100,
		Ticks: []ekubo.TickDelta{
			{Number: -50, LiquidityDelta: big.NewInt(300)},
			{Number: 50, LiquidityDelta: big.NewInt(-300)},
		},
	}
}

func brokenQuote() ekubo.QuoteData {
	return ekubo.QuoteData{
		Tick:      0,
		SqrtRatio: mustInt(priceOne),
		Liquidity: big.NewInt(100),
		MinTick:   -100,
		MaxTick:   100,
		Ticks:     []ekubo.TickDelta{{Number: 50, LiquidityDelta: big.NewInt(-300)}},
	}
}

func TestWindow(t *testing.T) {
	res, err := Window(healthyQuote())
	if err != nil {
		t.Fatalf("window: %v", err)
	}

	want := []struct {
		index  int32
		delta  int64
		pinned bool
	}{
		{-100, 700, true},
		{-50, 300, false},
		{50, -300, false},
		{100, -700, true},
	}
	if res.Ticks.Len() != len(want) {
		t.Fatalf("expected %d ticks, got %d", len(want), res.Ticks.Len())
	}
	for i, w := range want {
		tick := res.Ticks.At(i)
		if tick.Index != w.index || tick.LiquidityDelta.Int64() != w.delta || tick.Pinned != w.pinned {
			t.Fatalf("tick %d mismatch: %+v", i, tick)
		}
	}
	if !res.ActiveTickIndex.Valid || res.ActiveTickIndex.Pos != 1 {
		t.Fatalf("active index mismatch: %s", res.ActiveTickIndex)
	}
}

func TestWindowRejectsUnsortedTicks(t *testing.T) {
	q := healthyQuote()
	q.Ticks[0], q.Ticks[1] = q.Ticks[1], q.Ticks[0]
	if _, err := Window(q); err == nil {
		t.Fatalf("expected error for unsorted ticks")
	}
}

func TestRunOnce(t *testing.T) {
	good := mustTarget(t, "usdc-usdt", usdc, usdt)
	bad := mustTarget(t, "usdc-weth", usdc, weth)
	quotes := &fakeQuotes{data: map[common.Hash]ekubo.QuoteData{
		good.Key.ID(): healthyQuote(),
		bad.Key.ID():  brokenQuote(),
	}}
	sink := &memoryStorage{}
	m := metrics.New(prometheus.NewRegistry())

	runner := NewRunner(Config{BatchSize: 1, Concurrency: 2}, quotes, &fakeBlocks{latest: 100}, fakeTokens{}, sink, m, nil)
	report, err := runner.RunOnce(context.Background(), []pools.Target{good, bad}, 0)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	if report.BlockNumber != 100 {
		t.Fatalf("block mismatch: %d", report.BlockNumber)
	}
	if len(report.Snapshots) != 1 || len(report.Errors) != 1 {
		t.Fatalf("expected 1 snapshot and 1 error, got %d and %d", len(report.Snapshots), len(report.Errors))
	}
	if quotes.calls != 2 {
		t.Fatalf("expected one fetch per batch, got %d", quotes.calls)
	}

	snap := report.Snapshots[0]
	if snap.Pool.Name != "usdc-usdt" || snap.Pool.TickSpacing != 50 || snap.Pool.ChainID != 1 {
		t.Fatalf("pool mismatch: %+v", snap.Pool)
	}
	if snap.ActiveTickIndex == nil || *snap.ActiveTickIndex != 1 {
		t.Fatalf("active index mismatch: %v", snap.ActiveTickIndex)
	}
	if snap.Price != "1" {
		t.Fatalf("price mismatch: %s", snap.Price)
	}
	if snap.SqrtRatio != new(big.Int).Lsh(big.NewInt(1), 128).String() {
		t.Fatalf("sqrt ratio mismatch: %s", snap.SqrtRatio)
	}
	if snap.Timestamp != 1_700_000_000+100*12 || snap.FetchedTicks != 2 || len(snap.Ticks) != 4 {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
	if !snap.Ticks[0].Boundary || snap.Ticks[0].LiquidityDelta != "700" {
		t.Fatalf("lower boundary mismatch: %+v", snap.Ticks[0])
	}

	failure := report.Errors[0]
	if failure.Name != "usdc-weth" || failure.BlockNumber != 100 {
		t.Fatalf("error record mismatch: %+v", failure)
	}

	if len(sink.snapshots) != 1 || len(sink.errors) != 1 {
		t.Fatalf("storage mismatch: %d snapshots, %d errors", len(sink.snapshots), len(sink.errors))
	}
	if got := testutil.ToFloat64(m.Reconstructions.WithLabelValues("usdc-weth", metrics.OutcomeIntegrity)); got != 1 {
		t.Fatalf("integrity counter mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.LastBlock); got != 100 {
		t.Fatalf("last block gauge mismatch: %v", got)
	}
}

func TestRunOnceFetchFailureAborts(t *testing.T) {
	boom := errors.New("rpc down")
	quotes := &fakeQuotes{err: boom}
	sink := &memoryStorage{}

	runner := NewRunner(Config{MaxRetries: 2, RetryBackoff: time.Millisecond}, quotes, &fakeBlocks{latest: 7}, nil, sink, nil, nil)
	_, err := runner.RunOnce(context.Background(), []pools.Target{mustTarget(t, "", usdc, usdt)}, 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if quotes.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", quotes.calls)
	}
	if len(sink.snapshots) != 0 || len(sink.errors) != 0 {
		t.Fatalf("nothing should be stored on fetch failure")
	}
}

func TestRunOnceRequiresPools(t *testing.T) {
	runner := NewRunner(Config{}, &fakeQuotes{}, &fakeBlocks{}, nil, &memoryStorage{}, nil, nil)
	if _, err := runner.RunOnce(context.Background(), nil, 1); err == nil {
		t.Fatalf("expected error without pools")
	}
}

func TestWatchStepSkipsUnchangedBlock(t *testing.T) {
	target := mustTarget(t, "usdc-usdt", usdc, usdt)
	quotes := &fakeQuotes{data: map[common.Hash]ekubo.QuoteData{target.Key.ID(): healthyQuote()}}
	blocks := &fakeBlocks{latest: 100}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "checkpoint.json")}
	sink := &memoryStorage{}

	runner := NewRunner(Config{StateStore: state, Interval: time.Second}, quotes, blocks, nil, sink, nil, nil)
	ctx := context.Background()

	if err := runner.watchStep(ctx, []pools.Target{target}); err != nil {
		t.Fatalf("first step: %v", err)
	}
	if err := runner.watchStep(ctx, []pools.Target{target}); err != nil {
		t.Fatalf("second step: %v", err)
	}
	if quotes.calls != 1 {
		t.Fatalf("expected unchanged block to be skipped, got %d fetches", quotes.calls)
	}

	blocks.latest = 101
	if err := runner.watchStep(ctx, []pools.Target{target}); err != nil {
		t.Fatalf("third step: %v", err)
	}
	if quotes.calls != 2 || quotes.blocks[1] != 101 {
		t.Fatalf("expected fetch at block 101, got %v", quotes.blocks)
	}

	last, ok, err := state.Load(ctx)
	if err != nil || !ok || last != 101 {
		t.Fatalf("state mismatch: %d %v %v", last, ok, err)
	}
	if len(sink.snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(sink.snapshots))
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	target := mustTarget(t, "", usdc, usdt)
	quotes := &fakeQuotes{data: map[common.Hash]ekubo.QuoteData{target.Key.ID(): healthyQuote()}}
	runner := NewRunner(Config{Interval: time.Hour}, quotes, &fakeBlocks{latest: 5}, nil, &memoryStorage{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runner.Watch(ctx, []pools.Target{target}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
