package model

// TickRecord is a single liquidity event of a reconstructed window.
type TickRecord struct {
	Index          int32  `json:"index"`
	LiquidityDelta string `json:"liquidity_delta"`
	Boundary       bool   `json:"boundary,omitempty"`
}

// Snapshot is a reconstructed tick window ready for quoting.
// ActiveTickIndex is nil when the active tick lies below every tick.
type Snapshot struct {
	Pool            Pool         `json:"pool"`
	BlockNumber     uint64       `json:"block_number"`
	Timestamp       uint64       `json:"timestamp"`
	ActiveTick      int32        `json:"active_tick"`
	ActiveTickIndex *int         `json:"active_tick_index"`
	SqrtRatio       string       `json:"sqrt_ratio"`
	Liquidity       string       `json:"liquidity"`
	Price           string       `json:"price,omitempty"`
	MinTick         int32        `json:"min_tick"`
	MaxTick         int32        `json:"max_tick"`
	FetchedTicks    int          `json:"fetched_ticks"`
	Ticks           []TickRecord `json:"ticks"`
	ReconstructedAt string       `json:"reconstructed_at"`
}

// ReconstructError records a pool that could not be reconstructed.
type ReconstructError struct {
	ChainID     uint64 `json:"chain_id"`
	PoolID      string `json:"pool_id"`
	Name        string `json:"name,omitempty"`
	BlockNumber uint64 `json:"block_number"`
	Error       string `json:"error"`
}
