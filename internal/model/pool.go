package model

// Pool represents Ekubo pool metadata for storage.
type Pool struct {
	ChainID     uint64 `json:"chain_id"`
	PoolID      string `json:"pool_id"`
	Name        string `json:"name,omitempty"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Extension   string `json:"extension"`
	Fee         uint64 `json:"fee"`
	TickSpacing uint32 `json:"tick_spacing"`
}
