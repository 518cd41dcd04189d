package ekubo

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultDataFetcher is the mainnet DataFetcher deployment.
const DefaultDataFetcher = "0x91cB8a896cAF5e60b1F7C4818730543f849B408c"

// DefaultMinTickSpacings is the number of tick spacings fetched on each side of the active tick.
const DefaultMinTickSpacings uint32 = 2

// ContractCaller performs eth_call requests.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TickDelta is a liquidity change at a tick as returned by the fetcher.
type TickDelta struct {
	Number         int32
	LiquidityDelta *big.Int
}

// QuoteData is the partial pool state for one pool. SqrtRatio is in the
// compact 96-bit float encoding.
type QuoteData struct {
	Tick      int32
	SqrtRatio *big.Int
	Liquidity *big.Int
	MinTick   int32
	MaxTick   int32
	Ticks     []TickDelta
}

// Fetcher calls getQuoteData on a DataFetcher contract.
type Fetcher struct {
	caller  ContractCaller
	address common.Address
}

func NewFetcher(caller ContractCaller, address common.Address) *Fetcher {
	return &Fetcher{caller: caller, address: address}
}

// QuoteData fetches quote data for every key in one call. blockNumber nil means latest.
func (f *Fetcher) QuoteData(ctx context.Context, keys []PoolKey, minTickSpacings uint32, blockNumber *big.Int) ([]QuoteData, error) {
	if f.caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	fetcherABI, err := DataFetcherABI()
	if err != nil {
		return nil, fmt.Errorf("parse data fetcher abi: %w", err)
	}

	data, err := fetcherABI.Pack("getQuoteData", keys, minTickSpacings)
	if err != nil {
		return nil, fmt.Errorf("pack getQuoteData: %w", err)
	}

	msg := ethereum.CallMsg{To: &f.address, Data: data}
	resp, err := f.caller.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call getQuoteData: %w", err)
	}

	values, err := fetcherABI.Unpack("getQuoteData", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack getQuoteData: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getQuoteData return size %d", len(values))
	}

	results := *abi.ConvertType(values[0], new([]QuoteData)).(*[]QuoteData)
	if len(results) != len(keys) {
		return nil, fmt.Errorf("getQuoteData returned %d results for %d pools", len(results), len(keys))
	}
	return results, nil
}
