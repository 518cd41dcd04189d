package ekubo

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const dataFetcherABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "token0", "type": "address"},
          {"internalType": "address", "name": "token1", "type": "address"},
          {"internalType": "Config", "name": "config", "type": "bytes32"}
        ],
        "internalType": "struct PoolKey[]",
        "name": "poolKeys",
        "type": "tuple[]"
      },
      {"internalType": "uint32", "name": "minTickSpacings", "type": "uint32"}
    ],
    "name": "getQuoteData",
    "outputs": [
      {
        "components": [
          {"internalType": "int32", "name": "tick", "type": "int32"},
          {"internalType": "SqrtRatio", "name": "sqrtRatio", "type": "uint96"},
          {"internalType": "uint128", "name": "liquidity", "type": "uint128"},
          {"internalType": "int32", "name": "minTick", "type": "int32"},
          {"internalType": "int32", "name": "maxTick", "type": "int32"},
          {
            "components": [
              {"internalType": "int32", "name": "number", "type": "int32"},
              {"internalType": "int128", "name": "liquidityDelta", "type": "int128"}
            ],
            "internalType": "struct TickDelta[]",
            "name": "ticks",
            "type": "tuple[]"
          }
        ],
        "internalType": "struct QuoteData[]",
        "name": "results",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	dataFetcherABI     abi.ABI
	dataFetcherABIOnce sync.Once
	dataFetcherABIErr  error

	erc20ABIString      abi.ABI
	erc20ABIStringOnce  sync.Once
	erc20ABIStringErr   error
	erc20ABIBytes32     abi.ABI
	erc20ABIBytes32Once sync.Once
	erc20ABIBytes32Err  error
)

// DataFetcherABI returns the parsed DataFetcher ABI.
func DataFetcherABI() (abi.ABI, error) {
	dataFetcherABIOnce.Do(func() {
		dataFetcherABI, dataFetcherABIErr = abi.JSON(strings.NewReader(dataFetcherABIJSON))
	})
	return dataFetcherABI, dataFetcherABIErr
}

func erc20ABIStringInstance() (abi.ABI, error) {
	erc20ABIStringOnce.Do(func() {
		erc20ABIString, erc20ABIStringErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
	})
	return erc20ABIString, erc20ABIStringErr
}

func erc20ABIBytes32Instance() (abi.ABI, error) {
	erc20ABIBytes32Once.Do(func() {
		erc20ABIBytes32, erc20ABIBytes32Err = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20ABIBytes32, erc20ABIBytes32Err
}
