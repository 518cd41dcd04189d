package ekubo

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey identifies an Ekubo pool.
type PoolKey struct {
	Token0 common.Address
	Token1 common.Address
	Config [32]byte
}

// PoolConfig is the decoded form of the packed config word:
// extension (20 bytes) | fee (8 bytes) | tick spacing (4 bytes), big-endian.
type PoolConfig struct {
	Extension   common.Address
	Fee         uint64
	TickSpacing uint32
}

// ParseConfig unpacks a config word.
func ParseConfig(word [32]byte) PoolConfig {
	return PoolConfig{
		Extension:   common.BytesToAddress(word[0:20]),
		Fee:         binary.BigEndian.Uint64(word[20:28]),
		TickSpacing: binary.BigEndian.Uint32(word[28:32]),
	}
}

// Encode packs the config back into its word form.
func (c PoolConfig) Encode() [32]byte {
	var word [32]byte
	copy(word[0:20], c.Extension.Bytes())
	binary.BigEndian.PutUint64(word[20:28], c.Fee)
	binary.BigEndian.PutUint32(word[28:32], c.TickSpacing)
	return word
}

// ParsedConfig returns the decoded config.
func (k PoolKey) ParsedConfig() PoolConfig {
	return ParseConfig(k.Config)
}

// ID returns keccak256(abi.encode(token0, token1, config)).
func (k PoolKey) ID() common.Hash {
	buf := make([]byte, 96)
	copy(buf[12:32], k.Token0.Bytes())
	copy(buf[44:64], k.Token1.Bytes())
	copy(buf[64:96], k.Config[:])
	return crypto.Keccak256Hash(buf)
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Token0.Hex(), k.Token1.Hex(), hexutil.Encode(k.Config[:]))
}

// NewPoolKey validates and builds a PoolKey from hex inputs.
func NewPoolKey(token0, token1, config string) (PoolKey, error) {
	token0 = strings.TrimSpace(token0)
	token1 = strings.TrimSpace(token1)
	if !common.IsHexAddress(token0) {
		return PoolKey{}, fmt.Errorf("invalid token0: %s", token0)
	}
	if !common.IsHexAddress(token1) {
		return PoolKey{}, fmt.Errorf("invalid token1: %s", token1)
	}
	word, err := hexutil.Decode(strings.TrimSpace(config))
	if err != nil {
		return PoolKey{}, fmt.Errorf("invalid config: %s", config)
	}
	if len(word) != 32 {
		return PoolKey{}, fmt.Errorf("invalid config length: %s", config)
	}

	key := PoolKey{
		Token0: common.HexToAddress(token0),
		Token1: common.HexToAddress(token1),
	}
	copy(key.Config[:], word)
	if key.Token0.Cmp(key.Token1) >= 0 {
		return PoolKey{}, fmt.Errorf("token0 must sort before token1: %s", key.String())
	}
	return key, nil
}

// ParsePoolKey parses the "token0:token1:config" form.
func ParsePoolKey(input string) (PoolKey, error) {
	parts := strings.Split(strings.TrimSpace(input), ":")
	if len(parts) != 3 {
		return PoolKey{}, fmt.Errorf("invalid pool key %q: want token0:token1:config", input)
	}
	return NewPoolKey(parts[0], parts[1], parts[2])
}
