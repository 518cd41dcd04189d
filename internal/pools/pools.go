package pools

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"tickWindow/internal/ekubo"
)

// Entry is one pool in a pools file. Either Config is set, or the config word
// is assembled from Extension, Fee and TickSpacing.
type Entry struct {
	Name        string `yaml:"name"`
	Token0      string `yaml:"token0"`
	Token1      string `yaml:"token1"`
	Config      string `yaml:"config"`
	Extension   string `yaml:"extension"`
	Fee         uint64 `yaml:"fee"`
	TickSpacing uint32 `yaml:"tick_spacing"`
}

type file struct {
	Pools []Entry `yaml:"pools"`
}

// Target is a pool selected for reconstruction.
type Target struct {
	Name string
	Key  ekubo.PoolKey
}

// Label returns Name, or the shortened pool id when unnamed.
func (t Target) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Key.ID().Hex()[:10]
}

// Load reads a YAML pools file.
func Load(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML pools content.
func Parse(data []byte) ([]Target, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	targets := make([]Target, 0, len(f.Pools))
	for i, entry := range f.Pools {
		target, err := entry.target()
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (e Entry) target() (Target, error) {
	config := strings.TrimSpace(e.Config)
	if config == "" {
		if e.TickSpacing == 0 {
			return Target{}, fmt.Errorf("config or tick_spacing is required")
		}
		ext := strings.TrimSpace(e.Extension)
		if ext != "" && !common.IsHexAddress(ext) {
			return Target{}, fmt.Errorf("invalid extension: %s", ext)
		}
		word := ekubo.PoolConfig{
			Extension:   common.HexToAddress(ext),
			Fee:         e.Fee,
			TickSpacing: e.TickSpacing,
		}.Encode()
		config = hexutil.Encode(word[:])
	}

	key, err := ekubo.NewPoolKey(e.Token0, e.Token1, config)
	if err != nil {
		return Target{}, err
	}
	return Target{Name: strings.TrimSpace(e.Name), Key: key}, nil
}

// FromFlags parses "token0:token1:config" values.
func FromFlags(values []string) ([]Target, error) {
	targets := make([]Target, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		key, err := ekubo.ParsePoolKey(value)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Key: key})
	}
	return targets, nil
}

// Merge concatenates target lists, dropping repeated pool ids. The first
// occurrence wins.
func Merge(lists ...[]Target) []Target {
	seen := make(map[common.Hash]struct{})
	var out []Target
	for _, list := range lists {
		for _, t := range list {
			id := t.Key.ID()
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
