package main

import (
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	schemeRS  = "rs"
	schemeXor = "xor"
)

// Scenario is one encode, lose, reconstruct round.
type Scenario struct {
	Name   string `toml:"name"`
	Scheme string `toml:"scheme"`
	Data   int    `toml:"data"`
	Parity int    `toml:"parity"`
	// Total payload size in bytes, split across the data shards.
	Size int `toml:"size"`
	// Shard indices dropped before reconstruction.
	Lose []int `toml:"lose"`
	// Encode one data shard at a time instead of all at once.
	Progressive bool `toml:"progressive"`
}

func (sc *Scenario) validate() error {
	switch sc.Scheme {
	case "", schemeRS:
		sc.Scheme = schemeRS
	case schemeXor:
		if sc.Parity == 0 {
			sc.Parity = 1
		}
		if sc.Parity != 1 {
			return errors.Errorf("scenario %q: xor has exactly one parity shard, got %d", sc.Name, sc.Parity)
		}
		if sc.Progressive {
			return errors.Errorf("scenario %q: xor cannot encode progressively", sc.Name)
		}
	default:
		return errors.Errorf("scenario %q: unknown scheme %q", sc.Name, sc.Scheme)
	}
	if sc.Size < 1 {
		return errors.Errorf("scenario %q: size %d", sc.Name, sc.Size)
	}
	for _, idx := range sc.Lose {
		if idx < 0 || idx >= sc.Data+sc.Parity {
			return errors.Errorf("scenario %q: lost shard %d out of range", sc.Name, idx)
		}
	}
	return nil
}

// defaultScenarios replays the demos: two tiny 3+2 runs, a small and a large
// 4+2 run and the same sizes for XOR. size applies to the large runs.
func defaultScenarios(size int) []Scenario {
	return []Scenario{
		{Name: "shard-by-shard", Scheme: schemeRS, Data: 3, Parity: 2, Size: 12, Lose: []int{0, 4}, Progressive: true},
		{Name: "at-once", Scheme: schemeRS, Data: 3, Parity: 2, Size: 12, Lose: []int{0, 4}},
		{Name: "small", Scheme: schemeRS, Data: 4, Parity: 2, Size: 16 << 10, Lose: []int{0, 4}},
		{Name: "large", Scheme: schemeRS, Data: 4, Parity: 2, Size: size, Lose: []int{0, 4}},
		{Name: "xor-small", Scheme: schemeXor, Data: 4, Parity: 1, Size: 16 << 10, Lose: []int{2}},
		{Name: "xor-large", Scheme: schemeXor, Data: 4, Parity: 1, Size: size, Lose: []int{2}},
	}
}

// loadScenarios reads [[scenario]] tables from a TOML file.
func loadScenarios(path string) ([]Scenario, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "toml.LoadFile(%s)", path)
	}

	var file struct {
		Scenario []Scenario `toml:"scenario"`
	}
	if err := tree.Unmarshal(&file); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", path)
	}
	if len(file.Scenario) == 0 {
		return nil, errors.Errorf("%s: no [[scenario]] tables", path)
	}
	return file.Scenario, nil
}

// selectScenarios keeps the named scenarios, in the given order. No names
// keeps everything.
func selectScenarios(all []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Scenario, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := byName[name]
		if !ok {
			return nil, errors.Errorf("unknown scenario %q", name)
		}
		out = append(out, sc)
	}
	return out, nil
}
