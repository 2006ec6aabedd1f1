package main

import (
	"bytes"
	"crypto/rand"
	"time"

	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/encode/rs"
	"github.com/ppopth/erasure/ec/encode/xor"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// Result stores timing data for one scenario
type Result struct {
	Name         string        `json:"name"`
	Scheme       string        `json:"scheme"`
	DataShards   int           `json:"data_shards"`
	ParityShards int           `json:"parity_shards"`
	Size         int           `json:"size"`
	ShardSize    int           `json:"shard_size"`
	Lost         []int         `json:"lost"`
	Encode       time.Duration `json:"encode_ns"`
	Reconstruct  time.Duration `json:"reconstruct_ns"`
	Verify       time.Duration `json:"verify_ns"`
	// Same operations with github.com/klauspost/reedsolomon, when compared.
	BaselineEncode      time.Duration `json:"baseline_encode_ns,omitempty"`
	BaselineReconstruct time.Duration `json:"baseline_reconstruct_ns,omitempty"`
}

func newCodec(sc Scenario) (encode.Codec, error) {
	if sc.Scheme == schemeXor {
		return xor.New(sc.Data)
	}
	return rs.New(sc.Data, sc.Parity)
}

func runScenario(sc Scenario, compare bool) (*Result, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	codec, err := newCodec(sc)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, sc.Size)
	if _, err := rand.Read(payload); err != nil {
		return nil, errors.Wrap(err, "generate payload")
	}
	data, err := encode.Split(payload, sc.Data)
	if err != nil {
		return nil, err
	}
	shardSize := len(data[0])

	res := &Result{
		Name:         sc.Name,
		Scheme:       sc.Scheme,
		DataShards:   sc.Data,
		ParityShards: sc.Parity,
		Size:         sc.Size,
		ShardSize:    shardSize,
		Lost:         sc.Lose,
	}

	shards := make([][]byte, codec.TotalShards())
	copy(shards, data)

	start := time.Now()
	if session, ok := codec.(*rs.Session); ok && sc.Progressive {
		parity := shards[sc.Data:]
		for i := range parity {
			parity[i] = make([]byte, shardSize)
		}
		for idx, d := range data {
			if err := session.EncodeIdx(d, idx, parity); err != nil {
				return nil, err
			}
		}
	} else if err := codec.Encode(shards); err != nil {
		return nil, err
	}
	res.Encode = time.Since(start)

	original := make([][]byte, len(shards))
	copy(original, shards)
	for _, idx := range sc.Lose {
		shards[idx] = nil
	}
	log.Debugf("%s: dropped shards %v", sc.Name, sc.Lose)

	start = time.Now()
	if err := codec.Reconstruct(shards); err != nil {
		return nil, err
	}
	res.Reconstruct = time.Since(start)

	for i := range shards {
		if !bytes.Equal(shards[i], original[i]) {
			return nil, errors.Errorf("%s: shard %d differs after reconstruction", sc.Name, i)
		}
	}
	joined, err := encode.Join(shards, sc.Data, sc.Size)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(joined, payload) {
		return nil, errors.Errorf("%s: payload differs after reconstruction", sc.Name)
	}

	start = time.Now()
	ok, err := codec.Verify(shards)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("%s: parity verification failed", sc.Name)
	}
	res.Verify = time.Since(start)

	if compare {
		if err := runBaseline(sc, original, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// runBaseline times klauspost/reedsolomon on the same shards and checks that
// it produces the same parity.
func runBaseline(sc Scenario, original [][]byte, res *Result) error {
	var opts []reedsolomon.Option
	if sc.Scheme == schemeXor {
		opts = append(opts, reedsolomon.WithFastOneParityMatrix())
	}
	enc, err := reedsolomon.New(sc.Data, sc.Parity, opts...)
	if err != nil {
		return errors.Wrap(err, "reedsolomon.New")
	}

	shards := make([][]byte, len(original))
	copy(shards, original[:sc.Data])
	for i := sc.Data; i < len(shards); i++ {
		shards[i] = make([]byte, res.ShardSize)
	}

	start := time.Now()
	if err := enc.Encode(shards); err != nil {
		return errors.Wrap(err, "baseline encode")
	}
	res.BaselineEncode = time.Since(start)

	for i := sc.Data; i < len(shards); i++ {
		if !bytes.Equal(shards[i], original[i]) {
			return errors.Errorf("%s: baseline parity shard %d differs", sc.Name, i)
		}
	}

	for _, idx := range sc.Lose {
		shards[idx] = nil
	}
	start = time.Now()
	if err := enc.Reconstruct(shards); err != nil {
		return errors.Wrap(err, "baseline reconstruct")
	}
	res.BaselineReconstruct = time.Since(start)
	return nil
}
