package erasure

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/reedsolomon"
	"github.com/lk2023060901/volguard/pkg/volumeset"
)

type reedSolomon struct {
	enc    reedsolomon.Encoder
	data   int
	parity int
}

// newReedSolomon 分片总数限制在 GF(2^8) 范围内，超出时编码库会切换到 GF(2^16) 实现，卷格式不再兼容
func newReedSolomon(dataShards, parityShards int) (Codec, error) {
	if dataShards <= 0 || parityShards <= 0 || dataShards+parityShards > volumeset.DefaultMaxVolumes {
		return nil, errors.Wrapf(ErrShardCount, "reed-solomon %d+%d, limit %d",
			dataShards, parityShards, volumeset.DefaultMaxVolumes)
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrapf(err, "reed-solomon %d+%d", dataShards, parityShards)
	}
	return &reedSolomon{enc: enc, data: dataShards, parity: parityShards}, nil
}

func (c *reedSolomon) Name() string      { return DefaultCodec }
func (c *reedSolomon) DataShards() int   { return c.data }
func (c *reedSolomon) ParityShards() int { return c.parity }

func (c *reedSolomon) Split(payload []byte) ([][]byte, error) {
	return c.enc.Split(payload)
}

func (c *reedSolomon) Encode(shards [][]byte) error {
	return c.enc.Encode(shards)
}

func (c *reedSolomon) Reconstruct(shards [][]byte) error {
	return c.enc.Reconstruct(shards)
}

func (c *reedSolomon) Verify(shards [][]byte) (bool, error) {
	return c.enc.Verify(shards)
}

func (c *reedSolomon) Join(w io.Writer, shards [][]byte, size int) error {
	return c.enc.Join(w, shards, size)
}
