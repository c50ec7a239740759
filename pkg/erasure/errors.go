package erasure

import "github.com/cockroachdb/errors"

var (
	// ErrUnknownCodec 编码标记未注册
	ErrUnknownCodec = errors.New("erasure: unknown codec")

	// ErrNotAnalyzed 报告不是已完成的分析扫描
	ErrNotAnalyzed = errors.New("erasure: report is not a completed analyze pass")

	// ErrUnverified 快速模式的报告没有校验卷内容，不能用于重建
	ErrUnverified = errors.New("erasure: report was produced in fast mode")

	// ErrShardCount 数据卷或校验卷数量不合法，或总数超过 volumeset.DefaultMaxVolumes
	ErrShardCount = errors.New("erasure: invalid shard count")

	// ErrShardSize 计划中的卷大小不一致
	ErrShardSize = errors.New("erasure: shard size mismatch")
)
