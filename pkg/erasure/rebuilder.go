package erasure

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/checksum"
	"github.com/lk2023060901/volguard/pkg/integrity"
	"github.com/lk2023060901/volguard/pkg/logger"
	"github.com/lk2023060901/volguard/pkg/volumeset"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency 默认并发读写的卷数
const DefaultConcurrency = 4

// rebuildSuffix 重建中的临时文件后缀，盖章成功后原子替换目标卷
const rebuildSuffix = ".rebuild"

type options struct {
	concurrency int
	logger      logger.Logger
}

// Option 重建器选项
type Option func(*options)

// WithConcurrency 设置并发读写的卷数
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Rebuilder 根据分析报告重建缺失或损坏的卷
type Rebuilder struct {
	opts options
}

// RebuildResult 重建结果
type RebuildResult struct {
	// Rebuilt 成功重建并盖章的卷序号，升序
	Rebuilt []int
	// ShardSize 单个卷不含尾部的大小
	ShardSize int64
}

// NewRebuilder 创建重建器
func NewRebuilder(opts ...Option) *Rebuilder {
	o := options{
		concurrency: DefaultConcurrency,
		logger:      logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Rebuilder{opts: o}
}

// Rebuild 读取计划中的卷，重建所有缺失或损坏的数据卷和校验卷，写回并重新盖章
// 只接受非快速模式下成功的分析报告；不可恢复的报告返回 volumeset.ErrUnrecoverable
func (r *Rebuilder) Rebuild(ctx context.Context, rep *volumeset.Report) (*RebuildResult, error) {
	if rep == nil || rep.Kind != volumeset.PassAnalyze {
		return nil, ErrNotAnalyzed
	}
	switch rep.Status {
	case volumeset.StatusSucceeded:
	case volumeset.StatusUnrecoverable:
		return nil, errors.Wrap(volumeset.ErrUnrecoverable, "rebuild refused")
	default:
		return nil, errors.Wrapf(ErrNotAnalyzed, "pass status %s", rep.Status)
	}
	if rep.Config.FastMode {
		return nil, ErrUnverified
	}

	cfg := rep.Config
	if len(rep.Volumes) != cfg.Total() {
		return nil, errors.Wrapf(ErrNotAnalyzed, "report covers %d of %d volumes", len(rep.Volumes), cfg.Total())
	}

	plan, err := rep.Plan.Indices()
	if err != nil {
		return nil, err
	}

	var damaged []volumeset.VolumeReport
	for _, v := range rep.Volumes {
		if v.Outcome.Damaged() {
			damaged = append(damaged, v)
		}
	}
	if len(damaged) == 0 {
		return &RebuildResult{}, nil
	}

	codec, err := New(cfg.Codec, cfg.DataCount, cfg.ECCCount)
	if err != nil {
		return nil, err
	}

	shards, size, err := r.load(ctx, rep, plan)
	if err != nil {
		return nil, err
	}
	if err := codec.Reconstruct(shards); err != nil {
		return nil, errors.Wrap(err, "reconstruct shards")
	}

	rebuilt, err := r.write(ctx, cfg, damaged, shards)
	return &RebuildResult{Rebuilt: rebuilt, ShardSize: size}, err
}

// load 并发读取计划中的卷并去掉尾部
func (r *Rebuilder) load(ctx context.Context, rep *volumeset.Report, plan []int) ([][]byte, int64, error) {
	shards := make([][]byte, rep.Config.Total())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for _, idx := range plan {
		path := rep.Volumes[idx].Path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shard, err := loadShard(path)
			if err != nil {
				return err
			}
			shards[idx] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	size := len(shards[plan[0]])
	for _, idx := range plan {
		if len(shards[idx]) != size {
			return nil, 0, errors.Wrapf(ErrShardSize, "volume %d has %d bytes, expected %d", idx, len(shards[idx]), size)
		}
	}
	return shards, int64(size), nil
}

func loadShard(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", path), integrity.ErrVolumeIO)
	}
	if len(data) <= checksum.Size {
		return nil, errors.Wrapf(integrity.ErrVolumeTruncated, "read %s: size %d", path, len(data))
	}
	return data[:len(data)-checksum.Size], nil
}

// write 在协程池上写回重建的卷
func (r *Rebuilder) write(ctx context.Context, cfg volumeset.Config, damaged []volumeset.VolumeReport, shards [][]byte) ([]int, error) {
	pool, err := ants.NewPool(r.opts.concurrency)
	if err != nil {
		return nil, errors.Wrap(err, "create rebuild pool")
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rebuilt []int
		errs    error
	)
	for _, v := range damaged {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			err := r.writeVolume(ctx, cfg, v.Path, shards[v.Index])

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "rebuild volume %d", v.Index))
				return
			}
			rebuilt = append(rebuilt, v.Index)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = errors.CombineErrors(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Ints(rebuilt)
	return rebuilt, errs
}

// writeVolume 写入临时文件并盖章，成功后替换目标卷
func (r *Rebuilder) writeVolume(ctx context.Context, cfg volumeset.Config, path string, shard []byte) error {
	tmp := path + rebuildSuffix
	if err := os.WriteFile(tmp, shard, 0o644); err != nil {
		return errors.Mark(errors.Wrapf(err, "write %s", tmp), integrity.ErrVolumeIO)
	}

	w, err := integrity.NewWorker(
		integrity.WithBufferSize(cfg.BufferSize),
		integrity.WithAlgorithm(checksum.Type(cfg.Algorithm)),
		integrity.WithLogger(r.opts.logger),
	)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if res := w.Stamp(ctx, tmp); !res.OK() {
		_ = os.Remove(tmp)
		return res.Err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Mark(errors.Wrapf(err, "rename %s", tmp), integrity.ErrVolumeIO)
	}

	r.opts.logger.Info("volume rebuilt", "path", path, "bytes", len(shard))
	return nil
}
