package volumeset

import (
	"github.com/lk2023060901/volguard/pkg/logger"
)

// ProgressFunc 进度回调，percent 为 0~100
type ProgressFunc func(percent float64)

// VolumeFunc 单卷完成回调
type VolumeFunc func(v VolumeReport)

// CompleteFunc 扫描完成回调
type CompleteFunc func(r *Report)

type options struct {
	namer      Namer
	logger     logger.Logger
	metrics    *Metrics
	onProgress ProgressFunc
	onVolume   VolumeFunc
	onComplete CompleteFunc
}

func defaultOptions() options {
	return options{
		namer:  DefaultNamer{},
		logger: logger.NewNoop(),
	}
}

// Option 分析器选项
type Option func(*options)

// WithNamer 设置卷文件命名规则
func WithNamer(n Namer) Option {
	return func(o *options) {
		if n != nil {
			o.namer = n
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

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithProgress 设置进度回调，在扫描 goroutine 上调用
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// WithVolumeCallback 设置单卷完成回调
func WithVolumeCallback(fn VolumeFunc) Option {
	return func(o *options) {
		o.onVolume = fn
	}
}

// WithCompletion 设置扫描完成回调，在 Done 关闭之后调用
func WithCompletion(fn CompleteFunc) Option {
	return func(o *options) {
		o.onComplete = fn
	}
}
