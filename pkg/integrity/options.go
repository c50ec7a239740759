package integrity

import (
	"github.com/lk2023060901/volguard/pkg/checksum"
	"github.com/lk2023060901/volguard/pkg/logger"
)

const (
	// DefaultBufferSize 默认读缓冲大小
	DefaultBufferSize = 1 << 20

	// MinBufferSize 最小读缓冲大小
	MinBufferSize = checksum.Size
)

type options struct {
	bufferSize int
	priority   Priority
	// rateLimit < 0 表示未显式设置，按优先级决定
	rateLimit int64
	algorithm checksum.Type
	logger    logger.Logger
}

func defaultOptions() options {
	return options{
		bufferSize: DefaultBufferSize,
		priority:   PriorityNormal,
		rateLimit:  -1,
		algorithm:  checksum.TypeCRC64,
		logger:     logger.NewNoop(),
	}
}

// Option 工作器选项
type Option func(*options)

// WithBufferSize 设置读缓冲大小，向下取整为 8 的倍数，最小 8
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = NormalizeBufferSize(size)
	}
}

// WithPriority 设置运行优先级
func WithPriority(p Priority) Option {
	return func(o *options) {
		if p >= PriorityBackground && p <= PriorityHighest {
			o.priority = p
		}
	}
}

// WithRateLimit 显式设置读带宽（字节/秒），优先于优先级；0 表示不限速
func WithRateLimit(bytesPerSecond int64) Option {
	return func(o *options) {
		if bytesPerSecond < 0 {
			bytesPerSecond = 0
		}
		o.rateLimit = bytesPerSecond
	}
}

// WithAlgorithm 设置校验算法
func WithAlgorithm(t checksum.Type) Option {
	return func(o *options) {
		if t != "" {
			o.algorithm = t
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

// NormalizeBufferSize 向下取整为 8 的倍数，最小 8
func NormalizeBufferSize(size int) int {
	size &^= checksum.Size - 1
	if size < MinBufferSize {
		return MinBufferSize
	}
	return size
}
