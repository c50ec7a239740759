package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/logger"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")
	ErrStopTimeout       = errors.New("task did not stop before timeout")
)

// Task 应用运行的一次性任务，ctx 在收到退出信号时取消
type Task func(ctx context.Context) error

// Closer 定义了资源清理接口（如指标服务器、日志）
type Closer interface {
	Close() error
}

// CloserFunc 函数形式的 Closer
type CloserFunc func() error

// Close 实现 Closer
func (f CloserFunc) Close() error { return f() }

// BaseApp 运行一次性任务并负责信号处理和资源清理
type BaseApp struct {
	opts    Options
	logger  logger.Logger
	closers []Closer
	mu      sync.Mutex

	started atomic.Bool
	signals []os.Signal
}

// NewBaseApp 创建一个新的 BaseApp 实例
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &BaseApp{
		opts:    o,
		logger:  o.Logger.Named(o.Name),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Logger 获取应用主日志对象
func (a *BaseApp) Logger() logger.Logger {
	return a.logger
}

// AppendCloser 添加资源清理组件，退出时逆序关闭
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}

// Run 运行任务并阻塞直到任务返回
// 收到 SIGINT/SIGTERM 时取消任务的 ctx，并最多等待 StopTimeout
func (a *BaseApp) Run(ctx context.Context, task Task) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	info := GetInfo()
	a.logger.Debug("application starting",
		"name", info.AppName,
		"version", info.Version,
		"commit", info.GitCommit,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, a.signals...)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		var (
			pc  panics.Catcher
			err error
		)
		pc.Try(func() { err = task(ctx) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}
		errCh <- err
	}()

	var err error
	select {
	case err = <-errCh:
	case sig := <-quit:
		a.logger.Info("received signal, stopping", "signal", sig.String())
		cancel()
		select {
		case err = <-errCh:
		case <-time.After(a.opts.StopTimeout):
			a.logger.Warn("stop timeout, forcing exit", "timeout", a.opts.StopTimeout)
			err = ErrStopTimeout
		}
	}

	a.shutdown()
	return err
}

// shutdown 逆序关闭所有 Closer 组件（LIFO）
func (a *BaseApp) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}
	a.closers = nil

	_ = a.logger.Sync()
}
