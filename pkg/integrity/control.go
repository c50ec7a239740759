package integrity

import (
	"context"
	"sync"
)

// Control 单次运行的协作控制信号
//
// 运行门关闭表示运行，未关闭表示暂停；取消是单向的，只有新的运行才会创建新的 Control。
// 所有方法可以从任意 goroutine 调用。
type Control struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	gate   chan struct{}
	paused bool
}

// NewControl 创建处于运行状态的控制信号，parent 取消时同样视为取消
func NewControl(parent context.Context) *Control {
	ctx, cancel := context.WithCancel(parent)
	gate := make(chan struct{})
	close(gate)
	return &Control{
		ctx:    ctx,
		cancel: cancel,
		gate:   gate,
	}
}

// Pause 清除运行门，已暂停时返回 false
func (c *Control) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return false
	}
	c.gate = make(chan struct{})
	c.paused = true
	return true
}

// Resume 设置运行门，未暂停时返回 false
func (c *Control) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return false
	}
	close(c.gate)
	c.paused = false
	return true
}

// Paused 是否处于暂停
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Cancel 发出取消信号，重复调用无副作用
func (c *Control) Cancel() {
	c.cancel()
}

// Context 返回随取消而结束的 context
func (c *Control) Context() context.Context {
	return c.ctx
}

// Done 取消信号
func (c *Control) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Wait 阻塞直到运行门打开或被取消
func (c *Control) Wait() error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	select {
	case <-gate:
	case <-c.ctx.Done():
	}

	return c.Err()
}

// Err 已取消时返回可被 ErrCancelled 匹配的错误
func (c *Control) Err() error {
	if err := c.ctx.Err(); err != nil {
		return cancelled(err)
	}
	return nil
}
