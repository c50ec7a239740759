package integrity

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/checksum"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// Worker 对单个卷盖章或校验
//
// 同一时刻最多一个运行；运行可以在调用方 goroutine 上同步执行（Stamp/Verify），
// 也可以在一个后台 goroutine 上异步执行（StartStamp/StartVerify）。
// 读缓冲与哈希器由当前运行独占，Done 关闭之前不能开始新的运行。
type Worker struct {
	opts    options
	hasher  checksum.Hasher
	limiter *rate.Limiter
	buf     []byte

	state atomic.Int32

	mu     sync.Mutex
	ctl    *Control
	done   chan struct{}
	result Result
	ran    bool
}

// NewWorker 创建工作器
func NewWorker(opts ...Option) (*Worker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	h, err := checksum.New(o.algorithm)
	if err != nil {
		return nil, errors.Wrap(err, "integrity: create hasher")
	}

	done := make(chan struct{})
	close(done)

	w := &Worker{
		opts:   o,
		hasher: h,
		buf:    make([]byte, o.bufferSize),
		done:   done,
	}

	bw := o.rateLimit
	if bw < 0 {
		bw = o.priority.bandwidth()
	}
	if bw > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(bw), o.bufferSize)
	}

	return w, nil
}

// BufferSize 返回实际使用的读缓冲大小
func (w *Worker) BufferSize() int {
	return len(w.buf)
}

// Algorithm 返回校验算法名称
func (w *Worker) Algorithm() string {
	return w.hasher.Name()
}

// Stamp 同步盖章：计算整个文件的校验值并追加到文件末尾
// 失败时不回滚，文件保持 I/O 层留下的状态
func (w *Worker) Stamp(ctx context.Context, path string) Result {
	return w.runSync(ctx, OpStamp, path)
}

// Verify 同步校验：比较除尾部 8 字节外内容的校验值与尾部存储值
func (w *Worker) Verify(ctx context.Context, path string) Result {
	return w.runSync(ctx, OpVerify, path)
}

// StartStamp 异步盖章，返回的通道恰好投递一个结果
func (w *Worker) StartStamp(ctx context.Context, path string) (<-chan Result, error) {
	return w.runAsync(ctx, OpStamp, path)
}

// StartVerify 异步校验，返回的通道恰好投递一个结果
func (w *Worker) StartVerify(ctx context.Context, path string) (<-chan Result, error) {
	return w.runAsync(ctx, OpVerify, path)
}

// Pause 暂停当前运行，在下一个分块读取前生效
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctl == nil || !w.State().Active() {
		return
	}
	if w.ctl.Pause() {
		w.state.CAS(int32(StateRunning), int32(StatePaused))
	}
}

// Resume 恢复当前运行
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctl == nil || !w.State().Active() {
		return
	}
	if w.ctl.Resume() {
		w.state.CAS(int32(StatePaused), int32(StateRunning))
	}
}

// Cancel 取消当前运行，暂停中的运行也会立即返回
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctl != nil && w.State().Active() {
		w.ctl.Cancel()
	}
}

// Done 返回运行结束信号：运行开始时替换为新的通道，结束时关闭
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// State 返回当前状态
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Result 返回最近一次运行的结果，运行中或从未运行时返回 ErrNotReady
func (w *Worker) Result() (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.ran || w.State().Active() {
		return Result{}, ErrNotReady
	}
	return w.result, nil
}

func (w *Worker) begin(ctx context.Context) (*Control, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State().Active() {
		return nil, ErrBusy
	}

	w.ctl = NewControl(ctx)
	w.done = make(chan struct{})
	w.result = Result{}
	w.state.Store(int32(StateRunning))
	return w.ctl, nil
}

func (w *Worker) finish(ctl *Control, r Result) {
	w.mu.Lock()
	w.result = r
	w.ran = true
	if r.Status == StatusCancelled {
		w.state.Store(int32(StateCancelled))
	} else {
		w.state.Store(int32(StateCompleted))
	}
	close(w.done)
	w.mu.Unlock()

	ctl.Cancel()
}

func (w *Worker) runSync(ctx context.Context, op Operation, path string) Result {
	ctl, err := w.begin(ctx)
	if err != nil {
		return Result{Op: op, Path: path, Status: StatusFailed, Err: err}
	}

	r := w.run(ctl, op, path)
	w.finish(ctl, r)
	return r
}

func (w *Worker) runAsync(ctx context.Context, op Operation, path string) (<-chan Result, error) {
	ctl, err := w.begin(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan Result, 1)
	go func() {
		r := w.run(ctl, op, path)
		w.finish(ctl, r)
		ch <- r
		close(ch)
	}()
	return ch, nil
}

func (w *Worker) run(ctl *Control, op Operation, path string) (r Result) {
	start := time.Now()

	var pc panics.Catcher
	pc.Try(func() {
		if op == OpStamp {
			r = w.stamp(ctl, path)
		} else {
			r = w.verify(ctl, path)
		}
	})
	if rec := pc.Recovered(); rec != nil {
		r = Result{Status: StatusFailed, Err: ioFailure(rec.AsError(), op, path)}
	}

	r.Op = op
	r.Path = path
	r.Duration = time.Since(start)

	log, ctx := w.opts.logger, ctl.Context()
	switch r.Status {
	case StatusSucceeded:
		log.DebugContext(ctx, "volume processed", "op", op, "path", path, "bytes", r.Bytes, "checksum", r.Computed, "duration", r.Duration)
	case StatusCancelled:
		log.InfoContext(ctx, "volume processing cancelled", "op", op, "path", path, "bytes", r.Bytes)
	default:
		log.WarnContext(ctx, "volume processing failed", "op", op, "path", path, "error", r.Err)
	}
	return r
}

func (w *Worker) stamp(ctl *Control, path string) Result {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Result{Status: StatusFailed, Err: classifyOpen(err, OpStamp, path)}
	}

	n, sum, err := w.digest(ctl, f)
	if err != nil {
		_ = f.Close()
		return interrupted(OpStamp, path, n, err)
	}

	value := checksum.Encode(sum)
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return Result{Status: StatusFailed, Err: ioFailure(err, OpStamp, path), Bytes: n}
	}
	if _, err := f.Write(value[:]); err != nil {
		_ = f.Close()
		return Result{Status: StatusFailed, Err: ioFailure(err, OpStamp, path), Bytes: n}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return Result{Status: StatusFailed, Err: ioFailure(err, OpStamp, path), Bytes: n}
	}
	if err := f.Close(); err != nil {
		return Result{Status: StatusFailed, Err: ioFailure(err, OpStamp, path), Bytes: n}
	}

	return Result{Status: StatusSucceeded, Bytes: n, Stored: sum, Computed: sum}
}

func (w *Worker) verify(ctl *Control, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Status: StatusFailed, Err: classifyOpen(err, OpVerify, path)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{Status: StatusFailed, Err: ioFailure(err, OpVerify, path)}
	}

	size := info.Size()
	if size <= checksum.Size {
		return Result{
			Status: StatusFailed,
			Err:    errors.Wrapf(ErrVolumeTruncated, "verify %s: size %d", path, size),
		}
	}

	body := size - checksum.Size
	n, sum, err := w.digest(ctl, io.LimitReader(f, body))
	if err != nil {
		return interrupted(OpVerify, path, n, err)
	}
	if n != body {
		return Result{
			Status: StatusFailed,
			Err:    errors.Wrapf(ErrVolumeTruncated, "verify %s: read %d of %d bytes", path, n, body),
			Bytes:  n,
		}
	}

	var trailer [checksum.Size]byte
	if _, err := f.ReadAt(trailer[:], body); err != nil {
		return Result{Status: StatusFailed, Err: ioFailure(err, OpVerify, path), Bytes: n}
	}
	stored, _ := checksum.Decode(trailer[:])

	r := Result{Bytes: n, Stored: stored, Computed: sum}
	if stored != sum {
		r.Status = StatusFailed
		r.Err = errors.Wrapf(ErrChecksumMismatch, "verify %s: stored %016x computed %016x", path, stored, sum)
		return r
	}
	r.Status = StatusSucceeded
	return r
}

// digest 从重置状态流式计算 r 的校验值
// 每个分块读取前等待运行门，读取后按实际字节数限速并检查取消
func (w *Worker) digest(ctl *Control, r io.Reader) (int64, uint64, error) {
	w.hasher.Reset()

	var total int64
	for {
		if err := ctl.Wait(); err != nil {
			return total, 0, err
		}

		n, err := r.Read(w.buf)
		if n > 0 {
			w.hasher.Update(w.buf, 0, n)
			total += int64(n)
		}

		if terr := w.throttle(ctl, n); terr != nil {
			return total, 0, terr
		}
		if cerr := ctl.Err(); cerr != nil {
			return total, 0, cerr
		}
		if err == io.EOF {
			return total, w.hasher.Sum64(), nil
		}
		if err != nil {
			return total, 0, err
		}
	}
}

// throttle 为刚读取的 n 个字节预留令牌并等待
// 不使用 WaitN：带截止时间的 ctx 会让它在真正超时之前就返回错误
func (w *Worker) throttle(ctl *Control, n int) error {
	if w.limiter == nil || n <= 0 {
		return nil
	}

	res := w.limiter.ReserveN(time.Now(), n)
	if !res.OK() {
		return nil
	}
	delay := res.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctl.Done():
		res.Cancel()
		return ctl.Err()
	}
}

func interrupted(op Operation, path string, n int64, err error) Result {
	if errors.Is(err, ErrCancelled) {
		return Result{Status: StatusCancelled, Err: err, Bytes: n}
	}
	return Result{Status: StatusFailed, Err: ioFailure(err, op, path), Bytes: n}
}
