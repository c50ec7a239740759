package volumeset

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lk2023060901/volguard/pkg/checksum"
	"github.com/lk2023060901/volguard/pkg/integrity"
	"github.com/lk2023060901/volguard/pkg/logger"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
)

// Analyzer 在整个卷集上运行盖章或分析扫描
//
// 卷严格按序号升序处理（先数据卷后校验卷），同一时刻只有一个卷在处理。
// 暂停与恢复同时作用于分析器和正在运行的工作器；取消在卷之间检查，
// 并在等待工作器结果前下推给工作器。
type Analyzer struct {
	cfg    *Config
	opts   options
	worker *integrity.Worker
	log    logger.Logger

	state atomic.Int32

	mu     sync.Mutex
	ctl    *integrity.Control
	done   chan struct{}
	report *Report
}

// NewAnalyzer 创建分析器，配置不合法时返回 ErrConfigurationInvalid
func NewAnalyzer(cfg *Config, opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c, err := prepare(cfg, o.namer)
	if err != nil {
		return nil, err
	}

	log := o.logger.Named("volumeset")
	workerOpts := []integrity.Option{
		integrity.WithBufferSize(c.BufferSize),
		integrity.WithPriority(c.priority()),
		integrity.WithAlgorithm(checksum.Type(c.Algorithm)),
		integrity.WithLogger(log.Named("worker")),
	}
	if c.RateLimit > 0 {
		workerOpts = append(workerOpts, integrity.WithRateLimit(c.RateLimit))
	}

	w, err := integrity.NewWorker(workerOpts...)
	if err != nil {
		return nil, errors.Mark(err, ErrConfigurationInvalid)
	}

	done := make(chan struct{})
	close(done)

	return &Analyzer{
		cfg:    c,
		opts:   o,
		worker: w,
		log:    log.WithFields("base", c.BaseName, "data", c.DataCount, "ecc", c.ECCCount),
		done:   done,
	}, nil
}

// Config 返回合并默认值并规范化后的配置
func (a *Analyzer) Config() Config {
	return *a.cfg
}

// Volume 返回第 index 个卷
func (a *Analyzer) Volume(index int) Volume {
	role := RoleData
	if index >= a.cfg.DataCount {
		role = RoleParity
	}
	name := a.opts.namer.VolumeName(a.cfg.BaseName, index, a.cfg.DataCount, a.cfg.ECCCount, a.cfg.Codec)
	return Volume{
		Index: index,
		Path:  filepath.Join(a.cfg.BasePath, name),
		Role:  role,
	}
}

// Volumes 按处理顺序返回全部卷
func (a *Analyzer) Volumes() []Volume {
	out := make([]Volume, a.cfg.Total())
	for i := range out {
		out[i] = a.Volume(i)
	}
	return out
}

// Stamp 同步盖章扫描，任一卷盖章失败即中止
// 返回的 error 只表示扫描无法开始，扫描本身的结果见 Report.Status
func (a *Analyzer) Stamp(ctx context.Context) (*Report, error) {
	return a.runSync(ctx, PassStamp)
}

// Analyze 同步分析扫描
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	return a.runSync(ctx, PassAnalyze)
}

// StartStamp 异步盖章扫描，返回的通道恰好投递一个报告
func (a *Analyzer) StartStamp(ctx context.Context) (<-chan *Report, error) {
	return a.runAsync(ctx, PassStamp)
}

// StartAnalyze 异步分析扫描，返回的通道恰好投递一个报告
func (a *Analyzer) StartAnalyze(ctx context.Context) (<-chan *Report, error) {
	return a.runAsync(ctx, PassAnalyze)
}

// Pause 暂停扫描
func (a *Analyzer) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctl == nil || !a.State().Active() {
		return
	}
	if a.ctl.Pause() {
		a.state.CAS(int32(integrity.StateRunning), int32(integrity.StatePaused))
		a.worker.Pause()
	}
}

// Resume 恢复扫描
func (a *Analyzer) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctl == nil || !a.State().Active() {
		return
	}
	if a.ctl.Resume() {
		a.state.CAS(int32(integrity.StatePaused), int32(integrity.StateRunning))
		a.worker.Resume()
	}
}

// Cancel 取消扫描，结果为 StatusCancelled
func (a *Analyzer) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctl != nil && a.State().Active() {
		a.ctl.Cancel()
		a.worker.Cancel()
	}
}

// Done 返回扫描结束信号
func (a *Analyzer) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// State 返回当前状态
func (a *Analyzer) State() integrity.State {
	return integrity.State(a.state.Load())
}

// Report 返回最近一次扫描的报告，扫描中或从未扫描时返回 ErrNotReady
func (a *Analyzer) Report() (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.report == nil || a.State().Active() {
		return nil, ErrNotReady
	}
	return a.report, nil
}

func (a *Analyzer) begin(ctx context.Context, kind PassKind) (*integrity.Control, *Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State().Active() {
		return nil, nil, ErrBusy
	}

	runID := uuid.NewString()
	// worker 通过 ctl.Context() 继承 run_id，日志由 ContextFieldExtractor 带出
	a.ctl = integrity.NewControl(logger.ContextWithRunID(ctx, runID))
	a.done = make(chan struct{})
	a.report = nil
	a.state.Store(int32(integrity.StateRunning))

	rep := &Report{
		RunID:   runID,
		Kind:    kind,
		Config:  *a.cfg,
		Started: time.Now(),
	}
	return a.ctl, rep, nil
}

func (a *Analyzer) finish(ctl *integrity.Control, rep *Report) {
	rep.Finished = time.Now()

	a.mu.Lock()
	a.report = rep
	a.state.Store(int32(stateFor(rep.Status)))
	close(a.done)
	a.mu.Unlock()

	ctl.Cancel()
	a.opts.metrics.observePass(rep)

	log := a.log.WithFields("run_id", rep.RunID, "pass", rep.Kind, "status", rep.Status, "duration", rep.Duration())
	switch rep.Status {
	case StatusSucceeded:
		log.Info("pass finished", "plan", rep.Plan.String(), "damaged_percent", rep.Stats.DamagedPercent)
	case StatusUnrecoverable:
		log.Warn("volume set unrecoverable", "missing_data", rep.Stats.MissingData, "present_parity", rep.Stats.PresentParity)
	case StatusCancelled:
		log.Info("pass cancelled", "processed", len(rep.Volumes))
	default:
		log.Error("pass failed", "error", rep.Err)
	}

	if a.opts.onComplete != nil {
		a.opts.onComplete(rep)
	}
}

func (a *Analyzer) runSync(ctx context.Context, kind PassKind) (*Report, error) {
	ctl, rep, err := a.begin(ctx, kind)
	if err != nil {
		return nil, err
	}
	a.run(ctl, rep)
	return rep, nil
}

func (a *Analyzer) runAsync(ctx context.Context, kind PassKind) (<-chan *Report, error) {
	ctl, rep, err := a.begin(ctx, kind)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Report, 1)
	go func() {
		a.run(ctl, rep)
		ch <- rep
		close(ch)
	}()
	return ch, nil
}

func (a *Analyzer) run(ctl *integrity.Control, rep *Report) {
	a.log.Debug("pass started", "run_id", rep.RunID, "pass", rep.Kind, "fast", a.cfg.FastMode)

	var pc panics.Catcher
	pc.Try(func() {
		if rep.Kind == PassStamp {
			a.stamp(ctl, rep)
		} else {
			a.analyze(ctl, rep)
		}
	})
	if r := pc.Recovered(); r != nil {
		rep.Status = StatusFailed
		rep.Err = r.AsError()
	}

	a.finish(ctl, rep)
}

func (a *Analyzer) stamp(ctl *integrity.Control, rep *Report) {
	total := a.cfg.Total()
	for i := 0; i < total; i++ {
		if err := ctl.Wait(); err != nil {
			interrupt(rep, err)
			return
		}

		vol := a.Volume(i)
		res, err := a.runVolume(ctl, integrity.OpStamp, vol.Path)
		if err != nil {
			interrupt(rep, err)
			return
		}

		vr := VolumeReport{
			Volume:   vol,
			Outcome:  OutcomeStamped,
			Bytes:    res.Bytes,
			Checksum: res.Computed,
			Duration: res.Duration,
		}
		if !res.OK() {
			vr.Outcome = OutcomeFailed
			vr.Reason = res.Err
		}
		a.record(rep, vr, i+1, total)

		if !res.OK() {
			rep.Status = StatusFailed
			rep.Err = errors.Wrapf(res.Err, "stamp pass aborted at volume %d", i)
			return
		}
	}
	rep.Status = StatusSucceeded
}

func (a *Analyzer) analyze(ctl *integrity.Control, rep *Report) {
	dataCount, eccCount := a.cfg.DataCount, a.cfg.ECCCount
	total := dataCount + eccCount

	dataPresent := make([]bool, dataCount)
	parity := make([]int, 0, eccCount)
	missingData, missingParity := 0, 0

	for i := 0; i < total; i++ {
		if err := ctl.Wait(); err != nil {
			interrupt(rep, err)
			return
		}

		vol := a.Volume(i)
		vr, err := a.inspect(ctl, vol)
		if err != nil {
			interrupt(rep, err)
			return
		}
		a.record(rep, vr, i+1, total)

		damaged := vr.Outcome.Damaged()
		switch {
		case vol.Role == RoleData && damaged:
			missingData++
		case vol.Role == RoleData:
			dataPresent[i] = true
		case damaged:
			missingParity++
		default:
			parity = append(parity, i)
		}
	}

	plan, ok := buildPlan(dataPresent, parity)
	rep.Plan = plan
	rep.Stats = computeStats(dataCount, eccCount, missingData, missingParity, len(parity))

	if !ok {
		rep.Status = StatusUnrecoverable
		rep.Err = errors.Wrapf(ErrUnrecoverable, "%d data volumes missing, %d parity volumes present",
			missingData, len(parity))
		return
	}
	rep.Status = StatusSucceeded
}

// inspect 判断卷是否可用；只有取消时返回 error
func (a *Analyzer) inspect(ctl *integrity.Control, vol Volume) (VolumeReport, error) {
	vr := VolumeReport{Volume: vol}

	info, err := os.Stat(vol.Path)
	if err != nil {
		wrapped := errors.Wrapf(err, "stat %s", vol.Path)
		if errors.Is(err, fs.ErrNotExist) {
			vr.Outcome = OutcomeMissing
			vr.Reason = errors.Mark(wrapped, integrity.ErrVolumeAbsent)
		} else {
			vr.Outcome = OutcomeCorrupt
			vr.Reason = errors.Mark(wrapped, integrity.ErrVolumeIO)
		}
		return vr, nil
	}

	if info.IsDir() {
		vr.Outcome = OutcomeCorrupt
		vr.Reason = errors.Mark(errors.Newf("%s is a directory", vol.Path), integrity.ErrVolumeIO)
		return vr, nil
	}
	if a.cfg.FastMode {
		vr.Outcome = OutcomePresent
		return vr, nil
	}

	res, err := a.runVolume(ctl, integrity.OpVerify, vol.Path)
	if err != nil {
		return vr, err
	}

	vr.Bytes = res.Bytes
	vr.Checksum = res.Computed
	vr.Duration = res.Duration
	switch {
	case res.OK():
		vr.Outcome = OutcomePresent
	case errors.Is(res.Err, integrity.ErrVolumeAbsent):
		vr.Outcome = OutcomeMissing
		vr.Reason = res.Err
	default:
		vr.Outcome = OutcomeCorrupt
		vr.Reason = res.Err
	}
	return vr, nil
}

// runVolume 在工作器上处理一个卷，并与分析器自身的取消信号一起等待
func (a *Analyzer) runVolume(ctl *integrity.Control, op integrity.Operation, path string) (integrity.Result, error) {
	var (
		ch  <-chan integrity.Result
		err error
	)
	if op == integrity.OpStamp {
		ch, err = a.worker.StartStamp(ctl.Context(), path)
	} else {
		ch, err = a.worker.StartVerify(ctl.Context(), path)
	}
	if err != nil {
		return integrity.Result{}, err
	}

	a.mu.Lock()
	if ctl.Paused() {
		a.worker.Pause()
	}
	a.mu.Unlock()

	select {
	case r := <-ch:
		if r.Status == integrity.StatusCancelled {
			return r, r.Err
		}
		return r, nil
	case <-ctl.Done():
		a.worker.Cancel()
		r := <-ch
		return r, ctl.Err()
	}
}

func (a *Analyzer) record(rep *Report, vr VolumeReport, processed, total int) {
	rep.Volumes = append(rep.Volumes, vr)
	a.opts.metrics.observeVolume(rep.Kind, vr)

	a.log.Debug("volume processed",
		"run_id", rep.RunID,
		"index", vr.Index,
		"path", vr.Path,
		"outcome", vr.Outcome,
		"bytes", vr.Bytes,
		"reason", vr.Reason,
	)

	if a.opts.onVolume != nil {
		a.opts.onVolume(vr)
	}
	if a.opts.onProgress != nil && shouldReport(processed, total) {
		a.opts.onProgress(float64(processed) / float64(total) * 100)
	}
}

// shouldReport 每处理 max(1, total/100) 个卷报告一次进度
func shouldReport(processed, total int) bool {
	step := max(1, total/100)
	return processed%step == 0
}

func interrupt(rep *Report, err error) {
	if errors.Is(err, ErrCancelled) {
		rep.Status = StatusCancelled
	} else {
		rep.Status = StatusFailed
	}
	rep.Err = err
}
