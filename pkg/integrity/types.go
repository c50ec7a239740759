package integrity

import (
	"time"

	"github.com/cockroachdb/errors"
)

// State 工作器状态
type State int32

const (
	// StateIdle 从未运行
	StateIdle State = iota

	// StateRunning 运行中
	StateRunning

	// StatePaused 运行中但已暂停
	StatePaused

	// StateCompleted 运行结束（成功或失败）
	StateCompleted

	// StateCancelled 运行被取消
	StateCancelled
)

// String 返回状态字符串
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Active 是否有运行未结束
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Status 单次运行的结果
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusCancelled
)

// String 返回结果字符串
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Operation 运行类型
type Operation string

const (
	OpStamp  Operation = "stamp"
	OpVerify Operation = "verify"
)

// Result 单个卷的处理结果
type Result struct {
	Op     Operation
	Path   string
	Status Status
	// Err 失败或取消原因，可用 errors.Is 与包内哨兵错误匹配
	Err error
	// Bytes 参与校验的字节数（不含尾部）
	Bytes int64
	// Stored 校验时从尾部读出的值，盖章时等于 Computed
	Stored   uint64
	Computed uint64
	Duration time.Duration
}

// OK 是否成功
func (r Result) OK() bool {
	return r.Status == StatusSucceeded
}

// Mismatch 是否为“已处理但校验不一致”
func (r Result) Mismatch() bool {
	return errors.Is(r.Err, ErrChecksumMismatch)
}

// Priority 运行优先级，映射为读带宽上限
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

// String 返回优先级字符串
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	default:
		return "unknown"
	}
}

// ParsePriority 解析优先级名称，未知名称返回 false
func ParsePriority(name string) (Priority, bool) {
	for p := PriorityBackground; p <= PriorityHighest; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return PriorityNormal, false
}

// bandwidth 优先级对应的每秒字节数，0 表示不限速
func (p Priority) bandwidth() int64 {
	switch p {
	case PriorityBackground:
		return 16 << 20
	case PriorityLow:
		return 64 << 20
	default:
		return 0
	}
}
