package volumeset

import (
	"time"

	"github.com/lk2023060901/volguard/pkg/integrity"
)

// Role 卷角色
type Role int

const (
	RoleData Role = iota
	RoleParity
)

// String 返回角色字符串
func (r Role) String() string {
	if r == RoleData {
		return "data"
	}
	return "parity"
}

// Volume 卷集中的一个卷
type Volume struct {
	Index int
	Path  string
	Role  Role
}

// Outcome 单个卷的处理结论
type Outcome int

const (
	// OutcomePresent 存在且校验通过（快速模式下仅存在）
	OutcomePresent Outcome = iota
	// OutcomeMissing 文件不存在
	OutcomeMissing
	// OutcomeCorrupt 存在但校验失败、过短或无法读取
	OutcomeCorrupt
	// OutcomeStamped 盖章成功
	OutcomeStamped
	// OutcomeFailed 盖章失败
	OutcomeFailed
)

// String 返回结论字符串
func (o Outcome) String() string {
	switch o {
	case OutcomePresent:
		return "present"
	case OutcomeMissing:
		return "missing"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeStamped:
		return "stamped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Damaged 规划时视为缺失
func (o Outcome) Damaged() bool {
	return o == OutcomeMissing || o == OutcomeCorrupt
}

// VolumeReport 单个卷的诊断信息
type VolumeReport struct {
	Volume
	Outcome Outcome
	// Reason 缺失、损坏或失败的原因，可用 errors.Is 与 integrity 哨兵错误匹配
	Reason   error
	Bytes    int64
	Checksum uint64
	Duration time.Duration
}

// Stats 损坏统计
type Stats struct {
	Total         int
	MissingData   int
	MissingParity int
	PresentParity int
	// DamagedPercent (缺失数据卷+缺失校验卷)/总数*100
	DamagedPercent float64
	// AlternateParityPercent (可用校验卷-缺失数据卷)/校验卷数*100，不可恢复时为负
	AlternateParityPercent float64
}

func computeStats(dataCount, eccCount, missingData, missingParity, presentParity int) Stats {
	total := dataCount + eccCount
	s := Stats{
		Total:         total,
		MissingData:   missingData,
		MissingParity: missingParity,
		PresentParity: presentParity,
	}
	if total > 0 {
		s.DamagedPercent = float64(missingData+missingParity) / float64(total) * 100
	}
	if eccCount > 0 {
		s.AlternateParityPercent = float64(presentParity-missingData) / float64(eccCount) * 100
	}
	return s
}

// PassKind 扫描类型
type PassKind string

const (
	PassStamp   PassKind = "stamp"
	PassAnalyze PassKind = "analyze"
)

// Status 扫描结果
type Status int

const (
	StatusSucceeded Status = iota
	// StatusUnrecoverable 分析完成但无法恢复，属于正常结果
	StatusUnrecoverable
	StatusFailed
	StatusCancelled
)

// String 返回结果字符串
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusUnrecoverable:
		return "unrecoverable"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Report 一次扫描的完整结果
type Report struct {
	RunID    string
	Kind     PassKind
	Config   Config
	Status   Status
	Err      error
	Started  time.Time
	Finished time.Time
	Volumes  []VolumeReport
	// Plan 与 Stats 仅分析扫描完成时有效
	Plan  Plan
	Stats Stats
}

// Recoverable 是否可以调用解码器
func (r *Report) Recoverable() bool {
	return r.Kind == PassAnalyze && r.Status == StatusSucceeded
}

// Duration 扫描耗时
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Bytes 本次扫描参与校验的总字节数
func (r *Report) Bytes() int64 {
	var n int64
	for _, v := range r.Volumes {
		n += v.Bytes
	}
	return n
}

// VolumePath 返回第 index 个卷的路径
func (r *Report) VolumePath(index int) string {
	for _, v := range r.Volumes {
		if v.Index == index {
			return v.Path
		}
	}
	return ""
}

func stateFor(s Status) integrity.State {
	if s == StatusCancelled {
		return integrity.StateCancelled
	}
	return integrity.StateCompleted
}
