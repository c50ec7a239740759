package volumeset

import (
	"github.com/lk2023060901/volguard/pkg/prometheus"
)

// Metrics 卷集扫描指标，nil 时所有方法为空操作
type Metrics struct {
	volumes  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	passes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	damage   *prometheus.GaugeVec
}

// NewMetrics 在客户端上注册扫描指标
func NewMetrics(c *prometheus.Client) (*Metrics, error) {
	volumes, err := c.NewCounter("volumes_total", "Volumes processed by outcome.", []string{"pass", "outcome"})
	if err != nil {
		return nil, err
	}
	bytes, err := c.NewCounter("bytes_checksummed_total", "Bytes fed through the checksum engine.", []string{"pass"})
	if err != nil {
		return nil, err
	}
	passes, err := c.NewCounter("passes_total", "Completed passes by kind and status.", []string{"pass", "status"})
	if err != nil {
		return nil, err
	}
	duration, err := c.NewHistogram("pass_duration_seconds", "Pass wall time.", []string{"pass"},
		[]float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900})
	if err != nil {
		return nil, err
	}
	damage, err := c.NewGauge("damaged_percent", "Damaged volume percentage of the last analyze pass.", []string{"base"})
	if err != nil {
		return nil, err
	}

	return &Metrics{
		volumes:  volumes,
		bytes:    bytes,
		passes:   passes,
		duration: duration,
		damage:   damage,
	}, nil
}

func (m *Metrics) observeVolume(kind PassKind, v VolumeReport) {
	if m == nil {
		return
	}
	m.volumes.WithLabelValues(string(kind), v.Outcome.String()).Inc()
	m.bytes.WithLabelValues(string(kind)).Add(float64(v.Bytes))
}

func (m *Metrics) observePass(r *Report) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(string(r.Kind), r.Status.String()).Inc()
	m.duration.WithLabelValues(string(r.Kind)).Observe(r.Duration().Seconds())
	if r.Kind == PassAnalyze && (r.Status == StatusSucceeded || r.Status == StatusUnrecoverable) {
		m.damage.WithLabelValues(r.Config.BaseName).Set(r.Stats.DamagedPercent)
	}
}
