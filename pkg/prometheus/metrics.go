package prometheus

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// register 按名称登记并注册一个向量指标，同名指标（不论类型）只能注册一次
func register[V prometheus.Collector](c *Client, name string, build func(prometheus.Opts) V) (V, error) {
	var zero V
	if c.IsClosed() {
		return zero, ErrClientClosed
	}
	if _, loaded := c.vectors.LoadOrStore(name, nil); loaded {
		return zero, errors.Wrapf(ErrMetricExists, "metric %s", name)
	}

	vec := build(prometheus.Opts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
	})
	if err := c.registry.Register(vec); err != nil {
		c.vectors.Delete(name)
		return zero, errors.Wrapf(err, "register metric %s", name)
	}

	c.vectors.Store(name, vec)
	return vec, nil
}

func lookup[V any](c *Client, name string) (V, bool) {
	v, ok := c.vectors.Load(name)
	vec, typed := v.(V)
	return vec, ok && typed
}

func must[V any](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}

// NewCounter 创建并注册 Counter
func (c *Client) NewCounter(name, help string, labels []string) (*CounterVec, error) {
	return register(c, name, func(o prometheus.Opts) *CounterVec {
		o.Help = help
		return prometheus.NewCounterVec(prometheus.CounterOpts(o), labels)
	})
}

// MustNewCounter 创建 Counter，失败则 panic
func (c *Client) MustNewCounter(name, help string, labels []string) *CounterVec {
	return must(c.NewCounter(name, help, labels))
}

// GetCounter 获取已注册的 Counter
func (c *Client) GetCounter(name string) (*CounterVec, bool) {
	return lookup[*CounterVec](c, name)
}

// NewGauge 创建并注册 Gauge
func (c *Client) NewGauge(name, help string, labels []string) (*GaugeVec, error) {
	return register(c, name, func(o prometheus.Opts) *GaugeVec {
		o.Help = help
		return prometheus.NewGaugeVec(prometheus.GaugeOpts(o), labels)
	})
}

// MustNewGauge 创建 Gauge，失败则 panic
func (c *Client) MustNewGauge(name, help string, labels []string) *GaugeVec {
	return must(c.NewGauge(name, help, labels))
}

// GetGauge 获取已注册的 Gauge
func (c *Client) GetGauge(name string) (*GaugeVec, bool) {
	return lookup[*GaugeVec](c, name)
}

// NewHistogram 创建并注册 Histogram，buckets 为空时使用 prometheus.DefBuckets
func (c *Client) NewHistogram(name, help string, labels []string, buckets []float64) (*HistogramVec, error) {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return register(c, name, func(o prometheus.Opts) *HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      o.Name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	})
}

// MustNewHistogram 创建 Histogram，失败则 panic
func (c *Client) MustNewHistogram(name, help string, labels []string, buckets []float64) *HistogramVec {
	return must(c.NewHistogram(name, help, labels, buckets))
}

// GetHistogram 获取已注册的 Histogram
func (c *Client) GetHistogram(name string) (*HistogramVec, bool) {
	return lookup[*HistogramVec](c, name)
}

// RegisterCollector 注册自定义采集器
func (c *Client) RegisterCollector(collector Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	return c.registry.Register(collector)
}
