package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/lk2023060901/volguard/pkg/app"
	"github.com/lk2023060901/volguard/pkg/integrity"
	"github.com/lk2023060901/volguard/pkg/logger"
	"github.com/lk2023060901/volguard/pkg/prometheus"
	"github.com/lk2023060901/volguard/pkg/volumeset"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

const (
	exitFailure       = 1
	exitUnrecoverable = 2
	exitCancelled     = 130
)

// exitError 携带进程退出码，err 为空时不再额外打印
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitFor 把扫描结果映射为退出码
func exitFor(rep *volumeset.Report) error {
	switch rep.Status {
	case volumeset.StatusSucceeded:
		return nil
	case volumeset.StatusUnrecoverable:
		return &exitError{code: exitUnrecoverable}
	case volumeset.StatusCancelled:
		return &exitError{code: exitCancelled, err: volumeset.ErrCancelled}
	default:
		return &exitError{code: exitFailure, err: rep.Err}
	}
}

// settings 配置文件的完整结构
type settings struct {
	VolGuard volumeset.Config  `mapstructure:"volguard"`
	Log      logger.Config     `mapstructure:"log"`
	Metrics  prometheus.Config `mapstructure:"metrics"`
}

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configPath string
	progress   bool
}

// flagBindings 配置键到命令行参数名
var flagBindings = map[string]string{
	"log.level":                "log-level",
	"metrics.http_server.addr": "metrics-addr",
	"metrics.textfile_path":    "metrics-textfile",
	"volguard.base_path":       "base-path",
	"volguard.data_count":      "data",
	"volguard.ecc_count":       "ecc",
	"volguard.codec":           "codec",
	"volguard.priority":        "priority",
	"volguard.algorithm":       "algorithm",
	"volguard.fast_mode":       "fast",
}

// defaultSettings 最低优先级的默认值，同时让环境变量可以覆盖这些键
func defaultSettings() map[string]any {
	vg := volumeset.DefaultConfig()
	lg := logger.DefaultConfig()
	mc := prometheus.DefaultConfig()

	return map[string]any{
		"volguard.base_path":   "",
		"volguard.base_name":   "",
		"volguard.data_count":  0,
		"volguard.ecc_count":   0,
		"volguard.codec":       vg.Codec,
		"volguard.fast_mode":   false,
		"volguard.buffer_size": vg.BufferSize,
		"volguard.priority":    vg.Priority,
		"volguard.rate_limit":  vg.RateLimit,
		"volguard.max_volumes": vg.MaxVolumes,
		"volguard.algorithm":   vg.Algorithm,

		"log.level":          string(logger.WarnLevel),
		"log.format":         string(lg.Format),
		"log.enable_console": lg.EnableConsole,
		"log.enable_file":    lg.EnableFile,
		"log.output_path":    "",
		"log.development":    lg.Development,

		"metrics.namespace":           mc.Namespace,
		"metrics.http_server.enabled": mc.HTTPServer.Enabled,
		"metrics.http_server.addr":    mc.HTTPServer.Addr,
		"metrics.http_server.path":    mc.HTTPServer.Path,
		"metrics.http_server.timeout": mc.HTTPServer.Timeout,
		"metrics.textfile_path":       "",
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "volguard",
		Short: "Checksum, analyze and repair erasure-coded volume sets",
		Long: `volguard stamps every volume of a data+parity set with a CRC64 trailer,
verifies the trailers to find missing or damaged volumes, and builds the
reconstruction plan a Reed-Solomon decoder needs.

Commands:
  stamp     append checksum trailers to every volume
  analyze   verify trailers and print the reconstruction plan
  repair    analyze, then rebuild damaged volumes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ./"+app.DefaultConfigFile+")")
	pf.String("log-level", string(logger.WarnLevel), "log level (debug, info, warn, error)")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.String("metrics-textfile", "", "write metrics in textfile-collector format on exit")
	pf.BoolVar(&g.progress, "progress", false, "print pass progress to stderr")

	root.AddCommand(
		newStampCommand(g),
		newAnalyzeCommand(g),
		newRepairCommand(g),
		newVersionCommand(),
	)
	return root
}

// addSetFlags 描述卷集合的参数
func addSetFlags(fs *pflag.FlagSet) {
	fs.String("base-path", "", "directory holding the volumes")
	fs.IntP("data", "d", 0, "number of data volumes (inferred from a volume file name)")
	fs.IntP("ecc", "e", 0, "number of parity volumes (inferred from a volume file name)")
	fs.String("codec", volumeset.DefaultConfig().Codec, "codec tag in volume file names")
	fs.String("buffer-size", "", "read buffer size, e.g. 4MiB")
	fs.String("priority", integrity.PriorityNormal.String(), "I/O priority (background, low, normal, high, highest)")
	fs.String("rate-limit", "", "read bandwidth cap per second, e.g. 32MiB (0 = unlimited)")
	fs.String("algorithm", volumeset.DefaultConfig().Algorithm, "trailer checksum algorithm")
}

// loadSettings 按 参数 > 环境变量 > 配置文件 > 默认值 加载配置，并应用位置参数
func loadSettings(fs *pflag.FlagSet, configPath, target string) (*settings, error) {
	s := &settings{}
	if _, err := app.LoadConfig(app.ConfigSource{
		Path:     configPath,
		Flags:    fs,
		Bindings: flagBindings,
		Defaults: defaultSettings(),
	}, s); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if err := applyByteFlags(fs, &s.VolGuard); err != nil {
		return nil, err
	}
	if f := fs.Lookup("metrics-addr"); f != nil && f.Changed {
		s.Metrics.HTTPServer.Enabled = true
	}
	if target != "" {
		applyVolumeName(&s.VolGuard, target, func(name string) bool {
			f := fs.Lookup(name)
			return f != nil && f.Changed
		})
	}
	return s, nil
}

// applyByteFlags 解析带单位的大小参数
func applyByteFlags(fs *pflag.FlagSet, cfg *volumeset.Config) error {
	if v, ok := changedString(fs, "buffer-size"); ok {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return errors.Wrapf(err, "invalid --buffer-size %q", v)
		}
		cfg.BufferSize = int(n)
	}
	if v, ok := changedString(fs, "rate-limit"); ok {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return errors.Wrapf(err, "invalid --rate-limit %q", v)
		}
		cfg.RateLimit = int64(n)
	}
	return nil
}

func changedString(fs *pflag.FlagSet, name string) (string, bool) {
	f := fs.Lookup(name)
	if f == nil || !f.Changed {
		return "", false
	}
	return f.Value.String(), true
}

// applyVolumeName 位置参数可以是载荷名，也可以是任意一个卷文件
// 是卷文件时，未显式指定的数据卷数、校验卷数和编码标签从文件名推断
func applyVolumeName(cfg *volumeset.Config, target string, changed func(string) bool) {
	cfg.BaseName = target

	v, ok := volumeset.DefaultNamer{}.Parse(filepath.Base(target))
	if !ok {
		return
	}
	if !changed("data") {
		cfg.DataCount = v.DataCount
	}
	if !changed("ecc") {
		cfg.ECCCount = v.ECCCount
	}
	if !changed("codec") {
		cfg.Codec = v.Codec
	}
}

// logEntryCounter 按级别统计 warn 及以上的日志条数
// logger 先于指标客户端创建，注册完成前的条目不计数
type logEntryCounter struct {
	vec atomic.Pointer[prometheus.CounterVec]
}

func (c *logEntryCounter) register(client *prometheus.Client) error {
	vec, err := client.NewCounter("log_entries_total", "Log entries at warn level or above.", []string{"level"})
	if err != nil {
		return err
	}
	c.vec.Store(vec)
	return nil
}

func (c *logEntryCounter) hook() logger.Hook {
	return logger.HookFunc(func(entry zapcore.Entry, _ []zapcore.Field) bool {
		if entry.Level < zapcore.WarnLevel {
			return true
		}
		if vec := c.vec.Load(); vec != nil {
			vec.WithLabelValues(entry.Level.String()).Inc()
		}
		return true
	})
}

// environment 一次命令执行需要的全部组件
type environment struct {
	app      *app.BaseApp
	log      logger.Logger
	metrics  *volumeset.Metrics
	cfg      volumeset.Config
	out      io.Writer
	progress io.Writer
}

// setup 加载配置并创建日志、指标和应用
func setup(cmd *cobra.Command, g *globalFlags, target string) (*environment, error) {
	s, err := loadSettings(cmd.Flags(), g.configPath, target)
	if err != nil {
		return nil, err
	}

	entries := &logEntryCounter{}
	log, err := logger.New(&s.Log,
		logger.WithName(app.AppName),
		logger.WithContextExtractor(logger.RunIDExtractor),
		logger.WithHooks(entries.hook()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}

	client, err := prometheus.New(&s.Metrics, prometheus.WithLogger(log))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics client")
	}
	metrics, err := volumeset.NewMetrics(client)
	if err == nil {
		err = entries.register(client)
	}
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	a := app.NewBaseApp(app.WithLogger(log))
	a.AppendCloser(client)
	if client.Config().TextfilePath != "" {
		a.AppendCloser(app.CloserFunc(client.WriteTextfile))
	}

	env := &environment{
		app:     a,
		log:     log,
		metrics: metrics,
		cfg:     s.VolGuard,
		out:     cmd.OutOrStdout(),
	}
	if g.progress {
		env.progress = cmd.ErrOrStderr()
	}
	return env, nil
}

// analyzer 创建绑定了日志、指标和进度输出的分析器
func (e *environment) analyzer(cfg volumeset.Config) (*volumeset.Analyzer, error) {
	opts := []volumeset.Option{
		volumeset.WithLogger(e.log),
		volumeset.WithMetrics(e.metrics),
	}
	if e.progress != nil {
		w := e.progress
		opts = append(opts, volumeset.WithProgress(func(p float64) {
			fmt.Fprintf(w, "\r%5.1f%%", p)
			if p >= 100 {
				fmt.Fprintln(w)
			}
		}))
	}
	return volumeset.NewAnalyzer(&cfg, opts...)
}
