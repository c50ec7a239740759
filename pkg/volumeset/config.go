package volumeset

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/checksum"
	"github.com/lk2023060901/volguard/pkg/config"
	"github.com/lk2023060901/volguard/pkg/integrity"
)

// DefaultMaxVolumes 数据卷与校验卷总数上限，pkg/erasure 的 Reed-Solomon 编码器按同一上限拒绝更大的卷集
const DefaultMaxVolumes = 256

// Config 卷集配置
type Config struct {
	// BasePath 卷文件所在目录
	BasePath string `mapstructure:"base_path" json:"base_path" yaml:"base_path"`

	// BaseName 原始载荷文件名，可以带目录，也可以是任意一个卷的文件名
	BaseName string `mapstructure:"base_name" json:"base_name" yaml:"base_name" validate:"required"`

	DataCount int `mapstructure:"data_count" json:"data_count" yaml:"data_count" validate:"gt=0"`
	ECCCount  int `mapstructure:"ecc_count" json:"ecc_count" yaml:"ecc_count" validate:"gt=0"`

	// Codec 纠删码标记，参与卷文件命名
	Codec string `mapstructure:"codec" json:"codec" yaml:"codec" validate:"required,alphanum"`

	// FastMode 只检查卷是否存在，跳过校验
	FastMode bool `mapstructure:"fast_mode" json:"fast_mode" yaml:"fast_mode"`

	// BufferSize 读缓冲大小，向下取整为 8 的倍数
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size" yaml:"buffer_size" validate:"gte=0"`

	// Priority background/low/normal/high/highest
	Priority string `mapstructure:"priority" json:"priority" yaml:"priority" validate:"omitempty,oneof=background low normal high highest"`

	// RateLimit 读带宽上限（字节/秒），非 0 时覆盖优先级
	RateLimit int64 `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`

	MaxVolumes int `mapstructure:"max_volumes" json:"max_volumes" yaml:"max_volumes" validate:"gte=0"`

	// Algorithm 尾部校验算法
	Algorithm string `mapstructure:"algorithm" json:"algorithm" yaml:"algorithm"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Codec:      "rs",
		BufferSize: integrity.DefaultBufferSize,
		Priority:   integrity.PriorityNormal.String(),
		MaxVolumes: DefaultMaxVolumes,
		Algorithm:  string(checksum.TypeCRC64),
	}
}

// Total 卷总数
func (c *Config) Total() int {
	return c.DataCount + c.ECCCount
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := config.NewValidator().Validate(c); err != nil {
		return errors.Mark(err, ErrConfigurationInvalid)
	}

	limit := c.MaxVolumes
	if limit == 0 {
		limit = DefaultMaxVolumes
	}
	if c.Total() > limit {
		return errors.Wrapf(ErrConfigurationInvalid, "%d data + %d parity volumes exceed the limit of %d",
			c.DataCount, c.ECCCount, limit)
	}

	if c.Algorithm != "" && !checksum.IsRegistered(checksum.Type(c.Algorithm)) {
		return errors.Wrapf(ErrConfigurationInvalid, "unknown checksum algorithm %q", c.Algorithm)
	}

	return nil
}

// normalize 拆分带目录的 BaseName，并把卷文件名还原为载荷文件名
// 绝对目录替换 BasePath，相对目录接在 BasePath 之后
func (c *Config) normalize(namer Namer) {
	if dir, file := filepath.Split(c.BaseName); dir != "" {
		if filepath.IsAbs(dir) {
			c.BasePath = filepath.Clean(dir)
		} else {
			c.BasePath = filepath.Join(c.BasePath, dir)
		}
		c.BaseName = file
	}
	if base, ok := namer.BaseName(c.BaseName); ok {
		c.BaseName = base
	}
}

func (c *Config) priority() integrity.Priority {
	p, ok := integrity.ParsePriority(c.Priority)
	if !ok {
		return integrity.PriorityNormal
	}
	return p
}

// prepare 合并默认值、规范化并验证，返回新的配置
func prepare(cfg *Config, namer Namer) (*Config, error) {
	if cfg == nil {
		return nil, errors.Wrap(ErrConfigurationInvalid, "nil config")
	}

	user := *cfg
	merged, err := config.MergeConfig(DefaultConfig(), &user)
	if err != nil {
		return nil, errors.Mark(err, ErrConfigurationInvalid)
	}

	merged.normalize(namer)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
