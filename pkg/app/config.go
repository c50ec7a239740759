package app

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/config"
	"github.com/spf13/pflag"
)

// DefaultConfigFile 未指定配置文件时依次在工作目录和可执行文件目录查找
const DefaultConfigFile = "volguard.yaml"

// EnvPrefix 环境变量前缀，例如 VOLGUARD_VOLGUARD_DATA_COUNT -> volguard.data_count
const EnvPrefix = "VOLGUARD"

// ConfigSource 描述配置的全部来源
type ConfigSource struct {
	// Path 显式指定的配置文件，必须存在
	Path string
	// Flags 命令行参数集合
	Flags *pflag.FlagSet
	// Bindings 配置键到命令行参数名的映射
	Bindings map[string]string
	// Defaults 最低优先级的默认值
	Defaults map[string]any
}

// LoadConfig 集成 pkg/config 提供统一加载能力
// 严格遵守优先级：1. 命令行显式参数 > 2. 环境变量 > 3. 配置文件 > 4. 默认值
func LoadConfig(src ConfigSource, target any) (string, error) {
	mgr := config.NewManager(config.WithDefaults(src.Defaults))
	mgr.BindEnv(EnvPrefix)

	path, err := resolveConfigPath(src.Path)
	if err != nil {
		return "", err
	}
	if path != "" {
		if err := mgr.LoadFile(path); err != nil {
			return "", err
		}
	}

	if src.Flags != nil {
		for key, name := range src.Bindings {
			flag := src.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := mgr.BindFlag(key, flag); err != nil {
				return "", err
			}
		}
	}

	if err := mgr.Unmarshal(target); err != nil {
		return "", err
	}
	return path, nil
}

// resolveConfigPath 显式路径必须存在；否则查找默认位置，找不到返回空
func resolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "config file not found at %s", explicit)
		}
		return explicit, nil
	}

	candidates := []string{DefaultConfigFile}
	if dir, err := GetExecDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, DefaultConfigFile))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

// GetExecDir 获取可执行文件所在目录（处理符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}
