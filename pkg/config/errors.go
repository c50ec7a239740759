package config

import "errors"

var (
	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = errors.New("config validation failed")

	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config cannot be nil")

	// ErrNilFlag 绑定的命令行参数不存在
	ErrNilFlag = errors.New("flag cannot be nil")
)
