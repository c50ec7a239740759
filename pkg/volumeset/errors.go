package volumeset

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/integrity"
)

var (
	// ErrConfigurationInvalid 卷集配置不合法，不会开始任何工作
	ErrConfigurationInvalid = errors.New("volumeset: configuration invalid")

	// ErrUnrecoverable 缺失的数据卷多于可用的校验卷
	ErrUnrecoverable = errors.New("volumeset: unrecoverable")

	ErrCancelled = integrity.ErrCancelled
	ErrBusy      = integrity.ErrBusy
	ErrNotReady  = integrity.ErrNotReady
)
