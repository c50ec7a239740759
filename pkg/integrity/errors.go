package integrity

import (
	"context"
	"io/fs"

	"github.com/cockroachdb/errors"
)

var (
	// ErrVolumeAbsent 卷文件不存在
	ErrVolumeAbsent = errors.New("integrity: volume absent")

	// ErrVolumeTruncated 卷文件短于校验尾部
	ErrVolumeTruncated = errors.New("integrity: volume truncated")

	// ErrVolumeIO 打开、读取、写入或刷盘失败
	ErrVolumeIO = errors.New("integrity: volume i/o failure")

	// ErrChecksumMismatch 校验完成但与尾部存储值不一致
	ErrChecksumMismatch = errors.New("integrity: checksum mismatch")

	// ErrCancelled 运行被取消
	ErrCancelled = errors.New("integrity: cancelled")

	// ErrBusy 已有运行未结束
	ErrBusy = errors.New("integrity: worker busy")

	// ErrNotReady 结果尚不可读
	ErrNotReady = errors.New("integrity: result not ready")
)

// IsDamage 判断错误是否表示卷已损坏（缺失、截断或校验不一致）
func IsDamage(err error) bool {
	return errors.IsAny(err, ErrVolumeAbsent, ErrVolumeTruncated, ErrChecksumMismatch)
}

// classifyOpen 将打开文件的错误归类为缺失或 I/O 失败
func classifyOpen(err error, op Operation, path string) error {
	wrapped := errors.Wrapf(err, "%s %s", op, path)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Mark(wrapped, ErrVolumeAbsent)
	}
	return errors.Mark(wrapped, ErrVolumeIO)
}

func ioFailure(err error, op Operation, path string) error {
	return errors.Mark(errors.Wrapf(err, "%s %s", op, path), ErrVolumeIO)
}

// cancelled 保留原始的 context 错误，同时可被 ErrCancelled 匹配
func cancelled(err error) error {
	if err == nil {
		err = context.Canceled
	}
	return errors.Mark(err, ErrCancelled)
}
