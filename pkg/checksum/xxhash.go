// pkg/checksum/xxhash.go
package checksum

import (
	"github.com/cespare/xxhash/v2"
)

// xxhashHasher XXHash64 流式校验实现
// XXHash 是一种极快的非加密哈希算法，适合不需要与 CRC64 trailer 互通的卷集
type xxhashHasher struct {
	digest *xxhash.Digest
	size   int64
}

// newXXHashHasher 创建 XXHash 校验器
func newXXHashHasher() *xxhashHasher {
	return &xxhashHasher{digest: xxhash.New()}
}

// Reset 恢复初始值
func (h *xxhashHasher) Reset() {
	h.digest.Reset()
	h.size = 0
}

// Update 累加数据
func (h *xxhashHasher) Update(data []byte, offset, length int) {
	if !validRange(data, offset, length) {
		return
	}
	// Digest.Write 永远不会返回错误
	_, _ = h.digest.Write(data[offset : offset+length])
	h.size += int64(length)
}

// Sum64 返回当前累加值
func (h *xxhashHasher) Sum64() uint64 {
	return h.digest.Sum64()
}

// Value 返回 trailer 表示
func (h *xxhashHasher) Value() [Size]byte {
	return Encode(h.digest.Sum64())
}

// Size 返回累加字节数
func (h *xxhashHasher) Size() int64 {
	return h.size
}

// Name 返回校验算法名称
func (h *xxhashHasher) Name() string {
	return string(TypeXXHash)
}
