// pkg/checksum/crc64.go
package checksum

import (
	"hash/crc64"
)

// initialCRC64 累加器初始值（全 1）
const initialCRC64 = ^uint64(0)

// crc64Table 反射多项式 0xC96C5795D7870F42 的查表
// 标准库按 8 次移位/异或为每个字节值生成表项，并在 ECMA 多项式下启用 slicing-by-8
var crc64Table = crc64.MakeTable(crc64.ECMA)

// crc64Hasher CRC64 校验实现
// 状态不做最终取反：state = (state >> 8) ^ table[byte(state) ^ b]
type crc64Hasher struct {
	state uint64
	size  int64
}

// newCRC64Hasher 创建 CRC64 校验器
func newCRC64Hasher() *crc64Hasher {
	return &crc64Hasher{state: initialCRC64}
}

// Reset 恢复初始值
func (h *crc64Hasher) Reset() {
	h.state = initialCRC64
	h.size = 0
}

// Update 累加数据
func (h *crc64Hasher) Update(data []byte, offset, length int) {
	if !validRange(data, offset, length) {
		return
	}
	// crc64.Update 内部在首尾各取反一次，两次取反抵消后即为原始状态转移
	h.state = ^crc64.Update(^h.state, crc64Table, data[offset:offset+length])
	h.size += int64(length)
}

// Sum64 返回当前累加值
func (h *crc64Hasher) Sum64() uint64 {
	return h.state
}

// Value 返回 trailer 表示
func (h *crc64Hasher) Value() [Size]byte {
	return Encode(h.state)
}

// Size 返回累加字节数
func (h *crc64Hasher) Size() int64 {
	return h.size
}

// Name 返回校验算法名称
func (h *crc64Hasher) Name() string {
	return string(TypeCRC64)
}
