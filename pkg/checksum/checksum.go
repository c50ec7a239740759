// pkg/checksum/checksum.go
package checksum

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Size 校验值序列化后的字节数（卷尾部 trailer 长度）
const Size = 8

// Hasher 流式 64 位校验和累加器
// 实现不是并发安全的，同一实例只能由一个 goroutine 使用
type Hasher interface {
	// Reset 恢复到初始状态，字节计数清零
	Reset()

	// Update 将 data[offset:offset+length] 累加进校验状态
	// 越界的区间不做任何处理
	Update(data []byte, offset, length int)

	// Sum64 返回当前累加值，不改变状态
	Sum64() uint64

	// Value 返回当前累加值的磁盘表示（低字节在前）
	Value() [Size]byte

	// Size 返回自上次 Reset 以来累加的字节数
	Size() int64

	// Name 返回校验算法名称
	Name() string
}

// Factory 校验器工厂函数类型
type Factory func() (Hasher, error)

// Type 校验算法类型
type Type string

const (
	// TypeCRC64 反射 CRC64 (ECMA-182 多项式)，卷 trailer 默认算法
	TypeCRC64 Type = "crc64"
	// TypeXXHash XXHash64 校验算法（高性能）
	TypeXXHash Type = "xxhash"
)

var (
	mu        sync.RWMutex
	factories = make(map[Type]Factory)
)

func init() {
	// 注册默认支持的校验算法
	Register(TypeCRC64, func() (Hasher, error) {
		return newCRC64Hasher(), nil
	})
	Register(TypeXXHash, func() (Hasher, error) {
		return newXXHashHasher(), nil
	})
}

// Register 注册校验器工厂
func Register(t Type, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[t] = factory
}

// Unregister 注销校验器工厂
func Unregister(t Type) {
	mu.Lock()
	defer mu.Unlock()
	delete(factories, t)
}

// New 创建校验器，空类型返回默认算法
func New(t Type) (Hasher, error) {
	if t == "" {
		t = TypeCRC64
	}

	mu.RLock()
	factory, ok := factories[t]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported checksum type: %s", t)
	}
	return factory()
}

// MustNew 创建校验器，失败时 panic
func MustNew(t Type) Hasher {
	h, err := New(t)
	if err != nil {
		panic(err)
	}
	return h
}

// List 返回所有已注册的校验算法类型
func List() []Type {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]Type, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	return types
}

// IsRegistered 检查校验算法是否已注册
func IsRegistered(t Type) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[t]
	return ok
}

// Default 返回默认校验器 (CRC64)
func Default() Hasher {
	return MustNew(TypeCRC64)
}

// Sum 从初始状态计算整段数据的校验值
func Sum(h Hasher, data []byte) uint64 {
	h.Reset()
	h.Update(data, 0, len(data))
	return h.Sum64()
}

// Encode 将校验值编码为 trailer 字节（低字节在前）
func Encode(v uint64) [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b
}

// Decode 从 trailer 字节解码校验值
func Decode(b []byte) (uint64, error) {
	if len(b) < Size {
		return 0, fmt.Errorf("checksum trailer too short: %d bytes", len(b))
	}
	return binary.LittleEndian.Uint64(b[:Size]), nil
}

// validRange 判断 [offset, offset+length) 是否落在 data 内
func validRange(data []byte, offset, length int) bool {
	return offset >= 0 && length > 0 && offset <= len(data) && length <= len(data)-offset
}
