package erasure

import (
	"io"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Codec 纠删码编解码器
type Codec interface {
	// Name 编码标记，与卷文件名中的 codec 一致
	Name() string
	DataShards() int
	ParityShards() int
	// Split 把载荷切分为等长的数据分片，并分配校验分片
	Split(payload []byte) ([][]byte, error)
	// Encode 根据数据分片计算校验分片
	Encode(shards [][]byte) error
	// Reconstruct 重建 nil 或空的分片，至少需要 DataShards 个分片
	Reconstruct(shards [][]byte) error
	// Verify 检查校验分片是否与数据分片一致
	Verify(shards [][]byte) (bool, error)
	// Join 拼接数据分片并截断到 size 字节写入 w
	Join(w io.Writer, shards [][]byte, size int) error
}

// Factory 编解码器工厂
type Factory func(dataShards, parityShards int) (Codec, error)

// DefaultCodec 默认编码标记
const DefaultCodec = "rs"

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func init() {
	Register(DefaultCodec, newReedSolomon)
}

// Register 注册编解码器
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New 创建编解码器，未注册时返回 ErrUnknownCodec
func New(name string, dataShards, parityShards int) (Codec, error) {
	if name == "" {
		name = DefaultCodec
	}

	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "codec %q", name)
	}
	return factory(dataShards, parityShards)
}

// List 返回已注册的编码标记
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered 编码标记是否已注册
func IsRegistered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}
