// pkg/checksum/checksum_test.go
package checksum

import (
	"bytes"
	"hash/crc64"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceTable 逐位模拟生成查表，用于核对标准库表
func referenceTable() [256]uint64 {
	const poly = 0xC96C5795D7870F42
	var table [256]uint64
	for i := 0; i < 256; i++ {
		crc := uint64(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// referenceSum 逐字节参考实现
func referenceSum(data []byte) uint64 {
	table := referenceTable()
	state := ^uint64(0)
	for _, b := range data {
		state = (state >> 8) ^ table[byte(state)^b]
	}
	return state
}

func TestCRC64TableMatchesReference(t *testing.T) {
	ref := referenceTable()
	assert.Equal(t, ref, [256]uint64(*crc64.MakeTable(crc64.ECMA)))
}

func TestCRC64KnownValues(t *testing.T) {
	h := MustNew(TypeCRC64)

	// 初始状态为全 1
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), h.Sum64())
	assert.Equal(t, int64(0), h.Size())

	// CRC-64/XZ 校验值 0x995DC9BBDF1939FA 取反即未做最终异或的累加值
	h.Update([]byte("123456789"), 0, 9)
	assert.Equal(t, uint64(0x66A2364420E6C605), h.Sum64())
	assert.Equal(t, int64(9), h.Size())
}

func TestCRC64MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{1, 7, 63, 64, 65, 2048, 10000} {
		data := make([]byte, n)
		rng.Read(data)
		assert.Equal(t, referenceSum(data), Sum(MustNew(TypeCRC64), data), "length %d", n)
	}
}

func TestDeterminism(t *testing.T) {
	data := bytes.Repeat([]byte("volume payload "), 1000)

	for _, tp := range []Type{TypeCRC64, TypeXXHash} {
		t.Run(string(tp), func(t *testing.T) {
			h := MustNew(tp)
			first := Sum(h, data)
			second := Sum(h, data)
			assert.Equal(t, first, second)
		})
	}
}

func TestChunkSizeIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 50000)
	rng.Read(data)

	for _, tp := range []Type{TypeCRC64, TypeXXHash} {
		t.Run(string(tp), func(t *testing.T) {
			whole := Sum(MustNew(tp), data)

			for _, split := range []int{0, 1, 8, 4095, 25000, len(data)} {
				h := MustNew(tp)
				h.Update(data, 0, split)
				h.Update(data, split, len(data)-split)
				assert.Equal(t, whole, h.Sum64(), "split at %d", split)
				assert.Equal(t, int64(len(data)), h.Size())
			}

			// 任意分块
			h := MustNew(tp)
			for off := 0; off < len(data); {
				n := rng.Intn(3000) + 1
				if off+n > len(data) {
					n = len(data) - off
				}
				h.Update(data, off, n)
				off += n
			}
			assert.Equal(t, whole, h.Sum64())
		})
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	h := MustNew(TypeCRC64)
	initial := h.Sum64()

	h.Update([]byte("abc"), 0, 3)
	require.NotEqual(t, initial, h.Sum64())

	h.Reset()
	assert.Equal(t, initial, h.Sum64())
	assert.Equal(t, int64(0), h.Size())
}

func TestUpdateOutOfRangeIsNoop(t *testing.T) {
	h := MustNew(TypeCRC64)
	data := []byte("0123456789")
	before := h.Sum64()

	h.Update(data, -1, 2)
	h.Update(data, 5, 6)
	h.Update(data, 11, 1)
	h.Update(data, 0, 0)
	h.Update(nil, 0, 1)

	assert.Equal(t, before, h.Sum64())
	assert.Equal(t, int64(0), h.Size())
}

func TestValueIsLittleEndian(t *testing.T) {
	h := MustNew(TypeCRC64)
	h.Update([]byte("123456789"), 0, 9)

	v := h.Value()
	assert.Equal(t, [Size]byte{0x05, 0xC6, 0xE6, 0x20, 0x44, 0x36, 0xA2, 0x66}, v)

	decoded, err := Decode(v[:])
	require.NoError(t, err)
	assert.Equal(t, h.Sum64(), decoded)

	_, err = Decode(v[:7])
	assert.Error(t, err)
}

func TestDataIntegrity(t *testing.T) {
	// 翻转任意一位都应改变校验值
	h := Default()
	original := []byte("important data that must not be corrupted")
	sum := Sum(h, original)

	for i := range original {
		corrupted := append([]byte(nil), original...)
		corrupted[i] ^= 0x01
		assert.NotEqual(t, sum, Sum(h, corrupted), "flip at byte %d", i)
	}
}

func TestRegister(t *testing.T) {
	customType := Type("custom")

	Register(customType, func() (Hasher, error) {
		return newCRC64Hasher(), nil
	})
	defer Unregister(customType)

	assert.True(t, IsRegistered(customType))

	h, err := New(customType)
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestUnregister(t *testing.T) {
	customType := Type("temp")

	Register(customType, func() (Hasher, error) {
		return newCRC64Hasher(), nil
	})
	Unregister(customType)

	assert.False(t, IsRegistered(customType))
	_, err := New(customType)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	typeMap := make(map[Type]bool)
	for _, tp := range List() {
		typeMap[tp] = true
	}

	for _, expected := range []Type{TypeCRC64, TypeXXHash} {
		assert.True(t, typeMap[expected], "expected %s to be registered", expected)
	}
}

func TestDefault(t *testing.T) {
	h := Default()
	require.NotNil(t, h)
	assert.Equal(t, string(TypeCRC64), h.Name())

	// 空类型等价于默认算法
	h2, err := New("")
	require.NoError(t, err)
	assert.Equal(t, string(TypeCRC64), h2.Name())
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Type("unknown")) })
}

// 基准测试
func BenchmarkCRC64(b *testing.B) {
	h := MustNew(TypeCRC64)
	data := bytes.Repeat([]byte("hello world "), 10000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Reset()
		h.Update(data, 0, len(data))
	}
}

func BenchmarkXXHash(b *testing.B) {
	h := MustNew(TypeXXHash)
	data := bytes.Repeat([]byte("hello world "), 10000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Reset()
		h.Update(data, 0, len(data))
	}
}
