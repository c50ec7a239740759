package volumeset

import (
	"fmt"
	"regexp"
	"strconv"
)

// Namer 卷文件命名规则
type Namer interface {
	// VolumeName 返回第 index 个卷的文件名
	VolumeName(base string, index, dataCount, eccCount int, codec string) string
	// BaseName 从卷文件名还原载荷文件名，不是卷文件名时返回 false
	BaseName(name string) (string, bool)
}

// VolumeName 解析后的卷文件名
type VolumeName struct {
	Base      string
	Index     int
	DataCount int
	ECCCount  int
	Codec     string
}

// DefaultNamer 默认命名规则：<base>.<index:03d>-<data>-<ecc>.<codec>
type DefaultNamer struct{}

var volumeNamePattern = regexp.MustCompile(`^(.+)\.(\d{3,})-(\d+)-(\d+)\.([A-Za-z0-9]+)$`)

// VolumeName 实现 Namer
func (DefaultNamer) VolumeName(base string, index, dataCount, eccCount int, codec string) string {
	return fmt.Sprintf("%s.%03d-%d-%d.%s", base, index, dataCount, eccCount, codec)
}

// BaseName 实现 Namer
func (n DefaultNamer) BaseName(name string) (string, bool) {
	v, ok := n.Parse(name)
	if !ok {
		return name, false
	}
	return v.Base, true
}

// Parse 解析卷文件名的全部字段
func (DefaultNamer) Parse(name string) (VolumeName, bool) {
	m := volumeNamePattern.FindStringSubmatch(name)
	if m == nil {
		return VolumeName{}, false
	}

	index, err1 := strconv.Atoi(m[2])
	data, err2 := strconv.Atoi(m[3])
	ecc, err3 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return VolumeName{}, false
	}

	return VolumeName{
		Base:      m[1],
		Index:     index,
		DataCount: data,
		ECCCount:  ecc,
		Codec:     m[5],
	}, true
}
