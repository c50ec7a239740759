package volumeset

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// SlotKind 重建计划中一个槽位的类型
type SlotKind int

const (
	// SlotData 数据卷自身
	SlotData SlotKind = iota
	// SlotParity 用校验卷替代缺失的数据卷
	SlotParity
	// SlotHole 缺失且无可用替代
	SlotHole
)

// Slot 重建计划槽位，Hole 时 Index 无意义
type Slot struct {
	Kind  SlotKind
	Index int
}

// DataSlot 数据卷槽位
func DataSlot(index int) Slot { return Slot{Kind: SlotData, Index: index} }

// ParitySlot 校验卷替代槽位
func ParitySlot(index int) Slot { return Slot{Kind: SlotParity, Index: index} }

// HoleSlot 空洞槽位
func HoleSlot() Slot { return Slot{Kind: SlotHole, Index: -1} }

// IsHole 是否空洞
func (s Slot) IsHole() bool { return s.Kind == SlotHole }

// String 空洞显示为 "_"
func (s Slot) String() string {
	if s.IsHole() {
		return "_"
	}
	return strconv.Itoa(s.Index)
}

// Plan 按数据卷序号排列的重建计划，长度等于 dataCount
type Plan []Slot

// Holes 空洞数量
func (p Plan) Holes() int {
	n := 0
	for _, s := range p {
		if s.IsHole() {
			n++
		}
	}
	return n
}

// Substitutions 被校验卷替代的槽位数量
func (p Plan) Substitutions() int {
	n := 0
	for _, s := range p {
		if s.Kind == SlotParity {
			n++
		}
	}
	return n
}

// Indices 返回交给解码器的卷序号，存在空洞时返回 ErrUnrecoverable
func (p Plan) Indices() ([]int, error) {
	if holes := p.Holes(); holes > 0 {
		return nil, errors.Wrapf(ErrUnrecoverable, "plan has %d holes", holes)
	}
	out := make([]int, len(p))
	for i, s := range p {
		out[i] = s.Index
	}
	return out, nil
}

// String 形如 [5 1 6 3 7]
func (p Plan) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// buildPlan 生成重建计划
// dataPresent[i] 表示数据卷 i 可用，parity 为升序的可用校验卷序号。
// 可恢复时按数据卷升序依次用校验卷升序填补空洞；不可恢复时保留空洞。
func buildPlan(dataPresent []bool, parity []int) (Plan, bool) {
	plan := make(Plan, len(dataPresent))
	missing := 0
	for i, ok := range dataPresent {
		if ok {
			plan[i] = DataSlot(i)
		} else {
			plan[i] = HoleSlot()
			missing++
		}
	}

	if len(parity) < missing {
		return plan, false
	}

	next := 0
	for i := range plan {
		if plan[i].IsHole() {
			plan[i] = ParitySlot(parity[next])
			next++
		}
	}
	return plan, true
}
