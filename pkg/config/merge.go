package config

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// ErrNothingToMerge dst 与 src 均为 nil
var ErrNothingToMerge = errors.New("both dst and src cannot be nil")

// MergeConfig 把 src 中的非零值覆盖到 dst 上并返回 dst
// 任一方为 nil 时返回另一方；零值（0、""、false、空 map/切片、nil）不会覆盖默认值
func MergeConfig[T any](dst, src *T) (*T, error) {
	switch {
	case dst == nil && src == nil:
		return nil, ErrNothingToMerge
	case dst == nil:
		return src, nil
	case src == nil:
		return dst, nil
	}

	if err := merge(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem(), ""); err != nil {
		return nil, err
	}
	return dst, nil
}

// merge 递归合并；结构体按字段，map 按键，指针按指向的值，其余类型整体覆盖
func merge(dst, src reflect.Value, path string) error {
	if !src.IsValid() || empty(src) {
		return nil
	}
	if dst.Kind() != src.Kind() {
		return errors.Newf("merge %s: kind %s into %s", fieldPath(path), src.Kind(), dst.Kind())
	}

	switch dst.Kind() {
	case reflect.Struct:
		t := src.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			target := dst.FieldByName(f.Name)
			if !target.IsValid() || !target.CanSet() {
				continue
			}
			if err := merge(target, src.Field(i), path+"."+f.Name); err != nil {
				return err
			}
		}

	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		for it := src.MapRange(); it.Next(); {
			k, v := it.Key(), it.Value()
			cur := dst.MapIndex(k)
			if !cur.IsValid() {
				dst.SetMapIndex(k, v)
				continue
			}
			slot := reflect.New(dst.Type().Elem()).Elem()
			slot.Set(cur)
			if err := merge(slot, v, path+"["+k.String()+"]"); err != nil {
				return err
			}
			dst.SetMapIndex(k, slot)
		}

	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return merge(dst.Elem(), src.Elem(), path)

	default:
		if dst.CanSet() {
			dst.Set(src)
		}
	}
	return nil
}

// empty 空 map 与空切片也视为未设置
func empty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

func fieldPath(path string) string {
	if path == "" {
		return "config"
	}
	return path[1:]
}
