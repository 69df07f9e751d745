package runtime

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// each returns a forward sequence over a bounded foreach source.
func each(v any) (iter.Seq[any], error) {
	switch src := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value is not iterable")
	case domain.Indexable:
		return func(yield func(any) bool) {
			for i := 0; i < src.Len(); i++ {
				if !yield(src.At(i)) {
					return
				}
			}
		}, nil
	case domain.Iterable:
		return src.All(), nil
	case iter.Seq[any]:
		return src, nil
	case string:
		return func(yield func(any) bool) {
			for _, r := range src {
				if !yield(string(r)) {
					return
				}
			}
		}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, nil
	default:
		return nil, fmt.Errorf("value of type %T is not iterable", v)
	}
}

// itemAt returns element i of a foreach source. Random access is used when the
// source supports it; otherwise the source is walked forward.
func itemAt(v any, i int) (any, error) {
	switch src := v.(type) {
	case domain.UnboundedInput:
		return src.Item(&i), nil
	case domain.Indexable:
		if i < 0 || i >= src.Len() {
			return nil, fmt.Errorf("index %d out of range [0,%d)", i, src.Len())
		}
		return src.At(i), nil
	case string:
		runes := []rune(src)
		if i < 0 || i >= len(runes) {
			return nil, fmt.Errorf("index %d out of range [0,%d)", i, len(runes))
		}
		return string(runes[i]), nil
	}

	if v != nil {
		rv := reflect.ValueOf(v)
		if k := rv.Kind(); k == reflect.Slice || k == reflect.Array {
			if i < 0 || i >= rv.Len() {
				return nil, fmt.Errorf("index %d out of range [0,%d)", i, rv.Len())
			}
			return rv.Index(i).Interface(), nil
		}
	}

	seq, err := each(v)
	if err != nil {
		return nil, err
	}
	n := 0
	for item := range seq {
		if n == i {
			return item, nil
		}
		n++
	}
	return nil, fmt.Errorf("index %d out of range: source produced %d items", i, n)
}
