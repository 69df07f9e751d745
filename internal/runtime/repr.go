package runtime

import (
	"fmt"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
)

// DefaultMaxForeachValueChars bounds the display string kept per foreach split.
const DefaultMaxForeachValueChars = 30

var reprConfig = &spew.ConfigState{
	Indent:                  "",
	MaxDepth:                2,
	DisableMethods:          false,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// ForeachValue renders one foreach item for the foreach stack. Primitives are
// printed as is; anything else gets a bounded structural representation.
func ForeachValue(item any, maxChars int) string {
	var s string
	switch v := item.(type) {
	case string:
		s = v
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		s = fmt.Sprint(v)
	default:
		s = reprConfig.Sprintf("%v", item)
	}
	return truncate(s, maxChars)
}

// truncate keeps at most n runes of s. n <= 0 disables the bound.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
