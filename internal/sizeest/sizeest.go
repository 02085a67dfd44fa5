// Package sizeest estimates the in-heap footprint of a decoded message
// value. It is deliberately approximate (spec.md §4.E) — it exists to bound
// playback memory and drive eviction, not to be exact.
package sizeest

import "fmt"

const (
	smallSize    = 4
	stringBase   = 12
	listBase     = 24
	setBase      = 12
	mapBase      = 12
	byteArrayBase = 100
	objectBase   = 12
)

// Estimate recursively computes the approximate byte footprint of v.
// It fails for any value whose type is not one of the cases below (for
// example functions, pointers, structs, or typed maps and slices other
// than map[string]any, []any and []byte).
func Estimate(v any) (uint32, error) {
	switch x := v.(type) {
	case nil:
		return smallSize, nil
	case bool:
		return smallSize, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return smallSize, nil
	case float32, float64:
		return 12, nil
	case string:
		return uint32(4 + stringBase + 4*ceilDiv(len(x), 4)), nil
	case []byte:
		return uint32(byteArrayBase + len(x)), nil
	case []any:
		total := uint32(4 + listBase)
		for _, e := range x {
			sz, err := Estimate(e)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case map[string]any:
		total := uint32(4 + mapBase)
		for k, val := range x {
			ks, err := Estimate(k)
			if err != nil {
				return 0, err
			}
			vs, err := Estimate(val)
			if err != nil {
				return 0, err
			}
			total += ks + vs
		}
		return total, nil
	default:
		return 0, fmt.Errorf("sizeest: cannot estimate value of type %T", v)
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// dictionaryOverhead approximates V8's transition to hash-mode storage past
// 1020 own properties; object-shaped values in this engine (decoded message
// structs) never realistically hit this, but the formula is kept faithful
// to the documented behavior for callers that estimate generic maps as
// "objects" via EstimateObject.
func dictionaryOverhead(numProps int) uint32 {
	if numProps <= 1020 {
		return uint32(numProps) * 4
	}
	// Past the inline-property limit, growth is dictionary-mode: roughly
	// 3x per-entry overhead instead of flat slot cost.
	return uint32(1020*4) + uint32(numProps-1020)*12
}

// EstimateObject estimates a fixed-shape struct-like value given its field
// values, following the "object" branch of the documented formula.
func EstimateObject(fields map[string]any) (uint32, error) {
	total := uint32(objectBase) + dictionaryOverhead(len(fields))
	for _, v := range fields {
		sz, err := Estimate(v)
		if err != nil {
			return 0, err
		}
		total += sz
	}
	return total, nil
}

// Cache caches the first estimate seen per topic and reuses it for every
// subsequent message on that topic, per spec.md §4.E.
type Cache struct {
	byTopic map[string]uint32
}

func NewCache() *Cache {
	return &Cache{byTopic: make(map[string]uint32)}
}

// EstimateForTopic returns the cached estimate for topic if one exists;
// otherwise it computes, caches, and returns Estimate(v).
func (c *Cache) EstimateForTopic(topic string, v any) (uint32, error) {
	if sz, ok := c.byTopic[topic]; ok {
		return sz, nil
	}
	sz, err := Estimate(v)
	if err != nil {
		return 0, err
	}
	c.byTopic[topic] = sz
	return sz, nil
}
