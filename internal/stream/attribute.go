package stream

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrEmptyAttribute = errors.New("attribute value carries no type tag")

// ErrUnsafeNumber marks an N value float64 cannot hold without losing integer precision.
var ErrUnsafeNumber = errors.New("number outside the safe integer range")

// maxSafeInteger is 2^53-1, the largest integer every float64 neighbour still distinguishes.
const maxSafeInteger = 1<<53 - 1

// AttributeValue is the tagged scalar/collection encoding used by the change feed.
// Exactly one field is set.
type AttributeValue struct {
	S    *string                   `json:"S,omitempty"`
	N    *string                   `json:"N,omitempty"`
	B    []byte                    `json:"B,omitempty"`
	BOOL *bool                     `json:"BOOL,omitempty"`
	NULL *bool                     `json:"NULL,omitempty"`
	M    map[string]AttributeValue `json:"M,omitempty"`
	L    []AttributeValue          `json:"L,omitempty"`
	SS   []string                  `json:"SS,omitempty"`
	NS   []string                  `json:"NS,omitempty"`
	BS   [][]byte                  `json:"BS,omitempty"`
}

// Decode converts the tagged value into a plain Go value:
// string, float64, []byte, bool, nil, map[string]any, []any, []string, []float64 or [][]byte.
func (a AttributeValue) Decode() (any, error) {
	switch {
	case a.S != nil:
		return *a.S, nil
	case a.N != nil:
		return parseNumber(*a.N)
	case a.B != nil:
		return a.B, nil
	case a.BOOL != nil:
		return *a.BOOL, nil
	case a.NULL != nil:
		return nil, nil
	case a.M != nil:
		return DecodeImage(a.M)
	case a.L != nil:
		out := make([]any, 0, len(a.L))
		for i, item := range a.L {
			v, err := item.Decode()
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	case a.SS != nil:
		return a.SS, nil
	case a.NS != nil:
		out := make([]float64, 0, len(a.NS))
		for _, raw := range a.NS {
			n, err := parseNumber(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case a.BS != nil:
		return a.BS, nil
	}
	return nil, ErrEmptyAttribute
}

// parseNumber rejects magnitudes beyond maxSafeInteger instead of rounding them.
func parseNumber(raw string) (float64, error) {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", raw, err)
	}
	if math.Abs(n) > maxSafeInteger {
		return 0, fmt.Errorf("number %q: %w", raw, ErrUnsafeNumber)
	}
	return n, nil
}

// DecodeImage decodes a whole item image. A nil image decodes to nil.
func DecodeImage(image map[string]AttributeValue) (map[string]any, error) {
	if image == nil {
		return nil, nil
	}
	out := make(map[string]any, len(image))
	for name, av := range image {
		v, err := av.Decode()
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
