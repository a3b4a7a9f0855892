package docstore

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

// value kinds, in ascending order when types differ.
const (
	kindNull = iota
	kindBool
	kindNumber
	kindTime
	kindString
	kindOther
)

func kindOf(v any) (int, any) {
	switch x := v.(type) {
	case nil:
		return kindNull, nil
	case bool:
		return kindBool, x
	case int:
		return kindNumber, float64(x)
	case int64:
		return kindNumber, float64(x)
	case float64:
		return kindNumber, x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return kindString, x.String()
		}
		return kindNumber, f
	case time.Time:
		return kindTime, x
	case string:
		// Timestamps come back from the bbolt backend as RFC3339 text.
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return kindTime, t
		}
		return kindString, x
	default:
		return kindOther, nil
	}
}

func compareValues(a, b any) int {
	ka, va := kindOf(a)
	kb, vb := kindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case kindBool:
		x, y := va.(bool), vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case kindNumber:
		return cmp.Compare(va.(float64), vb.(float64))
	case kindTime:
		return va.(time.Time).Compare(vb.(time.Time))
	case kindString:
		return cmp.Compare(va.(string), vb.(string))
	default:
		return 0
	}
}

// sortDocuments orders docs by q. Missing fields go last regardless of
// direction; equal keys are ordered by id.
func sortDocuments(docs []Document, q Query) {
	slices.SortFunc(docs, func(a, b Document) int {
		if q.OrderBy != "" {
			va, okA := a.Data[q.OrderBy]
			vb, okB := b.Data[q.OrderBy]
			switch {
			case okA && !okB:
				return -1
			case !okA && okB:
				return 1
			case okA && okB:
				c := compareValues(va, vb)
				if q.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
