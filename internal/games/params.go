package games

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// decimalParam reads a numeric param that may arrive as a JSON number, a
// string or a Go number. Missing keys yield def.
func decimalParam(params map[string]any, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("games: param %s: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("games: param %s has unsupported type %T", key, v)
	}
}
