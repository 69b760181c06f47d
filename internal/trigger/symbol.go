package trigger

import (
	"fmt"
	"strings"
)

// Symbol is a case-normalised instrument identifier such as ^GSPC or BTC-USD.
type Symbol string

// ParseSymbol trims and uppercases raw, rejecting empty identifiers.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrInvalidConfig)
	}
	return Symbol(s), nil
}

// ParseSymbols parses every entry of raw, keeping the caller's order.
func ParseSymbols(raw []string) ([]Symbol, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no symbols configured", ErrInvalidConfig)
	}
	symbols := make([]Symbol, 0, len(raw))
	for _, r := range raw {
		sym, err := ParseSymbol(r)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

func (s Symbol) String() string {
	return string(s)
}
