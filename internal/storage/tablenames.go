package storage

import (
	"fmt"
	"strings"

	"arcana/internal/trademodel"
)

// tradesTable is the single table every source's trades land in.
const tradesTable = "trades"

// barTableName derives the per-(bar_type, pair) table name from §6:
// bars_{bar_type_with_dots_as_underscores}_{pair_lowercased_with_dash_as_underscore}.
// Both inputs are validated first since they are interpolated directly
// into SQL identifiers.
func barTableName(barType, pair string) (string, error) {
	if !trademodel.ValidBarType(barType) {
		return "", &InvalidIdentifierError{Kind: "bar_type", Value: barType}
	}
	if !trademodel.ValidPair(pair) {
		return "", &InvalidIdentifierError{Kind: "pair", Value: pair}
	}
	typePart := strings.ReplaceAll(barType, ".", "_")
	pairPart := strings.ReplaceAll(strings.ToLower(pair), "-", "_")
	return fmt.Sprintf("bars_%s_%s", typePart, pairPart), nil
}
