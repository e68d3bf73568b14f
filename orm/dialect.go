package orm

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-lazyload/database/types"
)

// oracleReserved lists the Oracle reserved words that must be quoted when used
// as identifiers.
var oracleReserved = map[string]struct{}{
	"ACCESS": {}, "ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "ANY": {}, "AS": {}, "ASC": {},
	"BETWEEN": {}, "BY": {}, "CHECK": {}, "COLUMN": {}, "COMMENT": {}, "CONNECT": {},
	"CREATE": {}, "CURRENT": {}, "DATE": {}, "DELETE": {}, "DESC": {}, "DISTINCT": {}, "DROP": {},
	"FROM": {}, "GRANT": {}, "GROUP": {}, "HAVING": {}, "IN": {}, "INDEX": {}, "INSERT": {},
	"INTO": {}, "IS": {}, "LEVEL": {}, "LIKE": {}, "LOCK": {}, "MODE": {}, "NOT": {}, "NULL": {},
	"NUMBER": {}, "OF": {}, "ON": {}, "OPTION": {}, "OR": {}, "ORDER": {}, "ROW": {}, "ROWNUM": {},
	"SELECT": {}, "SET": {}, "SIZE": {}, "START": {}, "TABLE": {}, "TO": {}, "UID": {},
	"UNION": {}, "UNIQUE": {}, "UPDATE": {}, "USER": {}, "VALUES": {}, "VIEW": {}, "WHERE": {},
}

// statementBuilder returns a squirrel builder using the vendor's placeholder style.
func statementBuilder(vendor string) squirrel.StatementBuilderType {
	switch vendor {
	case types.PostgreSQL:
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	case types.Oracle:
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Colon)
	default:
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	}
}

// QuoteIdentifier quotes ident for vendor when it would otherwise not parse.
// Only Oracle reserved words are affected; qualified names are quoted per part.
func QuoteIdentifier(vendor, ident string) string {
	if vendor != types.Oracle {
		return ident
	}
	if strings.Contains(ident, ".") {
		parts := strings.Split(ident, ".")
		for i, p := range parts {
			parts[i] = QuoteIdentifier(vendor, p)
		}
		return strings.Join(parts, ".")
	}
	if _, reserved := oracleReserved[strings.ToUpper(ident)]; reserved {
		return `"` + strings.ToUpper(ident) + `"`
	}
	return ident
}

func quoteAll(vendor string, idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = QuoteIdentifier(vendor, id)
	}
	return out
}
