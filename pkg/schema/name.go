package schema

import (
	"regexp"
	"strings"
)

// Prefix namespaces tenant schemas away from public and extension schemas.
const Prefix = "tenant_"

// MaxNameLength is the Postgres identifier limit.
const MaxNameLength = 63

// namePattern matches identifiers we are willing to interpolate into DDL.
// Quoting alone is not enough: names also travel through logs, response
// headers and goose connection params.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedNames can never be tenant schemas.
var reservedNames = map[string]struct{}{
	"public":             {},
	"information_schema": {},
}

// Name derives the schema name for a routing key: prefixed, with hyphens
// normalized to underscores. The mapping is deterministic and reversible
// via Slug, which keeps debugging sessions sane.
func Name(slug string) string {
	return Prefix + strings.ReplaceAll(strings.ToLower(slug), "-", "_")
}

// Slug recovers the routing key from a schema name produced by Name.
func Slug(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, Prefix), "_", "-")
}

// ValidName reports whether name is a safe Postgres schema identifier.
func ValidName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	if _, reserved := reservedNames[name]; reserved {
		return false
	}
	if strings.HasPrefix(name, "pg_") {
		return false
	}
	return namePattern.MatchString(name)
}

// QuoteIdent double-quotes an identifier for interpolation into DDL.
// Callers validate with ValidName first; quoting is a second line of
// defense, not the primary one.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
