package splitter

import "strings"

// Filter decides whether a statement is handed to the DDL recognizer
type Filter func(statement string) bool

// CreateTableOnly accepts statements containing CREATE TABLE (any case)
func CreateTableOnly(statement string) bool {
	return strings.Contains(strings.ToUpper(statement), "CREATE TABLE")
}

// AlterTableAddConstraint accepts ALTER TABLE statements that add a constraint
func AlterTableAddConstraint(statement string) bool {
	upper := strings.ToUpper(statement)
	return strings.Contains(upper, "ALTER TABLE") && strings.Contains(upper, "ADD CONSTRAINT")
}

// AnyOf accepts a statement when at least one of the filters does
func AnyOf(filters ...Filter) Filter {
	return func(statement string) bool {
		for _, f := range filters {
			if f(statement) {
				return true
			}
		}
		return false
	}
}

// FilterFor returns the default policy, widened to ALTER TABLE ... ADD
// CONSTRAINT statements when includeAlterTable is set
func FilterFor(includeAlterTable bool) Filter {
	if includeAlterTable {
		return AnyOf(CreateTableOnly, AlterTableAddConstraint)
	}
	return CreateTableOnly
}
