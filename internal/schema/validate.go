package schema

import "fmt"

// Issue describes a consistency problem found in an extracted schema
type Issue struct {
	Table   string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Table, i.Message)
}

// Validate checks primary and foreign keys against the declared columns and
// tables. It only reports; the schema is left untouched.
func Validate(s *Schema) []Issue {
	var issues []Issue

	for _, table := range s.Tables {
		for _, pk := range table.PrimaryKey {
			if table.Column(pk) == nil {
				issues = append(issues, Issue{
					Table:   table.Name,
					Message: fmt.Sprintf("primary key column %q is not declared", pk),
				})
			}
		}

		for _, fk := range table.ForeignKeys {
			issues = append(issues, validateForeignKey(s, table, fk)...)
		}
	}

	return issues
}

func validateForeignKey(s *Schema, table *Table, fk *ForeignKey) []Issue {
	var issues []Issue
	label := fk.Name
	if label == "" {
		label = "references " + fk.TargetTable
	}

	for _, col := range fk.OriginColumns {
		if table.Column(col) == nil {
			issues = append(issues, Issue{
				Table:   table.Name,
				Message: fmt.Sprintf("foreign key (%s) origin column %q is not declared", label, col),
			})
		}
	}

	if len(fk.TargetColumns) > 0 && len(fk.TargetColumns) != len(fk.OriginColumns) {
		issues = append(issues, Issue{
			Table: table.Name,
			Message: fmt.Sprintf("foreign key (%s) has %d origin columns but %d target columns",
				label, len(fk.OriginColumns), len(fk.TargetColumns)),
		})
	}

	target := s.Table(fk.TargetTable)
	if target == nil {
		issues = append(issues, Issue{
			Table:   table.Name,
			Message: fmt.Sprintf("foreign key (%s) target table %q is not defined", label, fk.TargetTable),
		})
		return issues
	}

	for _, col := range fk.TargetColumns {
		if target.Column(col) == nil {
			issues = append(issues, Issue{
				Table:   table.Name,
				Message: fmt.Sprintf("foreign key (%s) target column %s.%s is not declared", label, target.Name, col),
			})
		}
	}

	return issues
}
