package schema

import (
	"fmt"
	"strings"
)

// ValidationError is a problem found comparing or checking tables.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking marks changes that cannot be applied additively.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// Messages returns the error messages in order.
func (r *ValidationResult) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return msgs
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range errs {
			sb.WriteString("  - " + e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn bool
	allowDropTable  bool
	allowDropIndex  bool
}

// AllowDropColumn reports removed columns as warnings. The columns are
// kept in the database.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable reports removed tables as warnings. The tables are
// kept in the database.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex permits dropping indexes of columns that are no longer
// unique or referencing.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// ValidateDiff compares the tables of the applied model with the
// desired ones. Errors are changes an additive migration cannot
// perform; warnings are changes that may fail on existing data or are
// not applied.
//
//	result := schema.ValidateDiff(current, desired)
//	if result.HasErrors() {
//	    return relgraph.NewValidationError(result.Messages()...)
//	}
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	desiredMap := make(map[string]*Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}
	for _, t := range current {
		if _, ok := desiredMap[t.Name]; !ok {
			result.add(cfg.allowDropTable, &ValidationError{
				Table:    t.Name,
				Message:  "table was removed from the model",
				Breaking: true,
			})
		}
	}
	currentMap := make(map[string]*Table, len(current))
	for _, t := range current {
		currentMap[t.Name] = t
	}
	for _, t := range desired {
		if cur, ok := currentMap[t.Name]; ok {
			validateTableDiff(cur, t, cfg, result)
		}
	}
	return result
}

// add records err as a warning if allowed, or as an error.
func (r *ValidationResult) add(allowed bool, err *ValidationError) {
	if allowed {
		r.Warnings = append(r.Warnings, err)
	} else {
		r.Errors = append(r.Errors, err)
	}
}

func validateTableDiff(current, desired *Table, cfg *validateConfig, result *ValidationResult) {
	for _, c := range current.Columns {
		if desired.Column(c.Name) == nil {
			result.add(cfg.allowDropColumn, &ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  "column was removed from the model",
				Breaking: true,
			})
		}
	}
	for _, dc := range desired.Columns {
		cc := current.Column(dc.Name)
		if cc == nil {
			if !dc.Nullable {
				result.Errors = append(result.Errors, &ValidationError{
					Table:    current.Name,
					Column:   dc.Name,
					Message:  "new NOT NULL column cannot be added to an existing table",
					Breaking: true,
				})
			}
			continue
		}
		if cc.Type != dc.Type {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    current.Name,
				Column:   dc.Name,
				Message:  fmt.Sprintf("column type changing from %s to %s", cc.Type, dc.Type),
				Breaking: true,
			})
		}
		switch {
		case cc.Nullable && !dc.Nullable:
			result.Errors = append(result.Errors, &ValidationError{
				Table:    current.Name,
				Column:   dc.Name,
				Message:  "column changing from NULL to NOT NULL",
				Breaking: true,
			})
		case !cc.Nullable && dc.Nullable:
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: "column changing from NOT NULL to NULL is not applied",
			})
		}
		if !cc.Unique && dc.Unique {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: "adding UNIQUE constraint may fail if duplicate values exist",
			})
		}
	}
	for _, idx := range current.Indexes {
		if desired.Index(idx.Name) == nil {
			result.add(cfg.allowDropIndex, &ValidationError{
				Table:   current.Name,
				Message: fmt.Sprintf("index %q will be dropped", idx.Name),
			})
		}
	}
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}
	if len(t.PrimaryKey) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}
	cols := make(map[string]bool)
	for _, c := range t.Columns {
		if cols[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		}
		if c.Type == "" {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "column has no storage type",
			})
		}
		cols[c.Name] = true
	}
	idxs := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idxs[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("duplicate index name: %s", idx.Name),
			})
		}
		idxs[idx.Name] = true
		for _, c := range idx.Columns {
			if !cols[c.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("index %q references non-existent column %q", idx.Name, c.Name),
				})
			}
		}
	}
	return result
}

// ValidateSchema validates all tables.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool)
	for _, t := range tables {
		if names[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		names[t.Name] = true
		r := ValidateTable(t)
		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)
	}
	return result
}
