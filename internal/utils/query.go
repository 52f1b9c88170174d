// internal/utils/query.go
package utils

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter composes typed WHERE predicates against one table. Values are
// always bound as parameters; column names come from code, never input.
type Filter struct {
	table string
	exprs []clause.Expression
}

func NewFilter(table string) *Filter {
	return &Filter{table: table}
}

func (f *Filter) column(name string) clause.Column {
	return clause.Column{Table: f.table, Name: name}
}

func (f *Filter) Eq(name string, value interface{}) *Filter {
	f.exprs = append(f.exprs, clause.Eq{Column: f.column(name), Value: value})
	return f
}

func (f *Filter) Gte(name string, value interface{}) *Filter {
	f.exprs = append(f.exprs, clause.Gte{Column: f.column(name), Value: value})
	return f
}

func (f *Filter) Lte(name string, value interface{}) *Filter {
	f.exprs = append(f.exprs, clause.Lte{Column: f.column(name), Value: value})
	return f
}

func (f *Filter) IsNull(name string) *Filter {
	f.exprs = append(f.exprs, clause.Eq{Column: f.column(name), Value: nil})
	return f
}

// Contains matches term case-insensitively against any of the columns.
func (f *Filter) Contains(term string, names ...string) *Filter {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" || len(names) == 0 {
		return f
	}
	pattern := "%" + escapeLike(term) + "%"

	ors := make([]clause.Expression, 0, len(names))
	for _, name := range names {
		ors = append(ors, clause.Expr{
			SQL:  "LOWER(COALESCE(?, '')) LIKE ? ESCAPE '\\'",
			Vars: []interface{}{f.column(name), pattern},
		})
	}
	f.exprs = append(f.exprs, clause.Or(ors...))
	return f
}

func (f *Filter) Empty() bool {
	return len(f.exprs) == 0
}

func (f *Filter) Apply(db *gorm.DB) *gorm.DB {
	if f.Empty() {
		return db
	}
	return db.Clauses(clause.Where{Exprs: f.exprs})
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SortOption maps a public sort key to an ORDER BY clause.
type SortOption struct {
	Column string
	Desc   bool
}

// ApplySort orders by the whitelisted option for key, falling back to
// fallback when key is unknown.
func ApplySort(db *gorm.DB, table, key string, options map[string]SortOption, fallback string) *gorm.DB {
	opt, ok := options[key]
	if !ok {
		opt = options[fallback]
	}
	return db.Order(clause.OrderByColumn{
		Column: clause.Column{Table: table, Name: opt.Column},
		Desc:   opt.Desc,
	})
}
