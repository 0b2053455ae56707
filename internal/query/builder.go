package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_engine/internal/schema"
)

const qAlias = "_e"

// qi is shorthand for schema.QuoteIdent.
func qi(name string) string { return schema.QuoteIdent(name) }

// columnExpr returns the aliased SQL expression for a column.
func columnExpr(col *schema.ColumnDef) string {
	return qi(qAlias) + "." + qi(col.StorageColumn)
}

type joinClause struct {
	sql  string
	args []any
}

// Builder is the chainable query value the engine transforms. Every
// mutator returns a derived builder, so a partially built query handed
// to Extend is never modified in place.
type Builder struct {
	ent      *schema.EntityDef
	conds    []sq.Sqlizer
	orders   []string
	joins    []joinClause
	excluded map[string]bool
}

// NewBuilder returns an empty query over the given entity.
func NewBuilder(ent *schema.EntityDef) *Builder {
	return &Builder{ent: ent}
}

// Entity returns the primary target of the query.
func (b *Builder) Entity() *schema.EntityDef { return b.ent }

func (b *Builder) clone() *Builder {
	nb := &Builder{
		ent:    b.ent,
		conds:  append([]sq.Sqlizer(nil), b.conds...),
		orders: append([]string(nil), b.orders...),
		joins:  append([]joinClause(nil), b.joins...),
	}
	if b.excluded != nil {
		nb.excluded = make(map[string]bool, len(b.excluded))
		for k := range b.excluded {
			nb.excluded[k] = true
		}
	}
	return nb
}

// Filter appends a WHERE condition against an explicit column expression.
func (b *Builder) Filter(cond sq.Sqlizer) *Builder {
	nb := b.clone()
	nb.conds = append(nb.conds, cond)
	return nb
}

// FilterBy appends a by-name equality condition. Joined queries should
// use Filter with an explicit column expression instead, to avoid
// ambiguity across joined tables.
func (b *Builder) FilterBy(storageColumn string, value any) *Builder {
	nb := b.clone()
	nb.conds = append(nb.conds, sq.Eq{qi(storageColumn): value})
	return nb
}

// OrderBy appends an ORDER BY clause, applied after earlier ones.
func (b *Builder) OrderBy(clause string) *Builder {
	nb := b.clone()
	nb.orders = append(nb.orders, clause)
	return nb
}

// Join attaches a LEFT JOIN clause and marks the query as joined.
func (b *Builder) Join(join string, args ...any) *Builder {
	nb := b.clone()
	nb.joins = append(nb.joins, joinClause{sql: join, args: args})
	return nb
}

// Joined reports whether the query already spans more than one table.
func (b *Builder) Joined() bool { return len(b.joins) > 0 }

// Exclude marks a property for omission from the serialized output.
// It does not alter the filtered row set.
func (b *Builder) Exclude(property string) *Builder {
	nb := b.clone()
	if nb.excluded == nil {
		nb.excluded = make(map[string]bool, 1)
	}
	nb.excluded[property] = true
	return nb
}

// Excluded reports whether a property has been marked for omission.
func (b *Builder) Excluded(property string) bool { return b.excluded[property] }

func (b *Builder) base(columns ...string) sq.SelectBuilder {
	qb := sq.Select(columns...).
		From(b.ent.TableName() + " " + qi(qAlias)).
		PlaceholderFormat(sq.Dollar)
	for _, j := range b.joins {
		qb = qb.LeftJoin(j.sql, j.args...)
	}
	for _, cond := range b.conds {
		qb = qb.Where(cond)
	}
	return qb
}

// CountSQL returns the count query over the filtered row set. Ordering
// and exclusions do not apply to counts.
func (b *Builder) CountSQL() (string, []any, error) {
	return b.base("count(*)").ToSql()
}

// SelectSQL returns the row query, projecting each row as a
// json_build_object of the entity's columns minus excluded properties.
// A limit of 0 means no LIMIT clause.
func (b *Builder) SelectSQL(limit, offset uint64) (string, []any, error) {
	qb := b.base(b.jsonObject() + " AS _row")
	for _, clause := range b.orders {
		qb = qb.OrderBy(clause)
	}
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	if offset > 0 {
		qb = qb.Offset(offset)
	}
	return qb.ToSql()
}

// jsonObject builds the json_build_object(...) expression for the SELECT
// clause, in entity column order.
func (b *Builder) jsonObject() string {
	pairs := make([]string, 0, 2*len(b.ent.Columns))
	for i := range b.ent.Columns {
		col := &b.ent.Columns[i]
		if b.excluded[col.Name] {
			continue
		}
		pairs = append(pairs, "'"+col.Name+"', "+columnExpr(col))
	}
	return fmt.Sprintf("json_build_object(%s)", strings.Join(pairs, ", "))
}
