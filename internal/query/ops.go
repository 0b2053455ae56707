package query

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/query_engine/internal/schema"
)

// Operator names accepted in raw query arguments.
const (
	OpFilterBy  = "filter_by"
	OpOrderBy   = "order_by"
	OpNotEq     = "not_eq"
	OpIContains = "icontains"
	OpInside    = "inside"
	OpNotInside = "not_inside"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
	OpLike      = "like"
	OpExclude   = "exclude"
	OpMax       = "max"
	OpMin       = "min"
)

// opFunc is one named query transformation. Implementations are pure:
// they derive a new builder and never touch storage.
type opFunc func(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error)

var opTable = map[string]opFunc{
	OpFilterBy:  opFilterBy,
	OpOrderBy:   opOrderBy,
	OpNotEq:     opNotEq,
	OpIContains: opIContains,
	OpInside:    opInside,
	OpNotInside: opNotInside,
	OpGt:        opGt,
	OpGte:       opGte,
	OpLt:        opLt,
	OpLte:       opLte,
	OpLike:      opLike,
	OpExclude:   opExclude,
	OpMax:       opMax,
	OpMin:       opMin,
}

func resolveColumn(ent *schema.EntityDef, column string) (*schema.ColumnDef, error) {
	col := ent.Column(column)
	if col == nil {
		return nil, newConstructionError(column)
	}
	return col, nil
}

// opFilterBy is the default operator, used when an instruction carries
// no function. Joined queries filter against the explicit column
// expression rather than by name, so the condition cannot bind to a
// joined table's column of the same name.
func opFilterBy(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	if b.Joined() {
		return b.Filter(sq.Eq{columnExpr(col): value}), nil
	}
	return b.FilterBy(col.StorageColumn, value), nil
}

// opOrderBy sorts ascending, or descending when the value is prefixed
// with '-'. Comma-separated values order by multiple columns, left to
// right. The ordered column arrives in the value, not the key.
func opOrderBy(ent *schema.EntityDef, b *Builder, _ string, value any) (*Builder, error) {
	raw := stringValue(value)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := "ASC"
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			part = part[1:]
		}
		col := ent.Column(part)
		if col == nil {
			return nil, newConstructionError(part)
		}
		b = b.OrderBy(columnExpr(col) + " " + dir)
	}
	return b, nil
}

func opNotEq(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.NotEq{columnExpr(col): value}), nil
}

// opIContains matches a case-insensitive substring, lower-casing both sides.
func opIContains(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	pattern := "%" + strings.ToLower(stringValue(value)) + "%"
	return b.Filter(sq.Expr(fmt.Sprintf("LOWER(%s) LIKE ?", columnExpr(col)), pattern)), nil
}

// opInside filters by membership in a JSON-encoded array value.
// A malformed value leaves the query unmodified rather than erroring.
func opInside(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	members, ok := decodeMembers(value)
	if !ok {
		return b, nil
	}
	return b.Filter(sq.Eq{columnExpr(col): members}), nil
}

// opNotInside negates opInside, with the same malformed-value tolerance.
func opNotInside(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	members, ok := decodeMembers(value)
	if !ok {
		return b, nil
	}
	return b.Filter(sq.NotEq{columnExpr(col): members}), nil
}

func opGt(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.Gt{columnExpr(col): value}), nil
}

func opGte(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.GtOrEq{columnExpr(col): value}), nil
}

func opLt(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.Lt{columnExpr(col): value}), nil
}

func opLte(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.LtOrEq{columnExpr(col): value}), nil
}

// opLike applies a raw pattern match with caller-supplied wildcards.
func opLike(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	return b.Filter(sq.Like{columnExpr(col): value}), nil
}

// opExclude marks a property to be omitted from serialized output. The
// property arrives either as the instruction column (secret__exclude)
// or, for the bare $exclude form, as the value.
func opExclude(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	prop := column
	if prop == "" {
		prop = stringValue(value)
	}
	if !ent.Excludable[prop] {
		return nil, newFieldError(prop, "Invalid Argument: Property not excludable")
	}
	return b.Exclude(prop), nil
}

// opMax filters the column to its aggregate maximum over the base
// table. Aggregate filter hook; the value is ignored.
func opMax(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	return aggregateFilter(ent, b, column, "max")
}

// opMin is opMax with the minimum.
func opMin(ent *schema.EntityDef, b *Builder, column string, value any) (*Builder, error) {
	return aggregateFilter(ent, b, column, "min")
}

func aggregateFilter(ent *schema.EntityDef, b *Builder, column string, agg string) (*Builder, error) {
	col, err := resolveColumn(ent, column)
	if err != nil {
		return nil, err
	}
	inner := qi("_agg") + "." + qi(col.StorageColumn)
	sub := fmt.Sprintf("%s = (SELECT %s(%s) FROM %s %s)",
		columnExpr(col), agg, inner, ent.TableName(), qi("_agg"))
	return b.Filter(sq.Expr(sub)), nil
}

// decodeMembers parses a JSON-encoded array value for membership
// filters. The false return signals a malformed value.
func decodeMembers(value any) ([]any, bool) {
	raw, ok := value.(string)
	if !ok {
		return nil, false
	}
	var members []any
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, false
	}
	return members, true
}

func stringValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
