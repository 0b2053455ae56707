package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/atlekbai/query_engine/internal/schema"
)

// Handler applies one operation instruction against a query, with the
// coercion and operator policy of a single column type.
type Handler interface {
	Handle(ent *schema.EntityDef, b *Builder, ins Instruction) (*Builder, error)
}

// Registry maps column type tags to handlers. It is constructed
// explicitly by NewRegistry and owned by the Transformer; unregistered
// types resolve to a default handler that supports only the
// function-less equality path plus a deny list.
type Registry struct {
	handlers map[schema.ColumnType]Handler
	fallback Handler
}

func NewRegistry() *Registry {
	numeric := &coercingHandler{
		deny:   denySet(OpIContains),
		coerce: coerceBoolLiteral,
	}
	return &Registry{
		handlers: map[schema.ColumnType]Handler{
			schema.ColInteger:   numeric,
			schema.ColBoolean:   numeric,
			schema.ColString:    &coercingHandler{},
			schema.ColTimestamp: &coercingHandler{coerce: coerceEpoch},
			schema.ColFormatted: &formattedHandler{},
		},
		fallback: &coercingHandler{deny: denySet(OpIContains)},
	}
}

// Lookup returns the handler for a column type tag.
func (r *Registry) Lookup(t schema.ColumnType) Handler {
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}

// HandlerFor resolves the handler for an instruction's column. Unknown
// or column-less instructions fall through to the default handler; the
// exposure check inside it surfaces bogus columns as field errors.
func (r *Registry) HandlerFor(ent *schema.EntityDef, column string) Handler {
	if col := ent.Column(column); col != nil {
		return r.Lookup(col.Type)
	}
	return r.fallback
}

func denySet(names ...string) map[string]bool {
	deny := make(map[string]bool, len(names))
	for _, n := range names {
		deny[n] = true
	}
	return deny
}

// checkExposed enforces the field-exposure invariant before any
// operator runs. Exclusion is checked against the excludable set
// instead of the exposed set.
func checkExposed(ent *schema.EntityDef, ins Instruction) error {
	if ins.Fn == OpExclude {
		if ins.Column != "" && !ent.Excludable[ins.Column] {
			return newFieldError(ins.Column, "Invalid Argument: Property not excludable")
		}
		return nil
	}
	if ins.Column != "" && !ent.Exposed[ins.Column] {
		return newFieldError(ins.Column, "Invalid Argument: Field not exposed")
	}
	return nil
}

// dispatch routes an instruction to its operator method, applying the
// handler's deny list. A denied or unknown operator raises a
// query-construction error naming the offending key.
func dispatch(ent *schema.EntityDef, b *Builder, ins Instruction, value any, deny map[string]bool) (*Builder, error) {
	fn := ins.Fn
	if fn == "" {
		fn = OpFilterBy
	}
	if deny[fn] {
		return nil, newConstructionError(fn)
	}
	op, ok := opTable[fn]
	if !ok {
		return nil, newConstructionError(fn)
	}
	return op(ent, b, ins.Column, value)
}

// coercingHandler covers the scalar types whose only specialization is
// a value coercion before dispatch, plus the default no-coercion case.
type coercingHandler struct {
	deny   map[string]bool
	coerce func(string) any
}

func (h *coercingHandler) Handle(ent *schema.EntityDef, b *Builder, ins Instruction) (*Builder, error) {
	if err := checkExposed(ent, ins); err != nil {
		return nil, err
	}
	var value any = ins.Value
	if h.coerce != nil {
		value = h.coerce(ins.Value)
	}
	return dispatch(ent, b, ins, value, h.deny)
}

// coerceBoolLiteral turns the literal strings "True"/"False" into
// booleans for numeric and boolean columns.
func coerceBoolLiteral(raw string) any {
	switch raw {
	case "True":
		return true
	case "False":
		return false
	}
	return raw
}

// coerceEpoch converts integer values from epoch seconds to the
// in-memory timestamp representation before any other handling.
func coerceEpoch(raw string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
		return time.Unix(n, 0).UTC()
	}
	return raw
}

// formattedHandler reverse-maps human-readable labels to their stored
// integers for encoded columns. An unknown label is a field-specific
// validation error naming the valid labels.
type formattedHandler struct{}

func (h *formattedHandler) Handle(ent *schema.EntityDef, b *Builder, ins Instruction) (*Builder, error) {
	if err := checkExposed(ent, ins); err != nil {
		return nil, err
	}
	var value any = ins.Value
	if col := ent.Column(ins.Column); col != nil && ins.Fn != OpExclude {
		if n, err := strconv.ParseInt(ins.Value, 10, 64); err == nil {
			// Already a stored value.
			value = n
		} else if stored, ok := col.StoredValue(ins.Value); ok {
			value = stored
		} else {
			return nil, newFieldError(ins.Column,
				"Invalid value \""+ins.Value+"\"; valid labels: "+strings.Join(col.ValidLabels(), ", "))
		}
	}
	return dispatch(ent, b, ins, value, nil)
}
