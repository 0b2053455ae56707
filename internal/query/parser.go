package query

import (
	"sort"
	"strconv"
	"strings"

	"github.com/atlekbai/query_engine/internal/schema"
)

// Instruction is one parsed unit of work: an optional column, a raw
// value, and an optional operator name. An empty Fn means the default
// equality filter; an empty Column means the operator takes its target
// from the value (order_by, exclude).
type Instruction struct {
	Column string
	Value  string
	Fn     string
}

// Pagination holds the page/per_page directive extracted from the raw
// arguments before operation parsing.
type Pagination struct {
	Page       int
	PerPage    int
	HasPerPage bool
}

var paginationKeys = []string{"page", "per_page"}

// ExtractPagination removes pagination keys (bare or $-prefixed) from
// args and converts them to integers. Non-integer values are silently
// ignored: the directive falls back to its defaults rather than
// failing the request. Page always defaults to 1.
func ExtractPagination(args map[string]string) Pagination {
	pg := Pagination{Page: 1}
	for _, key := range paginationKeys {
		for _, cand := range []string{key, "$" + key} {
			raw, ok := args[cand]
			if !ok {
				continue
			}
			delete(args, cand)
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			if key == "page" {
				if n > 0 {
					pg.Page = n
				}
			} else if n > 0 {
				pg.PerPage = n
				pg.HasPerPage = true
			}
		}
	}
	return pg
}

// ParseOps converts the raw argument mapping into the ordered operation
// queue. Plain equality instructions all precede special instructions,
// because equality filters narrow the row set and should apply first;
// within each class, keys are traversed in sorted order so identical
// arguments always produce an identical queue.
func ParseOps(ent *schema.EntityDef, args map[string]string) []Instruction {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var equality, specials []Instruction
	for _, key := range keys {
		value := args[key]
		switch {
		case strings.HasPrefix(key, "$") && !ent.Exposed[key[1:]]:
			rest := key[1:]
			if column, fn, ok := strings.Cut(rest, "__"); ok {
				specials = append(specials, Instruction{Column: column, Value: value, Fn: fn})
			} else {
				specials = append(specials, Instruction{Value: value, Fn: rest})
			}
		case strings.Contains(key, "__"):
			column, fn, _ := strings.Cut(key, "__")
			specials = append(specials, Instruction{Column: column, Value: value, Fn: fn})
		default:
			// A key naming a column that does not exist is not
			// rejected here; the exposure check surfaces it during
			// dispatch.
			equality = append(equality, Instruction{Column: key, Value: value})
		}
	}
	return append(equality, specials...)
}
