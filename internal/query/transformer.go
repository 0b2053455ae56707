package query

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/query_engine/internal/schema"
)

// Executor is the one storage round trip the engine performs: a count
// plus a bounded fetch of JSON-projected rows. Transaction and locking
// discipline belong to the implementation, not the engine.
type Executor interface {
	QueryCount(ctx context.Context, sql string, args ...any) (int64, error)
	QueryJSON(ctx context.Context, sql string, args ...any) ([]json.RawMessage, error)
}

// Caller is the identity consumed for ownership scoping.
type Caller interface {
	// CallerID is the caller's owning-entity identifier. Empty for
	// callers with no owner identity.
	CallerID() string
	// Admin reports whether the caller may query other owners' rows.
	Admin() bool
}

// Options carries the two deployment settings the engine consumes.
type Options struct {
	// OwnerColumn is the ownership-scope column name. Non-admin
	// callers are always pinned to their own value of this column.
	OwnerColumn string
	// DefaultPerPage is the page size applied when the request names
	// none. Zero means a single page holding the full filtered count.
	DefaultPerPage int
}

// Transformer compiles raw query arguments into a paginated query:
// owner scoping, operation parsing, per-column-type dispatch, then
// pagination. It is stateless per invocation and safe for concurrent
// use.
type Transformer struct {
	registry *Registry
	exec     Executor
	opts     Options
}

func NewTransformer(exec Executor, opts Options) *Transformer {
	return &Transformer{
		registry: NewRegistry(),
		exec:     exec,
		opts:     opts,
	}
}

// Construct builds a fresh query scoped to ent from the raw arguments,
// runs it, and returns one page of results. Extra args override raw
// args; with enforceOwner, non-administrative callers are pinned to
// their own rows regardless of what the raw arguments claim.
func (t *Transformer) Construct(ctx context.Context, ent *schema.EntityDef, caller Caller, args, extra map[string]string, enforceOwner bool) (*Page, error) {
	return t.transform(ctx, NewBuilder(ent), caller, args, extra, enforceOwner)
}

// Extend is Construct over a caller-supplied, partially built query.
// The entity is inferred from the query's primary target.
func (t *Transformer) Extend(ctx context.Context, b *Builder, caller Caller, args, extra map[string]string, enforceOwner bool) (*Page, error) {
	return t.transform(ctx, b, caller, args, extra, enforceOwner)
}

func (t *Transformer) transform(ctx context.Context, b *Builder, caller Caller, args, extra map[string]string, enforceOwner bool) (*Page, error) {
	ent := b.Entity()
	merged := t.mergeArgs(ent, caller, args, extra, enforceOwner)

	pg := ExtractPagination(merged)
	for _, ins := range ParseOps(ent, merged) {
		h := t.registry.HandlerFor(ent, ins.Column)
		var err error
		if b, err = h.Handle(ent, b, ins); err != nil {
			return nil, err
		}
	}
	return t.paginate(ctx, b, pg)
}

// mergeArgs copies the raw arguments, lays extra over them, and applies
// the ownership scope: a non-admin caller querying an entity that has
// the owner column is forced onto its own identifier. Override, not
// merge — a forged owner value in the raw arguments is discarded.
func (t *Transformer) mergeArgs(ent *schema.EntityDef, caller Caller, args, extra map[string]string, enforceOwner bool) map[string]string {
	merged := make(map[string]string, len(args)+len(extra))
	for k, v := range args {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	if enforceOwner && caller != nil && !caller.Admin() &&
		caller.CallerID() != "" && ent.HasColumn(t.opts.OwnerColumn) {
		merged[t.opts.OwnerColumn] = caller.CallerID()
	}
	return merged
}

// paginate performs the storage round trip against the fully composed
// query. With an explicit per_page the count and the bounded fetch run
// concurrently; otherwise the count feeds the page size, so it runs
// first. Storage-layer failures surface as query-construction errors,
// never as raw driver errors.
func (t *Transformer) paginate(ctx context.Context, b *Builder, pg Pagination) (*Page, error) {
	countSQL, countArgs, err := b.CountSQL()
	if err != nil {
		return nil, translateStorageError(err)
	}

	perPage := pg.PerPage
	if !pg.HasPerPage {
		perPage = t.opts.DefaultPerPage
	}

	if perPage > 0 {
		return t.paginateBounded(ctx, b, pg.Page, perPage, countSQL, countArgs)
	}

	total, err := t.exec.QueryCount(ctx, countSQL, countArgs...)
	if err != nil {
		return nil, translateStorageError(err)
	}
	// per_page defaults to the full remaining count.
	perPage = int(total)
	var items []json.RawMessage
	if total > 0 {
		offset := uint64(pg.Page-1) * uint64(perPage)
		selectSQL, selectArgs, err := b.SelectSQL(uint64(perPage), offset)
		if err != nil {
			return nil, translateStorageError(err)
		}
		if items, err = t.exec.QueryJSON(ctx, selectSQL, selectArgs...); err != nil {
			return nil, translateStorageError(err)
		}
	}
	return newPage(items, pg.Page, perPage, total), nil
}

func (t *Transformer) paginateBounded(ctx context.Context, b *Builder, page, perPage int, countSQL string, countArgs []any) (*Page, error) {
	offset := uint64(page-1) * uint64(perPage)
	selectSQL, selectArgs, err := b.SelectSQL(uint64(perPage), offset)
	if err != nil {
		return nil, translateStorageError(err)
	}

	var (
		total int64
		items []json.RawMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = t.exec.QueryCount(gctx, countSQL, countArgs...)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = t.exec.QueryJSON(gctx, selectSQL, selectArgs...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translateStorageError(err)
	}
	return newPage(items, page, perPage, total), nil
}
