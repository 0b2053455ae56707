package query

import (
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
)

func TestBuilderSelectSQL(t *testing.T) {
	ent := testUsersEntity()

	b := NewBuilder(ent).
		FilterBy("name", "acme").
		OrderBy(`"_e"."created" DESC`)

	sql, args, err := b.SelectSQL(10, 20)
	if err != nil {
		t.Fatalf("SelectSQL() error: %v", err)
	}

	for _, frag := range []string{
		`SELECT json_build_object(`,
		`'name', "_e"."name"`,
		`FROM "public"."users" "_e"`,
		`WHERE "name" = $1`,
		`ORDER BY "_e"."created" DESC`,
		`LIMIT 10`,
		`OFFSET 20`,
	} {
		if !strings.Contains(sql, frag) {
			t.Errorf("sql = %q, want fragment %q", sql, frag)
		}
	}
	if len(args) != 1 || args[0] != "acme" {
		t.Errorf("args = %v, want [acme]", args)
	}
}

func TestBuilderCountIgnoresOrderAndExclusions(t *testing.T) {
	ent := testUsersEntity()

	b := NewBuilder(ent).
		Filter(sq.Gt{`"_e"."id"`: 3}).
		OrderBy(`"_e"."name" ASC`).
		Exclude("secret")

	sql, _, err := b.CountSQL()
	if err != nil {
		t.Fatalf("CountSQL() error: %v", err)
	}
	if !strings.Contains(sql, "count(*)") {
		t.Errorf("sql = %q, want count(*)", sql)
	}
	if strings.Contains(sql, "ORDER BY") || strings.Contains(sql, "json_build_object") {
		t.Errorf("count query carries row-shaping clauses: %q", sql)
	}
}

func TestBuilderDerivation(t *testing.T) {
	ent := testUsersEntity()

	base := NewBuilder(ent)
	derived := base.FilterBy("name", "acme").Exclude("secret")

	baseSQL, _, _ := base.SelectSQL(0, 0)
	derivedSQL, _, _ := derived.SelectSQL(0, 0)

	if strings.Contains(baseSQL, "WHERE") {
		t.Errorf("derivation mutated the base query: %q", baseSQL)
	}
	if !strings.Contains(baseSQL, "'secret'") {
		t.Errorf("base query lost a column it never excluded: %q", baseSQL)
	}
	if strings.Contains(derivedSQL, "'secret'") {
		t.Errorf("derived query still projects the excluded property: %q", derivedSQL)
	}
	if base.Joined() {
		t.Error("fresh builder reports joined")
	}
	if !base.Join("x ON 1=1").Joined() {
		t.Error("joined builder does not report joined")
	}
}

func TestBuilderNoLimitWhenZero(t *testing.T) {
	ent := testUsersEntity()

	sql, _, err := NewBuilder(ent).SelectSQL(0, 0)
	if err != nil {
		t.Fatalf("SelectSQL() error: %v", err)
	}
	if strings.Contains(sql, "LIMIT") || strings.Contains(sql, "OFFSET") {
		t.Errorf("sql = %q, want no pagination clauses", sql)
	}
}
