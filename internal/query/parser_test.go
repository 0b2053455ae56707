package query

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/atlekbai/query_engine/internal/schema"
)

// --- Helper constructors ---

func testUsersEntity() *schema.EntityDef {
	mkCol := func(name string, typ schema.ColumnType) schema.ColumnDef {
		return schema.ColumnDef{
			ID:            uuid.New(),
			Name:          name,
			Type:          typ,
			StorageColumn: name,
		}
	}

	status := mkCol("status", schema.ColFormatted)
	status.Labels = map[string]int64{"active": 1, "disabled": 2}

	ent := &schema.EntityDef{
		ID:            uuid.New(),
		Name:          "users",
		StorageSchema: "public",
		StorageTable:  "users",
		Columns: []schema.ColumnDef{
			mkCol("id", schema.ColInteger),
			mkCol("client_id", schema.ColInteger),
			mkCol("name", schema.ColString),
			status,
			mkCol("created", schema.ColTimestamp),
			mkCol("active", schema.ColBoolean),
			mkCol("secret", schema.ColString),
		},
		Exposed: map[string]bool{
			"id": true, "client_id": true, "name": true,
			"status": true, "created": true, "active": true,
		},
		Excludable: map[string]bool{"secret": true},
	}
	ent.Index()
	return ent
}

func TestParseOpsShapes(t *testing.T) {
	ent := testUsersEntity()

	tests := []struct {
		name string
		args map[string]string
		want []Instruction
	}{
		{
			name: "plain key is an equality instruction",
			args: map[string]string{"name": "acme"},
			want: []Instruction{{Column: "name", Value: "acme"}},
		},
		{
			name: "dollar key without separator is a bare function",
			args: map[string]string{"$order_by": "-created"},
			want: []Instruction{{Value: "-created", Fn: "order_by"}},
		},
		{
			name: "dollar key with separator splits column and function",
			args: map[string]string{"$status__gt": "2"},
			want: []Instruction{{Column: "status", Value: "2", Fn: "gt"}},
		},
		{
			name: "bare key with separator splits column and function",
			args: map[string]string{"name__icontains": "acme"},
			want: []Instruction{{Column: "name", Value: "acme", Fn: "icontains"}},
		},
		{
			name: "dollar key naming an exposed column stays plain",
			args: map[string]string{"$name": "acme"},
			want: []Instruction{{Column: "$name", Value: "acme"}},
		},
		{
			name: "unknown column is not rejected at parse time",
			args: map[string]string{"nope__gt": "1"},
			want: []Instruction{{Column: "nope", Value: "1", Fn: "gt"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOps(ent, tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOps() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseOpsEqualityPrecedesSpecials(t *testing.T) {
	ent := testUsersEntity()

	// Keys chosen so that sorted traversal would interleave shapes if
	// the two-list merge were missing.
	args := map[string]string{
		"$order_by":      "name",
		"active":         "True",
		"created__gte":   "100",
		"name":           "acme",
		"status__not_eq": "2",
		"zz_unknown_col": "x",
	}

	got := ParseOps(ent, args)
	if len(got) != 6 {
		t.Fatalf("ParseOps() returned %d instructions, want 6", len(got))
	}

	boundary := -1
	for i, ins := range got {
		special := ins.Fn != ""
		if special && boundary == -1 {
			boundary = i
		}
		if !special && boundary != -1 {
			t.Fatalf("equality instruction %+v at %d after special at %d", ins, i, boundary)
		}
	}

	// Relative order within each class follows sorted key traversal.
	wantEquality := []string{"active", "name", "zz_unknown_col"}
	for i, col := range wantEquality {
		if got[i].Column != col {
			t.Errorf("equality[%d].Column = %q, want %q", i, got[i].Column, col)
		}
	}
	wantFns := []string{"order_by", "gte", "not_eq"}
	for i, fn := range wantFns {
		if got[boundary+i].Fn != fn {
			t.Errorf("special[%d].Fn = %q, want %q", i, got[boundary+i].Fn, fn)
		}
	}
}

func TestParseOpsDeterministic(t *testing.T) {
	ent := testUsersEntity()
	args := func() map[string]string {
		return map[string]string{
			"name": "a", "active": "True", "$order_by": "name",
			"created__gte": "5", "status": "active",
		}
	}

	first := ParseOps(ent, args())
	for i := 0; i < 20; i++ {
		if got := ParseOps(ent, args()); !reflect.DeepEqual(got, first) {
			t.Fatalf("ParseOps() not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestExtractPagination(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]string
		want     Pagination
		leftover int
	}{
		{
			name:     "bare keys",
			args:     map[string]string{"page": "2", "per_page": "25", "name": "x"},
			want:     Pagination{Page: 2, PerPage: 25, HasPerPage: true},
			leftover: 1,
		},
		{
			name:     "dollar-prefixed keys",
			args:     map[string]string{"$page": "3", "$per_page": "10"},
			want:     Pagination{Page: 3, PerPage: 10, HasPerPage: true},
			leftover: 0,
		},
		{
			name:     "page defaults to one",
			args:     map[string]string{"per_page": "10"},
			want:     Pagination{Page: 1, PerPage: 10, HasPerPage: true},
			leftover: 0,
		},
		{
			name:     "per_page absent",
			args:     map[string]string{"page": "2"},
			want:     Pagination{Page: 2},
			leftover: 0,
		},
		{
			name:     "non-integer values silently ignored",
			args:     map[string]string{"page": "abc", "per_page": "1.5"},
			want:     Pagination{Page: 1},
			leftover: 0,
		},
		{
			name:     "non-positive values ignored",
			args:     map[string]string{"page": "0", "per_page": "-5"},
			want:     Pagination{Page: 1},
			leftover: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPagination(tt.args)
			if got != tt.want {
				t.Errorf("ExtractPagination() = %+v, want %+v", got, tt.want)
			}
			if len(tt.args) != tt.leftover {
				t.Errorf("args has %d keys after extraction, want %d", len(tt.args), tt.leftover)
			}
		})
	}
}
