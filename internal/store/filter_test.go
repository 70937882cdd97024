package store

import (
	"errors"
	"testing"

	"github.com/reliefhub/reliefhub/models"
)

func TestToSqlizer_Nil(t *testing.T) {
	pred, err := toSqlizer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred != nil {
		t.Errorf("expected nil predicate for nil filter, got %v", pred)
	}
}

func TestToSqlizer_Comparisons(t *testing.T) {
	tests := []struct {
		op   models.Operator
		want string
	}{
		{models.OpEqual, "name = ?"},
		{models.OpNotEqual, "name <> ?"},
		{models.OpLess, "name < ?"},
		{models.OpLessEq, "name <= ?"},
		{models.OpGreater, "name > ?"},
		{models.OpGreaterEq, "name >= ?"},
	}

	for _, tt := range tests {
		pred, err := toSqlizer(models.Filter("name", tt.op, "x"))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.op, err)
		}
		sqlStr, args, err := pred.ToSql()
		if err != nil {
			t.Fatalf("%s: ToSql failed: %v", tt.op, err)
		}
		if sqlStr != tt.want {
			t.Errorf("%s: sql = %q, want %q", tt.op, sqlStr, tt.want)
		}
		if len(args) != 1 || args[0] != "x" {
			t.Errorf("%s: args = %v", tt.op, args)
		}
	}
}

func TestToSqlizer_LikeOperators(t *testing.T) {
	pred, err := toSqlizer(models.Filter("name", models.OpLike, "red"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, args, _ := pred.ToSql()
	if args[0] != "%red%" {
		t.Errorf("like pattern = %v, want %%red%%", args[0])
	}

	pred, err = toSqlizer(models.Filter("name", models.OpStartsWith, "red"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, args, _ = pred.ToSql()
	if args[0] != "red%" {
		t.Errorf("starts-with pattern = %v, want red%%", args[0])
	}
}

func TestToSqlizer_InRendersList(t *testing.T) {
	pred, err := toSqlizer(models.Filter("id", models.OpIn, []int64{1, 2, 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqlStr, args, err := pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}
	if sqlStr != "id IN (?,?,?)" {
		t.Errorf("sql = %q, want id IN (?,?,?)", sqlStr)
	}
	if len(args) != 3 {
		t.Errorf("args = %v", args)
	}
}

func TestToSqlizer_Composites(t *testing.T) {
	node := models.AllOf(
		models.Filter("country", models.OpEqual, "KE"),
		models.Filter("deleted", models.OpEqual, false),
	)
	pred, err := toSqlizer(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqlStr, _, err := pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}
	if sqlStr != "(country = ? AND deleted = ?)" {
		t.Errorf("sql = %q", sqlStr)
	}

	node = models.AnyOf(
		models.Filter("country", models.OpEqual, "KE"),
		models.Filter("country", models.OpEqual, "UG"),
	)
	pred, err = toSqlizer(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqlStr, _, err = pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}
	if sqlStr != "(country = ? OR country = ?)" {
		t.Errorf("sql = %q", sqlStr)
	}
}

func TestToSqlizer_RejectsUnexpandedHierarchy(t *testing.T) {
	_, err := toSqlizer(models.Filter("parent_id", models.OpBelongs, int64(4)))
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestToSqlizer_UnknownOperator(t *testing.T) {
	_, err := toSqlizer(models.Filter("name", models.Operator("between"), "x"))
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}
}
