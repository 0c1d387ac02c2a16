package codes_test

import (
	"context"
	"testing"
	"tsusho/codes"
	"tsusho/database"
	"tsusho/loader"
	"tsusho/model"
)

func TestTableResolve(t *testing.T) {
	db, err := loader.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := loader.ApplySchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	table := codes.NewTable()
	if got := table.ResolveName(model.CodeTypeEarlyLeaveReason, "01"); got != "01" {
		t.Errorf("before load = %q, want raw value", got)
	}
	if err := table.Load(ctx, db); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		codeType, value, want string
	}{
		{model.CodeTypeEarlyLeaveReason, "01", "体調不良"},
		{model.CodeTypeEarlyLeaveReason, "04", "延長利用"},
		{model.CodeTypeLateReason, "01", "学校行事"},
		{model.CodeTypeEarlyLeaveReason, "77", "77"},
		{"UNKNOWN", "01", "01"},
		{model.CodeTypeEarlyLeaveReason, "", ""},
	}
	for _, tt := range tests {
		if got := table.ResolveName(tt.codeType, tt.value); got != tt.want {
			t.Errorf("ResolveName(%s, %s) = %q, want %q", tt.codeType, tt.value, got, tt.want)
		}
	}
	if got := table.ResolveCode(model.CodeTypeEarlyLeaveReason, "通院"); got != "03" {
		t.Errorf("ResolveCode = %q", got)
	}
	if got := table.ReasonName("99"); got != "その他" {
		t.Errorf("ReasonName = %q", got)
	}
	if n := len(table.Codes(model.CodeTypeLateReason)); n != 3 {
		t.Errorf("late codes = %d", n)
	}
	if n := len(table.Codes("")); n != 8 {
		t.Errorf("all codes = %d", n)
	}

	if err := database.DeleteCode(ctx, db, model.CodeTypeLateReason, "99"); err != nil {
		t.Fatal(err)
	}
	if err := table.Load(ctx, db); err != nil {
		t.Fatal(err)
	}
	if got := table.ResolveName(model.CodeTypeLateReason, "99"); got != "99" {
		t.Errorf("after delete = %q", got)
	}
}
