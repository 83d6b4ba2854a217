package lua

import (
	"reflect"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestToGoValue(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(`
		seq = {"a", "b"}
		map = {name = "x", count = 3, ratio = 0.5, ok = true}
		cyc = {} cyc.self = cyc
	`); err != nil {
		t.Fatal(err)
	}

	if got := ToGoValue(L.GetGlobal("seq")); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("seq = %#v", got)
	}
	want := map[string]any{"name": "x", "count": int64(3), "ratio": 0.5, "ok": true}
	if got := ToGoValue(L.GetGlobal("map")); !reflect.DeepEqual(got, want) {
		t.Errorf("map = %#v", got)
	}
	cyc, ok := ToGoValue(L.GetGlobal("cyc")).(map[string]any)
	if !ok || cyc["self"] != nil {
		t.Errorf("cyc = %#v", cyc)
	}
	if ToGoValue(lua.LNil) != nil {
		t.Error("nil should convert to nil")
	}
}

func TestToLuaValue(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	v := ToLuaValue(L, map[string]any{
		"name":  "x",
		"tags":  []string{"a", "b"},
		"count": 2,
		"range": map[string]any{"start": int64(1)},
	})
	tbl, ok := v.(*lua.LTable)
	if !ok {
		t.Fatalf("ToLuaValue returned %T", v)
	}
	if StringField(tbl, "name") != "x" {
		t.Errorf("name = %q", StringField(tbl, "name"))
	}
	if got := StringsField(tbl, "tags"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("tags = %v", got)
	}
	if StringField(tbl, "count") != "2" {
		t.Errorf("count = %q", StringField(tbl, "count"))
	}
	if ToLuaValue(L, nil) != lua.LNil {
		t.Error("nil should convert to LNil")
	}
}

func TestFieldHelpers(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(`opts = {name = "n", keywords = "one", run = function() end}`); err != nil {
		t.Fatal(err)
	}
	opts := L.GetGlobal("opts").(*lua.LTable)

	if got := StringsField(opts, "keywords"); !reflect.DeepEqual(got, []string{"one"}) {
		t.Errorf("keywords = %v", got)
	}
	if StringsField(opts, "missing") != nil {
		t.Error("missing list should be nil")
	}
	if _, ok := FuncField(opts, "run"); !ok {
		t.Error("FuncField(run) not found")
	}
	if _, ok := FuncField(opts, "name"); ok {
		t.Error("FuncField(name) should fail")
	}
	if StringField(opts, "missing") != "" {
		t.Error("missing string should be empty")
	}
}
