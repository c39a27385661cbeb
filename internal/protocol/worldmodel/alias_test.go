package worldmodel

import (
	"fmt"
	"testing"

	"github.com/danmuck/grailctl/internal/testutil/testlog"
)

func TestAliasTableSequentialFirstSeen(t *testing.T) {
	testlog.Start(t)
	table := NewAliasTable()
	names := []string{"location.gps", "temperature", "closed", "battery"}
	for i, name := range names {
		alias, isNew := table.GetOrCreate(name)
		if !isNew || alias != uint32(i) {
			t.Fatalf("%s: alias=%d new=%v want=%d,true", name, alias, isNew, i)
		}
	}
	for i, name := range names {
		alias, isNew := table.GetOrCreate(name)
		if isNew || alias != uint32(i) {
			t.Fatalf("%s: re-query alias=%d new=%v", name, alias, isNew)
		}
		back, ok := table.Name(alias)
		if !ok || back != name {
			t.Fatalf("reverse lookup %d=%q,%v", alias, back, ok)
		}
	}
	if table.Len() != len(names) {
		t.Fatalf("unexpected len %d", table.Len())
	}
}

func TestAliasTableInterleavedRepeats(t *testing.T) {
	testlog.Start(t)
	table := NewAliasTable()
	seq := []string{"a", "b", "a", "c", "b", "d", "a"}
	want := []uint32{0, 1, 0, 2, 1, 3, 0}
	for i, name := range seq {
		if alias, _ := table.GetOrCreate(name); alias != want[i] {
			t.Fatalf("step %d (%s): alias=%d want=%d", i, name, alias, want[i])
		}
	}
	if got := fmt.Sprint(table.Names()); got != "[a b c d]" {
		t.Fatalf("unexpected names %s", got)
	}
}

func TestAliasTableLookupMissing(t *testing.T) {
	testlog.Start(t)
	table := NewAliasTable()
	if _, ok := table.Lookup("nope"); ok {
		t.Fatalf("unexpected hit")
	}
	if _, ok := table.Name(0); ok {
		t.Fatalf("unexpected reverse hit")
	}
}
