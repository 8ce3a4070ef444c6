package prof

import "testing"

func TestDumpProducesOneSamplePerTask(t *testing.T) {
	tasks := []TaskUsage{
		{ID: 1, Name: "init", UserNs: 100, SysNs: 10},
		{ID: 2, Name: "ping", UserNs: 200, SysNs: 20},
	}

	p := Dump(tasks)
	if err := p.CheckValid(); err != nil {
		t.Fatalf("Dump produced an invalid profile: %v", err)
	}
	if len(p.Sample) != 2 {
		t.Fatalf("got %d samples, want 2", len(p.Sample))
	}
	if got := p.Sample[0].Value; got[0] != 100 || got[1] != 10 {
		t.Fatalf("sample[0].Value = %v, want [100 10]", got)
	}
	if got := p.Sample[1].Value; got[0] != 200 || got[1] != 20 {
		t.Fatalf("sample[1].Value = %v, want [200 20]", got)
	}
}

func TestDumpNamesUnnamedTasksByID(t *testing.T) {
	tasks := []TaskUsage{{ID: 7, UserNs: 1, SysNs: 1}}

	p := Dump(tasks)
	if len(p.Function) != 1 {
		t.Fatalf("got %d functions, want 1", len(p.Function))
	}
	if want := "task#7"; p.Function[0].Name != want {
		t.Fatalf("Function[0].Name = %q, want %q", p.Function[0].Name, want)
	}
}

func TestDumpEmptyTaskListIsValid(t *testing.T) {
	p := Dump(nil)
	if err := p.CheckValid(); err != nil {
		t.Fatalf("Dump(nil) produced an invalid profile: %v", err)
	}
	if len(p.Sample) != 0 {
		t.Fatalf("got %d samples, want 0", len(p.Sample))
	}
}

func TestDumpTagsTaskIDAsLabel(t *testing.T) {
	tasks := []TaskUsage{{ID: 42, UserNs: 1, SysNs: 1}}

	p := Dump(tasks)
	labels := p.Sample[0].Label["tid"]
	if len(labels) != 1 || labels[0] != "42" {
		t.Fatalf("tid label = %v, want [\"42\"]", labels)
	}
}
