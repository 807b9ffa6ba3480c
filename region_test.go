package xstream

import (
	"errors"
	"testing"
)

func TestRegion_Clone(t *testing.T) {
	args := []any{1, "two"}
	r := NewRegion("r", func(*Exec) error { return nil }, args...)

	// NewRegion copies the variadic slice.
	args[0] = 100
	if r.args[0] != 1 {
		t.Errorf("NewRegion kept the caller's slice: args[0] = %v", r.args[0])
	}

	c := r.Clone()
	c.args[1] = "changed"
	if r.args[1] != "two" {
		t.Errorf("Clone shares arguments: original args[1] = %v", r.args[1])
	}
	if c.Name() != "r" || c.NumArgs() != 2 {
		t.Errorf("Clone() = {%q, %d args}, want {r, 2 args}", c.Name(), c.NumArgs())
	}
}

func TestRegion_Op(t *testing.T) {
	target := struct{ name string }{"native"}
	var got *Exec
	r := NewRegion("r", func(x *Exec) error {
		got = x
		return errors.New("body")
	}, "a", 2)

	err := r.op(3, 7, 5)(target)
	if err == nil || err.Error() != "body" {
		t.Errorf("op() = %v, want the body error", err)
	}
	if got == nil {
		t.Fatal("body not called")
	}
	if got.Device() != 3 || got.Signal() != 7 || got.Pending() != 5 {
		t.Errorf("Exec = {device %d, signal %d, pending %d}, want {3, 7, 5}",
			got.Device(), got.Signal(), got.Pending())
	}
	if got.NumArgs() != 2 || got.Arg(0) != "a" || got.Arg(1) != 2 {
		t.Errorf("Exec args = %v", got.Args())
	}
	if got.Arg(2) != nil || got.Arg(-1) != nil {
		t.Error("Arg out of range is not nil")
	}
	if got.Native() != target {
		t.Errorf("Native() = %v, want %v", got.Native(), target)
	}

	args := got.Args()
	args[0] = "mutated"
	if got.Arg(0) != "a" {
		t.Error("Args() exposes the captured slice")
	}
}

func TestRegion_NilBody(t *testing.T) {
	if err := NewRegion("empty", nil).op(0, 1, 0)(nil); err != nil {
		t.Errorf("op() with nil body = %v, want nil", err)
	}
}
