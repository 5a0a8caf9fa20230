package command

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewVersionCommand("1"))
	r.Register(NewHelpCommand(r))

	if got := r.List(); !slices.Equal(got, []string{"help", "version"}) {
		t.Errorf("List() = %v", got)
	}

	cmd, err := r.Get("version")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Name() != "version" {
		t.Errorf("Get returned %s", cmd.Name())
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}

	r.Register(NewVersionCommand("2"))
	if got := len(r.List()); got != 2 {
		t.Errorf("re-registering should replace, got %d commands", got)
	}
}
