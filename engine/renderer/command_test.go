package renderer

import "testing"

func TestCommandListStateMachine(t *testing.T) {
	cl := NewCommandList()

	// Recording outside Begin/End is refused.
	if err := cl.EndPass(); err == nil {
		t.Error("command recorded before Begin")
	}
	if err := cl.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cl.Begin(); err == nil {
		t.Error("double Begin accepted")
	}
	if err := cl.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := cl.End(); err != nil {
		t.Fatal(err)
	}
	if err := cl.End(); err == nil {
		t.Error("double End accepted")
	}
	if err := cl.EndPass(); err == nil {
		t.Error("command recorded after End")
	}
	if len(cl.Commands) != 1 {
		t.Fatalf("recorded %d commands, want 1", len(cl.Commands))
	}

	// Reset returns the list to a recordable state and discards commands.
	cl.UpdateSubmitted()
	cl.Reset()
	if cl.State != COMMAND_LIST_STATE_READY || len(cl.Commands) != 0 {
		t.Errorf("after reset: state %d, %d commands", cl.State, len(cl.Commands))
	}
	if err := cl.Begin(); err != nil {
		t.Errorf("begin after reset: %v", err)
	}
}
