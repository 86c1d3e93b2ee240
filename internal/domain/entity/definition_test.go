package entity

import "testing"

func TestInitialStateIsFirstDeclared(t *testing.T) {
	def := &WorkflowDefinition{
		Code: "test.flow",
		States: []State{
			{Key: "draft"},
			{Key: "done", Final: true},
		},
	}
	if got := def.InitialState(); got == nil || got.Key != "draft" {
		t.Errorf("InitialState() = %v, want draft", got)
	}

	empty := &WorkflowDefinition{Code: "empty"}
	if got := empty.InitialState(); got != nil {
		t.Errorf("InitialState() on empty graph = %v, want nil", got)
	}
}

func TestStateAndActionLookup(t *testing.T) {
	def := &WorkflowDefinition{
		Code: "test.flow",
		States: []State{
			{
				Key: "draft",
				Actions: []Action{
					{Key: "submit", To: "done"},
				},
			},
			{Key: "done", Final: true},
		},
	}

	state := def.StateByKey("draft")
	if state == nil {
		t.Fatal("StateByKey(draft) = nil")
	}
	if def.StateByKey("missing") != nil {
		t.Error("StateByKey(missing) should be nil")
	}
	if state.ActionByKey("submit") == nil {
		t.Error("ActionByKey(submit) = nil")
	}
	if state.ActionByKey("missing") != nil {
		t.Error("ActionByKey(missing) should be nil")
	}
}

func TestInstanceSnapshot(t *testing.T) {
	instance := &WorkflowInstance{
		Context: `{"approvers":{"shareholder":[{"ref":"SH-001","weight":60},{"ref":"SH-002","weight":40}]},"fields":{"new_name":"Acme GmbH"}}`,
	}
	snap, err := instance.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Approvers["shareholder"]) != 2 {
		t.Errorf("got %d shareholders, want 2", len(snap.Approvers["shareholder"]))
	}
	if snap.Approvers["shareholder"][0].Weight != 60 {
		t.Errorf("first shareholder weight = %d, want 60", snap.Approvers["shareholder"][0].Weight)
	}
	if snap.Fields["new_name"] != "Acme GmbH" {
		t.Errorf("fields not decoded: %v", snap.Fields)
	}
}

func TestInstanceSnapshotEmptyContext(t *testing.T) {
	instance := &WorkflowInstance{}
	snap, err := instance.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap == nil || len(snap.Approvers) != 0 {
		t.Errorf("empty context should yield an empty snapshot, got %v", snap)
	}
}

func TestInstanceSnapshotMalformedContext(t *testing.T) {
	instance := &WorkflowInstance{Context: "{not json"}
	if _, err := instance.Snapshot(); err == nil {
		t.Error("Snapshot() should fail on malformed context")
	}
}
