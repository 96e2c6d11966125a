package domain

import (
	"strings"
	"testing"
)

func TestEncodeEventCarriesTypeTag(t *testing.T) {
	data, err := EncodeEvent(TaskMoved{TaskID: "t1", SourceColumnID: "a", TargetColumnID: "b", NewPosition: 2, ProjectID: "p1", ActorID: "u1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"type":"task-moved"`) {
		t.Fatalf("missing type tag: %s", data)
	}
	if !strings.Contains(string(data), `"newPosition":2`) {
		t.Fatalf("missing payload: %s", data)
	}
}

func TestDecodeEventRoundTrip(t *testing.T) {
	for _, ev := range []Event{
		Connected{},
		Ping{},
		TaskMoved{TaskID: "t1", SourceColumnID: "a", TargetColumnID: "b", NewPosition: 1, ProjectID: "p1", ActorID: "u1"},
		ColumnsReordered{ColumnID: "c1", NewPosition: 0, ProjectID: "p1", ActorID: "u1"},
	} {
		data, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("encode %T: %v", ev, err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode %T: %v", ev, err)
		}
		if decoded != ev {
			t.Fatalf("round trip mismatch: %#v != %#v", decoded, ev)
		}
	}
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"board-exploded"}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
