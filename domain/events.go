package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType discriminates frames on the update stream.
type EventType string

// Stream frame types.
const (
	EventConnected        EventType = "connected"
	EventPing             EventType = "ping"
	EventTaskMoved        EventType = "task-moved"
	EventColumnsReordered EventType = "columns-reordered"
)

// Event is the closed set of frames carried by the update stream. The two
// protocol frames (Connected, Ping) carry no domain payload; the two domain
// frames identify the project they belong to and the actor that caused them.
type Event interface {
	Type() EventType
}

// Connected acknowledges a freshly opened stream before any domain events.
type Connected struct{}

// Type implements Event.
func (Connected) Type() EventType { return EventConnected }

// Ping is the periodic keep-alive frame. Clients only use it to reset their
// liveness timers.
type Ping struct{}

// Type implements Event.
func (Ping) Type() EventType { return EventPing }

// TaskMoved reports a committed task move.
type TaskMoved struct {
	TaskID         string `json:"taskId"`
	SourceColumnID string `json:"sourceColumnId"`
	TargetColumnID string `json:"targetColumnId"`
	NewPosition    int    `json:"newPosition"`
	ProjectID      string `json:"projectId"`
	ActorID        string `json:"actorId"`
}

// Type implements Event.
func (TaskMoved) Type() EventType { return EventTaskMoved }

// ColumnsReordered reports a committed column reorder.
type ColumnsReordered struct {
	ColumnID    string `json:"projectColumnId"`
	NewPosition int    `json:"newPosition"`
	ProjectID   string `json:"projectId"`
	ActorID     string `json:"actorId"`
}

// Type implements Event.
func (ColumnsReordered) Type() EventType { return EventColumnsReordered }

type connectedWire struct {
	Type EventType `json:"type"`
}

type taskMovedWire struct {
	Type EventType `json:"type"`
	TaskMoved
}

type columnsReorderedWire struct {
	Type EventType `json:"type"`
	ColumnsReordered
}

// EncodeEvent serializes an event to its wire form with the type tag.
func EncodeEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Connected:
		return sonic.Marshal(connectedWire{Type: EventConnected})
	case Ping:
		return sonic.Marshal(connectedWire{Type: EventPing})
	case TaskMoved:
		return sonic.Marshal(taskMovedWire{Type: EventTaskMoved, TaskMoved: e})
	case ColumnsReordered:
		return sonic.Marshal(columnsReorderedWire{Type: EventColumnsReordered, ColumnsReordered: e})
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
}

// DecodeEvent parses a wire frame back into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var tag struct {
		Type EventType `json:"type"`
	}
	if err := sonic.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case EventConnected:
		return Connected{}, nil
	case EventPing:
		return Ping{}, nil
	case EventTaskMoved:
		var ev TaskMoved
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventColumnsReordered:
		var ev ColumnsReordered
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", tag.Type)
	}
}
