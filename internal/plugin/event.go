package plugin

import (
	glua "github.com/yuin/gopher-lua"
)

// EventKind enumerates the lifecycle and record events the host
// dispatches to extensions.
type EventKind int

const (
	// EventStartup fires once when the application is up.
	EventStartup EventKind = iota
	// EventShutdown fires once before the application exits.
	EventShutdown
	// EventRecordCreated fires after a record is committed.
	EventRecordCreated
	// EventRecordUpdated fires after a record change is committed.
	EventRecordUpdated
	// EventRecordDeleted fires after a record removal is committed.
	EventRecordDeleted
)

// String returns the event kind's name.
func (k EventKind) String() string {
	switch k {
	case EventStartup:
		return "startup"
	case EventShutdown:
		return "shutdown"
	case EventRecordCreated:
		return "record_created"
	case EventRecordUpdated:
		return "record_updated"
	case EventRecordDeleted:
		return "record_deleted"
	default:
		return "unknown"
	}
}

// Event is a typed notification headed for extension hooks. Record
// events carry either the record's JSON snapshot or its id.
type Event struct {
	Kind     EventKind
	Payload  []byte
	RecordID string
}

// StartupEvent builds the application-started event.
func StartupEvent() Event {
	return Event{Kind: EventStartup}
}

// ShutdownEvent builds the application-closing event.
func ShutdownEvent() Event {
	return Event{Kind: EventShutdown}
}

// RecordCreated builds a creation event carrying the record snapshot.
func RecordCreated(payload []byte) Event {
	return Event{Kind: EventRecordCreated, Payload: payload}
}

// RecordUpdated builds an update event carrying the record snapshot.
func RecordUpdated(payload []byte) Event {
	return Event{Kind: EventRecordUpdated, Payload: payload}
}

// RecordDeleted builds a deletion event carrying only the record id.
func RecordDeleted(recordID string) Event {
	return Event{Kind: EventRecordDeleted, RecordID: recordID}
}

// Hook returns the extension hook this event maps to.
func (e Event) Hook() string {
	switch e.Kind {
	case EventStartup:
		return HookAppStarted
	case EventShutdown:
		return HookAppClosing
	case EventRecordCreated:
		return HookAssetCreated
	case EventRecordUpdated:
		return HookAssetUpdated
	case EventRecordDeleted:
		return HookAssetDeleted
	default:
		return ""
	}
}

// hookArgs returns the Lua arguments the mapped hook receives.
func (e Event) hookArgs() []glua.LValue {
	switch e.Kind {
	case EventRecordCreated, EventRecordUpdated:
		return []glua.LValue{glua.LString(e.Payload)}
	case EventRecordDeleted:
		return []glua.LValue{glua.LString(e.RecordID)}
	default:
		return nil
	}
}
