package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sharefold/sharefold/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog   EventType = "log"
	EventError EventType = "error"

	// Observer notifications for presentation layers
	EventFileListChanged    EventType = "file_list_changed"   // items or browse mode replaced
	EventPathChanged        EventType = "path_changed"        // navigation path changed
	EventUploadState        EventType = "upload_state"        // upload FSM transition
	EventUploadProgress     EventType = "upload_progress"     // percentage advanced
	EventVersionsChanged    EventType = "versions_changed"    // version list opened or closed
	EventSessionInvalidated EventType = "session_invalidated" // all local state discarded
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Component string
	Error     error
}

// ErrorEvent is published once per surfaced failure.
type ErrorEvent struct {
	BaseEvent
	Operation string // "list", "search", "versions", "upload", "download", ...
	Kind      string // failure class, see browser.FailureKind
	Error     error
}

// FileListChangedEvent carries a snapshot summary of the listing.
type FileListChangedEvent struct {
	BaseEvent
	Mode      string // "root", "folder", "search"
	FolderID  string
	Query     string
	ItemCount int
	SortBy    string
	SortOrder string
}

// PathChangedEvent carries the breadcrumb after a navigation step.
type PathChangedEvent struct {
	BaseEvent
	FolderIDs   []string
	FolderNames []string
}

// UploadStateEvent reports an upload FSM transition.
type UploadStateEvent struct {
	BaseEvent
	FileName string
	FolderID string
	State    string // "idle", "in-flight", "succeeded", "failed"
	Percent  int
	Error    error
}

// UploadProgressEvent reports a new, strictly higher percentage.
type UploadProgressEvent struct {
	BaseEvent
	FileName   string
	Percent    int
	BytesSent  int64
	BytesTotal int64
}

// VersionsChangedEvent is published when the version viewer opens or closes.
type VersionsChangedEvent struct {
	BaseEvent
	FolderID string
	FileName string
	Count    int
	Open     bool
}

// SessionInvalidatedEvent is published when the server rejects the bearer credential.
type SessionInvalidatedEvent struct {
	BaseEvent
	Username string
	Reason   string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events that do
// not fit a subscriber's buffer are dropped and counted.
// A nil bus is valid and discards everything.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, component string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: newBase(EventLog),
		Level:     level,
		Message:   message,
		Component: component,
		Error:     err,
	})
}

// PublishError is a convenience method for publishing a surfaced failure
func (eb *EventBus) PublishError(operation, kind string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: newBase(EventError),
		Operation: operation,
		Kind:      kind,
		Error:     err,
	})
}

// PublishFileList is a convenience method for publishing a listing change
func (eb *EventBus) PublishFileList(mode, folderID, query string, count int, sortBy, sortOrder string) {
	eb.Publish(&FileListChangedEvent{
		BaseEvent: newBase(EventFileListChanged),
		Mode:      mode,
		FolderID:  folderID,
		Query:     query,
		ItemCount: count,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	})
}

// PublishPath is a convenience method for publishing a breadcrumb change
func (eb *EventBus) PublishPath(ids, names []string) {
	eb.Publish(&PathChangedEvent{
		BaseEvent:   newBase(EventPathChanged),
		FolderIDs:   ids,
		FolderNames: names,
	})
}

// PublishUploadState is a convenience method for publishing an upload FSM transition
func (eb *EventBus) PublishUploadState(fileName, folderID, state string, percent int, err error) {
	eb.Publish(&UploadStateEvent{
		BaseEvent: newBase(EventUploadState),
		FileName:  fileName,
		FolderID:  folderID,
		State:     state,
		Percent:   percent,
		Error:     err,
	})
}

// PublishUploadProgress is a convenience method for publishing upload progress
func (eb *EventBus) PublishUploadProgress(fileName string, percent int, sent, total int64) {
	eb.Publish(&UploadProgressEvent{
		BaseEvent:  newBase(EventUploadProgress),
		FileName:   fileName,
		Percent:    percent,
		BytesSent:  sent,
		BytesTotal: total,
	})
}

// PublishVersions is a convenience method for publishing a version viewer change
func (eb *EventBus) PublishVersions(folderID, fileName string, count int, open bool) {
	eb.Publish(&VersionsChangedEvent{
		BaseEvent: newBase(EventVersionsChanged),
		FolderID:  folderID,
		FileName:  fileName,
		Count:     count,
		Open:      open,
	})
}

// PublishSessionInvalidated is a convenience method for publishing a session teardown
func (eb *EventBus) PublishSessionInvalidated(username, reason string) {
	eb.Publish(&SessionInvalidatedEvent{
		BaseEvent: newBase(EventSessionInvalidated),
		Username:  username,
		Reason:    reason,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			close(subCh)
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
