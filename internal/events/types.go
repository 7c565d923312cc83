package events

// Event type constants for kelindar/event.
const (
	TypeClientConnected uint32 = iota + 1
	TypeClientDisconnected
	TypeStreamingStarted
	TypeStreamingStopped
	TypeScriptsReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ClientConnectedEvent is published when a remote client connects. The
// announcer withdraws its service record on this event.
type ClientConnectedEvent struct {
	RemoteAddr string
}

// Type returns the event type identifier for ClientConnectedEvent.
func (e ClientConnectedEvent) Type() uint32 { return TypeClientConnected }

// ClientDisconnectedEvent is published when the active session ends, for
// any reason (clean EOF, transport error, server shutdown).
type ClientDisconnectedEvent struct {
	RemoteAddr string
}

// Type returns the event type identifier for ClientDisconnectedEvent.
func (e ClientDisconnectedEvent) Type() uint32 { return TypeClientDisconnected }

// StreamingStartedEvent is published when the encoder pipeline comes up.
type StreamingStartedEvent struct {
	FPS      float32
	Bitrate  float32
	Autosend bool
	Width    int
	Height   int
}

// Type returns the event type identifier for StreamingStartedEvent.
func (e StreamingStartedEvent) Type() uint32 { return TypeStreamingStarted }

// StreamingStoppedEvent is published when the encoder pipeline is torn
// down, whether by request, disconnect, or encoder failure.
type StreamingStoppedEvent struct {
	Reason string
}

// Type returns the event type identifier for StreamingStoppedEvent.
func (e StreamingStoppedEvent) Type() uint32 { return TypeStreamingStopped }

// ScriptsReloadedEvent is published after the scripts config file changes
// on disk and the registry has been replaced.
type ScriptsReloadedEvent struct {
	Labels []string
}

// Type returns the event type identifier for ScriptsReloadedEvent.
func (e ScriptsReloadedEvent) Type() uint32 { return TypeScriptsReloaded }
