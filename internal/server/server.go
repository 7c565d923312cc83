// Package server implements the TCP control server: a single-session
// accept loop, the per-connection command dispatcher, and the handlers
// binding the wire protocol to the scene adapter, streaming pipeline,
// and script runner.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shycats/vcam/internal/announce"
	"github.com/shycats/vcam/internal/events"
	"github.com/shycats/vcam/internal/logging"
	"github.com/shycats/vcam/internal/scene"
	"github.com/shycats/vcam/internal/scripts"
	"github.com/shycats/vcam/internal/streaming"
	"github.com/shycats/vcam/internal/version"
)

// DefaultPort is the port the client app dials when none is configured.
const DefaultPort = 23354

// maxQRAddresses caps how many local addresses the connection QR payload
// carries.
const maxQRAddresses = 10

// Options configures a Server.
type Options struct {
	// Port to bind. Zero means DefaultPort.
	Port int
	// Platform names the host application (e.g. "Maya", "Standalone"),
	// published in the server info reply and the service announcement.
	Platform string
	// FFmpegBin is the encoder binary, "ffmpeg" when empty.
	FFmpegBin string
	// Announce enables the zeroconf announcement loop.
	Announce bool

	// Adapter is the host scene. It is wrapped with scene.Serialize; pass
	// the raw host adapter.
	Adapter scene.Adapter
	// HostInvoke runs a function on the host's scene/UI thread. Nil means
	// calls run directly (standalone mode, tests).
	HostInvoke scene.InvokeFunc
	// Scripts executes client-triggered custom scripts.
	Scripts *scripts.Runner
	// Bus publishes connect/disconnect/streaming events.
	Bus *events.Bus
}

// Server owns the listener and at most one client session at a time.
// Extra connection attempts while a session is active are dropped.
type Server struct {
	opts     Options
	adapter  scene.Adapter
	pipeline *streaming.Pipeline
	scripts  *scripts.Runner
	bus      *events.Bus
	logger   *slog.Logger

	protocolVersion [3]uint16
	hostname        string

	mu         sync.Mutex
	listener   net.Listener
	announcer  *announce.Announcer
	activeConn net.Conn
	serving    bool
	current    string
	wg         sync.WaitGroup

	connected atomic.Bool
}

// New creates a stopped server. The adapter is serialized through
// opts.HostInvoke so handlers and the autosend loop never touch the
// scene concurrently.
func New(opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Bus == nil {
		opts.Bus = events.New()
	}

	adapter := scene.Serialize(opts.Adapter, scene.NewExecutor(opts.HostInvoke))
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "vcam"
	}

	srv := &Server{
		opts:            opts,
		adapter:         adapter,
		scripts:         opts.Scripts,
		bus:             opts.Bus,
		logger:          logging.GetLogger("server"),
		protocolVersion: version.Protocol(),
		hostname:        hostname,
	}
	srv.pipeline = streaming.NewPipeline(adapter, opts.Bus,
		logging.GetLogger("streaming"), logging.GetLogger("ffmpeg"))
	return srv
}

// Start binds the listener and begins accepting. The announcement loop
// starts alongside and runs until the first client connects.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.serving {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.opts.Port, err)
	}
	s.listener = listener
	s.serving = true

	if s.opts.Announce {
		v := s.protocolVersion
		s.announcer = announce.New(s.opts.Platform,
			fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2]),
			s.opts.Port, logging.GetLogger("announce"))
		s.announcer.Start()
	}

	s.logger.Info("listening", "port", s.opts.Port, "platform", s.opts.Platform, "announce", s.opts.Announce)

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Stop closes the listener (unblocking Accept), drops the active session,
// withdraws the announcement, and tears down any streaming pipeline.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.serving {
		s.mu.Unlock()
		return
	}
	s.serving = false
	s.listener.Close()
	if s.announcer != nil {
		s.announcer.Stop()
		s.announcer = nil
	}
	if s.activeConn != nil {
		s.activeConn.Close()
	}
	s.mu.Unlock()

	s.pipeline.Stop("server stopped")
	s.wg.Wait()
	s.logger.Info("stopped")
}

// acceptLoop serves one session at a time. After a session ends the
// listener goes straight back to accepting; the announcement does not
// resume within this serving run.
func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isServing() {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		if !s.connected.CompareAndSwap(false, true) {
			s.logger.Warn("rejecting connection, session already active", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}

		s.serveSession(conn)
	}
}

func (s *Server) serveSession(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Info("client connected", "remote", remote)

	s.mu.Lock()
	s.activeConn = conn
	if s.announcer != nil {
		// Withdrawn permanently: announcing only restarts on the next
		// stopped-to-listening transition.
		s.announcer.Stop()
		s.announcer = nil
	}
	s.mu.Unlock()

	s.bus.Publish(events.ClientConnectedEvent{RemoteAddr: remote})

	sess := newSession(conn, s.logger)
	h := newConnHandler(s, sess, s.logger)
	if err := h.commandLoop(); err != nil {
		s.logger.Warn("session ended", "remote", remote, "error", err)
	}

	s.pipeline.Stop("session ended")
	conn.Close()

	s.mu.Lock()
	s.activeConn = nil
	s.current = ""
	s.mu.Unlock()
	s.connected.Store(false)

	s.bus.Publish(events.ClientDisconnectedEvent{RemoteAddr: remote})
	s.logger.Info("client disconnected", "remote", remote)
}

func (s *Server) isServing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

func (s *Server) setCurrentCamera(name string) {
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
}

// serverInfoName is the platform string in the server info reply.
func (s *Server) serverInfoName() string {
	return s.opts.Platform + "_" + s.hostname
}

// Serving reports whether the listener is up.
func (s *Server) Serving() bool { return s.isServing() }

// Connected reports whether a client session is active.
func (s *Server) Connected() bool { return s.connected.Load() }

// Streaming reports whether the encoder pipeline is running.
func (s *Server) Streaming() bool { return s.pipeline.Active() }

// CurrentCamera returns the camera selected by the connected client, or
// "" when none is selected.
func (s *Server) CurrentCamera() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Port returns the configured listen port.
func (s *Server) Port() int { return s.opts.Port }

// QRString builds the connection payload hosts render as a QR code:
// the port followed by up to ten reachable IPv4 addresses, underscore
// separated.
func (s *Server) QRString() string {
	ips := announce.LocalIPv4s()
	if len(ips) > maxQRAddresses {
		ips = ips[:maxQRAddresses]
	}
	parts := append([]string{strconv.Itoa(s.opts.Port)}, ips...)
	return strings.Join(parts, "_")
}
