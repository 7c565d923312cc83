package server

import (
	"encoding/binary"
	"log/slog"
	"net"
	"sync"

	"github.com/shycats/vcam/internal/protocol"
)

// session wraps the client socket. Reads happen only on the command-loop
// goroutine; writes are guarded by a mutex so an autosend-path error
// notification can never interleave with a handler reply.
type session struct {
	conn    net.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

func newSession(conn net.Conn, logger *slog.Logger) *session {
	return &session{conn: conn, logger: logger}
}

func (s *session) remoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// readOpcode blocks until the next command byte or EOF. No read timeout:
// the client may idle indefinitely between commands.
func (s *session) readOpcode() (protocol.Opcode, error) {
	var b [1]byte
	if _, err := s.conn.Read(b[:]); err != nil {
		return 0, err
	}
	return protocol.Opcode(b[0]), nil
}

// readPayload reads exactly n bytes. A short read is a dead connection.
func (s *session) readPayload(n int) ([]byte, error) {
	return protocol.ReadExact(s.conn, n)
}

// send writes the opcode followed by the given payload chunks as one
// locked sequence.
func (s *session) send(op protocol.Opcode, payload ...[]byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	buf := make([]byte, 1, 1+payloadLen(payload))
	buf[0] = byte(op)
	for _, p := range payload {
		buf = append(buf, p...)
	}
	_, err := s.conn.Write(buf)
	return err
}

// sendWithLen writes the opcode, a uint32 little-endian payload length,
// then the payload. Used for variable-length ASK replies.
func (s *session) sendWithLen(op protocol.Opcode, payload []byte) error {
	prefix := binary.LittleEndian.AppendUint32(nil, uint32(len(payload)))
	return s.send(op, prefix, payload)
}

func payloadLen(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
