package bridge

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/security"
)

const dialTimeout = 5 * time.Second

// Sockets holds the local socket connections one plugin opened. Handles are
// indexes into the table and are never reused.
type Sockets struct {
	mu     sync.Mutex
	conns  []net.Conn
	grants *security.Grants
	log    zerolog.Logger
}

// NewSockets creates an empty handle table restricted to grants.
func NewSockets(grants *security.Grants, log zerolog.Logger) *Sockets {
	return &Sockets{grants: grants, log: log}
}

// OpenClientFD connects to the first permitted candidate for path and
// returns its handle, or -1.
func (s *Sockets) OpenClientFD(path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conns) >= security.MaxSocketHandles {
		s.log.Error().Int("open", len(s.conns)).Msg("cannot open more sockets")
		return -1
	}
	if s.grants == nil {
		s.log.Error().Str("path", path).Msg("not enough permissions to access socket")
		return -1
	}

	for _, real := range s.grants.SocketCandidates(path) {
		if _, err := os.Stat(real); err != nil {
			s.log.Debug().Str("path", real).Msg("mapped socket path does not exist")
			continue
		}
		conn, err := net.DialTimeout("unix", real, dialTimeout)
		if err != nil {
			s.log.Debug().Err(err).Str("path", real).Msg("failed to connect")
			continue
		}
		s.conns = append(s.conns, conn)
		return int64(len(s.conns) - 1)
	}

	s.log.Error().Str("path", path).Msg("socket path not in allowed paths")
	return -1
}

// WriteSock writes data in full to the socket at handle.
//
// It returns -1 whether or not the write succeeded; plugins cannot rely on
// the result. This is likely unintended but existing plugins expect it.
func (s *Sockets) WriteSock(handle int64, data []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.conn(handle)
	if conn == nil {
		s.log.Error().Int64("handle", handle).Msg("invalid socket handle")
		return -1
	}
	if _, err := conn.Write(data); err != nil {
		s.log.Error().Err(err).Int64("handle", handle).Msg("failed to write to socket")
	}
	return -1
}

// ReadSock performs one read of at most maxLen bytes, capped at 1024.
//
// A read that fills the whole 1024 byte buffer is discarded and reported as
// empty. This is likely unintended but existing plugins expect it.
func (s *Sockets) ReadSock(handle int64, maxLen uint64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.conn(handle)
	if conn == nil {
		s.log.Error().Int64("handle", handle).Msg("invalid socket handle")
		return []byte{}
	}

	buf := make([]byte, security.ClampReadLen(maxLen))
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		s.log.Error().Err(err).Int64("handle", handle).Msg("failed to read from socket")
		return []byte{}
	}
	if n >= security.MaxReadLen {
		s.log.Error().Int("read", n).Msg("read out of bounds")
		return []byte{}
	}
	return buf[:n]
}

// Len returns the number of open handles.
func (s *Sockets) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close closes every open connection.
func (s *Sockets) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, c := range s.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.conns = nil
	return first
}

func (s *Sockets) conn(handle int64) net.Conn {
	if handle < 0 || handle >= int64(len(s.conns)) {
		return nil
	}
	return s.conns[handle]
}
