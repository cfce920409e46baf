// Package ipc implements the RPC service (C7): a local Unix-socket
// interface exposing fr.emersion.kanshi's two methods, Reload and
// SetProfile. No Go varlink implementation appears anywhere in the
// reference corpus, so the wire format here is newline-delimited JSON
// instead of the C daemon's varlink, in the same spirit as the
// request/response bus hyprvoice builds over a Unix socket.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// Method names at interface fr.emersion.kanshi.
const (
	MethodReload     = "Reload"
	MethodSetProfile = "SetProfile"
)

type request struct {
	Method  string `json:"method"`
	Profile string `json:"profile,omitempty"`
}

type response struct {
	Error string    `json:"error,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// Call is one decoded RPC invocation, queued for the event loop to execute
// on its own goroutine (spec §5: only the event-loop iteration touches
// engine/registry state).
type Call struct {
	Method  string
	Profile string
	done    chan error
}

// Done reports the call's outcome back to the waiting client connection.
func (c *Call) Done(err error) { c.done <- err }

// Server listens on the kanshi RPC socket and queues decoded calls onto
// Calls for the event loop to drain each iteration (spec §4.7 step 5).
type Server struct {
	ln    net.Listener
	Calls chan *Call
	log   *logrus.Entry

	mu     deadlock.Mutex
	closed bool
}

// Listen binds the RPC socket at Address(), removing a stale socket file
// left behind by a crashed daemon first.
func Listen(log *logrus.Entry) (*Server, error) {
	addr, err := Address()
	if err != nil {
		return nil, err
	}
	if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %q: %w", addr, err)
	}

	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", addr, err)
	}

	s := &Server{
		ln:    ln,
		Calls: make(chan *Call, 8),
		log:   log,
	}
	go s.acceptLoop()
	return s, nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	var req request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		writeResponse(conn, response{Error: err.Error()})
		return
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		writeResponse(conn, response{Error: "kanshi is shutting down", Kind: KindRPCTransport})
		return
	}

	call := &Call{Method: req.Method, Profile: req.Profile, done: make(chan error, 1)}
	s.Calls <- call
	err := <-call.done

	resp := response{}
	if err != nil {
		resp.Error = err.Error()
		if kind, ok := KindOf(err); ok {
			resp.Kind = kind
		} else {
			resp.Kind = KindRPCTransport
		}
	}
	writeResponse(conn, resp)
}

func writeResponse(conn net.Conn, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// Close stops accepting connections. Any connection already blocked writing
// to Calls when Close runs will still be drained by the event loop's final
// iteration; connections arriving after Close see closed and get an
// immediate error reply instead of waiting on a channel nobody reads.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.ln.Close()
}

// File returns a duplicated descriptor for the listening socket, used by
// the event loop to fold RPC readiness into its poll set. The duplicate is
// only used for readability notification; accept/read still go through
// net.Listener on the acceptLoop goroutine.
func (s *Server) File() (*os.File, error) {
	ul, ok := s.ln.(*net.UnixListener)
	if !ok {
		return nil, fmt.Errorf("ipc: listener is not a unix listener")
	}
	return ul.File()
}
