// Package q3test provides a loopback Quake3 query responder for tests,
// in the spirit of net/http/httptest.
package q3test

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/woozymasta/q3query/internal/q3"
)

// Reply is one datagram sent back by the Server, Delay after the request arrived.
type Reply struct {
	Data  []byte
	Delay time.Duration
}

// Handler returns the datagrams to answer a request with.
// payload is the received packet without the out-of-band header.
type Handler func(payload string) []Reply

// Server is a UDP responder listening on 127.0.0.1.
type Server struct {
	conn     net.PacketConn
	handler  Handler
	done     chan struct{}
	requests [][]byte
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewServer starts a responder answering every request with handler.
// A nil handler never answers. It panics if the socket cannot be opened.
func NewServer(handler Handler) *Server {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		panic("q3test: failed to listen: " + err.Error())
	}

	s := &Server{
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s
}

// Static answers every request with the same replies.
func Static(replies ...Reply) Handler {
	return func(string) []Reply { return replies }
}

// Fragments splits data into n datagrams, the i-th one sent i*gap after the request.
func Fragments(data string, n int, gap time.Duration) []Reply {
	if n < 1 {
		n = 1
	}

	size := (len(data) + n - 1) / n
	replies := make([]Reply, 0, n)
	for i := 0; i < n && i*size < len(data); i++ {
		end := min((i+1)*size, len(data))
		replies = append(replies, Reply{Data: []byte(data[i*size : end]), Delay: time.Duration(i) * gap})
	}

	return replies
}

// Addr returns the "host:port" the server listens on.
func (s *Server) Addr() string {
	return s.conn.LocalAddr().String()
}

// Target returns the listening address as a query target.
func (s *Server) Target() q3.Target {
	addr := s.conn.LocalAddr().(*net.UDPAddr)
	return q3.Target{Host: addr.IP.String(), Port: addr.Port}
}

// Requests returns a copy of every packet received so far, header included.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.requests))
	copy(out, s.requests)

	return out
}

// Close stops the server and waits for pending replies to finish.
func (s *Server) Close() {
	close(s.done)
	_ = s.conn.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		packet := bytes.Clone(buf[:n])
		s.mu.Lock()
		s.requests = append(s.requests, packet)
		s.mu.Unlock()

		if s.handler == nil {
			continue
		}

		payload := string(bytes.TrimPrefix(packet, []byte(q3.Header)))
		for _, r := range s.handler(payload) {
			s.wg.Add(1)
			go s.reply(r, from)
		}
	}
}

func (s *Server) reply(r Reply, to net.Addr) {
	defer s.wg.Done()

	timer := time.NewTimer(r.Delay)
	defer timer.Stop()

	select {
	case <-s.done:
		return
	case <-timer.C:
		_, _ = s.conn.WriteTo(r.Data, to)
	}
}
