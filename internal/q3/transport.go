// Package q3 implements the Quake3 connectionless ("out-of-band") query protocol:
// address validation, the UDP request/response exchange and parsing of the text replies.
package q3

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exchange timing and buffer defaults.
const (
	DefaultTimeout     = 10 * time.Second
	MinTimeout         = 2 * time.Second
	DefaultQuietPeriod = 2 * time.Second
	DefaultBufferSize  = 65507
)

// noResponse is the detail of every timeout error.
const noResponse = "No response!"

// Request is a single query to send.
type Request struct {
	Target  Target
	Payload string
	Timeout time.Duration
}

// ListenFunc opens the ephemeral packet socket used by one exchange.
type ListenFunc func(ctx context.Context) (net.PacketConn, error)

// Client performs query exchanges. The zero value is ready to use with default settings.
// A Client holds no per-call state and is safe for concurrent use.
type Client struct {
	// Listen opens the socket of each exchange. Defaults to an ephemeral UDP socket.
	Listen ListenFunc

	// Resolver resolves target host names. Defaults to net.DefaultResolver.
	Resolver *net.Resolver

	// MinTimeout is the smallest accepted Request.Timeout. Defaults to MinTimeout.
	MinTimeout time.Duration

	// QuietPeriod is how long to keep collecting after the first datagram arrived.
	QuietPeriod time.Duration

	// BufferSize is the read buffer size; longer datagrams are truncated.
	BufferSize int
}

// NewClient returns a Client with the given quiet period and buffer size.
// Zero values fall back to the package defaults.
func NewClient(quietPeriod time.Duration, bufferSize int) *Client {
	return &Client{
		QuietPeriod: quietPeriod,
		BufferSize:  bufferSize,
	}
}

// Exchange sends req and returns the concatenation of every reply datagram received
// from the target. Datagrams from other sources are dropped.
//
// It waits up to req.Timeout for the first datagram. Once one arrived, it keeps
// collecting for a fixed quiet period measured from that first arrival and then
// returns whatever was received; the overall timeout no longer applies at that point.
// If nothing arrives in time a KindTimeout error is returned.
// Cancelling ctx before the first datagram is reported as a timeout; cancelling it
// during the quiet period ends collection early.
func (c *Client) Exchange(ctx context.Context, req Request) (string, error) {
	if req.Timeout == 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Timeout < c.minTimeout() {
		return "", newError(KindParameter, `parameter "timeout" must be at least `+c.minTimeout().String())
	}
	if req.Target.Host == "" || req.Target.Port == 0 {
		return "", newError(KindParameter, `parameter "server" is required`)
	}

	packet, err := BuildPacket(req.Payload)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(req.Timeout)

	addr, err := c.resolve(ctx, req.Target, deadline)
	if err != nil {
		return "", err
	}

	conn, err := c.listen(ctx)
	if err != nil {
		return "", wrapError(KindNetwork, "failed to open socket", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock pending reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := conn.WriteTo(packet, addr); err != nil {
		return "", wrapError(KindNetwork, "failed to send request", err)
	}

	logger := log.With().Str("server", req.Target.String()).Logger()
	buf := make([]byte, c.bufferSize())
	var reply strings.Builder

	// Stage A: first datagram or overall deadline.
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", wrapError(KindNetwork, "failed to set deadline", err)
	}
	if ctx.Err() != nil {
		return "", wrapError(KindTimeout, noResponse, ctx.Err())
	}

	n, err := readPeer(conn, buf, addr, logger)
	if err != nil {
		if ctx.Err() != nil {
			return "", wrapError(KindTimeout, noResponse, ctx.Err())
		}
		if isTimeout(err) {
			return "", newError(KindTimeout, noResponse)
		}
		return "", wrapError(KindNetwork, "failed to read response", err)
	}
	reply.Write(buf[:n])
	logger.Trace().Int("bytes", n).Msg("First datagram received")

	// Stage B: fixed quiet window from the first arrival.
	if err := conn.SetReadDeadline(time.Now().Add(c.quietPeriod())); err != nil {
		return reply.String(), nil
	}

	for ctx.Err() == nil {
		n, err := readPeer(conn, buf, addr, logger)
		if err != nil {
			if !isTimeout(err) && ctx.Err() == nil {
				logger.Debug().Err(err).Msg("Read failed during quiet period")
			}
			break
		}
		reply.Write(buf[:n])
		logger.Trace().Int("bytes", n).Msg("Datagram received")
	}

	return reply.String(), nil
}

func (c *Client) resolve(ctx context.Context, target Target, deadline time.Time) (net.Addr, error) {
	if ip := net.ParseIP(target.Host); ip != nil {
		return &net.UDPAddr{IP: ip, Port: target.Port}, nil
	}

	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(ctx, target.Host)
	if err != nil {
		return nil, wrapError(KindNetwork, "failed to resolve "+target.Host, err)
	}
	if len(addrs) == 0 {
		return nil, newError(KindNetwork, "no addresses for "+target.Host)
	}

	// Prefer IPv4, as the servers of this protocol family mostly listen on it only.
	best := addrs[0]
	for _, a := range addrs {
		if a.IP.To4() != nil {
			best = a
			break
		}
	}

	return &net.UDPAddr{IP: best.IP, Port: target.Port, Zone: best.Zone}, nil
}

// readPeer reads the next datagram sent by peer into buf, dropping datagrams from any other source.
// The socket read deadline bounds the whole call.
func readPeer(conn net.PacketConn, buf []byte, peer net.Addr, logger zerolog.Logger) (int, error) {
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, err
		}
		if samePeer(from, peer) {
			return n, nil
		}
		logger.Trace().Stringer("from", from).Int("bytes", n).Msg("Datagram from unexpected source dropped")
	}
}

// samePeer reports whether a and b are the same UDP endpoint. IPv4 and IPv4-mapped IPv6 forms match.
func samePeer(a, b net.Addr) bool {
	ua, ok := a.(*net.UDPAddr)
	if !ok {
		return a != nil && b != nil && a.String() == b.String()
	}
	ub, ok := b.(*net.UDPAddr)
	if !ok {
		return false
	}

	return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
}

func (c *Client) listen(ctx context.Context) (net.PacketConn, error) {
	if c.Listen != nil {
		return c.Listen(ctx)
	}

	var lc net.ListenConfig
	return lc.ListenPacket(ctx, "udp", ":0")
}

func (c *Client) minTimeout() time.Duration {
	if c.MinTimeout > 0 {
		return c.MinTimeout
	}

	return MinTimeout
}

func (c *Client) quietPeriod() time.Duration {
	if c.QuietPeriod > 0 {
		return c.QuietPeriod
	}

	return DefaultQuietPeriod
}

func (c *Client) bufferSize() int {
	if c.BufferSize > 0 {
		return c.BufferSize
	}

	return DefaultBufferSize
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
