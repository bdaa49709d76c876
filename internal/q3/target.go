package q3

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// Port bounds accepted by Resolve.
const (
	MinPort = 1
	MaxPort = 65534
)

const formatHint = `required format "server_ipv4_or_domainname:port", e.g. 242.9.9.9:29071 or server.com:30001`

const portHint = "port must be a number in range [1-65534]"

// Target is a validated query destination.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String returns the target in "host:port" form.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Resolve splits a "host:port" string into a Target.
// The host is passed through as is; name resolution is left to the transport.
func Resolve(server string) (Target, error) {
	if server == "" {
		return Target{}, newError(KindParameter, `parameter "server" is required`)
	}

	if strings.Count(server, ":") != 1 {
		return Target{}, newError(KindFormat, formatHint)
	}

	host, portStr, _ := strings.Cut(server, ":")
	if host == "" {
		return Target{}, newError(KindFormat, formatHint)
	}

	port, err := strconv.Atoi(portStr)
	if errors.Is(err, strconv.ErrRange) {
		return Target{}, newError(KindRange, portHint)
	}
	if err != nil {
		return Target{}, wrapError(KindFormat, formatHint, err)
	}

	if port < MinPort || port > MaxPort {
		return Target{}, newError(KindRange, portHint)
	}

	return Target{Host: host, Port: port}, nil
}
