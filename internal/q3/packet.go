package q3

import (
	"golang.org/x/text/encoding/charmap"
)

// Header is the out-of-band prefix carried by every connectionless packet.
const Header = "\xFF\xFF\xFF\xFF"

// Commands understood by Quake3-family servers.
const (
	CommandStatus = "getstatus"
	CommandInfo   = "getinfo"
)

// BuildPacket returns Header followed by payload encoded one byte per character (ISO-8859-1).
// Characters outside Latin-1 cannot be represented on the wire and yield a parameter error.
func BuildPacket(payload string) ([]byte, error) {
	if payload == "" {
		return nil, newError(KindParameter, `parameter "request" is required`)
	}

	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(payload))
	if err != nil {
		return nil, wrapError(KindParameter, "payload is not representable in Latin-1", err)
	}

	packet := make([]byte, 0, len(Header)+len(encoded))
	packet = append(packet, Header...)
	packet = append(packet, encoded...)

	return packet, nil
}

// RconCommand builds the payload of an authenticated rcon command.
func RconCommand(password, command string) (string, error) {
	if password == "" {
		return "", newError(KindParameter, `parameter "password" is required`)
	}
	if command == "" {
		return "", newError(KindParameter, `parameter "command" is required`)
	}

	return "rcon " + password + " " + command, nil
}
