package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/minikv/pkg/frame"
)

// ErrUnsupported is returned for well-formed requests naming a command
// this server does not implement.
var ErrUnsupported = errors.New("unsupported command")

// Command is a decoded request.
type Command interface {
	// Name returns the canonical upper-case command name.
	Name() string
	// Frame returns the request frame that encodes the command.
	Frame() frame.Frame
}

// Get reads the value stored under Key.
type Get struct {
	Key string
}

// Set stores Value under Key.
type Set struct {
	Key   string
	Value []byte
}

func (Get) Name() string { return "GET" }

func (Set) Name() string { return "SET" }

func (g Get) Frame() frame.Frame {
	return frame.Array{frame.BulkString("GET"), frame.BulkString(g.Key)}
}

func (s Set) Frame() frame.Frame {
	return frame.Array{frame.BulkString("SET"), frame.BulkString(s.Key), frame.Bulk(s.Value)}
}

// FromFrame decodes a request frame into a Command.
func FromFrame(f frame.Frame) (Command, error) {
	arr, ok := f.(frame.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected array frame, got %T", frame.ErrProtocol, f)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: empty command", frame.ErrProtocol)
	}

	args := make([][]byte, len(arr))
	for i, elem := range arr {
		b, err := argBytes(elem)
		if err != nil {
			return nil, err
		}
		args[i] = b
	}

	name := normalizeCommandName(args[0])
	switch name {
	case "GET":
		if len(args) != 2 {
			return nil, arityError(name)
		}
		return Get{Key: string(args[1])}, nil
	case "SET":
		if len(args) != 3 {
			return nil, arityError(name)
		}
		return Set{Key: string(args[1]), Value: args[2]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}

func argBytes(f frame.Frame) ([]byte, error) {
	switch v := f.(type) {
	case frame.Bulk:
		return []byte(v), nil
	case frame.Simple:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: expected bulk or simple string argument, got %T", frame.ErrProtocol, f)
	}
}

func arityError(name string) error {
	return fmt.Errorf("%w: wrong number of arguments for '%s' command", frame.ErrProtocol, strings.ToLower(name))
}

func normalizeCommandName(b []byte) string {
	// Uppercase ASCII without allocating a second string for already uppercased tokens.
	for _, ch := range b {
		if ch >= 'a' && ch <= 'z' {
			return strings.ToUpper(string(b))
		}
	}
	return string(b)
}
