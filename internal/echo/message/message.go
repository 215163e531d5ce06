package message

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	// QuitToken - ends the issuing session only.
	QuitToken = ":quit"
	// ShutdownToken - tears down the whole server.
	ShutdownToken = ":off"
	// ReplyLabel - fixed line preceding every echoed text.
	ReplyLabel = "Server response: \n"
)

// ErrInvalidText - data received is not valid UTF-8 text.
var ErrInvalidText = errors.New("message: invalid UTF-8 text")

// DecodeError - describes where decoding stopped.
type DecodeError struct {
	// Offset - index of the first byte of invalid sequence
	Offset int
	// Size - total number of bytes which were rejected
	Size int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d of %d byte(s)", ErrInvalidText, e.Offset, e.Size)
}

// Unwrap - allows errors.Is(err, ErrInvalidText).
func (e *DecodeError) Unwrap() error {
	return ErrInvalidText
}

// Decode - converts received bytes to text.
// Returns *DecodeError when p contains invalid UTF-8 sequence, the whole p should be dropped then.
func Decode(p []byte) (string, error) {
	if utf8.Valid(p) {
		return string(p), nil
	}
	return "", &DecodeError{Offset: FirstInvalid(p), Size: len(p)}
}

// FirstInvalid - returns index of the first byte which does not start valid rune,
// or -1 if p is valid UTF-8.
func FirstInvalid(p []byte) int {
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// Command - kind of received text.
type Command int

const (
	// CommandEcho - plain text, must be echoed back
	CommandEcho Command = iota
	// CommandQuit - client asks to end its session
	CommandQuit
	// CommandShutdown - client asks to stop the server
	CommandShutdown
)

func (c Command) String() string {
	switch c {
	case CommandEcho:
		return "echo"
	case CommandQuit:
		return "quit"
	case CommandShutdown:
		return "shutdown"
	default:
		return "unknown command"
	}
}

// Normalize - case-folds text and strips single trailing line terminator ("\n" or "\r\n").
func Normalize(text string) string {
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return strings.ToLower(text)
}

// Classify - recognizes commands. Normalized text must match a token exactly.
func Classify(text string) Command {
	switch Normalize(text) {
	case QuitToken:
		return CommandQuit
	case ShutdownToken:
		return CommandShutdown
	default:
		return CommandEcho
	}
}

// Greeting - the line sent to every client just after connect.
func Greeting() string {
	return fmt.Sprintf("Hello, type '%s' to end session or '%s' to stop server.\n", QuitToken, ShutdownToken)
}

// Reply - labels original text for echo. Text is not modified,
// the line terminator is appended only when text has none.
func Reply(text string) string {
	if strings.HasSuffix(text, "\n") {
		return ReplyLabel + text
	}
	return ReplyLabel + text + "\n"
}
