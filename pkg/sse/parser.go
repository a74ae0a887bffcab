package sse

import (
	"strings"
)

// Frame represents a single decoded server-sent event
type Frame struct {
	Event string
	Data  string
	ID    string
}

// DefaultEvent is the event name assigned to frames without an event line
const DefaultEvent = "message"

// Parser decodes server-sent-event frames from an incrementally delivered
// byte stream. Feed may be called with chunks split at arbitrary boundaries,
// including mid-line or mid-rune; any trailing partial frame is carried over
// to the next call.
type Parser struct {
	carry strings.Builder
}

// NewParser creates a new parser with empty carry-over state
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one chunk and returns every complete frame it finishes.
// A frame is complete once its terminating blank line has been seen.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.carry.Write(chunk)

	buffered := p.carry.String()
	var frames []Frame

	for {
		idx, width := frameDelimiter(buffered)
		if idx < 0 {
			break
		}

		block := buffered[:idx]
		buffered = buffered[idx+width:]

		if frame, ok := parseBlock(block); ok {
			frames = append(frames, frame)
		}
	}

	p.carry.Reset()
	p.carry.WriteString(buffered)

	return frames
}

// Flush parses any buffered partial frame at end of stream. It returns
// false when the remainder is blank or carries no data lines.
func (p *Parser) Flush() (Frame, bool) {
	remainder := p.carry.String()
	p.carry.Reset()

	if strings.TrimSpace(remainder) == "" {
		return Frame{}, false
	}

	return parseBlock(remainder)
}

// frameDelimiter finds the earliest blank line terminating a frame,
// returning its index and width. Streams may use LF or CRLF line endings.
func frameDelimiter(s string) (int, int) {
	lf := strings.Index(s, "\n\n")
	crlf := strings.Index(s, "\r\n\r\n")

	switch {
	case lf < 0:
		return crlf, 4
	case crlf < 0:
		return lf, 2
	case crlf < lf:
		return crlf, 4
	default:
		return lf, 2
	}
}

// parseBlock decodes one frame's worth of lines. Frames without any data
// line are dropped.
func parseBlock(block string) (Frame, bool) {
	frame := Frame{Event: DefaultEvent}

	var dataLines []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			// Blank line inside a block carries no information
		case strings.HasPrefix(line, ":"):
			// Comment line, ignored
		case strings.HasPrefix(line, "event:"):
			frame.Event = stripField(line, "event:")
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, stripField(line, "data:"))
		case strings.HasPrefix(line, "id:"):
			frame.ID = stripField(line, "id:")
		}
	}

	if len(dataLines) == 0 {
		return Frame{}, false
	}

	frame.Data = strings.Join(dataLines, "\n")
	return frame, true
}

// stripField removes the field prefix and the single optional space that
// follows the colon.
func stripField(line, prefix string) string {
	value := strings.TrimPrefix(line, prefix)
	return strings.TrimPrefix(value, " ")
}
