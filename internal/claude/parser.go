package claude

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Parser parses the CLI's stream-JSON output format.
type Parser struct {
	scanner *bufio.Scanner
}

// NewParser creates a new stream-JSON parser.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	// Lines can carry whole responses
	const maxScannerBuffer = 10 * 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxScannerBuffer)

	return &Parser{
		scanner: scanner,
	}
}

// Next returns the next event from the stream.
// Returns io.EOF when the stream is exhausted.
func (p *Parser) Next() (*StreamEvent, error) {
	for p.scanner.Scan() {
		line := p.scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		return parseLine(line)
	}
	if err := p.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return nil, io.EOF
}

// parseLine parses a single JSON line into a StreamEvent.
func parseLine(line []byte) (*StreamEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	event := &StreamEvent{
		Raw: append([]byte(nil), line...),
	}

	switch {
	case raw.Message != nil:
		event.Type = EventMessage
		event.Message = messageContent(raw.Message)

	case raw.Type == "init":
		event.Type = EventInit
		event.Init = &InitContent{SessionID: raw.SessionID, Model: raw.Model}

	case raw.Type == "result":
		event.Type = EventResult
		cost := raw.TotalCostUSD
		if cost == 0 {
			cost = raw.CostUSD
		}
		usage := Usage{}
		if raw.Usage != nil {
			usage = *raw.Usage
		}
		event.Result = &ResultContent{
			SessionID:  raw.SessionID,
			CostUSD:    cost,
			DurationMS: raw.DurationMS,
			IsError:    raw.IsError,
			Usage:      usage,
			Result:     raw.Result,
		}

	case raw.Type == "error" || raw.Error != nil:
		event.Type = EventError
		event.Error = raw.Error
		if event.Error == nil {
			event.Error = &ErrorContent{Message: "unknown error"}
		}

	case raw.Type == "system":
		// The CLI reports its init handshake as a system event.
		event.Type = EventSystem
		event.System = &SystemContent{SubType: raw.SubType, Model: raw.Model}

	default:
		event.Type = EventType(raw.Type)
		if event.Type == "" {
			event.Type = "unknown"
		}
	}

	return event, nil
}

func messageContent(msg *rawMessage) *MessageContent {
	var parts []string
	for _, c := range msg.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return &MessageContent{
		ID:         msg.ID,
		Role:       msg.Role,
		Model:      msg.Model,
		Text:       strings.Join(parts, "\n"),
		StopReason: msg.StopReason,
		Usage:      msg.Usage,
	}
}
