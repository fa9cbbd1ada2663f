package llm

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// StreamParser turns an arbitrarily chunked server-sent-event byte stream
// into the ordered sequence of incremental text tokens it carries. The
// only state is the pending partial line held back between chunks, which
// makes the output independent of where the network happened to split the
// stream.
type StreamParser struct {
	pending string
	emitted int
	logger  *logrus.Logger
}

func NewStreamParser(logger *logrus.Logger) *StreamParser {
	return &StreamParser{logger: logger}
}

// Feed consumes one received chunk and returns the tokens completed by
// it, in upstream order.
func (p *StreamParser) Feed(chunk []byte) []string {
	p.pending += string(chunk)

	lines := strings.Split(p.pending, "\n")
	p.pending = lines[len(lines)-1]

	var tokens []string
	for _, line := range lines[:len(lines)-1] {
		if token, ok := p.parseLine(line); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Flush processes whatever trailing line the stream ended on without a
// newline. Call once at end of input.
func (p *StreamParser) Flush() []string {
	line := p.pending
	p.pending = ""

	if token, ok := p.parseLine(line); ok {
		return []string{token}
	}
	return nil
}

// EmittedBytes is the running total length of emitted tokens.
func (p *StreamParser) EmittedBytes() int {
	return p.emitted
}

func (p *StreamParser) parseLine(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	payload := line[len(dataPrefix):]
	if strings.TrimSpace(payload) == doneMarker {
		// Advisory only: end of input terminates the stream either way.
		return "", false
	}

	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// Lenient on purpose: a corrupt line loses its own token, never
		// the rest of the stream.
		p.logger.WithError(err).WithField("line_length", len(line)).Debug("Skipping malformed stream line")
		return "", false
	}

	if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
		return "", false
	}

	token := event.Choices[0].Delta.Content
	p.emitted += len(token)
	return token, true
}
