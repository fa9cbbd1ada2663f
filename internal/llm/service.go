package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/models"
)

// CompletionService relays completion token streams from the inference
// backend to the original caller.
type CompletionService struct {
	client *Client
	logger *logrus.Logger
}

func NewCompletionService(client *Client, logger *logrus.Logger) *CompletionService {
	return &CompletionService{
		client: client,
		logger: logger,
	}
}

// Stream forwards messages upstream and relays the extracted tokens to w
// as they arrive, flushing after every write. A handshake failure is
// returned before anything is written to w; once bytes have flowed the
// stream just ends on failure because the transport has already
// committed to a success status.
func (s *CompletionService) Stream(ctx context.Context, messages []models.ChatMessage, w io.Writer) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}

	body, err := s.client.OpenStream(ctx, messages)
	if err != nil {
		return err
	}
	defer body.Close()

	flusher, _ := w.(http.Flusher)
	parser := NewStreamParser(s.logger)
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if !s.emit(parser.Feed(buf[:n]), w, flusher) {
				// Downstream is gone; stop draining the upstream.
				s.logger.WithField("emitted_bytes", parser.EmittedBytes()).Debug("Client disconnected mid-stream")
				return nil
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Mid-stream upstream failure: terminate silently, the
			// response status is already on the wire.
			s.logger.WithError(readErr).WithField("emitted_bytes", parser.EmittedBytes()).Warn("Upstream completion stream failed mid-flight")
			return nil
		}
	}

	s.emit(parser.Flush(), w, flusher)

	s.logger.WithFields(logrus.Fields{
		"emitted_bytes": parser.EmittedBytes(),
		"messages":      len(messages),
	}).Info("Completion stream finished")

	return nil
}

// emit writes tokens downstream one by one, flushing each so the browser
// sees them as they arrive. Returns false once the writer errors.
func (s *CompletionService) emit(tokens []string, w io.Writer, flusher http.Flusher) bool {
	for _, token := range tokens {
		if _, err := io.WriteString(w, token); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return true
}
