package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

// Event kinds written to the usage index.
const (
	KindAccess = "access"
	KindQuery  = "query"
	KindClick  = "click"
)

// RequestInfo is the request-scoped context a telemetry event is built
// from. Session and user identifiers are caller-minted and opaque; the
// recorder neither generates nor validates them.
type RequestInfo struct {
	SessionID string
	UserID    string
	PageURL   string
	Referrer  string
	UserAgent string
	ClientIP  string
}

// RequestInfoFromGin pulls the telemetry headers off an incoming request.
func RequestInfoFromGin(c *gin.Context) RequestInfo {
	return RequestInfo{
		SessionID: c.GetHeader("X-Session-Id"),
		UserID:    c.GetHeader("X-User-Id"),
		PageURL:   c.GetHeader("X-Page-Url"),
		Referrer:  c.GetHeader("Referer"),
		UserAgent: c.GetHeader("User-Agent"),
		ClientIP:  c.ClientIP(),
	}
}

// Recorder writes usage events to the usage index, fire-and-forget.
// Failures never reach the caller; a missing index is reported once with
// remediation guidance and then stays quiet.
type Recorder struct {
	client      *elastic.Client
	index       string
	logger      *logrus.Logger
	missingOnce sync.Once

	// wg tracks in-flight writes so shutdown and tests can drain them.
	wg sync.WaitGroup
}

func NewRecorder(client *elastic.Client, index string, logger *logrus.Logger) *Recorder {
	return &Recorder{
		client: client,
		index:  index,
		logger: logger,
	}
}

// Record builds the common envelope from info, merges the event payload
// and indexes one document asynchronously. It returns immediately; the
// caller never learns whether the write succeeded.
func (r *Recorder) Record(kind string, info RequestInfo, payload map[string]interface{}) {
	doc := r.buildEnvelope(kind, info)
	for k, v := range payload {
		doc[k] = v
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.client.Index(ctx, r.index, doc); err != nil {
			r.logWriteFailure(kind, err)
		}
	}()
}

// Drain blocks until all dispatched writes have finished. Used on
// shutdown so the last events are not lost with the process.
func (r *Recorder) Drain() {
	r.wg.Wait()
}

func (r *Recorder) buildEnvelope(kind string, info RequestInfo) map[string]interface{} {
	profile := ClassifyUserAgent(info.UserAgent)

	return map[string]interface{}{
		"event_type":  kind,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"session_id":  info.SessionID,
		"user_id":     info.UserID,
		"ip_hash":     utils.HashClientIP(info.ClientIP),
		"device_type": profile.DeviceType,
		"browser":     profile.Browser,
		"os":          profile.OS,
		"referrer":    info.Referrer,
		"page_url":    info.PageURL,
	}
}

func (r *Recorder) logWriteFailure(kind string, err error) {
	if apiErr, ok := err.(*elastic.APIError); ok && apiErr.IsIndexMissing() {
		r.missingOnce.Do(func() {
			r.logger.WithFields(logrus.Fields{
				"index": r.index,
			}).Warnf("Usage index does not exist; telemetry events are being dropped. "+
				"Create the %q index (mapping in configs/usage_index.json) to start collecting usage data.", r.index)
		})
		return
	}

	r.logger.WithError(err).WithField("event_type", kind).Error("Failed to write telemetry event")
}
