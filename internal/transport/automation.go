package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

// Automation names are fixed strings the external runner looks up; the
// batch processor also takes pacing hints in the payload, the single
// sender does not.
const (
	AutomationSendMessage = "Send Message"
	AutomationBatchSender = "Batch SMS Sender"
)

// AutomationClient serializes a whole batch as JSON and triggers an
// external automation by name. When the invocation itself fails it
// falls back to dispatching the messages one by one, each fallback
// attempt counted on its own.
type AutomationClient struct {
	runnerURL string
	name      string

	// Pacing hints forwarded to the batch-processor automation.
	batchSize int
	delay     time.Duration

	fallback Dispatcher
	client   *http.Client
	log      *slog.Logger
	now      func() time.Time
}

func NewAutomationClient(runnerURL, name string, batchSize int, delay time.Duration, fallback Dispatcher, log *slog.Logger) *AutomationClient {
	if log == nil {
		log = slog.Default()
	}
	return &AutomationClient{
		runnerURL: strings.TrimRight(runnerURL, "/"),
		name:      name,
		batchSize: batchSize,
		delay:     delay,
		fallback:  fallback,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
		now: time.Now,
	}
}

func (c *AutomationClient) Available() bool {
	return c.runnerURL != ""
}

// handoff is the wire schema the external automation consumes. Field
// names and shapes are fixed; batchSize and delaySeconds appear only
// for the batch-processor variant.
type handoff struct {
	Messages     []handoffMessage `json:"messages"`
	BatchSize    int              `json:"batchSize,omitempty"`
	DelaySeconds float64          `json:"delaySeconds,omitempty"`
	Timestamp    int64            `json:"timestamp,omitempty"`
}

type handoffMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// DeliverBatch triggers the automation once for the whole batch. A
// successful invocation reports every message sent; a failed invocation
// switches to the per-message fallback.
func (c *AutomationClient) DeliverBatch(ctx context.Context, msgs []send.OutboundMessage) []error {
	out := make([]error, len(msgs))

	if err := c.invoke(ctx, msgs); err != nil {
		c.log.Warn("automation invocation failed, falling back to direct dispatch",
			"automation", c.name,
			"messages", len(msgs),
			"err", err,
		)
		if c.fallback == nil {
			for i := range out {
				out[i] = fmt.Errorf("automation %q unavailable: %w", c.name, err)
			}
			return out
		}
		for i, m := range msgs {
			out[i] = c.fallback.Dispatch(ctx, m.Phone, m.Body)
		}
	}
	return out
}

func (c *AutomationClient) invoke(ctx context.Context, msgs []send.OutboundMessage) error {
	payload := handoff{
		Messages:  make([]handoffMessage, len(msgs)),
		Timestamp: c.now().Unix(),
	}
	for i, m := range msgs {
		payload.Messages[i] = handoffMessage{Phone: m.Phone, Message: m.Body}
	}
	if c.name == AutomationBatchSender {
		payload.BatchSize = c.batchSize
		payload.DelaySeconds = c.delay.Seconds()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := c.runnerURL + "/v1/automations/" + url.PathEscape(c.name) + "/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(raw))
	}
	return nil
}
