package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

// ComposerClient is the interactive transport: every message goes to a
// compose endpoint one at a time and the per-message outcome comes back
// as sent, failed or cancelled.
type ComposerClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewComposerClient builds the interactive transport. ratePerSec <= 0
// disables client-side rate limiting.
func NewComposerClient(url string, ratePerSec float64) *ComposerClient {
	c := &ComposerClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if ratePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return c
}

func (c *ComposerClient) Available() bool {
	return c.url != ""
}

type composeRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type composeResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Dispatch hands one message to the composer and maps its verdict.
func (c *ComposerClient) Dispatch(ctx context.Context, phone, body string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqBody, err := json.Marshal(composeRequest{Phone: phone, Message: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(raw))
	}

	var cr composeResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}

	switch cr.Status {
	case "sent":
		return nil
	case "cancelled":
		return ErrCancelledByUser
	case "failed":
		if cr.Reason != "" {
			return fmt.Errorf("composer declined: %s", cr.Reason)
		}
		return fmt.Errorf("composer declined")
	default:
		return fmt.Errorf("unknown composer status %q body=%q", cr.Status, string(raw))
	}
}

// DeliverBatch dispatches the batch message by message; one verdict per
// input, a failure never stops the rest of the batch.
func (c *ComposerClient) DeliverBatch(ctx context.Context, msgs []send.OutboundMessage) []error {
	out := make([]error, len(msgs))
	for i, m := range msgs {
		out[i] = c.Dispatch(ctx, m.Phone, m.Body)
	}
	return out
}
