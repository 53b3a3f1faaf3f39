package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

// HTTPSender posts JSON batches to the collector endpoint over fasthttp.
type HTTPSender struct {
	client *fasthttp.Client
	parser fastjson.ParserPool
}

// NewHTTPSender creates a sender with connection reuse tuned for a
// low-volume telemetry client.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{
		client: &fasthttp.Client{
			Name:                "caption-art-telemetry",
			MaxConnsPerHost:     4,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// Send posts one batch and validates the collector's acknowledgement. A 2xx
// status with an empty body is accepted; a JSON body must carry an "accepted"
// count matching the batch.
func (h *HTTPSender) Send(ctx context.Context, endpoint string, payload metrics.BatchPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		err = h.client.DoDeadline(req, resp, deadline)
	} else {
		err = h.client.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("collector returned status %d", status)
	}

	ack := resp.Body()
	if len(ack) == 0 {
		return nil
	}
	p := h.parser.Get()
	defer h.parser.Put(p)
	v, err := p.ParseBytes(ack)
	if err != nil {
		return fmt.Errorf("malformed collector ack: %w", err)
	}
	if v.Exists("accepted") {
		if accepted := v.GetInt("accepted"); accepted < len(payload.Metrics) {
			return fmt.Errorf("collector accepted %d of %d envelopes", accepted, len(payload.Metrics))
		}
	}
	return nil
}
