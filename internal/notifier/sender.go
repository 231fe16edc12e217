package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pointgrid/loyalty-core/internal/services"
	"github.com/valyala/fasthttp"
)

const senderTimeout = 5 * time.Second

// HTTPSender forwards events to an external delivery provider over HTTP.
// The provider decides whether the event becomes an email or a push.
type HTTPSender struct {
	url    string
	client *fasthttp.Client
}

func NewHTTPSender(url string) *HTTPSender {
	return &HTTPSender{
		url: url,
		client: &fasthttp.Client{
			ReadTimeout:         senderTimeout,
			WriteTimeout:        senderTimeout,
			MaxConnsPerHost:     512,
			ReadBufferSize:      1024 * 4,
			WriteBufferSize:     1024 * 4,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (s *HTTPSender) GetType() string {
	return "http"
}

func (s *HTTPSender) Send(ctx context.Context, e services.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	deadline := time.Now().Add(senderTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return err
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode())
	}
	return nil
}
