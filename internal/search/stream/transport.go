package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport opens one logical event stream per turn. Implementations yield
// raw messages that deserialize to events; Close terminates delivery.
type Transport interface {
	Open(ctx context.Context, endpoint string) (Stream, error)
}

// Stream delivers raw event payloads in arrival order. Recv returns io.EOF
// once the backend has closed the stream normally.
type Stream interface {
	Recv() ([]byte, error)
	Close() error
}

// SSETransport reads server-sent events over HTTP.
type SSETransport struct {
	client *http.Client
}

// NewSSETransport creates a transport with a connection-reusing client. No
// overall request timeout is set; a turn lives as long as the backend keeps
// generating, and cancellation comes from the context.
func NewSSETransport() *SSETransport {
	return &SSETransport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Open issues the request and returns the live stream.
func (t *SSETransport) Open(ctx context.Context, endpoint string) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// sseStream decodes SSE framing: data lines accumulate until a blank line
// dispatches the message. Comment and event-name lines are skipped; the event
// type travels inside the JSON payload.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *sseStream) Recv() ([]byte, error) {
	var data []string
	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // heartbeat
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(payload, " "))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return []byte(strings.Join(data, "\n")), nil
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
