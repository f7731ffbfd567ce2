package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure HTTPFetcher implements Fetcher interface.
var _ Fetcher = (*HTTPFetcher)(nil)

var ErrStatus = errors.New("unexpected status code")

// Fetches files over http, retrying connection errors and 5xx responses
type HTTPFetcher struct {
	client *retryablehttp.Client
	header http.Header
}

// Retry settings used for the ground truth origin. `logger` may be nil.
func NewRetryClient(logger retryablehttp.LeveledLogger, retryMax int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = logger
	return client
}

// `header` is sent with every request, use it for origin credentials
func NewHTTPFetcher(client *retryablehttp.Client, header http.Header) *HTTPFetcher {
	if header == nil {
		header = http.Header{}
	}
	return &HTTPFetcher{
		client: client,
		header: header,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "HTTPFetcher.Fetch", trace.WithAttributes(
		attribute.String("url", url),
	))
	defer span.End()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return nil, err
	}
	for name, values := range f.header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	span.AddEvent("requesting")
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed after retries")
		return nil, err
	}

	span.SetAttributes(attribute.Int("status", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err = fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "origin refused the download")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "downloaded")
	return resp.Body, nil
}
