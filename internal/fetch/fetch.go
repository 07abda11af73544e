// Package fetch drives cursor-based pagination against the platform APIs.
// Every platform paginates differently (opaque cursors, numeric pages,
// page/last_page envelopes); the differences live in the Build and Decode
// functions an adapter supplies, while the page loop, throttling and error
// surfacing stay here.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patronage-dev/patronage/pkg/clients"
)

// StatusError reports a page request answered with a non-success status. It
// carries the URL and status code so the failure can be attributed to a
// concrete endpoint at the top of the run.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// BuildFunc describes the request for one page. An empty cursor requests the
// first page.
type BuildFunc func(cursor string) (url string, header http.Header)

// DecodeFunc extracts a page's items and the cursor of the page after it.
// Returning an empty next cursor terminates the sequence, so the decoder
// owns the platform's termination rule (absent next link, page >= last_page,
// has_next_page == false).
type DecodeFunc[T any] func(body []byte) (items []T, next string, err error)

// Options configures one paginated traversal.
type Options[T any] struct {
	Client clients.HTTPClientI
	Build  BuildFunc
	Decode DecodeFunc[T]
	// Throttle is the fixed delay inserted before every page request after
	// the first, for sources with a known request budget. It is proactive
	// only; rate-limit response headers are never inspected.
	Throttle time.Duration
}

// Pages is a single-pass pull iterator over a cursor-paginated endpoint.
// Items come out in exact response order across pages. A Pages value is not
// reusable after consumption; build a new one per traversal.
type Pages[T any] struct {
	opts Options[T]

	cursor  string
	buf     []T
	current T
	started bool
	done    bool
	err     error
}

func New[T any](opts Options[T]) *Pages[T] {
	return &Pages[T]{opts: opts}
}

// Scan advances to the next item, requesting pages as needed. It returns
// false once the sequence is exhausted or failed; Err tells the two apart.
func (p *Pages[T]) Scan(ctx context.Context) bool {
	if p.err != nil {
		return false
	}
	for len(p.buf) == 0 {
		if p.done {
			return false
		}
		if !p.fetchPage(ctx) {
			return false
		}
	}
	p.current = p.buf[0]
	p.buf = p.buf[1:]
	return true
}

// Item returns the item produced by the last successful Scan.
func (p *Pages[T]) Item() T {
	return p.current
}

// Err reports the failure that terminated the sequence, if any.
func (p *Pages[T]) Err() error {
	return p.err
}

// Collect drains the remaining sequence into a slice.
func (p *Pages[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for p.Scan(ctx) {
		items = append(items, p.Item())
	}
	return items, p.Err()
}

func (p *Pages[T]) fetchPage(ctx context.Context) bool {
	if p.started && p.opts.Throttle > 0 {
		if err := p.wait(ctx); err != nil {
			p.err = err
			return false
		}
	}

	url, header := p.opts.Build(p.cursor)
	status, body, err := p.opts.Client.Get(ctx, url, header)
	if err != nil {
		p.err = fmt.Errorf("fetch %s: %w", url, err)
		return false
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		p.err = &StatusError{URL: url, StatusCode: status}
		return false
	}

	items, next, err := p.opts.Decode(body)
	if err != nil {
		p.err = fmt.Errorf("decode %s: %w", url, err)
		return false
	}

	p.started = true
	p.buf = append(p.buf, items...)
	p.cursor = next
	if next == "" {
		p.done = true
	}
	return true
}

// wait suspends for the throttle interval or until the run context ends,
// whichever comes first.
func (p *Pages[T]) wait(ctx context.Context) error {
	timer := time.NewTimer(p.opts.Throttle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
