// Package sources holds one adapter per external donation platform. Each
// adapter translates its platform's pagination scheme and response schema
// into the shared fetch loop and projects raw records into domain pledges.
package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/patronage-dev/patronage/internal/domain"
)

// maxRecordLen bounds the raw payload echoed into a ShapeError message.
const maxRecordLen = 200

// Source is one platform adapter. Pledges runs the platform's pagination to
// completion and returns the projected records in response order; the
// result is pre-reconciliation (duplicates per contributor are expected).
type Source interface {
	Platform() domain.Platform
	Pledges(ctx context.Context) ([]domain.Pledge, error)
}

// ShapeError reports a malformed or incomplete record in a platform
// response. Records are never silently dropped or defaulted; the offending
// payload rides along so it can be located in the upstream data.
type ShapeError struct {
	Platform domain.Platform
	Reason   string
	Record   string
}

// NewShapeError captures the record as compact JSON, truncated to keep the
// error line readable.
func NewShapeError(platform domain.Platform, record any, reason string) *ShapeError {
	raw, err := json.Marshal(record)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", record))
	}
	payload := string(raw)
	if len(payload) > maxRecordLen {
		payload = payload[:maxRecordLen] + "..."
	}
	return &ShapeError{Platform: platform, Reason: reason, Record: payload}
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: malformed record (%s): %s", e.Platform, e.Reason, e.Record)
}

// Redacted reports whether a contributor must be published anonymously:
// either the platform marked them private or the operator block-list matches
// any of the given identity values.
func Redacted(list domain.Blocklist, platformPrivate bool, identities ...string) bool {
	if platformPrivate {
		return true
	}
	for _, id := range identities {
		if id != "" && list.Contains(id) {
			return true
		}
	}
	return false
}
