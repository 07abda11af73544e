// Package patreon adapts the Patreon campaign members API. The platform
// reports current-state balances, so projection is a straight per-member
// mapping of lifetime support.
package patreon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/fetch"
	"github.com/patronage-dev/patronage/internal/sources"
	"github.com/patronage-dev/patronage/pkg/clients"
)

const (
	defaultBaseURL = "https://www.patreon.com/api/oauth2/v2"
	pageCount      = 100

	memberFields = "full_name,email,lifetime_support_cents,patron_status"
)

type page struct {
	Data []member `json:"data"`
	Meta meta     `json:"meta"`
}

type member struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Attributes *attributes `json:"attributes"`
}

type attributes struct {
	FullName             string `json:"full_name"`
	Email                string `json:"email"`
	LifetimeSupportCents *int64 `json:"lifetime_support_cents"`
	PatronStatus         string `json:"patron_status"`
}

type meta struct {
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Cursors *cursors `json:"cursors"`
	Total   int      `json:"total"`
}

type cursors struct {
	Next string `json:"next"`
}

// Options configures the Patreon adapter.
type Options struct {
	Token      string
	CampaignID string
	Client     clients.HTTPClientI
	Blocklist  domain.Blocklist
	// BaseURL overrides the API host, for tests.
	BaseURL string
}

type Source struct {
	token      string
	campaignID string
	client     clients.HTTPClientI
	blocklist  domain.Blocklist
	baseURL    string
}

func New(opts Options) *Source {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Source{
		token:      opts.Token,
		campaignID: opts.CampaignID,
		client:     opts.Client,
		blocklist:  opts.Blocklist,
		baseURL:    baseURL,
	}
}

func (s *Source) Platform() domain.Platform { return domain.PlatformPatreon }

func (s *Source) Pledges(ctx context.Context) ([]domain.Pledge, error) {
	pages := fetch.New(fetch.Options[member]{
		Client: s.client,
		Build:  s.buildPage,
		Decode: decodePage,
	})
	members, err := pages.Collect(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("fetched campaign members", zap.Int("members", len(members)))
	return s.project(members)
}

func (s *Source) buildPage(cursor string) (string, http.Header) {
	query := url.Values{}
	query.Set("fields[member]", memberFields)
	query.Set("page[count]", strconv.Itoa(pageCount))
	if cursor != "" {
		query.Set("page[cursor]", cursor)
	}
	u := fmt.Sprintf("%s/campaigns/%s/members?%s", s.baseURL, s.campaignID, query.Encode())

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	header.Set("Accept", "application/json")
	return u, header
}

func decodePage(body []byte) ([]member, string, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", err
	}
	next := ""
	if p.Meta.Pagination.Cursors != nil {
		next = p.Meta.Pagination.Cursors.Next
	}
	return p.Data, next, nil
}

// project maps members to pledges. Members with zero lifetime support
// (declined before the first charge, for example) are filtered; former
// patrons with a positive lifetime keep their entry.
func (s *Source) project(members []member) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	for _, m := range members {
		var reason string
		switch {
		case m.Attributes == nil:
			reason = "missing attributes"
		case m.Attributes.FullName == "":
			reason = "missing full_name"
		case m.Attributes.LifetimeSupportCents == nil:
			reason = "missing lifetime_support_cents"
		}
		if reason != "" {
			return nil, sources.NewShapeError(domain.PlatformPatreon, m, reason)
		}

		attrs := m.Attributes
		amount := decimal.New(*attrs.LifetimeSupportCents, -2)
		if !amount.IsPositive() {
			continue
		}
		pledges = append(pledges, domain.Pledge{
			Name:     attrs.FullName,
			Email:    attrs.Email,
			Amount:   amount,
			Private:  sources.Redacted(s.blocklist, false, attrs.FullName, attrs.Email),
			Platform: domain.PlatformPatreon,
		})
	}
	return pledges, nil
}
