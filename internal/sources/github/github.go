// Package github adapts the GitHub Sponsors activity feed. The feed is a
// lifecycle event log, not a balance sheet, so cumulative support has to be
// reconstructed per sponsor from new/cancel/change/refund events.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/fetch"
	"github.com/patronage-dev/patronage/internal/sources"
	"github.com/patronage-dev/patronage/pkg/clients"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100

	privacyPrivate = "private"

	actionNew        = "new_sponsorship"
	actionCancelled  = "cancelled_sponsorship"
	actionTierChange = "tier_change"
	actionRefund     = "refund"
)

type page struct {
	Activities []activity `json:"activities"`
	PageInfo   pageInfo   `json:"page_info"`
}

type pageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

type activity struct {
	Action    string     `json:"action"`
	Timestamp *time.Time `json:"timestamp"`
	Sponsor   *sponsor   `json:"sponsor"`
	Tier      *tier      `json:"tier"`
}

type sponsor struct {
	Login        string `json:"login"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PrivacyLevel string `json:"privacy_level"`
}

type tier struct {
	MonthlyPriceInCents *int64 `json:"monthly_price_in_cents"`
	IsOneTime           bool   `json:"is_one_time"`
}

// Options configures the GitHub Sponsors adapter.
type Options struct {
	Token     string
	Client    clients.HTTPClientI
	Blocklist domain.Blocklist
	// BaseURL overrides the API host, for tests.
	BaseURL string
	// Now supplies the end of still-open recurring windows; defaults to
	// time.Now.
	Now func() time.Time
}

type Source struct {
	token     string
	client    clients.HTTPClientI
	blocklist domain.Blocklist
	baseURL   string
	now       func() time.Time
}

func New(opts Options) *Source {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Source{
		token:     opts.Token,
		client:    opts.Client,
		blocklist: opts.Blocklist,
		baseURL:   baseURL,
		now:       now,
	}
}

func (s *Source) Platform() domain.Platform { return domain.PlatformGitHubSponsors }

func (s *Source) Pledges(ctx context.Context) ([]domain.Pledge, error) {
	pages := fetch.New(fetch.Options[activity]{
		Client: s.client,
		Build:  s.buildPage,
		Decode: decodePage,
	})
	activities, err := pages.Collect(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("fetched sponsor activity", zap.Int("activities", len(activities)))
	return s.reconstruct(activities)
}

func (s *Source) buildPage(cursor string) (string, http.Header) {
	u := fmt.Sprintf("%s/sponsors/activities?per_page=%d", s.baseURL, perPage)
	if cursor != "" {
		u += "&after=" + url.QueryEscape(cursor)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	header.Set("Accept", "application/vnd.github+json")
	return u, header
}

func decodePage(body []byte) ([]activity, string, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", err
	}
	if !p.PageInfo.HasNextPage {
		return p.Activities, "", nil
	}
	if p.PageInfo.EndCursor == "" {
		return nil, "", errors.New("page_info.end_cursor empty with has_next_page set")
	}
	return p.Activities, p.PageInfo.EndCursor, nil
}

// reconstruct folds the event log into one cumulative pledge per sponsor.
// Sponsors come out in first-seen order so reruns against unchanged data
// produce identical output.
func (s *Source) reconstruct(activities []activity) ([]domain.Pledge, error) {
	var order []string
	bySponsor := make(map[string][]activity)
	for _, act := range activities {
		if err := validate(act); err != nil {
			return nil, err
		}
		login := act.Sponsor.Login
		if _, ok := bySponsor[login]; !ok {
			order = append(order, login)
		}
		bySponsor[login] = append(bySponsor[login], act)
	}

	var pledges []domain.Pledge
	for _, login := range order {
		if pledge, ok := s.fold(bySponsor[login]); ok {
			pledges = append(pledges, pledge)
		}
	}
	return pledges, nil
}

func validate(act activity) error {
	var reason string
	switch {
	case act.Action == "":
		reason = "missing action"
	case act.Timestamp == nil:
		reason = "missing timestamp"
	case act.Sponsor == nil || act.Sponsor.Login == "":
		reason = "missing sponsor login"
	case needsTier(act.Action) && (act.Tier == nil || act.Tier.MonthlyPriceInCents == nil):
		reason = "missing tier price"
	case !knownAction(act.Action):
		reason = "unknown action " + act.Action
	default:
		return nil
	}
	return sources.NewShapeError(domain.PlatformGitHubSponsors, act, reason)
}

func needsTier(action string) bool {
	return action == actionNew || action == actionTierChange || action == actionRefund
}

func knownAction(action string) bool {
	switch action {
	case actionNew, actionCancelled, actionTierChange, actionRefund:
		return true
	}
	return false
}

// fold replays one sponsor's events in chronological order. One-time tiers
// contribute their price once; recurring tiers contribute price times the
// number of billing periods between the opening event and the next cancel
// or tier-change event, or now for a still-open window. Refunds subtract
// their tier price. Events with equal timestamps keep API order.
func (s *Source) fold(events []activity) (domain.Pledge, bool) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(*events[j].Timestamp)
	})

	total := decimal.Zero
	for i, act := range events {
		switch act.Action {
		case actionNew, actionTierChange:
			price := tierPrice(act)
			if act.Tier.IsOneTime {
				if act.Action == actionNew {
					total = total.Add(price)
				}
				continue
			}
			months := billingPeriods(*act.Timestamp, s.windowEnd(events, i))
			total = total.Add(price.Mul(decimal.NewFromInt(months)))
		case actionRefund:
			total = total.Sub(tierPrice(act))
		case actionCancelled:
			// closes the preceding window, contributes nothing itself
		}
	}
	if !total.IsPositive() {
		return domain.Pledge{}, false
	}

	// identity fields follow the most recent event
	sp := events[len(events)-1].Sponsor
	name := sp.Name
	if name == "" {
		name = sp.Login
	}
	return domain.Pledge{
		Name:     name,
		Email:    sp.Email,
		Amount:   total,
		Private:  sources.Redacted(s.blocklist, sp.PrivacyLevel == privacyPrivate, sp.Login, sp.Name, sp.Email),
		Platform: domain.PlatformGitHubSponsors,
	}, true
}

// windowEnd finds the timestamp closing the recurring window opened at
// events[start]: the next cancel or tier-change event, or now.
func (s *Source) windowEnd(events []activity, start int) time.Time {
	for _, act := range events[start+1:] {
		if act.Action == actionCancelled || act.Action == actionTierChange {
			return *act.Timestamp
		}
	}
	return s.now()
}

func tierPrice(act activity) decimal.Decimal {
	return decimal.New(*act.Tier.MonthlyPriceInCents, -2)
}

// billingPeriods counts calendar months touched by [start, end] inclusive
// of the starting period: a January start closed in April spans four
// billing months. The count never drops below one; a window opened ahead
// of the clock still bills its opening period.
func billingPeriods(start, end time.Time) int64 {
	start, end = start.UTC(), end.UTC()
	months := 1 + int64(end.Year()*12+int(end.Month())) - int64(start.Year()*12+int(start.Month()))
	if months < 1 {
		return 1
	}
	return months
}
