// Package bmac adapts the Buy Me a Coffee supporters API.
package bmac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/fetch"
	"github.com/patronage-dev/patronage/internal/sources"
	"github.com/patronage-dev/patronage/pkg/clients"
)

const defaultBaseURL = "https://developers.buymeacoffee.com/api/v1"

// The public API budgets roughly sixty requests a minute; one second
// between pages keeps a full crawl inside it. Tests shorten this.
var pageDelay = time.Second

type page struct {
	CurrentPage int         `json:"current_page"`
	LastPage    int         `json:"last_page"`
	Data        []supporter `json:"data"`
}

type supporter struct {
	PayerEmail         *string `json:"payer_email"`
	PayerName          string  `json:"payer_name"`
	SupporterName      string  `json:"supporter_name"`
	SupportCoffees     int64   `json:"support_coffees"`
	SupportCoffeePrice string  `json:"support_coffee_price"`
	SupportVisibility  *int    `json:"support_visibility"`
	IsRefunded         bool    `json:"is_refunded"`
}

// Options configures the Buy Me a Coffee adapter.
type Options struct {
	Token     string
	Client    clients.HTTPClientI
	Blocklist domain.Blocklist
	// BaseURL overrides the API host, for tests.
	BaseURL string
}

type Source struct {
	token     string
	client    clients.HTTPClientI
	blocklist domain.Blocklist
	baseURL   string
}

func New(opts Options) *Source {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Source{
		token:     opts.Token,
		client:    opts.Client,
		blocklist: opts.Blocklist,
		baseURL:   baseURL,
	}
}

func (s *Source) Platform() domain.Platform { return domain.PlatformBuyMeACoffee }

func (s *Source) Pledges(ctx context.Context) ([]domain.Pledge, error) {
	pages := fetch.New(fetch.Options[supporter]{
		Client:   s.client,
		Build:    s.buildPage,
		Decode:   decodePage,
		Throttle: pageDelay,
	})
	supporters, err := pages.Collect(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("fetched supporters", zap.Int("supporters", len(supporters)))
	return s.project(supporters)
}

// buildPage maps the fetcher's cursor onto the numeric page parameter; the
// empty first cursor is page one.
func (s *Source) buildPage(cursor string) (string, http.Header) {
	if cursor == "" {
		cursor = "1"
	}
	u := fmt.Sprintf("%s/supporters?page=%s", s.baseURL, cursor)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	header.Set("Accept", "application/json")
	return u, header
}

func decodePage(body []byte) ([]supporter, string, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", err
	}
	// a zero counter would make the next cursor point back at page one
	if p.CurrentPage < 1 {
		return nil, "", fmt.Errorf("current_page %d out of range", p.CurrentPage)
	}
	if p.CurrentPage >= p.LastPage {
		return p.Data, "", nil
	}
	return p.Data, strconv.Itoa(p.CurrentPage + 1), nil
}

// project maps supporters to pledges. A purchase is coffees times the
// per-coffee price; refunded purchases and non-positive amounts drop out.
func (s *Source) project(supporters []supporter) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	for _, sup := range supporters {
		if sup.PayerEmail == nil {
			return nil, sources.NewShapeError(domain.PlatformBuyMeACoffee, sup, "missing payer_email")
		}
		if sup.SupportCoffeePrice == "" {
			return nil, sources.NewShapeError(domain.PlatformBuyMeACoffee, sup, "missing support_coffee_price")
		}
		price, err := decimal.NewFromString(sup.SupportCoffeePrice)
		if err != nil {
			return nil, sources.NewShapeError(domain.PlatformBuyMeACoffee, sup, "unparseable support_coffee_price")
		}

		name := sup.SupporterName
		if name == "" {
			name = sup.PayerName
		}
		visible := sup.SupportVisibility == nil || *sup.SupportVisibility != 0
		if visible && name == "" {
			return nil, sources.NewShapeError(domain.PlatformBuyMeACoffee, sup, "missing supporter name")
		}

		if sup.IsRefunded {
			continue
		}
		amount := price.Mul(decimal.NewFromInt(sup.SupportCoffees))
		if !amount.IsPositive() {
			continue
		}

		email := *sup.PayerEmail
		pledges = append(pledges, domain.Pledge{
			Name:     name,
			Email:    email,
			Amount:   amount,
			Private:  sources.Redacted(s.blocklist, !visible, email, name),
			Platform: domain.PlatformBuyMeACoffee,
		})
	}
	return pledges, nil
}
