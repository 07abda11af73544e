package aggregate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/sources"
)

// fixtureSource feeds a canned pledge list through the normal pipeline so
// development builds produce a stable ledger with zero network.
type fixtureSource struct {
	platform domain.Platform
	pledges  []domain.Pledge
}

func (f *fixtureSource) Platform() domain.Platform { return f.platform }

func (f *fixtureSource) Pledges(_ context.Context) ([]domain.Pledge, error) {
	out := make([]domain.Pledge, len(f.pledges))
	copy(out, f.pledges)
	return out, nil
}

// fixtureSources covers the interesting projection cases: a private
// contributor, duplicate emails, and the same display name under two
// emails.
func fixtureSources(list domain.Blocklist) []sources.Source {
	gh := &fixtureSource{
		platform: domain.PlatformGitHubSponsors,
		pledges: []domain.Pledge{
			fixture(domain.PlatformGitHubSponsors, list, "The Octocat", "octo@github.test", "40", false),
			fixture(domain.PlatformGitHubSponsors, list, "", "", "10", true),
		},
	}
	pat := &fixtureSource{
		platform: domain.PlatformPatreon,
		pledges: []domain.Pledge{
			fixture(domain.PlatformPatreon, list, "Jane Doe", "jane@example.test", "15", false),
			fixture(domain.PlatformPatreon, list, "Jane Doe", "jane.doe@gmail.test", "5", false),
		},
	}
	coffee := &fixtureSource{
		platform: domain.PlatformBuyMeACoffee,
		pledges: []domain.Pledge{
			fixture(domain.PlatformBuyMeACoffee, list, "Art Lover", "art@example.test", "5", false),
			fixture(domain.PlatformBuyMeACoffee, list, "Art Lover", "art@example.test", "10", false),
			fixture(domain.PlatformBuyMeACoffee, list, "Casual", "", "3", false),
		},
	}
	return []sources.Source{gh, pat, coffee}
}

// fixture builds one pledge, honoring the operator block-list the way the
// live adapters do.
func fixture(platform domain.Platform, list domain.Blocklist, name, email, amount string, private bool) domain.Pledge {
	return domain.Pledge{
		Name:     name,
		Email:    email,
		Amount:   decimal.RequireFromString(amount),
		Private:  sources.Redacted(list, private, name, email),
		Platform: platform,
	}
}
