package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Platform identifies the external service a record came from. It is part of
// the ledger identity: the same person on two platforms stays two entries.
type Platform string

const (
	PlatformGitHubSponsors Platform = "GitHub Sponsors"
	PlatformPatreon        Platform = "Patreon"
	PlatformBuyMeACoffee   Platform = "Buy Me a Coffee"
)

// Pledge is one contributor's cumulative support on a single platform before
// reconciliation. Email exists only so the reconciliation engine can
// recognize the same contributor across records; it is never persisted.
type Pledge struct {
	Name     string
	Email    string
	Amount   decimal.Decimal
	Private  bool
	Platform Platform
}

// Donation is one entry of the published ledger.
type Donation struct {
	Name     string
	Amount   decimal.Decimal
	Platform Platform
}

// Donation projects the pledge into its ledger form. Private contributors
// keep amount and platform but lose the name.
func (p Pledge) Donation() Donation {
	d := Donation{Amount: p.Amount, Platform: p.Platform}
	if !p.Private {
		d.Name = p.Name
	}
	return d
}

// MarshalJSON writes the wire form consumed by the site build: name omitted
// when empty, amount as a bare JSON number.
func (d Donation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string      `json:"name,omitempty"`
		Amount   json.Number `json:"amount"`
		Platform Platform    `json:"platform"`
	}{
		Name:     d.Name,
		Amount:   json.Number(d.Amount.String()),
		Platform: d.Platform,
	})
}
