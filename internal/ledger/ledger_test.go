package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patronage-dev/patronage/internal/domain"
)

func sampleDonations() []domain.Donation {
	return []domain.Donation{
		{Name: "Ada", Amount: decimal.RequireFromString("12.5"), Platform: domain.PlatformGitHubSponsors},
		{Amount: decimal.NewFromInt(3), Platform: domain.PlatformBuyMeACoffee},
	}
}

func TestEncode(t *testing.T) {
	got, err := Encode(sampleDonations())
	require.NoError(t, err)

	want := `[
  {
    "name": "Ada",
    "amount": 12.5,
    "platform": "GitHub Sponsors"
  },
  {
    "amount": 3,
    "platform": "Buy Me a Coffee"
  }
]
`
	assert.Equal(t, want, string(got))
}

func TestEncodeEmpty(t *testing.T) {
	got, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(got))
}

func TestEncodeDeterministic(t *testing.T) {
	first, err := Encode(sampleDonations())
	require.NoError(t, err)
	second, err := Encode(sampleDonations())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "donations.json")

	require.NoError(t, Write(path, sampleDonations()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := Encode(sampleDonations())
	require.NoError(t, err)
	assert.Equal(t, want, content)
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "donations.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, Write(path, sampleDonations()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "stale")

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "donations.json")

	err := Write(path, sampleDonations())

	require.Error(t, err)
	assert.ErrorContains(t, err, "create temp ledger")
}
