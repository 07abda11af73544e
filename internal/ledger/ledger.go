// Package ledger serializes the reconciled donation list and replaces the
// published file atomically.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patronage-dev/patronage/internal/domain"
)

// Encode renders the ledger deterministically: two-space indent, stable
// field order, trailing newline. An empty ledger is an empty array, not
// null.
func Encode(donations []domain.Donation) ([]byte, error) {
	if donations == nil {
		donations = []domain.Donation{}
	}
	buf, err := json.MarshalIndent(donations, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(buf, '\n'), nil
}

// Write replaces the file at path with the encoded ledger. The bytes land
// in a temp file in the target directory first and arrive with a rename,
// so a reader never observes a partial file and a failed run leaves the
// previous ledger untouched.
func Write(path string, donations []domain.Donation) (err error) {
	data, err := Encode(donations)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
