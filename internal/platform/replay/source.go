// Package replay serves recorded trading post listings from a file system.
// It is used for offline runs and tests in place of the live API.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/alanyoungcy/tpwatch/internal/domain"
	"github.com/alanyoungcy/tpwatch/internal/platform/gw2"
)

// Source implements domain.PricingProvider over fixture files. Each file
// {dir}/{item_id}.json holds one listings response body exactly as the API
// returns it.
type Source struct {
	fsys fs.FS
	dir  string
}

// NewSource creates a Source reading fixtures under dir in fsys. Use "." for
// the root of fsys.
func NewSource(fsys fs.FS, dir string) *Source {
	if dir == "" {
		dir = "."
	}
	return &Source{fsys: fsys, dir: dir}
}

// ForItem loads and translates the fixture for itemID. A missing fixture is
// reported as domain.ErrNotFound; a malformed one as domain.ErrTransport.
func (s *Source) ForItem(ctx context.Context, itemID uint32) (domain.ItemPrice, error) {
	if err := ctx.Err(); err != nil {
		return domain.ItemPrice{}, err
	}

	name := path.Join(s.dir, fmt.Sprintf("%d.json", itemID))
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ItemPrice{}, fmt.Errorf("replay: item %d: %w", itemID, domain.ErrNotFound)
		}
		return domain.ItemPrice{}, fmt.Errorf("replay: read %s: %w", name, err)
	}

	var listings gw2.APIListings
	if err := json.Unmarshal(data, &listings); err != nil {
		return domain.ItemPrice{}, &gw2.TransportError{Op: "replay listings", URL: name, Err: err}
	}
	return listings.ToDomainItemPrice(), nil
}

// Compile-time interface check.
var _ domain.PricingProvider = (*Source)(nil)
