package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Catalog holds the loaded facility lists. It is read-only after Load and
// may be shared between concurrent pipeline runs.
type Catalog struct {
	Primary   []types.Facility
	Secondary []types.Facility

	byID map[string]types.Facility
}

// New builds a catalog from already parsed lists
func New(primary, secondary []types.Facility) *Catalog {
	c := &Catalog{Primary: primary, Secondary: secondary}
	c.byID = ByID(union(primary, secondary))
	return c
}

// Lookup finds a facility in either list by (normalized) id
func (c *Catalog) Lookup(id string) (types.Facility, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Scope builds the facilities of scope, excluding the given ids
func (c *Catalog) Scope(scope Scope, excluded types.IDSet) []types.Facility {
	return BuildScope(scope, c.Primary, c.Secondary, excluded)
}

// LoadFile reads and parses a catalog file; files ending in .zst are
// zstd-decompressed.
func LoadFile(path string) ([]types.Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	if filepath.Ext(path) == ".zst" {
		zr, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd catalog %s: %w", path, err)
		}
		defer zr.Close()

		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("failed to decompress catalog %s: %w", path, err)
		}
	}

	return ParseFacilityCatalog(string(data)), nil
}

// Load reads the primary catalog and, if secondaryPath is set, the
// contributed facility list, in parallel.
func Load(ctx context.Context, primaryPath, secondaryPath string) (*Catalog, error) {
	var primary, secondary []types.Facility

	g, gctx := errgroup.WithContext(ctx)
	load := func(path string, dst *[]types.Facility) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			facilities, err := LoadFile(path)
			if err != nil {
				return err
			}
			*dst = facilities
			return nil
		}
	}

	g.Go(load(primaryPath, &primary))
	if secondaryPath != "" {
		g.Go(load(secondaryPath, &secondary))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return New(primary, secondary), nil
}
