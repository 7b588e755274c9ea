package resdb

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/resdb/entry"
	"github.com/hupe1980/resdb/frs"
)

var (
	// ErrFileNotFound is returned when a result file or store key does
	// not exist.
	ErrFileNotFound = errors.New("result file not found")

	// ErrHeaderCorrupt is returned when a result file header fails
	// structural or checksum validation.
	ErrHeaderCorrupt = errors.New("result file header corrupt")

	// ErrCatalogTruncated is returned when a catalog declares more
	// entries or bytes than the file holds.
	ErrCatalogTruncated = errors.New("result file catalog truncated")

	// ErrNoPayload is returned by Materialize for entries that do not
	// address a payload block.
	ErrNoPayload = errors.New("entry carries no payload")

	// ErrClosed is returned by operations on a closed extractor.
	ErrClosed = errors.New("extractor is closed")
)

// ErrDuplicateOwnership reports an attempt to attach an entry that is
// already owned. It signals a builder bug, never malformed input.
var ErrDuplicateOwnership = entry.ErrDuplicateOwnership

// translateError maps internal errors onto the package sentinels. The
// original error stays retrievable through errors.As for diagnostics.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}

	var he *frs.HeaderError
	if errors.As(err, &he) {
		return fmt.Errorf("%w: %w", ErrHeaderCorrupt, err)
	}
	var cm *frs.ChecksumMismatchError
	if errors.As(err, &cm) {
		return fmt.Errorf("%w: %w", ErrHeaderCorrupt, err)
	}
	var ce *frs.CatalogError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrCatalogTruncated, err)
	}

	return err
}
