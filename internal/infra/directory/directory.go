// Package directory provides the data sources behind the bank's farmer list.
// Fixture serves a static scored portfolio; Live derives a card from the
// lending API for the one farmer it exposes. Configuration picks one.
package directory

import (
	"fmt"

	"github.com/agrocredit/agrolend/internal/domain"
)

// Source names accepted in configuration.
const (
	SourceFixture = "fixture"
	SourceLive    = "live"
)

// New returns the directory for source.
func New(source string, api domain.FarmerAPI) (domain.FarmerDirectory, error) {
	switch source {
	case SourceFixture, "":
		return NewFixture(), nil
	case SourceLive:
		return NewLive(api), nil
	default:
		return nil, fmt.Errorf("%w: directory source %q", domain.ErrUnknownSource, source)
	}
}
