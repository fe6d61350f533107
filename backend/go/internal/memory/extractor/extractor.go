// Package extractor turns conversation exchanges into candidate facts and
// decides which candidates are worth remembering.
package extractor

import (
	"context"

	"minerva/backend/go/internal/models"
)

// Extractor defines the interface for extracting facts from exchanges.
// Implementations return an empty slice, not an error, when the model
// output cannot be parsed.
type Extractor interface {
	Extract(ctx context.Context, batch []models.Exchange) ([]models.ExtractedFact, error)
}
