package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/services"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// How a match was established. Identifier matches outrank any text score.
const (
	MatchedByUPC  = "upc"
	MatchedByISRC = "isrc"
	MatchedByText = "text-search"
)

// codeConfidence sits above the maximum text score of 2, so an identifier
// match always wins.
const codeConfidence = 3

// MatchCandidate is the matcher's verdict for one source item. It is
// ephemeral: the orchestrator consumes it immediately to decide between
// add-to-library and already-owned.
type MatchCandidate struct {
	DestinationID string
	Confidence    int
	MatchedBy     string
}

// Matcher resolves source items to entries in one destination catalog.
//
// Identifier lookup (UPC for albums, ISRC for tracks) runs first and
// short-circuits text search entirely for items it resolves. The text
// fallback is deliberately conservative: a candidate scores one point per
// exact case-insensitive field match on name and artist, and a score of
// zero is never accepted.
type Matcher struct {
	catalog services.Catalog
	logger  *log.Logger
}

func NewMatcher(catalog services.Catalog, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Matcher{catalog: catalog, logger: logger}
}

// MatchAlbum finds the destination catalog entry for one album.
// Returns nil when nothing matched.
func (m *Matcher) MatchAlbum(ctx context.Context, album models.Album) (*MatchCandidate, error) {
	if album.UPC != "" {
		found, err := m.catalog.GetItemsByCode(ctx, services.SearchAlbums, []string{album.UPC})
		if err != nil {
			return nil, err
		}
		if id, ok := found[album.UPC]; ok {
			return &MatchCandidate{DestinationID: id, Confidence: codeConfidence, MatchedBy: MatchedByUPC}, nil
		}
	}

	return m.textSearch(ctx, services.SearchAlbums, album.Name, album.Artist)
}

// MatchTrack finds the destination catalog entry for one track.
// Returns nil when nothing matched.
func (m *Matcher) MatchTrack(ctx context.Context, track models.Track) (*MatchCandidate, error) {
	if track.ISRC != "" {
		found, err := m.catalog.GetItemsByCode(ctx, services.SearchTracks, []string{track.ISRC})
		if err != nil {
			return nil, err
		}
		if id, ok := found[track.ISRC]; ok {
			return &MatchCandidate{DestinationID: id, Confidence: codeConfidence, MatchedBy: MatchedByISRC}, nil
		}
	}

	return m.textSearch(ctx, services.SearchTracks, track.Title, track.Artist)
}

// MatchTracks resolves a playlist's tracks in source order. The returned
// slice is index-aligned with tracks; unmatched entries are nil.
//
// Recording codes for the whole list are resolved in one identifier pass
// first. Remaining tracks fall back to text search, fanned out in batches
// of the provider's search limit so concurrent outbound requests stay
// bounded. Per-track failures are logged and counted as unmatched, never
// aborting the whole list.
func (m *Matcher) MatchTracks(ctx context.Context, tracks []models.Track) []*MatchCandidate {
	results := make([]*MatchCandidate, len(tracks))

	codes := make([]string, 0, len(tracks))
	for _, track := range tracks {
		if track.ISRC != "" {
			codes = append(codes, track.ISRC)
		}
	}

	if len(codes) > 0 {
		found, err := m.catalog.GetItemsByCode(ctx, services.SearchTracks, codes)
		if err != nil {
			m.logger.Warn("identifier lookup failed, falling back to text search", "error", err)
		} else {
			for i, track := range tracks {
				if track.ISRC == "" {
					continue
				}
				if id, ok := found[track.ISRC]; ok {
					results[i] = &MatchCandidate{DestinationID: id, Confidence: codeConfidence, MatchedBy: MatchedByISRC}
				}
			}
		}
	}

	batchSize := m.catalog.Limits().Search
	if batchSize <= 0 {
		batchSize = 25
	}

	pending := make([]int, 0, len(tracks))
	for i := range tracks {
		if results[i] == nil {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, idx := range pending[start:end] {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()

				track := tracks[idx]
				candidate, err := m.textSearch(ctx, services.SearchTracks, track.Title, track.Artist)
				if err != nil {
					m.logger.Warn("track search failed", "title", track.Title, "error", err)
					return
				}
				results[idx] = candidate
			}(idx)
		}
		wg.Wait()
	}

	return results
}

// textSearch issues a "{name} {artist}" catalog search and selects the
// strictly best-scoring candidate. Ties keep the first-seen candidate and
// a zero score is treated as no match.
func (m *Matcher) textSearch(ctx context.Context, kind services.SearchKind, name, artist string) (*MatchCandidate, error) {
	query := strings.TrimSpace(name + " " + artist)
	if query == "" {
		return nil, nil
	}

	candidates, err := m.catalog.SearchCatalog(ctx, query, kind)
	if err != nil {
		return nil, err
	}

	var best *MatchCandidate
	bestScore := 0
	for _, candidate := range candidates {
		score := scoreCandidate(candidate, name, artist)
		if score > bestScore {
			bestScore = score
			best = &MatchCandidate{DestinationID: candidate.ID, Confidence: score, MatchedBy: MatchedByText}
		}
	}

	return best, nil
}

// scoreCandidate counts exact case-insensitive field matches: 0, 1 or 2.
func scoreCandidate(candidate services.Candidate, name, artist string) int {
	score := 0
	if shared.NormalizeItemField(candidate.Name) == shared.NormalizeItemField(name) {
		score++
	}
	if shared.NormalizeItemField(candidate.Artist) == shared.NormalizeItemField(artist) {
		score++
	}
	return score
}
