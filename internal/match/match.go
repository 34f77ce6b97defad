// Package match scores provider candidates against a parsed filename.
//
// Scoring is a pure transform: every candidate receives a ComparisonResult
// with a [0,1] name similarity and, when a query hash was supplied, the
// minimum Hamming distance across the candidate's compatible fingerprints.
// A candidate without a compatible fingerprint keeps its phash fields unset;
// the decision engine treats that as "no phash signal", which is distinct
// from a phash signal that was present but rejected.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"scenematch/internal/fileinfo"
	"scenematch/internal/logging"
	"scenematch/internal/phash"
	"scenematch/internal/services"
	"scenematch/internal/textutil"
)

// CandidateScene is a single candidate returned by a metadata provider.
// Candidates from different providers are never mixed in one decision pass.
type CandidateScene struct {
	GUID         string
	Title        string
	SiteName     string
	ReleaseDate  string // normalized YYYY-MM-DD, empty when unknown
	Performers   []string
	Fingerprints []phash.Fingerprint
}

// ComparisonResult attaches scores to one (FileInfo, CandidateScene) pair.
// Values are immutable after scoring; the ordered slice produced by Score is
// handed to the decision engine as-is.
type ComparisonResult struct {
	Candidate       CandidateScene
	NameSimilarity  float64
	PhashMatched    bool
	PhashDistance   *int
	PhashConfidence *float64
	FilePath        string
}

// Options configures one scoring pass.
type Options struct {
	// AcceptDistance is the Hamming distance at or below which a fingerprint
	// counts as matched; it is also the confidence threshold.
	AcceptDistance int
	// Algorithm names the hash family of the query hash.
	Algorithm string
}

// Score computes a ComparisonResult per candidate, ordered best-first by
// name similarity with phash confidence as the secondary key. Ties keep the
// candidate fetch order (stable sort).
//
// filePath is the absolute path of the file being matched; it must reference
// an existing regular file or Score fails with services.ErrValidation before
// any scoring happens. Per-candidate hash failures are logged and leave that
// candidate without a phash signal; they never abort the pass.
func Score(ctx context.Context, logger *slog.Logger, info fileinfo.FileInfo, filePath string, candidates []CandidateScene, queryHash string, opts Options) ([]ComparisonResult, error) {
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "scoring"))

	if err := validateFilePath(filePath); err != nil {
		return nil, err
	}

	results := make([]ComparisonResult, 0, len(candidates))
	for idx, candidate := range candidates {
		result := ComparisonResult{
			Candidate:      candidate,
			NameSimilarity: nameSimilarity(info, candidate),
			FilePath:       filePath,
		}

		if queryHash != "" {
			distance, found := nearestFingerprint(log, candidate, queryHash, opts.Algorithm)
			if found {
				d := distance
				confidence := phash.Confidence(d, opts.AcceptDistance)
				result.PhashDistance = &d
				result.PhashConfidence = &confidence
				result.PhashMatched = d <= opts.AcceptDistance
			}
		}

		log.Debug("scored candidate",
			logging.Int("candidate_index", idx),
			logging.String("guid", candidate.GUID),
			logging.String("title", candidate.Title),
			logging.Float64("name_similarity", result.NameSimilarity),
			logging.Bool("phash_matched", result.PhashMatched),
			logging.String("phash_distance", formatOptionalInt(result.PhashDistance)),
		)

		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].NameSimilarity != results[j].NameSimilarity {
			return results[i].NameSimilarity > results[j].NameSimilarity
		}
		return optionalFloat(results[i].PhashConfidence) > optionalFloat(results[j].PhashConfidence)
	})

	return results, nil
}

// nameSimilarity blends fuzzy title similarity with site and date agreement.
// Site and date only participate when the parsed filename carries them, so a
// sparse parse degrades gracefully instead of dragging the score down.
func nameSimilarity(info fileinfo.FileInfo, candidate CandidateScene) float64 {
	query := info.SceneName
	if len(info.Performers) > 0 {
		query += " " + strings.Join(info.Performers, " ")
	}
	target := candidate.Title
	if len(candidate.Performers) > 0 {
		target += " " + strings.Join(candidate.Performers, " ")
	}

	score := titleWeight * textutil.Similarity(query, target)
	total := titleWeight

	if info.Site != "" && candidate.SiteName != "" {
		total += siteWeight
		if siteKey(info.Site) == siteKey(candidate.SiteName) {
			score += siteWeight
		} else {
			score += siteWeight * textutil.Similarity(info.Site, candidate.SiteName)
		}
	}
	if info.Date != "" && candidate.ReleaseDate != "" {
		total += dateWeight
		if info.Date == candidate.ReleaseDate {
			score += dateWeight
		}
	}

	if total == 0 {
		return 0
	}
	similarity := score / total
	if similarity > 1.0 {
		return 1.0
	}
	if similarity < 0.0 {
		return 0.0
	}
	return similarity
}

const (
	titleWeight = 0.70
	siteWeight  = 0.15
	dateWeight  = 0.15
)

// siteKey squashes a site name into a comparison key. Filenames carry sites
// without separators ("EvilAngel") while providers return display names
// ("Evil Angel"); both reduce to the same key.
func siteKey(site string) string {
	return strings.ReplaceAll(textutil.NormalizedJoin(site), " ", "")
}

// nearestFingerprint returns the minimum Hamming distance between the query
// hash and the candidate's fingerprints of the same algorithm family. The
// boolean is false when no compatible fingerprint produced a distance.
func nearestFingerprint(log *slog.Logger, candidate CandidateScene, queryHash, algorithm string) (int, bool) {
	best := 0
	found := false
	query := phash.Fingerprint{Hash: queryHash, Algorithm: algorithm}
	for _, fp := range candidate.Fingerprints {
		if !query.CompatibleWith(fp) {
			continue
		}
		distance, err := phash.Distance(queryHash, fp.Hash)
		if err != nil {
			log.Warn("skipping malformed fingerprint",
				logging.String("guid", candidate.GUID),
				logging.String("algorithm", fp.Algorithm),
				logging.Error(err),
			)
			continue
		}
		if !found || distance < best {
			best = distance
			found = true
		}
	}
	return best, found
}

func validateFilePath(filePath string) error {
	stat, err := os.Stat(filePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "scoring", "validate path",
			fmt.Sprintf("file %s does not exist", filePath), err)
	}
	if !stat.Mode().IsRegular() {
		return services.Wrap(services.ErrValidation, "scoring", "validate path",
			fmt.Sprintf("%s is not a regular file", filePath), nil)
	}
	return nil
}

func optionalFloat(value *float64) float64 {
	if value == nil {
		return -1
	}
	return *value
}

func formatOptionalInt(value *int) string {
	if value == nil {
		return "unset"
	}
	return fmt.Sprintf("%d", *value)
}
