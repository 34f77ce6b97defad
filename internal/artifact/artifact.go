// Package artifact serializes one matching decision into the record consumed
// by the file-operations layer and the manual-review listing.
package artifact

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"scenematch/internal/disambig"
	"scenematch/internal/fileinfo"
	"scenematch/internal/match"
)

// CandidateRecord is the serialized view of one scored candidate.
type CandidateRecord struct {
	GUID            string   `json:"guid"`
	Title           string   `json:"title"`
	SiteName        string   `json:"site_name,omitempty"`
	ReleaseDate     string   `json:"release_date,omitempty"`
	Performers      []string `json:"performers,omitempty"`
	NameSimilarity  float64  `json:"name_similarity"`
	PhashMatched    bool     `json:"phash_matched"`
	PhashDistance   *int     `json:"phash_distance,omitempty"`
	PhashConfidence *float64 `json:"phash_confidence,omitempty"`
}

// FileRecord is the serialized view of the parsed filename.
type FileRecord struct {
	Site        string   `json:"site,omitempty"`
	Date        string   `json:"date,omitempty"`
	SceneName   string   `json:"scene_name"`
	Performers  []string `json:"performers,omitempty"`
	RawFilename string   `json:"raw_filename"`
	Extension   string   `json:"extension,omitempty"`
}

// Artifact is the structured output for one processed file. For ambiguous
// decisions it carries the reason and the review-worthy candidate GUIDs; for
// accepts it names the chosen candidate.
type Artifact struct {
	ID             string            `json:"id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	File           FileRecord        `json:"file"`
	Decision       string            `json:"decision"`
	Reason         string            `json:"reason"`
	Chosen         *CandidateRecord  `json:"chosen,omitempty"`
	Candidates     []CandidateRecord `json:"candidates"`
	CandidateGUIDs []string          `json:"candidate_guids,omitempty"`
}

// Build produces the artifact for one decision. topN limits the serialized
// candidate list; zero or negative keeps all. Pure transform, no I/O.
func Build(outcome disambig.Outcome, info fileinfo.FileInfo, results []match.ComparisonResult, topN int) Artifact {
	count := len(results)
	if topN > 0 && topN < count {
		count = topN
	}

	candidates := make([]CandidateRecord, 0, count)
	for _, result := range results[:count] {
		candidates = append(candidates, newCandidateRecord(result))
	}

	art := Artifact{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		File: FileRecord{
			Site:        info.Site,
			Date:        info.Date,
			SceneName:   info.SceneName,
			Performers:  info.Performers,
			RawFilename: info.RawFilename,
			Extension:   info.Extension,
		},
		Decision:   string(outcome.Decision),
		Reason:     string(outcome.Reason),
		Candidates: candidates,
	}

	if outcome.Decision == disambig.DecisionAccept && outcome.Chosen != nil {
		for _, result := range results {
			if result.Candidate.GUID == outcome.Chosen.GUID {
				record := newCandidateRecord(result)
				art.Chosen = &record
				break
			}
		}
	}
	if outcome.Decision == disambig.DecisionAmbiguous {
		art.CandidateGUIDs = outcome.CandidateGUIDs
	}

	return art
}

// MarshalIndent renders the artifact as indented JSON for sidecar files.
func (a Artifact) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

func newCandidateRecord(result match.ComparisonResult) CandidateRecord {
	return CandidateRecord{
		GUID:            result.Candidate.GUID,
		Title:           result.Candidate.Title,
		SiteName:        result.Candidate.SiteName,
		ReleaseDate:     result.Candidate.ReleaseDate,
		Performers:      result.Candidate.Performers,
		NameSimilarity:  result.NameSimilarity,
		PhashMatched:    result.PhashMatched,
		PhashDistance:   result.PhashDistance,
		PhashConfidence: result.PhashConfidence,
	}
}
