// Package disambig classifies a scored candidate set as accepted, rejected,
// or ambiguous.
//
// The decision runs once per file over the ordered ComparisonResult slice
// produced by the scoring engine. It keeps no state between files and is safe
// to invoke concurrently. Thresholds are validated at configuration load; the
// engine re-checks them defensively and fails fast if it ever observes an
// invalid ordering at runtime.
package disambig

import (
	"fmt"

	"scenematch/internal/match"
	"scenematch/internal/services"
)

// Decision is the three-way classification for one input file.
type Decision string

const (
	DecisionAccept    Decision = "accept"
	DecisionReject    Decision = "reject"
	DecisionAmbiguous Decision = "ambiguous"
)

// Reason explains how a decision was reached.
type Reason string

const (
	ReasonAcceptedHighConfidence Reason = "accepted_high_confidence"
	ReasonAcceptedMajority       Reason = "accepted_majority"
	ReasonNoCandidates           Reason = "no_candidates"
	ReasonBelowThreshold         Reason = "below_threshold"
	ReasonAmbiguousBand          Reason = "ambiguous_band"
	ReasonAmbiguousNoConsensus   Reason = "ambiguous_no_consensus"
)

// Thresholds carries the decision configuration. It is passed by value into
// Decide; there is no ambient configuration state.
type Thresholds struct {
	// AcceptDistance is the Hamming distance at or below which the best
	// candidate is eligible for automatic acceptance.
	AcceptDistance int
	// AmbiguousMin and AmbiguousMax bound the distance band where a match is
	// plausible but not confident enough to auto-accept.
	AmbiguousMin int
	AmbiguousMax int
	// DistanceMarginAccept is the lead (in distance) the best candidate needs
	// over the runner-up to be accepted outright.
	DistanceMarginAccept int
	// MajorityAcceptFraction is the share of candidates that must agree on
	// the best candidate's GUID for a majority accept.
	MajorityAcceptFraction float64
	// MinNameSimilarity is the textual threshold used when no phash signal is
	// available for the best candidate.
	MinNameSimilarity float64
}

// Validate checks internal consistency of the thresholds. All failures are
// services.ErrConfiguration.
func (t Thresholds) Validate() error {
	if t.MajorityAcceptFraction < 0.0 || t.MajorityAcceptFraction > 1.0 {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("majority_accept_fraction must be within [0.0, 1.0], got %v", t.MajorityAcceptFraction), nil)
	}
	if t.AcceptDistance < 0 {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("accept_distance must be >= 0, got %d", t.AcceptDistance), nil)
	}
	if t.AcceptDistance >= t.AmbiguousMin {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("accept_distance (%d) must be less than ambiguous_min (%d)", t.AcceptDistance, t.AmbiguousMin), nil)
	}
	if t.AmbiguousMin > t.AmbiguousMax {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("ambiguous_min (%d) must be less than or equal to ambiguous_max (%d)", t.AmbiguousMin, t.AmbiguousMax), nil)
	}
	if t.DistanceMarginAccept < 0 {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("distance_margin_accept must be >= 0, got %d", t.DistanceMarginAccept), nil)
	}
	if t.MinNameSimilarity < 0.0 || t.MinNameSimilarity > 1.0 {
		return services.Wrap(services.ErrConfiguration, "disambig", "validate",
			fmt.Sprintf("min_name_similarity must be within [0.0, 1.0], got %v", t.MinNameSimilarity), nil)
	}
	return nil
}

// Outcome is the final classification for one input file.
type Outcome struct {
	Decision Decision
	// Chosen is present iff Decision is accept.
	Chosen *match.CandidateScene
	// CandidateGUIDs lists the candidates worth manual review, best first.
	// Present iff Decision is ambiguous.
	CandidateGUIDs []string
	Reason         Reason
}

// Decide classifies the ordered results (best first, per the scoring rank
// key) into exactly one of accept, reject, or ambiguous. Every invocation
// yields an Outcome; an empty candidate list rejects with no_candidates.
func Decide(results []match.ComparisonResult, th Thresholds) (Outcome, error) {
	if err := th.Validate(); err != nil {
		return Outcome{}, err
	}

	if len(results) == 0 {
		return Outcome{Decision: DecisionReject, Reason: ReasonNoCandidates}, nil
	}

	best := results[0]

	// No phash signal on the best candidate: fall back to the textual
	// threshold. "Unset" is not the same as "rejected by distance".
	if best.PhashDistance == nil {
		if best.NameSimilarity > th.MinNameSimilarity {
			chosen := best.Candidate
			return Outcome{Decision: DecisionAccept, Chosen: &chosen, Reason: ReasonAcceptedHighConfidence}, nil
		}
		return Outcome{Decision: DecisionReject, Reason: ReasonBelowThreshold}, nil
	}

	bestDistance := *best.PhashDistance

	if bestDistance <= th.AcceptDistance {
		if marginAccept(results, bestDistance, th.DistanceMarginAccept) {
			chosen := best.Candidate
			return Outcome{Decision: DecisionAccept, Chosen: &chosen, Reason: ReasonAcceptedHighConfidence}, nil
		}
		if majorityAccept(results, best.Candidate.GUID, th.MajorityAcceptFraction) {
			chosen := best.Candidate
			return Outcome{Decision: DecisionAccept, Chosen: &chosen, Reason: ReasonAcceptedMajority}, nil
		}
		return Outcome{
			Decision:       DecisionAmbiguous,
			Reason:         ReasonAmbiguousNoConsensus,
			CandidateGUIDs: guidsWithinDistance(results, bestDistance, th.AmbiguousMax),
		}, nil
	}

	if th.AmbiguousMin <= bestDistance && bestDistance <= th.AmbiguousMax {
		return Outcome{
			Decision:       DecisionAmbiguous,
			Reason:         ReasonAmbiguousBand,
			CandidateGUIDs: guidsInBand(results, th.AmbiguousMin, th.AmbiguousMax),
		}, nil
	}

	return Outcome{Decision: DecisionReject, Reason: ReasonBelowThreshold}, nil
}

// marginAccept reports whether the best candidate leads the runner-up (by
// phash distance) by at least margin. A missing runner-up counts as a win.
// Candidates without a phash signal do not compete for runner-up.
func marginAccept(results []match.ComparisonResult, bestDistance, margin int) bool {
	second, ok := secondDistance(results)
	if !ok {
		return true
	}
	return bestDistance <= second-margin
}

func secondDistance(results []match.ComparisonResult) (int, bool) {
	for _, result := range results[1:] {
		if result.PhashDistance != nil {
			return *result.PhashDistance, true
		}
	}
	return 0, false
}

// majorityAccept counts, over all candidates carrying a phash signal, how
// many share each GUID. The best candidate is accepted when its GUID is the
// most frequent one and its share reaches fraction. Ties on the count resolve
// to the first-encountered GUID, keeping the decision deterministic.
func majorityAccept(results []match.ComparisonResult, bestGUID string, fraction float64) bool {
	counts := make(map[string]int)
	order := make([]string, 0, len(results))
	total := 0
	for _, result := range results {
		if result.PhashDistance == nil {
			continue
		}
		guid := result.Candidate.GUID
		if _, seen := counts[guid]; !seen {
			order = append(order, guid)
		}
		counts[guid]++
		total++
	}
	if total == 0 {
		return false
	}

	topGUID := ""
	topCount := 0
	for _, guid := range order {
		if counts[guid] > topCount {
			topGUID = guid
			topCount = counts[guid]
		}
	}
	return topGUID == bestGUID && float64(topCount)/float64(total) >= fraction
}

// guidsWithinDistance lists (best first, deduplicated) the GUIDs of all
// candidates whose distance lies within spread of the best distance.
func guidsWithinDistance(results []match.ComparisonResult, bestDistance, spread int) []string {
	guids := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, result := range results {
		if result.PhashDistance == nil {
			continue
		}
		if *result.PhashDistance-bestDistance > spread {
			continue
		}
		guid := result.Candidate.GUID
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}
		guids = append(guids, guid)
	}
	return guids
}

// guidsInBand lists (best first, deduplicated) the GUIDs of all candidates
// whose distance falls inside [min, max].
func guidsInBand(results []match.ComparisonResult, min, max int) []string {
	guids := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, result := range results {
		if result.PhashDistance == nil {
			continue
		}
		if *result.PhashDistance < min || *result.PhashDistance > max {
			continue
		}
		guid := result.Candidate.GUID
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}
		guids = append(guids, guid)
	}
	return guids
}
