package disambig

import (
	"errors"
	"reflect"
	"testing"

	"scenematch/internal/match"
	"scenematch/internal/services"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		AcceptDistance:         6,
		AmbiguousMin:           7,
		AmbiguousMax:           12,
		DistanceMarginAccept:   3,
		MajorityAcceptFraction: 0.7,
		MinNameSimilarity:      0.85,
	}
}

func withDistance(guid string, distance int) match.ComparisonResult {
	d := distance
	confidence := 0.5
	return match.ComparisonResult{
		Candidate:       match.CandidateScene{GUID: guid, Title: guid},
		NameSimilarity:  0.5,
		PhashDistance:   &d,
		PhashConfidence: &confidence,
		PhashMatched:    distance <= 6,
	}
}

func nameOnly(guid string, similarity float64) match.ComparisonResult {
	return match.ComparisonResult{
		Candidate:      match.CandidateScene{GUID: guid, Title: guid},
		NameSimilarity: similarity,
	}
}

func TestDecideEmptyCandidates(t *testing.T) {
	outcome, err := Decide(nil, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionReject || outcome.Reason != ReasonNoCandidates {
		t.Fatalf("expected reject/no_candidates, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if outcome.Chosen != nil {
		t.Fatal("reject must not carry a chosen candidate")
	}
}

func TestDecideSingleCandidateUnderAcceptDistance(t *testing.T) {
	outcome, err := Decide([]match.ComparisonResult{withDistance("A", 2)}, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAccept || outcome.Reason != ReasonAcceptedHighConfidence {
		t.Fatalf("expected accept/accepted_high_confidence, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if outcome.Chosen == nil || outcome.Chosen.GUID != "A" {
		t.Fatalf("expected chosen A, got %+v", outcome.Chosen)
	}
}

func TestDecideAcceptWithDistanceMargin(t *testing.T) {
	// best=5, second=9: margin 4 >= 3.
	results := []match.ComparisonResult{
		withDistance("A", 5),
		withDistance("B", 9),
		withDistance("C", 12),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAccept || outcome.Reason != ReasonAcceptedHighConfidence {
		t.Fatalf("expected margin accept, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if outcome.Chosen.GUID != "A" {
		t.Fatalf("expected A, got %s", outcome.Chosen.GUID)
	}
}

func TestDecideAmbiguousWhenNoMarginAndNoMajority(t *testing.T) {
	// best=3, second=4: margin 1 < 3; two distinct GUIDs split 50/50 < 0.7.
	results := []match.ComparisonResult{
		withDistance("A", 3),
		withDistance("B", 4),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAmbiguous || outcome.Reason != ReasonAmbiguousNoConsensus {
		t.Fatalf("expected ambiguous/no_consensus, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if !reflect.DeepEqual(outcome.CandidateGUIDs, []string{"A", "B"}) {
		t.Fatalf("expected both GUIDs best-first, got %v", outcome.CandidateGUIDs)
	}
}

func TestDecideAcceptWhenMajorityFractionMet(t *testing.T) {
	// Margin 1 < 3, but A holds 3 of 4 fingerprints (0.75 >= 0.7).
	results := []match.ComparisonResult{
		withDistance("A", 5),
		withDistance("A", 6),
		withDistance("A", 6),
		withDistance("B", 6),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAccept || outcome.Reason != ReasonAcceptedMajority {
		t.Fatalf("expected majority accept, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if outcome.Chosen.GUID != "A" {
		t.Fatalf("expected A, got %s", outcome.Chosen.GUID)
	}
}

func TestDecideMajorityForOtherGUIDDoesNotAccept(t *testing.T) {
	// B dominates the counts but is not the best candidate.
	results := []match.ComparisonResult{
		withDistance("A", 4),
		withDistance("B", 5),
		withDistance("B", 5),
		withDistance("B", 6),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAmbiguous || outcome.Reason != ReasonAmbiguousNoConsensus {
		t.Fatalf("expected ambiguous when majority belongs to runner-up, got %s/%s", outcome.Decision, outcome.Reason)
	}
}

func TestDecideAmbiguousBand(t *testing.T) {
	outcome, err := Decide([]match.ComparisonResult{withDistance("X", 9)}, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionAmbiguous || outcome.Reason != ReasonAmbiguousBand {
		t.Fatalf("expected ambiguous/band, got %s/%s", outcome.Decision, outcome.Reason)
	}
	if !reflect.DeepEqual(outcome.CandidateGUIDs, []string{"X"}) {
		t.Fatalf("expected [X], got %v", outcome.CandidateGUIDs)
	}
}

func TestDecideBandListsOnlyCandidatesInsideBand(t *testing.T) {
	results := []match.ComparisonResult{
		withDistance("X", 8),
		withDistance("Y", 11),
		withDistance("Z", 20),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Reason != ReasonAmbiguousBand {
		t.Fatalf("expected ambiguous_band, got %s", outcome.Reason)
	}
	if !reflect.DeepEqual(outcome.CandidateGUIDs, []string{"X", "Y"}) {
		t.Fatalf("expected band members only, got %v", outcome.CandidateGUIDs)
	}
}

func TestDecideRejectBeyondAmbiguousBand(t *testing.T) {
	outcome, err := Decide([]match.ComparisonResult{withDistance("X", 20)}, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision != DecisionReject || outcome.Reason != ReasonBelowThreshold {
		t.Fatalf("expected reject/below_threshold, got %s/%s", outcome.Decision, outcome.Reason)
	}
}

func TestDecideNoPhashSignalFallsBackToNameSimilarity(t *testing.T) {
	th := defaultThresholds()

	accepted, err := Decide([]match.ComparisonResult{nameOnly("A", 0.95)}, th)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if accepted.Decision != DecisionAccept || accepted.Chosen.GUID != "A" {
		t.Fatalf("expected textual accept, got %+v", accepted)
	}

	rejected, err := Decide([]match.ComparisonResult{nameOnly("A", 0.40)}, th)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if rejected.Decision != DecisionReject || rejected.Reason != ReasonBelowThreshold {
		t.Fatalf("expected textual reject, got %+v", rejected)
	}
}

func TestDecideDeterministic(t *testing.T) {
	results := []match.ComparisonResult{
		withDistance("A", 3),
		withDistance("B", 4),
		withDistance("C", 9),
	}
	first, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Decide(results, defaultThresholds())
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("decision not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestDecideTieBreakStability(t *testing.T) {
	// Genuinely tied candidates: the first-encountered one wins.
	results := []match.ComparisonResult{
		withDistance("first", 5),
		withDistance("second", 5),
	}
	outcome, err := Decide(results, defaultThresholds())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Decision == DecisionAccept && outcome.Chosen.GUID != "first" {
		t.Fatalf("tie must resolve to first candidate, got %s", outcome.Chosen.GUID)
	}
	if outcome.Decision == DecisionAmbiguous && outcome.CandidateGUIDs[0] != "first" {
		t.Fatalf("ambiguous list must lead with first candidate, got %v", outcome.CandidateGUIDs)
	}
}

func TestDecidePartitionIsExactlyOneDecision(t *testing.T) {
	scenarios := [][]match.ComparisonResult{
		nil,
		{withDistance("A", 0)},
		{withDistance("A", 6)},
		{withDistance("A", 7)},
		{withDistance("A", 12)},
		{withDistance("A", 13)},
		{nameOnly("A", 0.99)},
		{nameOnly("A", 0.0)},
		{withDistance("A", 3), withDistance("B", 4)},
	}
	for i, results := range scenarios {
		outcome, err := Decide(results, defaultThresholds())
		if err != nil {
			t.Fatalf("scenario %d: %v", i, err)
		}
		switch outcome.Decision {
		case DecisionAccept, DecisionReject, DecisionAmbiguous:
		default:
			t.Fatalf("scenario %d produced invalid decision %q", i, outcome.Decision)
		}
		if (outcome.Chosen != nil) != (outcome.Decision == DecisionAccept) {
			t.Fatalf("scenario %d: chosen presence inconsistent with decision %s", i, outcome.Decision)
		}
		if len(outcome.CandidateGUIDs) > 0 && outcome.Decision != DecisionAmbiguous {
			t.Fatalf("scenario %d: candidate GUIDs present for %s", i, outcome.Decision)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	valid := defaultThresholds()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default thresholds should validate: %v", err)
	}

	cases := map[string]func(*Thresholds){
		"fraction above range":           func(th *Thresholds) { th.MajorityAcceptFraction = 1.5 },
		"fraction below range":           func(th *Thresholds) { th.MajorityAcceptFraction = -0.1 },
		"accept not below ambiguous min": func(th *Thresholds) { th.AcceptDistance = th.AmbiguousMin },
		"ambiguous min greater than max": func(th *Thresholds) { th.AmbiguousMin = 10; th.AmbiguousMax = 9 },
		"negative margin":                func(th *Thresholds) { th.DistanceMarginAccept = -1 },
		"negative accept distance":       func(th *Thresholds) { th.AcceptDistance = -1 },
		"name similarity above range":    func(th *Thresholds) { th.MinNameSimilarity = 1.2 },
	}
	for name, mutate := range cases {
		th := defaultThresholds()
		mutate(&th)
		err := th.Validate()
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
		if _, decideErr := Decide(nil, th); !errors.Is(decideErr, services.ErrConfiguration) {
			t.Fatalf("%s: Decide must fail fast on invalid thresholds, got %v", name, decideErr)
		}
	}
}
