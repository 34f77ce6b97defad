package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scenematch/internal/config"
	"scenematch/internal/disambig"
	"scenematch/internal/fileinfo"
	"scenematch/internal/logging"
	"scenematch/internal/match"
	"scenematch/internal/phash"
	"scenematch/internal/queue"
	"scenematch/internal/services"
	"scenematch/internal/testsupport"
	"scenematch/internal/workflow"
)

type stubProvider struct {
	candidates []match.CandidateScene
	err        error
	calls      int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) FetchCandidates(ctx context.Context, info fileinfo.FileInfo, queryHash string) ([]match.CandidateScene, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func newProcessor(t *testing.T, cfg *config.Config, store *queue.Store, provider *stubProvider) *workflow.Processor {
	t.Helper()
	processor, err := workflow.NewProcessor(cfg, store, provider, logging.NewNop())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return processor
}

func writeSource(t *testing.T, cfg *config.Config, name, hash string) string {
	t.Helper()
	source := filepath.Join(cfg.Paths.WatchDir, name)
	testsupport.WriteFile(t, source, 128)
	if hash != "" {
		if err := os.WriteFile(source+".phash", []byte(hash+"\n"), 0o644); err != nil {
			t.Fatalf("write phash sidecar: %v", err)
		}
	}
	return source
}

func TestProcessFileAcceptsExactPhashMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	provider := &stubProvider{candidates: []match.CandidateScene{{
		GUID:        "guid-1",
		Title:       "Fabulous Scene",
		SiteName:    "Evil Angel",
		ReleaseDate: "2022-01-03",
		Fingerprints: []phash.Fingerprint{
			{Hash: "aabbccdd00112233", Algorithm: "phash"},
		},
	}}}
	processor := newProcessor(t, cfg, store, provider)

	source := writeSource(t, cfg, "EvilAngel.22.01.03.Fabulous.Scene.mp4", "aabbccdd00112233")
	item, err := processor.ProcessFile(context.Background(), source)
	if err != nil {
		t.Fatalf("ProcessFile returned error: %v", err)
	}
	if item.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s", item.Status)
	}
	if item.Decision != string(disambig.DecisionAccept) {
		t.Fatalf("unexpected decision: %s", item.Decision)
	}
	if item.ChosenGUID != "guid-1" {
		t.Fatalf("unexpected chosen guid: %q", item.ChosenGUID)
	}
	if item.ArtifactJSON == "" {
		t.Fatal("expected artifact json recorded")
	}
	if filepath.Dir(filepath.Dir(item.FinalPath)) != cfg.Paths.LibraryDir {
		t.Fatalf("expected file under library, got %q", item.FinalPath)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source should have moved out of watch dir")
	}
	if _, err := os.Stat(source + ".phash"); !os.IsNotExist(err) {
		t.Fatal("phash sidecar should be cleaned up")
	}
}

func TestProcessFileAmbiguousBandGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// One byte fully flipped: distance 8, inside the 7..12 ambiguous band.
	provider := &stubProvider{candidates: []match.CandidateScene{{
		GUID:  "guid-1",
		Title: "Some Scene",
		Fingerprints: []phash.Fingerprint{
			{Hash: "00000000000000ff", Algorithm: "phash"},
		},
	}}}
	processor := newProcessor(t, cfg, store, provider)

	source := writeSource(t, cfg, "band.mp4", "0000000000000000")
	item, err := processor.ProcessFile(context.Background(), source)
	if err != nil {
		t.Fatalf("ProcessFile returned error: %v", err)
	}
	if item.Status != queue.StatusReview {
		t.Fatalf("unexpected status: %s", item.Status)
	}
	if item.DecisionReason != string(disambig.ReasonAmbiguousBand) {
		t.Fatalf("unexpected reason: %s", item.DecisionReason)
	}
	if filepath.Dir(item.FinalPath) != cfg.Paths.AmbiguousDir {
		t.Fatalf("expected file in ambiguous dir, got %q", item.FinalPath)
	}
	sidecar := filepath.Join(cfg.Paths.AmbiguousDir, "band.match.json")
	if _, err := os.Stat(sidecar); err != nil {
		t.Fatalf("expected review sidecar: %v", err)
	}
}

func TestProcessFileNoCandidatesRejects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{}
	processor := newProcessor(t, cfg, store, provider)

	source := writeSource(t, cfg, "nomatch.mp4", "")
	item, err := processor.ProcessFile(context.Background(), source)
	if err != nil {
		t.Fatalf("ProcessFile returned error: %v", err)
	}
	if item.Status != queue.StatusRejected {
		t.Fatalf("unexpected status: %s", item.Status)
	}
	if item.DecisionReason != string(disambig.ReasonNoCandidates) {
		t.Fatalf("unexpected reason: %s", item.DecisionReason)
	}
	if filepath.Dir(item.FinalPath) != cfg.Paths.FailedDir {
		t.Fatalf("expected file in failed dir, got %q", item.FinalPath)
	}
}

func TestProcessFileProviderFailureMarksItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{err: services.Wrap(services.ErrTransient, "fetch", "stub", "boom", nil)}
	processor := newProcessor(t, cfg, store, provider)

	source := writeSource(t, cfg, "unlucky.mp4", "")
	item, err := processor.ProcessFile(context.Background(), source)
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
	if item == nil {
		t.Fatal("expected item even on failure")
	}
	if item.Status != queue.StatusFailed {
		t.Fatalf("unexpected status: %s", item.Status)
	}
	if item.ErrorMessage == "" {
		t.Fatal("expected recorded error message")
	}
	if filepath.Dir(item.FinalPath) != cfg.Paths.FailedDir {
		t.Fatalf("expected parked file in failed dir, got %q", item.FinalPath)
	}
	if provider.calls != 1 {
		t.Fatalf("expected a single provider call, got %d", provider.calls)
	}
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{}
	processor := newProcessor(t, cfg, store, provider)

	good := writeSource(t, cfg, "good.mp4", "")
	missing := filepath.Join(cfg.Paths.WatchDir, "missing.mp4")

	items, err := processor.ProcessBatch(context.Background(), []string{missing, good})
	if err == nil {
		t.Fatal("expected joined error for the missing file")
	}
	if len(items) != 2 {
		t.Fatalf("expected both items recorded, got %d", len(items))
	}

	processed, getErr := store.FindBySourcePath(context.Background(), good)
	if getErr != nil || processed == nil {
		t.Fatalf("good file should be processed: %v %#v", getErr, processed)
	}
	if processed.Status != queue.StatusRejected {
		t.Fatalf("unexpected status for good file: %s", processed.Status)
	}
}
