package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"scenematch/internal/artifact"
	"scenematch/internal/config"
	"scenematch/internal/queue"
	"scenematch/internal/testsupport"
)

func seedReviewItem(t *testing.T, cfg *config.Config, name string) *queue.Item {
	t.Helper()

	parked := filepath.Join(cfg.Paths.AmbiguousDir, name)
	testsupport.WriteFile(t, parked, 2048)

	art := artifact.Artifact{
		ID:       "review-test",
		Decision: "ambiguous",
		Reason:   "ambiguous_no_consensus",
		Candidates: []artifact.CandidateRecord{
			{GUID: "guid-1", Title: "First Scene", SiteName: "Evil Angel", ReleaseDate: "2022-01-03", Performers: []string{"Carmela Clutch"}},
			{GUID: "guid-2", Title: "Second Scene", SiteName: "Evil Angel", ReleaseDate: "2022-02-14"},
		},
		CandidateGUIDs: []string{"guid-1", "guid-2"},
	}
	payload, err := json.Marshal(art)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	sidecar := parked[:len(parked)-len(filepath.Ext(parked))] + ".match.json"
	if err := os.WriteFile(sidecar, payload, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewItem(t, store, filepath.Join(cfg.Paths.WatchDir, name))
	item.Status = queue.StatusReview
	item.Decision = "ambiguous"
	item.DecisionReason = "ambiguous_no_consensus"
	item.FinalPath = parked
	item.ArtifactJSON = string(payload)
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("update item: %v", err)
	}
	store.Close()
	return item
}

func TestReviewListShowsPendingItems(t *testing.T) {
	env := setupCLITestEnv(t)
	seedReviewItem(t, env.cfg, "uncertain.mp4")

	out, _, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "uncertain.mp4")
	requireContains(t, out, "ambiguous_no_consensus")
}

func TestReviewShowListsCandidates(t *testing.T) {
	env := setupCLITestEnv(t)
	item := seedReviewItem(t, env.cfg, "uncertain.mp4")

	out, _, err := runCLI(t, []string{"review", "show", itoa(item.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("review show: %v", err)
	}
	requireContains(t, out, "guid-1")
	requireContains(t, out, "guid-2")
	requireContains(t, out, "First Scene")
}

func TestReviewResolveFilesIntoLibrary(t *testing.T) {
	env := setupCLITestEnv(t)
	item := seedReviewItem(t, env.cfg, "uncertain.mp4")

	out, _, err := runCLI(t, []string{"review", "resolve", itoa(item.ID), "guid-1"}, env.configPath)
	if err != nil {
		t.Fatalf("review resolve: %v", err)
	}
	requireContains(t, out, "Resolved item")

	expected := filepath.Join(env.cfg.Paths.LibraryDir, "Evil Angel",
		"Evil Angel - 2022-01-03 - First Scene [Carmela Clutch].mp4")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("expected library file at %s: %v", expected, err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.AmbiguousDir, "uncertain.match.json")); !os.IsNotExist(err) {
		t.Fatal("expected review sidecar to be removed")
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil || updated == nil {
		t.Fatalf("reload item: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("expected completed status, got %s", updated.Status)
	}
	if updated.ChosenGUID != "guid-1" {
		t.Fatalf("expected chosen guid-1, got %q", updated.ChosenGUID)
	}
	if updated.FinalPath != expected {
		t.Fatalf("expected final path %s, got %s", expected, updated.FinalPath)
	}
}

func TestReviewRejectParksInFailedDir(t *testing.T) {
	env := setupCLITestEnv(t)
	item := seedReviewItem(t, env.cfg, "uncertain.mp4")

	out, _, err := runCLI(t, []string{"review", "reject", itoa(item.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("review reject: %v", err)
	}
	requireContains(t, out, "Rejected item")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.FailedDir, "uncertain.mp4")); err != nil {
		t.Fatalf("expected file in failed dir: %v", err)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil || updated == nil {
		t.Fatalf("reload item: %v", err)
	}
	if updated.Status != queue.StatusRejected {
		t.Fatalf("expected rejected status, got %s", updated.Status)
	}
}

func TestReviewResolveRejectsUnknownGUID(t *testing.T) {
	env := setupCLITestEnv(t)
	item := seedReviewItem(t, env.cfg, "uncertain.mp4")

	_, _, err := runCLI(t, []string{"review", "resolve", itoa(item.ID), "guid-404"}, env.configPath)
	if err == nil {
		t.Fatal("expected resolve with unknown guid to fail")
	}
}
