package theporndb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scenematch/internal/fileinfo"
	"scenematch/internal/providers/theporndb"
	"scenematch/internal/services"
)

const searchPayload = `{"data":[
    {"id":"tp-1","title":"Scene Title","date":"2023-11-29",
     "site":{"name":"Brazzers Extra"},
     "performers":[{"name":"Jane Doe"},{"name":"John Roe"}],
     "hashes":[{"hash":"ff00ff00ff00ff00","type":"PHASH"}]}
]}`

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := theporndb.New("", "https://example.com"); err == nil {
		t.Fatal("expected error when token missing")
	}
	if _, err := theporndb.New("token", ""); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestSearchScenesSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected bearer auth, got %q", got)
		}
		if r.URL.Path != "/scenes" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("parse"); got != "Brazzers.23.11.29.Scene.Title.mp4" {
			t.Fatalf("unexpected parse query: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchPayload))
	}))
	t.Cleanup(server.Close)

	client, err := theporndb.New("token", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scenes, err := client.SearchScenes(context.Background(), "Brazzers.23.11.29.Scene.Title.mp4")
	if err != nil {
		t.Fatalf("SearchScenes returned error: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(scenes))
	}
	scene := scenes[0]
	if scene.GUID != "tp-1" || scene.SiteName != "Brazzers Extra" {
		t.Fatalf("unexpected scene mapping: %#v", scene)
	}
	if len(scene.Performers) != 2 {
		t.Fatalf("unexpected performers: %v", scene.Performers)
	}
	if len(scene.Fingerprints) != 1 || scene.Fingerprints[0].Algorithm != "PHASH" {
		t.Fatalf("unexpected fingerprints: %#v", scene.Fingerprints)
	}
}

func TestScenesByHashSingleObjectAndMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/scenes/hash/") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"tp-9","title":"Direct Hit","date":"2024-01-01","site":{"name":"Vixen"},"performers":[],"hashes":[]}}`))
	}))
	t.Cleanup(server.Close)

	client, err := theporndb.New("token", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scenes, err := client.ScenesByHash(context.Background(), "aabb")
	if err != nil {
		t.Fatalf("ScenesByHash returned error: %v", err)
	}
	if len(scenes) != 1 || scenes[0].GUID != "tp-9" {
		t.Fatalf("unexpected scenes: %#v", scenes)
	}

	missed, err := client.ScenesByHash(context.Background(), "missing")
	if err != nil {
		t.Fatalf("hash miss should not error: %v", err)
	}
	if len(missed) != 0 {
		t.Fatalf("expected no scenes on miss, got %#v", missed)
	}
}

func TestFetchCandidatesUsesRawFilename(t *testing.T) {
	var parseQueries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/scenes" {
			parseQueries = append(parseQueries, r.URL.Query().Get("parse"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchPayload))
	}))
	t.Cleanup(server.Close)

	client, err := theporndb.New("token", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	info := fileinfo.FileInfo{
		RawFilename: "Brazzers.23.11.29.Scene.Title.mp4",
		SceneName:   "Scene Title",
	}
	if _, err := client.FetchCandidates(context.Background(), info, ""); err != nil {
		t.Fatalf("FetchCandidates returned error: %v", err)
	}
	if len(parseQueries) != 1 || parseQueries[0] != "Brazzers.23.11.29.Scene.Title.mp4" {
		t.Fatalf("expected raw filename parse query, got %v", parseQueries)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client, err := theporndb.New("token", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.SearchScenes(context.Background(), "anything")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
