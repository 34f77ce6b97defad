// Package theporndb talks to the ThePornDB REST API.
package theporndb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scenematch/internal/fileinfo"
	"scenematch/internal/match"
	"scenematch/internal/phash"
	"scenematch/internal/services"
)

// Client provides access to the ThePornDB API. Authentication uses a bearer
// token.
type Client struct {
	token             string
	baseURL           string
	fingerprintSearch bool
	httpClient        *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithFingerprintSearch toggles the hash lookup that runs alongside the
// filename search.
func WithFingerprintSearch(enabled bool) Option {
	return func(c *Client) {
		c.fingerprintSearch = enabled
	}
}

// New creates a ThePornDB client.
func New(token, baseURL string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("theporndb token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("theporndb base url required")
	}
	client := &Client{
		token:             token,
		baseURL:           strings.TrimRight(baseURL, "/"),
		fingerprintSearch: true,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in logs and artifacts.
func (c *Client) Name() string {
	return "theporndb"
}

// FetchCandidates asks ThePornDB to parse the raw filename and, when enabled
// and a query hash is present, runs a hash lookup. Results are merged in
// fetch order with duplicates by scene ID dropped.
func (c *Client) FetchCandidates(ctx context.Context, info fileinfo.FileInfo, queryHash string) ([]match.CandidateScene, error) {
	parse := strings.TrimSpace(info.RawFilename)
	if parse == "" {
		parse = strings.TrimSpace(info.SceneName)
	}
	if parse == "" && queryHash == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build query", "filename parsed to nothing and no hash available", nil)
	}

	var candidates []match.CandidateScene
	if parse != "" {
		scenes, err := c.SearchScenes(ctx, parse)
		if err != nil {
			return nil, err
		}
		candidates = scenes
	}

	if c.fingerprintSearch && queryHash != "" {
		scenes, err := c.ScenesByHash(ctx, queryHash)
		if err != nil {
			return nil, err
		}
		candidates = mergeCandidates(candidates, scenes)
	}

	return candidates, nil
}

// SearchScenes asks the API to parse a release name into scene matches.
func (c *Client) SearchScenes(ctx context.Context, parse string) ([]match.CandidateScene, error) {
	parse = strings.TrimSpace(parse)
	if parse == "" {
		return nil, errors.New("parse query must not be empty")
	}
	endpoint := c.baseURL + "/scenes?parse=" + url.QueryEscape(parse)
	return c.fetchScenes(ctx, endpoint)
}

// ScenesByHash looks up scenes sharing a perceptual hash.
func (c *Client) ScenesByHash(ctx context.Context, hash string) ([]match.CandidateScene, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, errors.New("hash must not be empty")
	}
	endpoint := c.baseURL + "/scenes/hash/" + url.PathEscape(hash)
	return c.fetchScenes(ctx, endpoint)
}

type scene struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Site  struct {
		Name string `json:"name"`
	} `json:"site"`
	Performers []struct {
		Name string `json:"name"`
	} `json:"performers"`
	Hashes []struct {
		Hash string `json:"hash"`
		Type string `json:"type"`
	} `json:"hashes"`
}

func (c *Client) fetchScenes(ctx context.Context, endpoint string) ([]match.CandidateScene, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "theporndb request", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Hash lookups 404 when nothing shares the fingerprint.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrProvider
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return nil, services.Wrap(marker, "fetch", "theporndb request", fmt.Sprintf("theporndb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, services.Wrap(services.ErrProvider, "fetch", "theporndb request", "decode response", err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	// The data field is a list for searches and a single object for direct
	// hash hits.
	var scenes []scene
	if err := json.Unmarshal(envelope.Data, &scenes); err != nil {
		var single scene
		if err := json.Unmarshal(envelope.Data, &single); err != nil {
			return nil, services.Wrap(services.ErrProvider, "fetch", "theporndb request", "decode data", err)
		}
		scenes = []scene{single}
	}
	return mapScenes(scenes), nil
}

func mapScenes(scenes []scene) []match.CandidateScene {
	candidates := make([]match.CandidateScene, 0, len(scenes))
	for _, s := range scenes {
		candidate := match.CandidateScene{
			GUID:        s.ID,
			Title:       s.Title,
			SiteName:    s.Site.Name,
			ReleaseDate: s.Date,
		}
		for _, p := range s.Performers {
			if name := strings.TrimSpace(p.Name); name != "" {
				candidate.Performers = append(candidate.Performers, name)
			}
		}
		for _, h := range s.Hashes {
			if h.Hash == "" {
				continue
			}
			candidate.Fingerprints = append(candidate.Fingerprints, phash.Fingerprint{
				Hash:      h.Hash,
				Algorithm: h.Type,
			})
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func mergeCandidates(base, extra []match.CandidateScene) []match.CandidateScene {
	seen := make(map[string]struct{}, len(base))
	for _, candidate := range base {
		if candidate.GUID != "" {
			seen[candidate.GUID] = struct{}{}
		}
	}
	for _, candidate := range extra {
		if candidate.GUID != "" {
			if _, dup := seen[candidate.GUID]; dup {
				continue
			}
			seen[candidate.GUID] = struct{}{}
		}
		base = append(base, candidate)
	}
	return base
}
