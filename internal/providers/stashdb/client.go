// Package stashdb talks to a StashDB GraphQL endpoint.
package stashdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scenematch/internal/fileinfo"
	"scenematch/internal/match"
	"scenematch/internal/phash"
	"scenematch/internal/services"
)

// Client provides access to the StashDB GraphQL API. StashDB authenticates
// with an ApiKey header, not a bearer token.
type Client struct {
	apiKey            string
	endpoint          string
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

// WithFingerprintSearch toggles the fingerprint lookup that runs alongside
// the text search.
func WithFingerprintSearch(enabled bool) Option {
	return func(c *Client) {
		c.fingerprintSearch = enabled
	}
}

// New creates a StashDB client.
func New(apiKey, endpoint string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("stashdb api key required")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("stashdb endpoint required")
	}
	client := &Client{
		apiKey:            apiKey,
		endpoint:          strings.TrimRight(endpoint, "/"),
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
	return "stashdb"
}

const searchScenesQuery = `
query SearchScenes($term: String!) {
    searchScene(term: $term) {
        id
        title
        date
        studio {
            name
        }
        performers {
            performer {
                name
            }
        }
        fingerprints {
            hash
            algorithm
        }
    }
}`

const findByFingerprintQuery = `
query SearchByFingerprint($hash: String!) {
    findSceneByFingerprint(fingerprint: {hash: $hash, algorithm: PHASH}) {
        id
        title
        date
        studio {
            name
        }
        performers {
            performer {
                name
            }
        }
        fingerprints {
            hash
            algorithm
        }
    }
}`

// FetchCandidates runs a text search for the parsed filename and, when
// enabled and a query hash is present, a fingerprint lookup. Results are
// merged in fetch order with duplicates by scene ID dropped.
func (c *Client) FetchCandidates(ctx context.Context, info fileinfo.FileInfo, queryHash string) ([]match.CandidateScene, error) {
	term := searchTerm(info)
	if term == "" && queryHash == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build query", "filename parsed to nothing and no hash available", nil)
	}

	var candidates []match.CandidateScene
	if term != "" {
		scenes, err := c.SearchScenes(ctx, term)
		if err != nil {
			return nil, err
		}
		candidates = scenes
	}

	if c.fingerprintSearch && queryHash != "" {
		scenes, err := c.FindSceneByFingerprint(ctx, queryHash)
		if err != nil {
			return nil, err
		}
		candidates = mergeCandidates(candidates, scenes)
	}

	return candidates, nil
}

// SearchScenes performs a text search.
func (c *Client) SearchScenes(ctx context.Context, term string) ([]match.CandidateScene, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("search term must not be empty")
	}

	var payload struct {
		SearchScene []scene `json:"searchScene"`
	}
	if err := c.execute(ctx, searchScenesQuery, map[string]any{"term": term}, &payload); err != nil {
		return nil, err
	}
	return mapScenes(payload.SearchScene), nil
}

// FindSceneByFingerprint looks up scenes sharing a perceptual hash.
func (c *Client) FindSceneByFingerprint(ctx context.Context, hash string) ([]match.CandidateScene, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, errors.New("fingerprint hash must not be empty")
	}

	var payload struct {
		FindSceneByFingerprint []scene `json:"findSceneByFingerprint"`
	}
	if err := c.execute(ctx, findByFingerprintQuery, map[string]any{"hash": hash}, &payload); err != nil {
		return nil, err
	}
	return mapScenes(payload.FindSceneByFingerprint), nil
}

type scene struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Studio struct {
		Name string `json:"name"`
	} `json:"studio"`
	Performers []struct {
		Performer struct {
			Name string `json:"name"`
		} `json:"performer"`
	} `json:"performers"`
	Fingerprints []struct {
		Hash      string `json:"hash"`
		Algorithm string `json:"algorithm"`
	} `json:"fingerprints"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApiKey", c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "stashdb request", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrProvider
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "fetch", "stashdb request", fmt.Sprintf("stashdb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return services.Wrap(services.ErrProvider, "fetch", "stashdb request", "decode response", err)
	}
	if len(envelope.Errors) > 0 {
		return services.Wrap(services.ErrProvider, "fetch", "stashdb request", envelope.Errors[0].Message, nil)
	}
	if len(envelope.Data) == 0 {
		return services.Wrap(services.ErrProvider, "fetch", "stashdb request", "response carried no data", nil)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return services.Wrap(services.ErrProvider, "fetch", "stashdb request", "decode data", err)
	}
	return nil
}

func mapScenes(scenes []scene) []match.CandidateScene {
	candidates := make([]match.CandidateScene, 0, len(scenes))
	for _, s := range scenes {
		candidate := match.CandidateScene{
			GUID:        s.ID,
			Title:       s.Title,
			SiteName:    s.Studio.Name,
			ReleaseDate: s.Date,
		}
		for _, p := range s.Performers {
			if name := strings.TrimSpace(p.Performer.Name); name != "" {
				candidate.Performers = append(candidate.Performers, name)
			}
		}
		for _, f := range s.Fingerprints {
			if f.Hash == "" {
				continue
			}
			candidate.Fingerprints = append(candidate.Fingerprints, phash.Fingerprint{
				Hash:      f.Hash,
				Algorithm: f.Algorithm,
			})
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func searchTerm(info fileinfo.FileInfo) string {
	parts := make([]string, 0, 3)
	if site := strings.TrimSpace(info.Site); site != "" {
		parts = append(parts, site)
	}
	if date := strings.TrimSpace(info.Date); date != "" {
		parts = append(parts, date)
	}
	if name := strings.TrimSpace(info.SceneName); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
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
