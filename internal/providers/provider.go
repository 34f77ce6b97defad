// Package providers selects and constructs the metadata provider used to
// fetch candidate scenes. Exactly one provider serves a processing run;
// candidates from different providers are never mixed in one decision pass.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scenematch/internal/config"
	"scenematch/internal/fileinfo"
	"scenematch/internal/match"
	"scenematch/internal/providers/stashdb"
	"scenematch/internal/providers/theporndb"
	"scenematch/internal/services"
)

// Provider fetches candidate scenes for a parsed filename. queryHash is the
// hex perceptual hash of the file, empty when unavailable. Implementations
// return candidates in fetch order; scoring decides ranking.
type Provider interface {
	Name() string
	FetchCandidates(ctx context.Context, info fileinfo.FileInfo, queryHash string) ([]match.CandidateScene, error)
}

// New constructs the provider named by cfg.
func New(cfg config.Provider) (Provider, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "stashdb":
		return stashdb.New(cfg.APIKey, cfg.Endpoint,
			stashdb.WithHTTPClient(httpClient),
			stashdb.WithFingerprintSearch(cfg.SearchPhash),
		)
	case "theporndb":
		return theporndb.New(cfg.APIKey, cfg.Endpoint,
			theporndb.WithHTTPClient(httpClient),
			theporndb.WithFingerprintSearch(cfg.SearchPhash),
		)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "provider", "select", fmt.Sprintf("unknown provider %q", cfg.Name), nil)
	}
}
