package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenematch/internal/artifact"
	"scenematch/internal/config"
	"scenematch/internal/disambig"
	"scenematch/internal/fileinfo"
	"scenematch/internal/logging"
	"scenematch/internal/match"
	"scenematch/internal/organizer"
	"scenematch/internal/providers"
	"scenematch/internal/queue"
	"scenematch/internal/services"
)

// Processor drives one file through the full pipeline: parse, fetch, score,
// decide, record, organize.
type Processor struct {
	cfg        *config.Config
	store      *queue.Store
	provider   providers.Provider
	organizer  *organizer.Organizer
	logger     *slog.Logger
	rules      []fileinfo.Rule
	thresholds disambig.Thresholds
}

// NewProcessor wires a processor from configuration. The provider is passed
// in so tests can substitute a stub.
func NewProcessor(cfg *config.Config, store *queue.Store, provider providers.Provider, logger *slog.Logger) (*Processor, error) {
	rules, err := cfg.ParserRules()
	if err != nil {
		return nil, err
	}
	thresholds := cfg.Thresholds()
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		cfg:        cfg,
		store:      store,
		provider:   provider,
		organizer:  organizer.New(cfg, logger),
		logger:     logging.NewComponentLogger(logger, "workflow"),
		rules:      rules,
		thresholds: thresholds,
	}, nil
}

// ProcessFile runs the pipeline for a single file. Every invocation yields a
// persisted outcome: the returned item is in a terminal or review status even
// when the pipeline fails partway. The error reports what went wrong; the
// item records it.
func (p *Processor) ProcessFile(ctx context.Context, sourcePath string) (*queue.Item, error) {
	item, err := p.store.NewItem(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, p.logger)

	item.Status = queue.StatusMatching
	item.ErrorMessage = ""
	if err := p.store.Update(ctx, item); err != nil {
		return nil, err
	}

	outcome, art, runErr := p.run(ctx, logger, sourcePath)
	if runErr != nil {
		return p.fail(ctx, logger, item, runErr)
	}

	payload, err := art.MarshalIndent()
	if err != nil {
		return p.fail(ctx, logger, item, services.Wrap(services.ErrTransient, "record", "serialize artifact", "Failed to serialize artifact", err))
	}
	item.Decision = string(outcome.Decision)
	item.DecisionReason = string(outcome.Reason)
	item.ArtifactJSON = string(payload)
	if outcome.Chosen != nil {
		item.ChosenGUID = outcome.Chosen.GUID
	}

	finalPath, moveErr := p.organizer.Place(ctx, sourcePath, outcome, art)
	if moveErr != nil {
		return p.fail(ctx, logger, item, moveErr)
	}
	item.FinalPath = finalPath
	_ = os.Remove(sourcePath + ".phash")

	switch outcome.Decision {
	case disambig.DecisionAccept:
		item.Status = queue.StatusCompleted
	case disambig.DecisionAmbiguous:
		item.Status = queue.StatusReview
	default:
		item.Status = queue.StatusRejected
	}
	if err := p.store.Update(ctx, item); err != nil {
		return nil, err
	}

	logger.Info("file processed",
		logging.String("source", sourcePath),
		logging.String("decision", item.Decision),
		logging.String("reason", item.DecisionReason),
		logging.String("final_path", finalPath),
	)
	return item, nil
}

func (p *Processor) run(ctx context.Context, logger *slog.Logger, sourcePath string) (disambig.Outcome, artifact.Artifact, error) {
	info := fileinfo.Parse(filepath.Base(sourcePath), p.rules)
	queryHash := loadQueryHash(sourcePath)
	if queryHash != "" {
		logger.Debug("loaded query hash", logging.String("hash", queryHash))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Provider.RequestTimeout)*time.Second)
	defer cancel()
	candidates, err := p.provider.FetchCandidates(fetchCtx, info, queryHash)
	if err != nil {
		return disambig.Outcome{}, artifact.Artifact{}, err
	}
	logger.Info("fetched candidates",
		logging.String("provider", p.provider.Name()),
		logging.Int("count", len(candidates)),
	)

	results, err := match.Score(ctx, p.logger, info, sourcePath, candidates, queryHash, match.Options{
		AcceptDistance: p.thresholds.AcceptDistance,
		Algorithm:      p.cfg.Phash.Algorithm,
	})
	if err != nil {
		return disambig.Outcome{}, artifact.Artifact{}, err
	}

	outcome, err := disambig.Decide(results, p.thresholds)
	if err != nil {
		return disambig.Outcome{}, artifact.Artifact{}, err
	}

	art := artifact.Build(outcome, info, results, p.cfg.Workflow.TopNCandidates)
	return outcome, art, nil
}

// fail records the failure on the item and moves the file out of the watch
// directory so the poll loop does not retry it forever.
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, item *queue.Item, cause error) (*queue.Item, error) {
	item.Status = queue.FailureStatus(cause)
	item.ErrorMessage = cause.Error()

	if _, statErr := os.Stat(item.SourcePath); statErr == nil {
		outcome := disambig.Outcome{Decision: disambig.DecisionReject}
		if finalPath, moveErr := p.organizer.Place(ctx, item.SourcePath, outcome, artifact.Artifact{}); moveErr == nil {
			item.FinalPath = finalPath
		} else {
			logger.Warn("failed to park file after error", logging.Error(moveErr))
		}
	}

	if err := p.store.Update(ctx, item); err != nil {
		return nil, errors.Join(cause, err)
	}
	logger.Error("file processing failed",
		logging.String("source", item.SourcePath),
		logging.String("status", string(item.Status)),
		logging.Error(cause),
	)
	return item, cause
}

// loadQueryHash reads the optional hex perceptual hash stored next to the
// video as "<file>.phash". Hash extraction runs out of band; an absent or
// unreadable sidecar simply means no phash signal.
func loadQueryHash(sourcePath string) string {
	data, err := os.ReadFile(sourcePath + ".phash")
	if err != nil {
		return ""
	}
	hash := strings.TrimSpace(string(data))
	if hash == "" {
		return ""
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return ""
		}
	}
	return strings.ToLower(hash)
}

// ProcessBatch runs every path through the pipeline, continuing past
// per-file failures. It reports the first error joined with any later ones.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string) ([]*queue.Item, error) {
	var (
		items  []*queue.Item
		errs   []error
		logger = logging.WithContext(ctx, p.logger)
	)
	for _, path := range paths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		item, err := p.ProcessFile(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		if item != nil {
			items = append(items, item)
		}
	}
	if len(errs) > 0 {
		logger.Warn("batch finished with failures", logging.Int("failed", len(errs)), logging.Int("total", len(paths)))
		return items, errors.Join(errs...)
	}
	return items, nil
}
