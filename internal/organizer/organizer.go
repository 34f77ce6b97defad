package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scenematch/internal/artifact"
	"scenematch/internal/config"
	"scenematch/internal/disambig"
	"scenematch/internal/fileutil"
	"scenematch/internal/logging"
	"scenematch/internal/match"
	"scenematch/internal/services"
	"scenematch/internal/textutil"
)

// Organizer moves processed files to the directory their decision earned.
type Organizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Organizer.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	return &Organizer{cfg: cfg, logger: logging.NewComponentLogger(logger, "organizer")}
}

// Place moves sourcePath according to the decision: accepted files are
// renamed into the library, ambiguous files land in the ambiguous directory
// with a review sidecar, everything else goes to the failed directory. The
// returned path is the file's final location.
func (o *Organizer) Place(ctx context.Context, sourcePath string, outcome disambig.Outcome, art artifact.Artifact) (string, error) {
	logger := logging.WithContext(ctx, o.logger)

	switch outcome.Decision {
	case disambig.DecisionAccept:
		return o.placeAccepted(logger, sourcePath, outcome.Chosen)
	case disambig.DecisionAmbiguous:
		return o.placeForReview(logger, sourcePath, art)
	default:
		return o.placeFailed(logger, sourcePath)
	}
}

func (o *Organizer) placeAccepted(logger *slog.Logger, sourcePath string, chosen *match.CandidateScene) (string, error) {
	if chosen == nil {
		return "", services.Wrap(services.ErrValidation, "organizing", "resolve target", "accepted outcome carries no chosen candidate", nil)
	}
	libraryDir := strings.TrimSpace(o.cfg.Paths.LibraryDir)
	if libraryDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "resolve library dir", "Library directory not configured; set library_dir in your scenematch config.toml", nil)
	}

	siteDir := textutil.SanitizeFileName(strings.TrimSpace(chosen.SiteName))
	if siteDir == "" {
		siteDir = "Unknown Site"
	}
	target := filepath.Join(libraryDir, siteDir, DestinationName(chosen, filepath.Ext(sourcePath)))

	target, err := fileutil.UniquePath(target)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate library filename", "Unable to allocate library filename", err)
	}
	if err := fileutil.MoveFile(sourcePath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "move library file", "Failed to move file into library", err)
	}

	logger.Info("organized accepted file",
		logging.String("source", sourcePath),
		logging.String("target", target),
		logging.String("scene_guid", chosen.GUID),
	)
	return target, nil
}

func (o *Organizer) placeForReview(logger *slog.Logger, sourcePath string, art artifact.Artifact) (string, error) {
	ambiguousDir := strings.TrimSpace(o.cfg.Paths.AmbiguousDir)
	if ambiguousDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "resolve ambiguous dir", "Ambiguous directory not configured; set ambiguous_dir in your scenematch config.toml", nil)
	}

	target, err := fileutil.UniquePath(filepath.Join(ambiguousDir, filepath.Base(sourcePath)))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate review filename", "Unable to allocate review filename", err)
	}
	if err := fileutil.MoveFile(sourcePath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "move review file", "Failed to move file into ambiguous directory", err)
	}

	sidecar := sidecarPath(target)
	payload, err := art.MarshalIndent()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "serialize review artifact", "Failed to serialize review artifact", err)
	}
	if err := os.WriteFile(sidecar, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "write review artifact", "Failed to write review artifact", err)
	}

	logger.Info("organized ambiguous file for review",
		logging.String("source", sourcePath),
		logging.String("target", target),
		logging.String("artifact", sidecar),
		logging.Int("candidates", len(art.CandidateGUIDs)),
	)
	return target, nil
}

func (o *Organizer) placeFailed(logger *slog.Logger, sourcePath string) (string, error) {
	failedDir := strings.TrimSpace(o.cfg.Paths.FailedDir)
	if failedDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "resolve failed dir", "Failed directory not configured; set failed_dir in your scenematch config.toml", nil)
	}

	target, err := fileutil.UniquePath(filepath.Join(failedDir, filepath.Base(sourcePath)))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate failed filename", "Unable to allocate failed filename", err)
	}
	if err := fileutil.MoveFile(sourcePath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "move failed file", "Failed to move file into failed directory", err)
	}

	logger.Info("organized rejected file",
		logging.String("source", sourcePath),
		logging.String("target", target),
	)
	return target, nil
}

// DestinationName renders the canonical library filename for a matched scene:
// "Site - Date - Title [Performers].ext". Missing pieces drop out of the
// template rather than leaving separators behind.
func DestinationName(chosen *match.CandidateScene, ext string) string {
	parts := make([]string, 0, 3)
	if site := strings.TrimSpace(chosen.SiteName); site != "" {
		parts = append(parts, site)
	}
	if date := strings.TrimSpace(chosen.ReleaseDate); date != "" {
		parts = append(parts, date)
	}
	if title := strings.TrimSpace(chosen.Title); title != "" {
		parts = append(parts, title)
	}
	name := strings.Join(parts, " - ")
	if name == "" {
		name = "Unknown Scene"
	}
	if len(chosen.Performers) > 0 {
		name = fmt.Sprintf("%s [%s]", name, strings.Join(chosen.Performers, ", "))
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return textutil.SanitizeFileName(name) + ext
}

func sidecarPath(target string) string {
	ext := filepath.Ext(target)
	return strings.TrimSuffix(target, ext) + ".match.json"
}
