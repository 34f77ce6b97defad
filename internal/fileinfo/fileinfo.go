// Package fileinfo parses structured tokens out of scene filenames.
//
// Parsing runs an ordered list of regex rules against the filename stem. The
// first rule that produces a fully-populated match (site, date, and scene
// name) wins; ties are broken by rule order, never by content. When nothing
// matches, a best-effort FileInfo is returned with the whole stem as the
// scene name so downstream scoring degrades instead of failing.
package fileinfo

import (
	"path/filepath"
	"strings"
)

// FileInfo is the parsed representation of an input filename. Instances are
// constructed once by Parse and treated as read-only afterwards; re-parsing
// produces a new value.
type FileInfo struct {
	Site        string
	Date        string // normalized YYYY-MM-DD, empty when unknown
	SceneName   string
	Performers  []string
	RawFilename string
	Extension   string
}

// Parse extracts tokens from rawFilename using the supplied ordered rule set.
// Deterministic: the same filename and rule set always produce the same
// FileInfo. The filename must not contain a path.
func Parse(rawFilename string, rules []Rule) FileInfo {
	ext := ""
	stem := rawFilename
	if candidate := strings.ToLower(strings.TrimPrefix(filepath.Ext(rawFilename), ".")); isVideoExtension(candidate) {
		ext = candidate
		stem = strings.TrimSuffix(rawFilename, filepath.Ext(rawFilename))
	}

	info := FileInfo{
		RawFilename: rawFilename,
		Extension:   ext,
	}

	var partial *FileInfo
	for _, rule := range rules {
		candidate, ok := rule.apply(stem)
		if !ok {
			continue
		}
		candidate.RawFilename = info.RawFilename
		candidate.Extension = info.Extension
		if candidate.complete() {
			return candidate
		}
		if partial == nil {
			c := candidate
			partial = &c
		}
	}
	if partial != nil {
		return *partial
	}

	info.SceneName = cleanSceneName(stem)
	return info
}

func (f FileInfo) complete() bool {
	return f.Site != "" && f.Date != "" && f.SceneName != ""
}

// videoExtensions are the container suffixes recognized as file extensions.
// Anything else is treated as part of the scene name, since dotted release
// names routinely end in arbitrary tokens.
var videoExtensions = map[string]struct{}{
	"mp4": {}, "mkv": {}, "avi": {}, "mov": {}, "wmv": {},
	"m4v": {}, "webm": {}, "ts": {}, "flv": {}, "mpg": {}, "mpeg": {},
}

func isVideoExtension(ext string) bool {
	_, ok := videoExtensions[ext]
	return ok
}

// IsVideoPath reports whether a path carries a recognized video container
// extension.
func IsVideoPath(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return isVideoExtension(ext)
}

// releaseTokens are trailing scene-release markers that carry no identity and
// only hurt similarity scoring.
var releaseTokens = map[string]struct{}{
	"xxx":      {},
	"1080p":    {},
	"2160p":    {},
	"720p":     {},
	"480p":     {},
	"4k":       {},
	"uhd":      {},
	"hd":       {},
	"sd":       {},
	"x264":     {},
	"x265":     {},
	"h264":     {},
	"h265":     {},
	"hevc":     {},
	"avc":      {},
	"web":      {},
	"webrip":   {},
	"web-dl":   {},
	"webdl":    {},
	"internal": {},
	"repack":   {},
	"proper":   {},
	"mp4":      {},
	"mkv":      {},
}

// cleanSceneName turns a dotted/underscored token run into a readable title
// and strips trailing release markers and release-group suffixes.
func cleanSceneName(raw string) string {
	raw = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(raw)
	words := strings.Fields(raw)

	// Trim release tokens from the tail only; a title may legitimately start
	// with a word like "Web".
	end := len(words)
	for end > 0 {
		if _, ok := releaseTokens[strings.ToLower(words[end-1])]; !ok {
			break
		}
		end--
	}
	return strings.Join(words[:end], " ")
}

// splitPerformers breaks a performers capture into individual names.
func splitPerformers(raw string) []string {
	raw = strings.NewReplacer(".", " ", "_", " ").Replace(raw)
	separators := []string{",", " and ", " And ", "&"}
	parts := []string{raw}
	for _, sep := range separators {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, sep)...)
		}
		parts = next
	}

	performers := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.Join(strings.Fields(part), " "); name != "" {
			performers = append(performers, name)
		}
	}
	if len(performers) == 0 {
		return nil
	}
	return performers
}
