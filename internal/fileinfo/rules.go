package fileinfo

import (
	"fmt"
	"regexp"
	"strings"

	"scenematch/internal/services"
)

// Rule is a single compiled extraction pattern. Patterns use named capture
// groups: site, year, month, day (or date), name, performers. A rule matches
// only when its pattern consumes the entire filename stem.
type Rule struct {
	Name    string
	pattern *regexp.Regexp
}

// CompileRule builds a Rule from a regex source string, anchoring it to the
// full stem if the author did not.
func CompileRule(name, source string) (Rule, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Rule{}, services.Wrap(services.ErrConfiguration, "fileinfo", "compile rule", "empty pattern for rule "+name, nil)
	}
	if !strings.HasPrefix(source, "^") {
		source = "^" + source
	}
	if !strings.HasSuffix(source, "$") {
		source += "$"
	}
	pattern, err := regexp.Compile(source)
	if err != nil {
		return Rule{}, services.Wrap(services.ErrConfiguration, "fileinfo", "compile rule", fmt.Sprintf("rule %s", name), err)
	}
	return Rule{Name: name, pattern: pattern}, nil
}

// CompileRules compiles an ordered list of named patterns, preserving order.
func CompileRules(sources map[string]string, order []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(order))
	for _, name := range order {
		source, ok := sources[name]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "fileinfo", "compile rules", "unknown rule "+name, nil)
		}
		rule, err := CompileRule(name, source)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r Rule) apply(stem string) (FileInfo, bool) {
	match := r.pattern.FindStringSubmatch(stem)
	if match == nil {
		return FileInfo{}, false
	}

	groups := make(map[string]string, len(match))
	for i, name := range r.pattern.SubexpNames() {
		if name == "" || i >= len(match) {
			continue
		}
		if groups[name] == "" {
			groups[name] = match[i]
		}
	}

	info := FileInfo{
		Site:      cleanSceneName(groups["site"]),
		SceneName: cleanSceneName(groups["name"]),
		Date:      normalizeDate(groups["date"], groups["year"], groups["month"], groups["day"]),
	}
	if raw := groups["performers"]; raw != "" {
		info.Performers = splitPerformers(raw)
	}
	return info, true
}

// normalizeDate folds the supported date captures into YYYY-MM-DD. Two-digit
// years are assumed to be 2000-based, matching release naming conventions.
func normalizeDate(date, year, month, day string) string {
	if date != "" {
		normalized := strings.NewReplacer(".", "-", "_", "-", " ", "-").Replace(date)
		parts := strings.Split(normalized, "-")
		if len(parts) == 3 {
			if len(parts[0]) == 4 {
				return fmt.Sprintf("%s-%s-%s", parts[0], pad2(parts[1]), pad2(parts[2]))
			}
			if len(parts[2]) == 4 {
				// DD-MM-YYYY
				return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
			}
			return fmt.Sprintf("20%s-%s-%s", pad2(parts[0]), pad2(parts[1]), pad2(parts[2]))
		}
		return ""
	}
	if year == "" || month == "" || day == "" {
		return ""
	}
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
}

func pad2(value string) string {
	if len(value) == 1 {
		return "0" + value
	}
	return value
}

// DefaultRules returns the built-in rule set, ordered most to least specific.
func DefaultRules() []Rule {
	sources := []struct {
		name    string
		pattern string
	}{
		// SiteName.23.01.15.Scene.Title or SiteName.2023.01.15.Scene.Title
		{"site_date_name", `(?P<site>[a-zA-Z0-9'\-]+?)[\. _-]+(?P<year>\d{4}|\d{2})[\. _-](?P<month>\d{2})[\. _-](?P<day>\d{2})[\. _-]+(?P<name>[^\[\]]+)`},
		// SiteName - 2023-01-15 - Scene Title [performers]
		{"site_date_name_performers", `(?P<site>[a-zA-Z0-9' \-]+?)\s+-\s+(?P<date>\d{4}-\d{2}-\d{2})\s+-\s+(?P<name>[^\[\]]+?)(?:\s*\[(?P<performers>[^\[\]]+)\])?`},
		// SiteName - Scene Title (no date)
		{"site_name", `(?P<site>[a-zA-Z0-9'\-]+?)\s+-\s+(?P<name>.+)`},
	}

	rules := make([]Rule, 0, len(sources))
	for _, src := range sources {
		rule, err := CompileRule(src.name, src.pattern)
		if err != nil {
			panic(err)
		}
		rules = append(rules, rule)
	}
	return rules
}
