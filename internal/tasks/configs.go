package tasks

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ConfigFileReport describes what normalizing one JSON config file changed.
type ConfigFileReport struct {
	File      string   `json:"file"`
	Found     bool     `json:"found"`
	Removed   []string `json:"removed,omitempty"`
	Rewritten bool     `json:"rewritten"`
}

// Changed reports whether the normalized file differs from the original.
func (r ConfigFileReport) Changed() bool {
	return r.Rewritten || len(r.Removed) > 0
}

// ConfigReport is the result of the config normalizers.
type ConfigReport struct {
	Files []ConfigFileReport `json:"files"`
}

// Changed returns the reports of the files that were (or would be) rewritten.
func (r *ConfigReport) Changed() []ConfigFileReport {
	var out []ConfigFileReport
	for _, f := range r.Files {
		if f.Changed() {
			out = append(out, f)
		}
	}
	return out
}

// tidyFunc applies file specific rules before empty values are pruned. It
// returns the dotted paths it removed and the paths pruning must keep.
type tidyFunc func(doc *object) (removed []string, keep map[string]bool)

// normalizeJSON prunes rel and, unless running dry, writes it back with
// stable formatting. A missing file is not an error.
func normalizeJSON(ctx context.Context, env Env, rel string, tidy tidyFunc) (ConfigFileReport, error) {
	report := ConfigFileReport{File: rel}
	full := env.path(rel)
	if !env.FS.Exists(full) {
		return report, nil
	}
	report.Found = true

	data, err := env.FS.ReadFile(full)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", rel, err)
	}
	doc, err := decodeObject(data)
	if err != nil {
		return report, fmt.Errorf("parse %s: %w", rel, err)
	}

	var keep map[string]bool
	if tidy != nil {
		var removed []string
		removed, keep = tidy(doc)
		report.Removed = append(report.Removed, removed...)
	}
	report.Removed = append(report.Removed, pruneExcept(doc, "", keep)...)

	out, err := encodeDocument(doc)
	if err != nil {
		return report, fmt.Errorf("encode %s: %w", rel, err)
	}
	if bytes.Equal(out, data) {
		return report, nil
	}
	report.Rewritten = true

	log := env.logger()
	if env.DryRun {
		log.Info(ctx, "would normalize config", ports.F("file", rel), ports.F("removed", report.Removed))
		return report, nil
	}
	if err := env.FS.WriteFile(full, out, 0o644); err != nil {
		return report, fmt.Errorf("write %s: %w", rel, err)
	}
	log.Info(ctx, "normalized config", ports.F("file", rel), ports.F("removed", report.Removed))
	return report, nil
}

// ExpoConfigCleaner normalizes app.json.
type ExpoConfigCleaner struct {
	env Env
}

// NewExpoConfigCleaner creates an ExpoConfigCleaner.
func NewExpoConfigCleaner(env Env) *ExpoConfigCleaner {
	return &ExpoConfigCleaner{env: env}
}

// Run normalizes app.json.
func (c *ExpoConfigCleaner) Run(ctx context.Context) (*ConfigReport, error) {
	r, err := normalizeJSON(ctx, c.env, "app.json", nil)
	if err != nil {
		return nil, err
	}
	return &ConfigReport{Files: []ConfigFileReport{r}}, nil
}

// EASConfigOptimizer normalizes eas.json.
type EASConfigOptimizer struct {
	env Env
}

// NewEASConfigOptimizer creates an EASConfigOptimizer.
func NewEASConfigOptimizer(env Env) *EASConfigOptimizer {
	return &EASConfigOptimizer{env: env}
}

// Run normalizes eas.json. Build and submit profiles left empty are removed,
// unless another profile extends them.
func (o *EASConfigOptimizer) Run(ctx context.Context) (*ConfigReport, error) {
	r, err := normalizeJSON(ctx, o.env, "eas.json", tidyEAS)
	if err != nil {
		return nil, err
	}
	return &ConfigReport{Files: []ConfigFileReport{r}}, nil
}

func tidyEAS(doc *object) ([]string, map[string]bool) {
	keep := make(map[string]bool)
	for _, section := range []string{"build", "submit"} {
		profiles, ok := doc.Object(section)
		if !ok {
			continue
		}
		for _, name := range profiles.Keys() {
			p, ok := profiles.Object(name)
			if !ok {
				continue
			}
			if base, ok := p.Get("extends"); ok {
				if s, ok := base.(string); ok {
					keep[joinPath(section, s)] = true
				}
			}
		}
	}
	return nil, keep
}

// FirebaseConfigNormalizer normalizes firebase.json and .firebaserc.
type FirebaseConfigNormalizer struct {
	env Env
}

// NewFirebaseConfigNormalizer creates a FirebaseConfigNormalizer.
func NewFirebaseConfigNormalizer(env Env) *FirebaseConfigNormalizer {
	return &FirebaseConfigNormalizer{env: env}
}

// Run normalizes both Firebase files. Duplicate entries in ignore lists are
// dropped.
func (n *FirebaseConfigNormalizer) Run(ctx context.Context) (*ConfigReport, error) {
	report := &ConfigReport{}
	for _, rel := range []string{"firebase.json", ".firebaserc"} {
		var tidy tidyFunc
		if rel == "firebase.json" {
			tidy = dedupeIgnoreLists
		}
		r, err := normalizeJSON(ctx, n.env, rel, tidy)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, r)
	}
	return report, nil
}

// dedupeIgnoreLists removes repeated strings from every "ignore" array.
func dedupeIgnoreLists(doc *object) ([]string, map[string]bool) {
	var removed []string
	var visit func(v any, prefix string)
	visit = func(v any, prefix string) {
		switch t := v.(type) {
		case *object:
			for _, k := range t.Keys() {
				child, _ := t.Get(k)
				p := joinPath(prefix, k)
				if arr, ok := child.([]any); ok && k == "ignore" {
					kept, dropped := dedupeStrings(arr)
					if len(dropped) > 0 {
						t.Set(k, kept)
						removed = append(removed, p+"["+strings.Join(dropped, ",")+"]")
					}
					continue
				}
				visit(child, p)
			}
		case []any:
			for i, child := range t {
				visit(child, fmt.Sprintf("%s[%d]", prefix, i))
			}
		}
	}
	visit(doc, "")
	return removed, nil
}

func dedupeStrings(arr []any) (kept []any, dropped []string) {
	seen := make(map[string]bool, len(arr))
	kept = make([]any, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if ok && seen[s] {
			dropped = append(dropped, s)
			continue
		}
		if ok {
			seen[s] = true
		}
		kept = append(kept, v)
	}
	return kept, dropped
}
