package tasks

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

const (
	assetsDir   = "assets"
	unusedAsset = ".unused"
)

// AssetReport is the result of AssetManager.
type AssetReport struct {
	Scanned int      `json:"scanned"`
	Unused  []string `json:"unused"`
	Moved   []string `json:"moved,omitempty"`
}

// AssetManager finds assets no source file mentions by base name and, when
// applying, moves them under assets/.unused so they can still be recovered.
type AssetManager struct {
	env Env
}

// NewAssetManager creates an AssetManager.
func NewAssetManager(env Env) *AssetManager {
	return &AssetManager{env: env}
}

// Run scans assets/ and the project sources.
func (a *AssetManager) Run(ctx context.Context) (*AssetReport, error) {
	log := a.env.logger()
	report := &AssetReport{Unused: []string{}}
	if !a.env.FS.IsDir(a.env.path(assetsDir)) {
		log.Debug(ctx, "no assets directory")
		return report, nil
	}

	m := a.env.ignoreMatcher()
	var assets []string
	err := a.env.walk(assetsDir, m, func(rel string) error {
		if strings.HasPrefix(rel, assetsDir+"/"+unusedAsset+"/") {
			return nil
		}
		assets = append(assets, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan assets: %w", err)
	}
	report.Scanned = len(assets)
	if len(assets) == 0 {
		return report, nil
	}

	// Names still looking for a reference.
	pending := make(map[string]bool, len(assets))
	for _, rel := range assets {
		pending[path.Base(rel)] = true
	}
	err = a.env.walk(".", m, func(rel string) error {
		if len(pending) == 0 || !isSource(rel) || strings.HasPrefix(rel, assetsDir+"/") {
			return nil
		}
		data, err := a.env.FS.ReadFile(a.env.path(rel))
		if err != nil {
			log.Debug(ctx, "skip unreadable source", ports.F("file", rel), ports.F("error", err))
			return nil
		}
		content := string(data)
		for name := range pending {
			if strings.Contains(content, name) {
				delete(pending, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}

	for _, rel := range assets {
		if pending[path.Base(rel)] {
			report.Unused = append(report.Unused, rel)
		}
	}
	sort.Strings(report.Unused)

	if !a.env.DryRun {
		for _, rel := range report.Unused {
			dest := path.Join(assetsDir, unusedAsset, strings.TrimPrefix(rel, assetsDir+"/"))
			if err := a.env.FS.MkdirAll(filepath.Dir(a.env.path(dest)), 0o755); err != nil {
				return report, fmt.Errorf("move %s: %w", rel, err)
			}
			if err := a.env.FS.Rename(a.env.path(rel), a.env.path(dest)); err != nil {
				return report, fmt.Errorf("move %s: %w", rel, err)
			}
			report.Moved = append(report.Moved, dest)
		}
	}

	log.Info(ctx, "asset scan complete",
		ports.F("scanned", report.Scanned),
		ports.F("unused", len(report.Unused)),
		ports.F("moved", len(report.Moved)))
	return report, nil
}
