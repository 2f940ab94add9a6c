package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAssets(t *testing.T, env Env) {
	t.Helper()
	writeFile(t, env, "assets/images/logo.png", "png")
	writeFile(t, env, "assets/images/unused.png", "png")
	writeFile(t, env, "assets/fonts/Inter.ttf", "ttf")
	writeFile(t, env, "assets/.unused/old.png", "png")
	writeFile(t, env, "src/App.tsx", `const logo = require("../assets/images/logo.png");`)
	writeFile(t, env, "app.json", `{"expo": {"fonts": ["./assets/fonts/Inter.ttf"]}}`)
	writeFile(t, env, "node_modules/pkg/index.js", `require("unused.png")`)
	writeFile(t, env, "README.md", "unused.png")
}

func TestAssetManagerDryRun(t *testing.T) {
	env, _ := newTestEnv(t, true)
	seedAssets(t, env)

	report, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []string{"assets/images/unused.png"}, report.Unused)
	assert.Empty(t, report.Moved)
	assert.FileExists(t, env.path("assets/images/unused.png"))
}

func TestAssetManagerApply(t *testing.T) {
	env, _ := newTestEnv(t, false)
	seedAssets(t, env)

	report, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/.unused/images/unused.png"}, report.Moved)
	assert.NoFileExists(t, env.path("assets/images/unused.png"))
	assert.FileExists(t, env.path("assets/.unused/images/unused.png"))
	assert.FileExists(t, env.path("assets/images/logo.png"))

	// A second run finds nothing new.
	again, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Unused)
}

func TestAssetManagerIgnoredSources(t *testing.T) {
	env, _ := newTestEnv(t, true)
	writeFile(t, env, ".gitignore", "generated/\n")
	writeFile(t, env, "assets/splash.png", "png")
	writeFile(t, env, "generated/refs.ts", `import s from "../assets/splash.png"`)

	report, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/splash.png"}, report.Unused)
}

func TestAssetManagerApplyAfterDryRunArtifacts(t *testing.T) {
	env, _ := newTestEnv(t, false)
	env.Ignore = []string{"reports/cleanup-report-*.json", "logs/run.log"}
	writeFile(t, env, "assets/unused-icon.png", "png")
	writeFile(t, env, "cleanup-report-2026-05-06T07-08-09Z.json", `{"unused":["assets/unused-icon.png"]}`)
	writeFile(t, env, "reports/cleanup-report-2026-05-06T07-08-10Z.json", `{"unused":["assets/unused-icon.png"]}`)
	writeFile(t, env, "backup-manifest-1234.json", `{"files":["assets/unused-icon.png"]}`)
	writeFile(t, env, "cleanup-orchestrator.log", "unused-icon.png")
	writeFile(t, env, "logs/run.log", "unused-icon.png")

	report, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/unused-icon.png"}, report.Unused)
	assert.Equal(t, []string{"assets/.unused/unused-icon.png"}, report.Moved)
	assert.FileExists(t, env.path("assets/.unused/unused-icon.png"))
}

func TestAssetManagerNoAssets(t *testing.T) {
	env, _ := newTestEnv(t, false)

	report, err := NewAssetManager(env).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Unused)
}
