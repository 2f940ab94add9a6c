package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDebugScripts(t *testing.T, env Env) {
	t.Helper()
	writeFile(t, env, "package.json", `{
  "name": "app",
  "scripts": {
    "debug": "node debug-auth.js --verbose",
    "fix": "node ./fix-data.cjs",
    "start": "node index.js"
  }
}`)
	writeFile(t, env, "debug-auth.js", "")
	writeFile(t, env, "test-api.mjs", "")
	writeFile(t, env, "fix-data.cjs", "")
	writeFile(t, env, "index.js", "")
	writeFile(t, env, "debug-notes.txt", "")
	writeFile(t, env, "src/debug-inner.js", "")
}

func TestDebugScriptOrganizerApply(t *testing.T) {
	env, _ := newTestEnv(t, false)
	seedDebugScripts(t, env)

	report, err := NewDebugScriptOrganizer(env).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []MovedScript{
		{From: "debug-auth.js", To: "scripts/debug/debug-auth.js"},
		{From: "fix-data.cjs", To: "scripts/debug/fix-data.cjs"},
		{From: "test-api.mjs", To: "scripts/debug/test-api.mjs"},
	}, report.Moved)
	assert.Equal(t, []string{"debug", "fix"}, report.UpdatedScripts)

	assert.NoFileExists(t, env.path("debug-auth.js"))
	assert.FileExists(t, env.path("scripts/debug/test-api.mjs"))
	assert.FileExists(t, env.path("debug-notes.txt"))
	assert.FileExists(t, env.path("src/debug-inner.js"))

	pkg, err := readPackage(env)
	require.NoError(t, err)
	scripts, _ := pkg.Object("scripts")
	assert.Equal(t, []string{"debug", "fix", "start"}, scripts.Keys())
	v, _ := scripts.Get("debug")
	assert.Equal(t, "node scripts/debug/debug-auth.js --verbose", v)
	v, _ = scripts.Get("fix")
	assert.Equal(t, "node scripts/debug/fix-data.cjs", v)
}

func TestDebugScriptOrganizerDryRun(t *testing.T) {
	env, _ := newTestEnv(t, true)
	seedDebugScripts(t, env)
	before := readFile(t, env, "package.json")

	report, err := NewDebugScriptOrganizer(env).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Moved, 3)
	assert.Empty(t, report.UpdatedScripts)
	assert.FileExists(t, env.path("debug-auth.js"))
	assert.NoDirExists(t, env.path("scripts/debug"))
	assert.Equal(t, before, readFile(t, env, "package.json"))
}

func TestDebugScriptOrganizerSkipsExistingDestination(t *testing.T) {
	env, _ := newTestEnv(t, false)
	writeFile(t, env, "package.json", `{"name": "app"}`)
	writeFile(t, env, "debug-auth.js", "new")
	writeFile(t, env, "scripts/debug/debug-auth.js", "old")

	report, err := NewDebugScriptOrganizer(env).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Moved)
	assert.Equal(t, []string{"debug-auth.js"}, report.Skipped)
	assert.Equal(t, "old", readFile(t, env, "scripts/debug/debug-auth.js"))
}

func TestPackageScriptCleaner(t *testing.T) {
	pkgJSON := `{
  "name": "app",
  "scripts": {
    "build": "tsc",
    "seed": "node scripts/seed.js",
    "old": "node tools/gone.js && echo done",
    "start": "node index.js",
    "zombie": "node zombie.mjs"
  }
}`

	t.Run("apply removes stale scripts in place", func(t *testing.T) {
		env, _ := newTestEnv(t, false)
		writeFile(t, env, "package.json", pkgJSON)
		writeFile(t, env, "index.js", "")
		writeFile(t, env, "scripts/seed.js", "")

		report, err := NewPackageScriptCleaner(env).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, report.Checked)
		assert.Equal(t, []StaleScript{
			{Name: "old", Command: "node tools/gone.js && echo done", File: "tools/gone.js"},
			{Name: "zombie", Command: "node zombie.mjs", File: "zombie.mjs"},
		}, report.Removed)

		pkg, err := readPackage(env)
		require.NoError(t, err)
		scripts, _ := pkg.Object("scripts")
		assert.Equal(t, []string{"build", "seed", "start"}, scripts.Keys())
	})

	t.Run("dry run reports only", func(t *testing.T) {
		env, _ := newTestEnv(t, true)
		writeFile(t, env, "package.json", pkgJSON)

		report, err := NewPackageScriptCleaner(env).Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, report.Removed, 4)
		assert.Equal(t, pkgJSON, readFile(t, env, "package.json"))
	})

	t.Run("no scripts", func(t *testing.T) {
		env, _ := newTestEnv(t, false)
		writeFile(t, env, "package.json", `{"name": "app"}`)

		report, err := NewPackageScriptCleaner(env).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.Removed)
	})
}

func TestFindDebugScripts(t *testing.T) {
	env, _ := newTestEnv(t, false)
	seedDebugScripts(t, env)

	names, err := FindDebugScripts(env.Root)
	require.NoError(t, err)
	assert.Equal(t, []string{"debug-auth.js", "fix-data.cjs", "test-api.mjs"}, names)

	_, err = FindDebugScripts(env.path("missing"))
	assert.Error(t, err)
}
