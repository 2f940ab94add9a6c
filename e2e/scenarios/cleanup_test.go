//go:build e2e

package scenarios

import (
	"testing"

	"github.com/felixgeelhaar/cleanup-orchestrator/e2e/framework"
)

const messyAppJSON = `{"expo":{"name":"demo","plugins":[]}}`

func TestVersion_ShowsVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	framework.NewScenario(t).
		When("I run cleanup-orchestrator version", func(r *framework.Runner) *framework.Result {
			return r.Version()
		}).
		Then("the command succeeds", func(t *testing.T, r *framework.Result) {
			framework.AssertSuccess(t, r)
		}).
		And("the output shows version information", func(t *testing.T, r *framework.Result) {
			framework.AssertStdoutContains(t, r, "cleanup-orchestrator")
		})
}

func TestDryRun_LeavesProjectUntouched(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	s := framework.NewScenario(t)
	s.
		Given("an Expo project with a debug script", func(env *framework.Environment) {
			env.WritePackage(`{"debug": "node debug-auth.js"}`)
			env.WriteFile("app.json", messyAppJSON)
			env.WriteFile("debug-auth.js", "console.log('x')\n")
		}).
		When("I run a dry run without npm tools installed", func(r *framework.Runner) *framework.Result {
			return r.DryRun()
		}).
		Then("optional tool failures do not fail the run", func(t *testing.T, r *framework.Result) {
			framework.AssertSuccess(t, r)
			framework.AssertStdoutContains(t, r, "Cleanup Completed (dry run)")
		}).
		And("no project file changed", func(t *testing.T, _ *framework.Result) {
			env := s.Environment()
			framework.AssertFileEquals(t, env, "app.json", messyAppJSON)
			framework.AssertFileContains(t, env, "debug-auth.js", "console.log")
			framework.AssertMatches(t, env, "cleanup-report-*.json", 1)
			framework.AssertMatches(t, env, "backup-manifest-*.json", 0)
		})
}

func TestApply_NormalizesAndMovesScripts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	s := framework.NewScenario(t)
	s.
		Given("an Expo project with a debug script", func(env *framework.Environment) {
			env.WritePackage(`{"debug": "node debug-auth.js"}`)
			env.WriteFile("app.json", messyAppJSON)
			env.WriteFile("debug-auth.js", "console.log('x')\n")
		}).
		When("I apply the cleanup without the npx analysis steps", func(r *framework.Runner) *framework.Result {
			return r.Apply("--skip", "Dependency Analysis,Dead Code Detection")
		}).
		Then("the run succeeds", func(t *testing.T, r *framework.Result) {
			framework.AssertSuccess(t, r)
			framework.AssertStdoutContains(t, r, "Cleanup Completed (apply)")
		}).
		And("files are cleaned and the backup is replaced by a manifest", func(t *testing.T, _ *framework.Result) {
			env := s.Environment()
			framework.AssertFileEquals(t, env, "app.json", "{\n  \"expo\": {\n    \"name\": \"demo\"\n  }\n}\n")
			framework.AssertFileNotExists(t, env, "debug-auth.js")
			framework.AssertFileContains(t, env, "scripts/debug/debug-auth.js", "console.log")
			framework.AssertFileContains(t, env, "package.json", "scripts/debug/debug-auth.js")
			framework.AssertFileNotExists(t, env, ".cleanup-backups")
			framework.AssertMatches(t, env, "backup-manifest-*.json", 1)
		})
}

func TestAbort_ThenRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	s := framework.NewScenario(t)
	s.
		Given("a directory without package.json", func(env *framework.Environment) {
			env.WriteFile("app.json", messyAppJSON)
		}).
		When("I apply the cleanup", func(r *framework.Runner) *framework.Result {
			return r.Apply()
		}).
		Then("the run aborts", func(t *testing.T, r *framework.Result) {
			framework.AssertExitCode(t, r, 1)
			framework.AssertStderrContains(t, r, "no package.json found")
			framework.AssertStdoutContains(t, r, "cleanup-orchestrator rollback")
		}).
		When("I roll back", func(r *framework.Runner) *framework.Result {
			return r.Rollback()
		}).
		Then("the kept backup is restored", func(t *testing.T, r *framework.Result) {
			framework.AssertSuccess(t, r)
			framework.AssertStdoutContains(t, r, "Restored backup")
			framework.AssertFileEquals(t, s.Environment(), "app.json", messyAppJSON)
		})
}

func TestRollback_WithoutBackup(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	framework.NewScenario(t).
		When("I roll back an untouched project", func(r *framework.Runner) *framework.Result {
			return r.Rollback()
		}).
		Then("the command explains there is nothing to restore", func(t *testing.T, r *framework.Result) {
			framework.AssertExitCode(t, r, 1)
			framework.AssertStderrContains(t, r, "no backup found")
		})
}
