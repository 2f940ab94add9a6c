package app

import (
	"context"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/execution"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/tasks"
)

// Step names of the default pipeline, usable with --skip.
const (
	StepInitialSetup    = "Initial Setup"
	StepDependencies    = "Dependency Analysis"
	StepDeadCode        = "Dead Code Detection"
	StepAssets          = "Asset Cleanup"
	StepExpoConfig      = "Expo Config Cleanup"
	StepEASConfig       = "EAS Config Optimization"
	StepFirebaseConfig  = "Firebase Config Normalization"
	StepDebugScripts    = "Debug Script Organization"
	StepPackageScripts  = "Package Script Cleanup"
	StepFinalValidation = "Final Validation"
)

const (
	packageJSON           = "package.json"
	debugScriptsDirectory = "scripts/debug"
)

// work adapts a typed task to an execution.Work.
func work[T any](run func(context.Context) (T, error)) execution.Work {
	return func(ctx context.Context) (any, error) {
		return run(ctx)
	}
}

// Pipeline returns the default cleanup steps in execution order. Report-only
// steps skip validation; steps that rewrite files checkpoint them first.
func Pipeline(env tasks.Env) []execution.Step {
	debugFiles := []string{packageJSON, debugScriptsDirectory}
	if names, err := tasks.FindDebugScripts(env.Root); err == nil {
		debugFiles = append(debugFiles, names...)
	}

	return []execution.Step{
		{
			Name:           StepInitialSetup,
			Description:    "Check that the directory is a JavaScript project",
			Run:            work(tasks.NewProjectCheck(env).Run),
			Required:       true,
			SkipValidation: true,
		},
		{
			Name:           StepDependencies,
			Description:    "Report unused, missing and outdated dependencies",
			Run:            work(tasks.NewDependencyScanner(env).Run),
			SkipValidation: true,
		},
		{
			Name:           StepDeadCode,
			Description:    "Report unused files and exports",
			Run:            work(tasks.NewDeadCodeDetector(env).Run),
			SkipValidation: true,
		},
		{
			Name:        StepAssets,
			Description: "Move unreferenced assets to assets/.unused",
			Run:         work(tasks.NewAssetManager(env).Run),
			Files:       []string{"assets"},
		},
		{
			Name:        StepExpoConfig,
			Description: "Normalize app.json",
			Run:         work(tasks.NewExpoConfigCleaner(env).Run),
			Files:       []string{"app.json"},
		},
		{
			Name:        StepEASConfig,
			Description: "Remove empty eas.json profiles",
			Run:         work(tasks.NewEASConfigOptimizer(env).Run),
			Files:       []string{"eas.json"},
		},
		{
			Name:        StepFirebaseConfig,
			Description: "Normalize firebase.json and .firebaserc",
			Run:         work(tasks.NewFirebaseConfigNormalizer(env).Run),
			Files:       []string{"firebase.json", ".firebaserc"},
		},
		{
			Name:        StepDebugScripts,
			Description: "Move debug scripts to scripts/debug",
			Run:         work(tasks.NewDebugScriptOrganizer(env).Run),
			Files:       debugFiles,
		},
		{
			Name:        StepPackageScripts,
			Description: "Remove package.json scripts pointing at missing files",
			Run:         work(tasks.NewPackageScriptCleaner(env).Run),
			Files:       []string{packageJSON},
		},
		{
			Name:           StepFinalValidation,
			Description:    "Type check the project",
			Run:            work(tasks.NewTypeChecker(env).Run),
			Required:       true,
			SkipValidation: true,
		},
	}
}

// StepNames returns the names of the default pipeline in order.
func StepNames() []string {
	return []string{
		StepInitialSetup,
		StepDependencies,
		StepDeadCode,
		StepAssets,
		StepExpoConfig,
		StepEASConfig,
		StepFirebaseConfig,
		StepDebugScripts,
		StepPackageScripts,
		StepFinalValidation,
	}
}
