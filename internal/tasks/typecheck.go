package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ErrTypeCheckFailed is returned when tsc reports errors.
var ErrTypeCheckFailed = errors.New("type check failed")

// tscError matches "src/a.ts(3,7): error TS2322: ...".
var tscError = regexp.MustCompile(`(?m)^.+\(\d+,\d+\): error TS\d+:`)

// TypeCheckReport is the result of TypeChecker.
type TypeCheckReport struct {
	Skipped bool   `json:"skipped"`
	Errors  int    `json:"errors"`
	Output  string `json:"output,omitempty"`
}

// TypeChecker runs the TypeScript compiler without emitting output.
type TypeChecker struct {
	env Env
}

// NewTypeChecker creates a TypeChecker.
func NewTypeChecker(env Env) *TypeChecker {
	return &TypeChecker{env: env}
}

// Run type checks the project. Projects without tsconfig.json are skipped.
// tsc never writes anything, so Run behaves the same in dry-run.
func (c *TypeChecker) Run(ctx context.Context) (*TypeCheckReport, error) {
	if !c.env.FS.Exists(c.env.path("tsconfig.json")) {
		c.env.logger().Debug(ctx, "no tsconfig.json, skipping type check")
		return &TypeCheckReport{Skipped: true}, nil
	}

	res, err := c.env.Runner.Run(ctx, "npx", "--no-install", "tsc", "--noEmit")
	if err != nil {
		return nil, fmt.Errorf("%w: tsc: %w", ErrToolUnavailable, err)
	}
	report := &TypeCheckReport{
		Errors: len(tscError.FindAllString(res.Stdout, -1)),
		Output: firstLines(res.Output(), 20),
	}
	if !res.Success() {
		if report.Errors == 0 {
			report.Errors = 1
		}
		return report, fmt.Errorf("%w: %d error(s)\n%s", ErrTypeCheckFailed, report.Errors, report.Output)
	}
	c.env.logger().Info(ctx, "type check passed", ports.F("exitCode", res.ExitCode))
	return report, nil
}

// Validate is Run reduced to its error, for use as a step validator.
func (c *TypeChecker) Validate(ctx context.Context) error {
	_, err := c.Run(ctx)
	return err
}
