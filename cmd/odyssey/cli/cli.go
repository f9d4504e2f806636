// Package cli implements the operator subcommands of the odyssey binary.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// Env carries the collaborators and output streams of a CLI run.
type Env struct {
	Jobs     *JobsCLI
	Users    UserLookup
	Sessions SessionIssuer
	Stdout   io.Writer
	Stderr   io.Writer
}

const usage = `usage:
  odyssey                                  start the HTTP API
  odyssey jobs trigger <task> [--retention-days N]
  odyssey jobs stats [--json]
  odyssey session issue --user ID
`

// Run executes args (without the program name) and returns the exit code.
func Run(ctx context.Context, env Env, args []string) int {
	if len(args) < 2 {
		_, _ = fmt.Fprint(env.Stderr, usage)
		return 2
	}
	switch args[0] + " " + args[1] {
	case "jobs trigger":
		return runTrigger(ctx, env, args[2:])
	case "jobs stats":
		return runStats(ctx, env, args[2:])
	case "session issue":
		return runIssue(ctx, env, args[2:])
	default:
		_, _ = fmt.Fprint(env.Stderr, usage)
		return 2
	}
}

func runTrigger(ctx context.Context, env Env, args []string) int {
	fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	retention := fs.Int("retention-days", 30, "idempotency key retention")
	if len(args) == 0 {
		_, _ = fmt.Fprintln(env.Stderr, "jobs trigger: task type is required")
		return 2
	}
	name := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	info, err := env.Jobs.Trigger(ctx, name, *retention)
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(env.Stdout, "enqueued %s as %s on %s\n", name, info.ID, info.Queue)
	return 0
}

func runStats(ctx context.Context, env Env, args []string) int {
	fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	stats, err := env.Jobs.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	if *asJSON {
		if err := json.NewEncoder(env.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(env.Stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderStats(env.Stdout, stats)
	return 0
}

func runIssue(ctx context.Context, env Env, args []string) int {
	fs := flag.NewFlagSet("session issue", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	userID := fs.Int64("user", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	token, err := IssueToken(ctx, env.Users, env.Sessions, *userID)
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "session issue: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(env.Stdout, token)
	return 0
}
