// Command workflowctl is the thin CLI client: it talks to a workflowd
// control server, auto-launching one as a detached background process if
// none answers, then issues a single RPC and exits with a stable code
// derived from the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/pkg/client"
)

// Exit codes, stable small integers. 0 is success, 1 is an unclassified
// client/transport error; the rest mirror domain.ErrCode*.
const (
	exitOK                          = 0
	exitGenericError                = 1
	exitYAMLInvalid                 = 2
	exitWorkflowNotValid            = 3
	exitVaultScriptMissing          = 4
	exitValidationFailed            = 5
	exitWorkflowFileTypeUnsupported = 6
	exitStartNodeNotFound           = 7
	exitPlaybookParameterInvalid    = 8
	exitWorkflowFailed              = 9
)

func exitCodeFor(code string) int {
	switch code {
	case domain.ErrCodeYAMLInvalid:
		return exitYAMLInvalid
	case domain.ErrCodeWorkflowNotValid, domain.ErrCodeCyclicDependency, domain.ErrCodeEndNodeNotFound:
		return exitWorkflowNotValid
	case domain.ErrCodeVaultScriptMissing:
		return exitVaultScriptMissing
	case domain.ErrCodeValidationFailed, domain.ErrCodeDuplicateNodeID:
		return exitValidationFailed
	case domain.ErrCodeWorkflowFileTypeUnsupported:
		return exitWorkflowFileTypeUnsupported
	case domain.ErrCodeStartNodeNotFound:
		return exitStartNodeNotFound
	case domain.ErrCodePlaybookParameterInvalid:
		return exitPlaybookParameterInvalid
	case domain.ErrCodeWorkflowFailed:
		return exitWorkflowFailed
	default:
		return exitGenericError
	}
}

// apiErrorCoder is satisfied by pkg/client.APIError; we only need the code
// string here, so a small interface avoids importing its full shape.
type apiErrorCoder interface {
	Code() string
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	if coder, ok := err.(apiErrorCoder); ok {
		os.Exit(exitCodeFor(coder.Code()))
	}
	os.Exit(exitGenericError)
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8787", "workflowd base URL")
	token := flag.String("token", os.Getenv("WORKFLOWCTL_TOKEN"), "bearer token")
	daemonPath := flag.String("daemon", "workflowd", "path to the workflowd binary for auto-launch")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: workflowctl <load|run|stop|status|graph|tail|restart|skip|shutdown> [args]")
		os.Exit(exitGenericError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := client.EnsureServer(ctx, *addr, *token, *daemonPath)
	if err != nil {
		fail(err)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "load":
		fs := flag.NewFlagSet("load", flag.ExitOnError)
		inventory := fs.String("inventory", "", "inventory path")
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: workflowctl load <path> [--inventory path]")
			os.Exit(exitGenericError)
		}
		result, err := c.LoadWorkflow(ctx, fs.Arg(0), *inventory)
		if err != nil {
			fail(err)
		}
		fmt.Printf("loaded (reconnected=%v)\n", result.Reconnected)

	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		start := fs.String("start", "", "start node id")
		end := fs.String("end", "", "end node id")
		verifyOnly := fs.Bool("verify-only", false, "validate without launching")
		fs.Parse(rest)
		if err := c.Run(ctx, client.RunParams{Start: *start, End: *end, VerifyOnly: *verifyOnly}); err != nil {
			fail(err)
		}
		fmt.Println("run started")

	case "stop":
		fs := flag.NewFlagSet("stop", flag.ExitOnError)
		mode := fs.String("mode", "graceful", "graceful|hard")
		fs.Parse(rest)
		if err := c.Stop(ctx, *mode); err != nil {
			fail(err)
		}
		fmt.Println("stop requested")

	case "status":
		status, err := c.Status(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("workflow_status: %s\n", status.WorkflowStatus)
		for _, n := range status.Nodes {
			fmt.Printf("  %-20s %-10s %s\n", n.ID, n.Status, n.Description)
		}

	case "graph":
		fs := flag.NewFlagSet("graph", flag.ExitOnError)
		format := fs.String("format", "ascii", "mermaid|ascii")
		fs.Parse(rest)
		doc, err := c.DrawGraph(ctx, *format)
		if err != nil {
			fail(err)
		}
		fmt.Print(doc)

	case "tail":
		fs := flag.NewFlagSet("tail", flag.ExitOnError)
		offset := fs.Int64("offset", 0, "byte offset")
		fs.Parse(rest)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: workflowctl tail <node-id> [--offset n]")
			os.Exit(exitGenericError)
		}
		content, newOffset, err := c.TailStdout(ctx, fs.Arg(0), *offset)
		if err != nil {
			fail(err)
		}
		fmt.Print(content)
		fmt.Fprintf(os.Stderr, "\n(new offset: %d)\n", newOffset)

	case "restart":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: workflowctl restart <node-id>")
			os.Exit(exitGenericError)
		}
		if err := c.RestartNode(ctx, rest[0]); err != nil {
			fail(err)
		}
		fmt.Println("restarted")

	case "skip":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: workflowctl skip <node-id>")
			os.Exit(exitGenericError)
		}
		if err := c.SkipNode(ctx, rest[0]); err != nil {
			fail(err)
		}
		fmt.Println("skipped")

	case "shutdown":
		if err := c.RequestShutdown(ctx); err != nil {
			fail(err)
		}
		fmt.Println("shutdown requested")

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(exitGenericError)
	}
}
