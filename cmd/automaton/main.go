// Command automaton is the thin CLI front-end (§6.1): it owns flag parsing
// and environment resolution and hands everything else to internal/config,
// internal/interpreter, and internal/browser. Grounded on the teacher's
// cmd/Crepes/main.go (flag-driven bootstrap, createDirs-style directory
// preparation before the engine starts).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/olereon/automaton/internal/registry" // REGISTERS EVERY ACTION HANDLER VIA init()

	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/config"
	"github.com/olereon/automaton/internal/interpreter"
	"github.com/olereon/automaton/internal/models"
	"github.com/olereon/automaton/internal/registry"
	"github.com/olereon/automaton/internal/storage"
	"github.com/olereon/automaton/internal/utils"
)

const version = "v0.1.0"

// EXIT CODES (§6.5). SUCCESS IS ALWAYS ZERO; EVERY TERMINAL FAILURE MODE —
// MALFORMED CONFIGURATION, A FAILED RUN, OR A BAD CLI INVOCATION — IS
// NON-ZERO, BUT DISTINGUISHED SO SCRIPTS CAN TELL "CONFIG WAS BAD" FROM
// "THE AUTOMATION RAN AND FAILED".
const (
	exitOK          = 0
	exitUsage       = 1
	exitLoadFailed  = 2
	exitRunFailed   = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "list-actions":
		code = cmdListActions(os.Args[2:])
	case "create":
		code = cmdCreate(os.Args[2:])
	case "run":
		code = cmdRun(os.Args[2:])
	case "validate":
		code = cmdValidate(os.Args[2:])
	case "convert":
		code = cmdConvert(os.Args[2:])
	case "history":
		code = cmdHistory(os.Args[2:])
	default:
		usage()
		code = exitUsage
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, "automaton %s\n\nusage: automaton <command> [flags]\n\ncommands:\n", version)
	fmt.Fprintln(os.Stderr, "  list-actions")
	fmt.Fprintln(os.Stderr, "  create   -n NAME -u URL -o PATH")
	fmt.Fprintln(os.Stderr, "  run      -c PATH [--show-browser] [--continue-on-error] [--timeout MS]")
	fmt.Fprintln(os.Stderr, "  validate -c PATH")
	fmt.Fprintln(os.Stderr, "  convert  -i IN -o OUT --format {json|yaml}")
	fmt.Fprintln(os.Stderr, "  history  [-n LIMIT]")
}

func cmdListActions(args []string) int {
	schemas := registry.Schemas()
	kinds := make([]string, 0, len(schemas))
	for k := range schemas {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		fmt.Printf("%s\n", k)
		fields := schemas[models.ActionKind(k)]
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %s\n", name, fields[name])
		}
	}
	return exitOK
}

func cmdCreate(args []string) int {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("n", "", "configuration name")
	url := fs.String("u", "", "starting URL")
	out := fs.String("o", "", "output path")
	fs.Parse(args)

	if *name == "" || *url == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "create requires -n NAME -u URL -o PATH")
		return exitUsage
	}

	cfg := &models.Configuration{
		Name:     *name,
		URL:      *url,
		Headless: true,
		Viewport: models.Viewport{Width: 1280, Height: 800},
		Actions: []models.Action{
			{Kind: models.NavigateTo, Value: *url, Description: "initial navigation"},
		},
	}

	if err := config.Save(cfg, *out); err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		return exitLoadFailed
	}
	fmt.Printf("wrote skeleton configuration to %s\n", *out)
	return exitOK
}

func cmdValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("c", "", "configuration path")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "validate requires -c PATH")
		return exitUsage
	}

	if _, err := interpreter.Load(*path); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return exitLoadFailed
	}
	fmt.Println("valid")
	return exitOK
}

func cmdConvert(args []string) int {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("i", "", "input path")
	out := fs.String("o", "", "output path")
	format := fs.String("format", "", "json|yaml (inferred from -o extension if omitted)")
	fs.Parse(args)

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "convert requires -i IN -o OUT")
		return exitUsage
	}

	cfg, err := config.Load(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		return exitLoadFailed
	}

	outPath := *out
	if *format != "" {
		ext := ".json"
		if *format == "yaml" {
			ext = ".yaml"
		}
		if filepath.Ext(outPath) == "" {
			outPath += ext
		}
	}

	if err := config.Save(cfg, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		return exitLoadFailed
	}
	fmt.Printf("wrote %s\n", outPath)
	return exitOK
}

// CMDHISTORY PRINTS THE MOST RECENT RUN RECORDS FROM THE RUN HISTORY STORE
// (§COMPONENT 11), ONE LINE PER RUN: CONFIG NAME, EXIT STATUS, ELAPSED
// WALL-CLOCK TIME, AND A TRUNCATED ERROR MESSAGE WHEN THE RUN FAILED.
func cmdHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of recent runs to show")
	fs.Parse(args)

	opts := config.LoadRuntimeOptionsFromEnv()
	history := storage.Open(opts.HistoryDBPath)
	defer history.Close()

	records, err := history.Recent(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		return exitLoadFailed
	}
	if len(records) == 0 {
		fmt.Println("no run history recorded")
		return exitOK
	}

	for _, r := range records {
		elapsed := utils.FormatDuration(r.EndedAt.Sub(r.StartedAt))
		line := fmt.Sprintf("%-24s %-8s %8s  downloads=%d", r.ConfigName, r.ExitStatus, elapsed, r.DownloadsCompleted)
		if r.ExitStatus == storage.ExitStatusFailure {
			line += fmt.Sprintf("  [%s] %s", r.ErrorKind, utils.TruncateString(r.ErrorMessage, 80))
		}
		fmt.Println(line)
	}
	return exitOK
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	path := fs.String("c", "", "configuration path")
	showBrowser := fs.Bool("show-browser", false, "run with a visible browser window")
	continueOnErr := fs.Bool("continue-on-error", false, "treat every top-level action as continue_on_error")
	timeoutMs := fs.Int("timeout", 0, "override every action's timeout_ms when > 0")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "run requires -c PATH")
		return exitUsage
	}

	opts := config.LoadRuntimeOptionsFromEnv()
	if err := autolog.Init(opts.LogDir, opts.LogLevel, true, opts.StoreErrorDetails); err != nil {
		fmt.Fprintf(os.Stderr, "run: logger init failed: %v\n", err)
	}
	defer autolog.Default().Close()

	history := storage.Open(opts.HistoryDBPath)
	defer history.Close()

	cfg, err := interpreter.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return exitLoadFailed
	}

	applyRunFlags(cfg, *continueOnErr, *timeoutMs)

	headless := cfg.Headless && !*showBrowser
	browser.Preflight(opts.DownloadDir)

	drv := browser.NewChromeDriver()
	launchCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := drv.Launch(launchCtx, browser.LaunchOptions{
		Headless:      headless,
		ViewportWidth: cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		BrowserPathHint: os.Getenv("AUTOMATON_BROWSER_PATH"),
	}); err != nil {
		autolog.Default().Warn("chromedp launch failed, falling back to HTTP driver", map[string]any{"error": err.Error()})
		drv = nil
	}

	var activeDriver browser.Driver = drv
	if drv == nil {
		activeDriver = browser.NewHTTPDriver()
	}

	started := time.Now()
	in := interpreter.New(cfg.Actions, activeDriver)
	if err := activeDriver.Navigate(launchCtx, cfg.URL); err != nil {
		autolog.Default().Warn("initial navigation failed", map[string]any{"url": cfg.URL, "error": err.Error()})
	}

	result := in.Run(launchCtx)
	ended := time.Now()

	if !cfg.KeepBrowserOpen {
		_ = activeDriver.Close(launchCtx)
	}

	record := storage.RunRecord{
		ConfigName:           cfg.Name,
		StartedAt:            started,
		EndedAt:              ended,
		ErrorKind:            result.ErrorKind,
		ErrorMessage:         result.FailureReason,
		DownloadsCompleted:   intVariable(in.Ectx, "downloads_completed"),
		ManagerTerminalState: stringVariable(in.Ectx, "manager_terminal_state"),
	}
	if result.Success {
		record.ExitStatus = storage.ExitStatusSuccess
	} else {
		record.ExitStatus = storage.ExitStatusFailure
	}
	history.Record(record)

	if !result.Success {
		fmt.Fprintf(os.Stderr, "run failed: [%s] %s\n", result.ErrorKind, result.FailureReason)
		return exitRunFailed
	}
	fmt.Println("run completed")
	return exitOK
}

// APPLYRUNFLAGS MUTATES THE LOADED ACTIONS IN PLACE ACCORDING TO THE run
// SUBCOMMAND'S FLAGS — CONTINUE-ON-ERROR BLANKET OVERRIDE AND A TIMEOUT
// OVERRIDE, BOTH APPLIED BEFORE INTERPRETATION BEGINS.
func applyRunFlags(cfg *models.Configuration, continueOnErr bool, timeoutMs int) {
	for i := range cfg.Actions {
		if continueOnErr {
			cfg.Actions[i].ContinueOnError = true
		}
		if timeoutMs > 0 {
			cfg.Actions[i].TimeoutMs = timeoutMs
		}
	}
}

func intVariable(ectx *models.ExecutionContext, name string) int {
	v, ok := ectx.GetVariable(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringVariable(ectx *models.ExecutionContext, name string) string {
	v, ok := ectx.GetVariable(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
