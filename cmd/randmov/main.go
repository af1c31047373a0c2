package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/api"
	"github.com/JakeFAU/randmov/internal/app"
	"github.com/JakeFAU/randmov/internal/config"
	"github.com/JakeFAU/randmov/internal/logging"
	"github.com/JakeFAU/randmov/internal/qrng"
	"github.com/JakeFAU/randmov/internal/watchlist"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage: randmov [-config file] <command> [flags]

commands:
  pick   -user NAME [-details]   pick a random entry from NAME's watchlist
  list   -user NAME              print every entry of NAME's watchlist
  details -user NAME -slug SLUG  print metadata for one entry of NAME's watchlist
  sample -bound N                draw a uniform value in [0, N]
  serve                          run the HTTP API
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("randmov", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := global.String("config", "", "Path to config file")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}
	command, rest := global.Arg(0), global.Args()[1:]

	var handler func(context.Context, *app.App, config.Config, []string, io.Writer) error
	switch command {
	case "pick":
		handler = runPick
	case "list":
		handler = runList
	case "details":
		handler = runDetails
	case "sample":
		handler = runSample
	case "serve":
		handler = runServe
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		global.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config failed: %v\n", err)
		return exitError
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return exitError
	}

	session, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("app init failed", zap.Error(err))
		fmt.Fprintf(stderr, "init failed: %v\n", err)
		return exitError
	}
	defer session.Close()

	if err := handler(ctx, session, cfg, rest, stdout); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "%s: %v\n\n", command, err)
			global.Usage()
			return exitUsage
		}
		fmt.Fprintf(stderr, "%s\n", describe(err))
		return exitError
	}
	return exitOK
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usageError{msg: fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " "))}
	}
	return nil
}

func runPick(ctx context.Context, session *app.App, _ config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pick", flag.ContinueOnError)
	user := fs.String("user", "", "Watchlist owner")
	details := fs.Bool("details", false, "Also fetch the chosen film's details")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return usageError{msg: "-user is required"}
	}

	sel, err := session.Pick(ctx, *user, *details)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Your random movie is: %s (%s)\n", sel.Entry.DisplayName, sel.Entry.DetailURL)
	if d := sel.Details; d != nil {
		if line := detailsLine(*d); line != "" {
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintf(out, "Picked entry %d of %d after %d attempt(s) on the %s backend.\n",
		sel.Index+1, sel.Total, sel.Sample.Attempts, sel.Sample.Backend)
	fmt.Fprintln(out, "It was chosen using this quantum circuit:")
	fmt.Fprintln(out, sel.Sample.Circuit.Draw())
	return nil
}

func detailsLine(d watchlist.Details) string {
	var parts []string
	if len(d.Directors) > 0 {
		parts = append(parts, "Directed by "+strings.Join(d.Directors, ", "))
	}
	if d.ReleaseYear > 0 {
		parts = append(parts, strconv.Itoa(d.ReleaseYear))
	}
	if d.RuntimeMinutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", d.RuntimeMinutes))
	}
	return strings.Join(parts, " | ")
}

func runList(ctx context.Context, session *app.App, _ config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	user := fs.String("user", "", "Watchlist owner")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return usageError{msg: "-user is required"}
	}

	listing, err := session.Watchlist(ctx, *user)
	if err != nil {
		return err
	}
	for i, e := range listing.Entries {
		fmt.Fprintf(out, "%d. %s [%s] (%s)\n", i+1, e.DisplayName, e.Slug, e.DetailURL)
	}
	fmt.Fprintf(out, "%d entries across %d page(s)\n", len(listing.Entries), listing.Pages)
	return nil
}

func runDetails(ctx context.Context, session *app.App, _ config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("details", flag.ContinueOnError)
	user := fs.String("user", "", "Watchlist owner")
	slug := fs.String("slug", "", "Entry slug, as printed by list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" || strings.TrimSpace(*slug) == "" {
		return usageError{msg: "-user and -slug are required"}
	}

	got, err := session.Details(ctx, *user, *slug)
	if err != nil {
		return err
	}
	name := got.Details.Name
	if name == "" {
		name = got.Entry.DisplayName
	}
	fmt.Fprintf(out, "%s (%s)\n", name, got.Entry.DetailURL)
	if line := detailsLine(got.Details); line != "" {
		fmt.Fprintln(out, line)
	}
	return nil
}

func runSample(ctx context.Context, session *app.App, _ config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	bound := fs.Int("bound", -1, "Inclusive upper bound")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *bound < 0 {
		return usageError{msg: "-bound must be a non-negative integer"}
	}

	res, err := session.Sample(ctx, *bound)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sampled %d from [0, %d] after %d attempt(s) on the %s backend.\n",
		res.Value, *bound, res.Attempts, res.Backend)
	fmt.Fprintln(out, res.Circuit.Draw())
	return nil
}

func runServe(ctx context.Context, session *app.App, cfg config.Config, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	logger := session.Logger()

	port := cfg.Server.Port
	if env := os.Getenv("PORT"); env != "" {
		p, err := strconv.Atoi(env)
		if err != nil || p <= 0 {
			return fmt.Errorf("invalid PORT %q", env)
		}
		port = p
	}

	apiServer := api.NewServer(session, cfg.RequestTimeout(), logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// describe turns session errors into the messages shown to CLI users.
func describe(err error) string {
	switch {
	case errors.Is(err, app.ErrEmptyWatchlist):
		return "No entries found."
	case errors.Is(err, app.ErrEntryNotFound):
		return "That entry is not on the watchlist."
	case errors.Is(err, watchlist.ErrDetailsUnavailable):
		return fmt.Sprintf("Could not fetch details: %v", err)
	case errors.Is(err, watchlist.ErrNetworkFault):
		return fmt.Sprintf("Could not fetch the watchlist: %v", err)
	case errors.Is(err, qrng.ErrInternalFault):
		return fmt.Sprintf("Random generator failure: %v", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
