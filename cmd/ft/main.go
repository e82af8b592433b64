package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/flatree/pkg/config"
	"github.com/vanderheijden86/flatree/pkg/export"
	"github.com/vanderheijden86/flatree/pkg/loader"
	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/source"
	"github.com/vanderheijden86/flatree/pkg/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// options holds the parsed command line.
type options struct {
	source     string
	configPath string
	expand     int
	robotRows  bool
	exportMD   string
	exportSVG  string
	exportPNG  string
}

// headless reports whether the run prints or exports instead of starting
// the TUI.
func (o options) headless() bool {
	return o.robotRows || o.exportMD != "" || o.exportSVG != "" || o.exportPNG != ""
}

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	var opts options
	flag.StringVar(&opts.source, "source", "", "Directory, document (.yaml, .yml, .json) or database (.db, .sqlite) to browse")
	flag.StringVar(&opts.configPath, "config", "", "Config file (default: .ft/config.yaml found from the current directory)")
	flag.IntVar(&opts.expand, "expand", -1, "Open this many levels on start (default: expand_depth from the config)")
	flag.BoolVar(&opts.robotRows, "robot-rows", false, "Print the visible rows as JSON and exit")
	flag.StringVar(&opts.exportMD, "export-md", "", "Export the visible rows to a Markdown file (e.g., outline.md)")
	flag.StringVar(&opts.exportSVG, "export-svg", "", "Export the visible rows to an SVG file")
	flag.StringVar(&opts.exportPNG, "export-png", "", "Export the visible rows to a PNG file")
	flag.Parse()

	if *help {
		fmt.Println("Usage: ft [options] [source]")
		fmt.Println("\nA terminal viewer for directory trees, YAML/JSON documents and SQLite node tables.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("ft %s\n", version)
		os.Exit(0)
	}

	if opts.source == "" && flag.NArg() > 0 {
		opts.source = flag.Arg(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Log, cfg.LogLevel())
	if err != nil {
		return err
	}
	defer closeLog()
	log.Logger = logger

	pick := pickSource
	if opts.headless() || !term.IsTerminal(int(os.Stdin.Fd())) {
		pick = nil
	}
	path, err := resolveSource(opts.source, cfg, pick)
	if err != nil {
		return err
	}

	src, err := source.Open(path, source.Options{ShowHidden: cfg.ShowHidden, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()
	logger.Info().Str("source", src.Name()).Msg("opened source")

	depth := cfg.ExpandDepth
	if opts.expand >= 0 {
		depth = opts.expand
	}
	treeOpts := []ui.TreeOption{
		ui.WithExpandDepth(depth),
		ui.WithMaxExpandRows(cfg.MaxExpandRows),
		ui.WithTreeLogger(logger),
	}
	if stateDir := prepareStateDir(logger); stateDir != "" {
		treeOpts = append(treeOpts, ui.WithStateDir(stateDir))
	}

	theme := ui.DefaultTheme(lipgloss.DefaultRenderer())
	tree := ui.NewTreeModel(src, theme, treeOpts...)
	if err := tree.Init(); err != nil {
		return fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	if opts.headless() {
		err := runHeadless(os.Stdout, &tree, opts)
		if cerr := tree.Close(); err == nil {
			err = cerr
		}
		return err
	}

	return runTUI(ui.NewModel(tree, theme, ui.WithModelLogger(logger)), workerConfig(src, cfg), cfg.WatchEnabled(), logger)
}

// setupLogger writes JSON lines to the configured log file. Without a
// file nothing is logged, since the TUI owns the terminal.
func setupLogger(lc config.LogConfig, level zerolog.Level) (zerolog.Logger, func(), error) {
	if lc.File == "" {
		return zerolog.Nop(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, func() { f.Close() }, nil
}

// resolveSource picks the path to open: the flag, then the config's
// source, then the picker when one is given, then the current directory.
func resolveSource(flagValue string, cfg *config.Config, pick func([]config.Bookmark) (string, error)) (string, error) {
	path := flagValue
	if path == "" {
		path = cfg.Source
	}
	if path == "" && pick != nil {
		if candidates := config.DiscoverSources(*cfg); len(candidates) > 0 {
			chosen, err := pick(candidates)
			if err != nil {
				return "", err
			}
			path = chosen
		}
	}
	if path == "" {
		path = "."
	}
	return filepath.Abs(path)
}

// pickSource asks which source to open.
func pickSource(candidates []config.Bookmark) (string, error) {
	options := make([]huh.Option[string], 0, len(candidates)+1)
	for _, b := range candidates {
		options = append(options, huh.NewOption(fmt.Sprintf("%s  %s", b.DisplayName(), b.ResolvedPath()), b.ResolvedPath()))
	}
	options = append(options, huh.NewOption("Current directory", "."))

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Open a source").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("picking a source: %w", err)
	}
	return chosen, nil
}

// prepareStateDir returns the project's .ft directory when one exists,
// making sure git ignores it.
func prepareStateDir(logger zerolog.Logger) string {
	root, ok := config.DetectCurrentProject()
	if !ok {
		return ""
	}
	if err := loader.EnsureStateDirIgnored(root); err != nil {
		logger.Warn().Err(err).Str("project", root).Msg("could not update .gitignore")
	}
	return filepath.Join(root, loader.StateDir)
}

// robotOutput is the JSON printed by -robot-rows.
type robotOutput struct {
	Source  string         `json:"source"`
	Count   int            `json:"count"`
	Summary export.Summary `json:"summary"`
	Rows    []model.Row    `json:"rows"`
}

// runHeadless writes the requested exports and robot output.
func runHeadless(w io.Writer, tree *ui.TreeModel, opts options) error {
	rows, err := export.CollectRows(tree.Index())
	if err != nil {
		return err
	}
	title := filepath.Base(tree.Source().Name())

	exports := []struct {
		path string
		save func([]model.Row, string, string) error
	}{
		{opts.exportMD, export.SaveMarkdownToFile},
		{opts.exportSVG, export.SaveSVGToFile},
		{opts.exportPNG, export.SavePNGToFile},
	}
	for _, e := range exports {
		if e.path == "" {
			continue
		}
		if err := e.save(rows, title, e.path); err != nil {
			return fmt.Errorf("exporting %s: %w", e.path, err)
		}
		if !opts.robotRows {
			fmt.Fprintf(w, "Exported %d rows to %s\n", len(rows), e.path)
		}
	}

	if opts.robotRows {
		out := robotOutput{
			Source:  tree.Source().Name(),
			Count:   len(rows),
			Summary: export.Summarize(rows),
			Rows:    rows,
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding rows: %w", err)
		}
	}
	return nil
}

// workerConfig describes what the background worker watches for src.
// Sources without a backing file return a zero config, which leaves the
// worker inert.
func workerConfig(src source.Source, cfg *config.Config) ui.WorkerConfig {
	wc := ui.WorkerConfig{DebounceDelay: cfg.Debounce()}
	switch s := src.(type) {
	case *source.DirSource:
		wc.Root = s.Root()
		wc.Filter = s.Skip
	case *source.MemSource:
		if s.File() != "" {
			wc.Document = s.File()
			wc.Parse = source.LoadDocument
		}
	case *source.SQLSource:
		// Reread through the source; there is no cheap way to parse a
		// database off-thread.
		wc.Document = s.Name()
	}
	return wc
}

// runTUI runs the program and, when watching is on, the background worker
// that feeds it changes.
func runTUI(m ui.Model, wc ui.WorkerConfig, watch bool, logger zerolog.Logger) error {
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	if watch {
		wc.Send = p.Send
		wc.Logger = logger
		g.Go(func() error {
			worker, err := ui.NewBackgroundWorker(wc)
			if err != nil {
				logger.Warn().Err(err).Msg("live updates disabled")
				return nil
			}
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("live updates disabled")
				return nil
			}
			<-gctx.Done()
			worker.Stop()
			return nil
		})
	}

	return g.Wait()
}
