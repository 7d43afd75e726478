package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

// cliOptions are the parsed command-line flags
type cliOptions struct {
	config      Config
	overrides   JobFile
	noTUI       bool
	setup       bool
	inspect     bool
	history     int
	preview     string
	profile     string
	saveProfile string
	saveJob     string
	pickGPS     string
	gps         string
}

// parseArgs parses flags; only flags given explicitly become overrides
func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := pflag.NewFlagSet("film-exif", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: film-exif [flags] <photos or directories>...")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	o := &cliOptions{}
	var (
		stamp, continueOnError bool
		offsetX, offsetY       int
		date, startTime        string
	)

	fs.StringVar(&o.config.JobFile, "job", "", "YAML job manifest to run")
	fs.StringVarP(&date, "date", "d", "", "Date assigned to every photo given on the command line (YYYY-MM-DD)")
	fs.StringVarP(&startTime, "time", "t", "", "Time of day for the first photo of each date (HH:MM)")
	fs.StringVarP(&o.overrides.OutputDir, "out", "o", "", "Output directory for stamped photos")
	fs.BoolVarP(&stamp, "stamp", "s", false, "Burn a date stamp into the pixels and write new files")
	fs.StringVar(&o.overrides.StampFormat, "stamp-format", "", "Stamp format: \"'YY MM DD\" (short) or \"YYYY MM DD\" (long)")
	fs.Float64Var(&o.overrides.BlurStrength, "blur", 0, "Stamp glow/blur strength (0.1-1.0)")
	fs.Float64Var(&o.overrides.FontRatio, "font-ratio", 0, "Stamp height relative to the shorter image side (0.02-0.08)")
	fs.IntVar(&offsetX, "offset-x", 0, "Horizontal stamp offset in pixels (-50..50)")
	fs.IntVar(&offsetY, "offset-y", 0, "Vertical stamp offset in pixels (-50..50)")
	fs.StringVar(&o.overrides.FontPath, "font", "", "TrueType/OpenType font for the stamp")
	fs.StringVar(&o.overrides.Film, "film", "", "Film or description text")
	fs.StringVar(&o.overrides.CameraModel, "camera", "", "Camera model")
	fs.StringVar(&o.overrides.Lens, "lens", "", "Lens model")
	fs.StringVar(&o.overrides.Location, "location", "", "Free-text location, recorded when no GPS is given")
	fs.StringVar(&o.gps, "gps", "", "GPS position for every photo as \"lat,lon\"")
	fs.StringVar(&o.pickGPS, "pick-gps", "", "External picker command printing \"lat,lon\" on stdout")
	fs.BoolVar(&continueOnError, "continue-on-error", false, "Keep going when a photo fails")
	fs.BoolVarP(&o.config.Recursive, "recursive", "r", false, "Descend into subdirectories")
	fs.BoolVar(&o.config.DatesFromExif, "dates-from-exif", false, "Date undated photos from their existing capture time")
	fs.BoolVar(&o.config.DryRun, "dry-run", false, "Print the plan without writing anything")
	fs.BoolVar(&o.noTUI, "no-tui", false, "Disable TUI, use simple CLI output")
	fs.BoolVar(&o.setup, "setup", false, "Run the interactive setup wizard")
	fs.BoolVar(&o.inspect, "inspect", false, "Show existing metadata of the inputs and exit")
	fs.IntVar(&o.history, "history", 0, "Show the last N runs from the journal and exit")
	fs.StringVar(&o.preview, "preview", "", "Render the stamp for one photo into preview.jpg and exit")
	fs.StringVar(&o.profile, "profile", "", "Camera profile to use")
	fs.StringVar(&o.saveProfile, "save-profile", "", "Save camera and lens as a named profile")
	fs.StringVar(&o.saveJob, "save-job", "", "Write the resolved job to a YAML manifest")
	fs.StringVar(&o.config.JournalPath, "journal", "", "Journal database path")
	fs.BoolVar(&o.config.NoJournal, "no-journal", false, "Do not record the run")
	fs.IntVar(&o.config.Workers, "workers", 0, "Parallel workers for reading metadata")
	fs.StringVar(&o.config.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.config.Paths = fs.Args()

	o.overrides.Date = date
	o.overrides.StartTime = startTime
	if fs.Changed("stamp") {
		o.overrides.Stamp = &stamp
	}
	if fs.Changed("continue-on-error") {
		o.overrides.ContinueOnError = &continueOnError
	}
	if fs.Changed("offset-x") {
		o.overrides.OffsetX = &offsetX
	}
	if fs.Changed("offset-y") {
		o.overrides.OffsetY = &offsetY
	}
	return o, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run executes one invocation and returns the process exit code
func run(opts *cliOptions) int {
	if opts.setup {
		if err := setupLogging(os.Stderr, opts.config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		if _, err := runSetupWizard(os.Stdin, os.Stdout, getConfigPath()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	var cfg *ConfigFile
	if configExists() {
		loaded, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 2
		}
		cfg = loaded
	}
	config := resolveConfig(&opts.config, cfg)

	if err := setupLogging(os.Stderr, config.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if opts.history > 0 {
		return printHistory(config, opts.history)
	}

	job, err := resolveJob(opts, config, cfg)
	if err != nil {
		return reportError(err)
	}

	if opts.saveProfile != "" {
		path, err := saveProfile(getProfileDir(), CameraProfile{
			Name:        opts.saveProfile,
			CameraModel: job.CameraModel,
			Lens:        job.Lens,
		})
		if err != nil {
			return reportError(err)
		}
		fmt.Printf("✓ Profile saved to %s\n", path)
		if len(job.Items) == 0 {
			return 0
		}
	}

	if opts.saveJob != "" {
		if err := saveJob(job, opts.saveJob); err != nil {
			return reportError(err)
		}
		fmt.Printf("✓ Job saved to %s\n", opts.saveJob)
	}

	req, err := job.Request()
	if err != nil {
		return reportError(err)
	}

	if opts.inspect {
		metas := InspectPhotos(req.Items, config.Workers, nil)
		printInspection(os.Stdout, metas)
		return 0
	}

	// The TUI reads existing dates in its own phase
	useTUI := !opts.noTUI && !config.DryRun && opts.preview == ""
	if config.DatesFromExif && !useTUI {
		metas := InspectPhotos(req.Items, config.Workers, nil)
		if n := AssignDatesFromExif(req.Items, metas); n > 0 {
			fmt.Printf("Dated %d photos from existing EXIF\n", n)
		}
		if req.StartTime == nil && anyDated(req.Items) {
			tod, err := ParseTimeOfDay(defaultString(job.StartTime, "12:00"))
			if err != nil {
				return reportError(&RunError{Field: "start_time", Err: err})
			}
			req.StartTime = &tod
		}
	}

	plan := Schedule(req.Items, req.StartTime)

	if opts.preview != "" {
		return writePreview(req, plan, opts.preview)
	}

	if dups := FindDuplicateInputs(req.Items, config.Workers, nil); len(dups) > 0 {
		printDuplicates(os.Stderr, dups)
	}

	if config.DryRun {
		printPlan(os.Stdout, req, plan)
		fmt.Println("\nThis was a DRY RUN. Run without --dry-run to write files.")
		return 0
	}

	if err := ValidateRequest(req); err != nil {
		return reportError(err)
	}

	var journal *Journal
	if !config.NoJournal {
		journal, err = OpenJournal(config.JournalPath)
		if err != nil {
			fmt.Printf("Warning: journal disabled: %v\n", err)
			journal = nil
		} else {
			defer journal.Close()
		}
	}

	if !useTUI {
		return runCLI(req, plan, journal)
	}
	return runTUI(config, req, plan, journal)
}

// resolveConfig fills unset flags from the config file and built-in defaults
func resolveConfig(flags *Config, cfg *ConfigFile) *Config {
	config := *flags
	if cfg != nil {
		if config.JournalPath == "" {
			config.JournalPath = cfg.JournalPath
		}
		if config.LogLevel == "" {
			config.LogLevel = cfg.LogLevel
		}
		if config.Workers == 0 {
			config.Workers = cfg.Workers
		}
	}
	if config.JournalPath == "" {
		config.JournalPath = DefaultJournalPath()
	}
	if config.Workers < 1 {
		config.Workers = getDefaultWorkers()
	}
	return &config
}

// resolveJob layers config defaults, camera profile, manifest, and flags
func resolveJob(opts *cliOptions, config *Config, cfg *ConfigFile) (*JobFile, error) {
	job := jobFromConfig(cfg)

	switch {
	case opts.profile != "":
		p, err := loadProfile(getProfileDir(), opts.profile)
		if err != nil {
			return nil, err
		}
		job.CameraModel, job.Lens = p.CameraModel, p.Lens
	case job.CameraModel == "" && job.Lens == "":
		if p := latestProfile(getProfileDir()); p != nil {
			job.CameraModel, job.Lens = p.CameraModel, p.Lens
		}
	}

	if config.JobFile != "" {
		manifest, err := loadJob(config.JobFile)
		if err != nil {
			return nil, err
		}
		job.Merge(manifest)
	}

	overrides := opts.overrides
	if opts.gps != "" {
		pos, err := (&ReaderSource{R: strings.NewReader(opts.gps)}).Coordinates(context.Background())
		if err != nil {
			return nil, &RunError{Field: "gps", Err: err}
		}
		overrides.GPS = &pos
	}
	if opts.pickGPS != "" {
		src, err := ParseCommandSource(opts.pickGPS)
		if err != nil {
			return nil, &RunError{Field: "gps", Err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		pos, err := src.Coordinates(ctx)
		if err != nil {
			return nil, &RunError{Field: "gps", Err: err}
		}
		overrides.GPS = &pos
	}
	job.Merge(&overrides)

	if len(config.Paths) > 0 {
		paths, err := CollectPhotos(config.Paths, config.Recursive, nil)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			job.Items = append(job.Items, JobItem{Path: p})
		}
	}
	return job, nil
}

func runCLI(req *RunRequest, plan *Plan, journal *Journal) int {
	fmt.Println("Film EXIF Writer")
	fmt.Println("================")
	fmt.Println()

	// Configuration display
	fmt.Println("Configuration:")
	fmt.Printf("  Photos:     %d\n", plan.Len())
	if req.StartTime != nil {
		fmt.Printf("  Start time: %s\n", req.StartTime)
	}
	fmt.Printf("  Camera:     %s\n", defaultString(req.Fields.CameraModel, "(unchanged)"))
	fmt.Printf("  Lens:       %s\n", defaultString(req.Fields.Lens, "(unchanged)"))
	fmt.Printf("  Film:       %s\n", defaultString(req.Fields.Film, "(unchanged)"))
	if req.Stamp {
		fmt.Printf("  Stamp:      %s → %s\n", req.StampSpec.Format, req.OutputDir)
	} else {
		fmt.Printf("  Stamp:      off (metadata rewritten in place)\n")
	}
	fmt.Println()

	fmt.Println("Writing...")
	execProgress := make(chan ScanProgress, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for prog := range execProgress {
			if prog.TotalFiles > 0 {
				percent := float64(prog.ProcessedFiles) * 100 / float64(prog.TotalFiles)
				currentFile := truncateFilePath(prog.CurrentFile, 60)
				fmt.Printf("\r  Progress: [%-50s] %3.0f%% (%d/%d) %s",
					progressBar(percent),
					percent,
					prog.ProcessedFiles,
					prog.TotalFiles,
					currentFile)
			}
		}
		fmt.Printf("\r%s\r", strings.Repeat(" ", 150)) // Clear line
	}()

	summary, err := ExecuteRun(req, plan, NewFontResolver(), execProgress, journal)
	close(execProgress)
	<-done

	var runErr *RunError
	if errors.As(err, &runErr) {
		return reportError(err)
	}

	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Printf("  ✗ %v\n", r.Err)
		}
	}
	fmt.Println()
	fmt.Println(summary)
	if summary.Aborted {
		fmt.Println("Stopped at the first failure. Use --continue-on-error to skip failed photos.")
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func runTUI(config *Config, req *RunRequest, plan *Plan, journal *Journal) int {
	m := initialModel(config, req, plan, journal)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if fm, ok := final.(model); ok && fm.summary != nil {
		fmt.Println(fm.summary)
		if fm.summary.Failed > 0 {
			return 1
		}
	}
	return 0
}

// printPlan lists every scheduled photo with its timestamp and destination
func printPlan(w io.Writer, req *RunRequest, plan *Plan) {
	fmt.Fprintln(w, "Plan:")
	fmt.Fprintln(w, "=====")
	for _, g := range plan.Groups {
		label := "Undated"
		if g.Date != nil {
			label = g.Date.String()
		}
		fmt.Fprintf(w, "%s (%d photos)\n", label, len(g.Assignments))
		for _, a := range g.Assignments {
			ts := "no timestamp"
			if a.Timestamp != nil {
				ts = a.Timestamp.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "  %-30s %-16s → %s\n", a.Item.Name(), ts, plannedDestination(req, a))
		}
	}
}

// printDuplicates warns about inputs that are the same photograph
func printDuplicates(w io.Writer, groups []*DuplicateGroup) {
	fmt.Fprintf(w, "Warning: %d photos are listed more than once under different names:\n", len(groups))
	for _, g := range groups {
		names := make([]string, len(g.Items))
		for i, it := range g.Items {
			names[i] = it.Path
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " = "))
	}
}

// printInspection shows what the inputs already record
func printInspection(w io.Writer, metas []*ExistingMetadata) {
	for _, m := range metas {
		fmt.Fprintln(w, m.Path)
		if m.Err != nil && m.DateTaken == nil {
			fmt.Fprintf(w, "  no EXIF: %v\n", m.Err)
			continue
		}
		if m.DateTaken != nil {
			fmt.Fprintf(w, "  Taken:       %s\n", m.DateTaken.Format("2006-01-02 15:04:05"))
		}
		if m.CameraMake != "" || m.CameraModel != "" {
			fmt.Fprintf(w, "  Camera:      %s\n", strings.TrimSpace(m.CameraMake+" "+m.CameraModel))
		}
		if m.Description != "" {
			fmt.Fprintf(w, "  Description: %s\n", m.Description)
		}
		if m.GPS != nil {
			fmt.Fprintf(w, "  GPS:         %.6f, %.6f\n", m.GPS.Lat, m.GPS.Lon)
		}
		if m.Orientation != 1 {
			fmt.Fprintf(w, "  Orientation: %d\n", m.Orientation)
		}
	}
}

// printHistory lists recent runs from the journal
func printHistory(config *Config, n int) int {
	journal, err := OpenJournal(config.JournalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		return 1
	}
	defer journal.Close()

	runs, err := journal.History(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		return 1
	}
	totalRuns, totalItems, failures := journal.GetStats()
	fmt.Printf("Journal: %d runs, %d photos, %d failures\n\n", totalRuns, totalItems, failures)

	for _, r := range runs {
		mode := "in place"
		if r.Stamp {
			mode = "stamped → " + r.OutputDir
		}
		state := "unfinished"
		if r.FinishedAt != nil {
			state = fmt.Sprintf("%d ok, %d failed", r.Succeeded, r.Failed)
			if r.Aborted {
				state += ", stopped"
			}
		}
		fmt.Printf("%s  %-14s  %d photos, %s, %s (%s)\n",
			r.ID[:8], humanize.Time(r.StartedAt), r.Total, state,
			humanize.Bytes(uint64(r.BytesWritten)), mode)
	}
	return 0
}

// writePreview renders one photo as it will look and saves preview.jpg
func writePreview(req *RunRequest, plan *Plan, path string) int {
	var ts *time.Time
	for _, a := range plan.Assignments() {
		if a.Item.Path == path || a.Item.Name() == filepath.Base(path) {
			ts = a.Timestamp
			break
		}
	}
	if ts == nil {
		fmt.Println("No timestamp for this photo; preview shows it without a stamp")
	}

	img, err := renderPreview(path, ts, req.StampSpec, NewFontResolver())
	if err != nil {
		return reportError(&ItemError{Path: path, Name: filepath.Base(path), Err: err})
	}
	data, err := encodeJPEG(img, nil, nil)
	if err != nil {
		return reportError(err)
	}

	dir := req.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return reportError(err)
	}
	out := filepath.Join(dir, "preview.jpg")
	if err := writeFileAtomic(out, data, 0644); err != nil {
		return reportError(err)
	}
	fmt.Printf("✓ Preview written to %s\n", out)
	return 0
}

// reportError prints err and maps it to an exit code
func reportError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var runErr *RunError
	if errors.As(err, &runErr) {
		return 2
	}
	return 1
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// progressBar creates a text progress bar
func progressBar(percent float64) string {
	const width = 50
	filled := int(percent / 2) // 50 chars = 100%
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "="
		} else if i == filled {
			bar += ">"
		} else {
			bar += " "
		}
	}
	return bar
}

// truncateFilePath shortens a file path for display
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Show just the filename
	base := filepath.Base(path)
	if len(base) <= maxLen {
		return "..." + base
	}
	// Truncate filename too if needed
	return "..." + base[len(base)-maxLen+3:]
}
