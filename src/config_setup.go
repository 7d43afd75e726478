package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var errSetupCancelled = errors.New("setup cancelled")

// ConfigFile represents the YAML configuration
type ConfigFile struct {
	CameraModel     string  `yaml:"camera_model"`
	Lens            string  `yaml:"lens"`
	Film            string  `yaml:"film"`
	StartTime       string  `yaml:"start_time"`
	OutputDir       string  `yaml:"output_dir"`
	FontPath        string  `yaml:"font_path"`
	StampFormat     string  `yaml:"stamp_format"`
	BlurStrength    float64 `yaml:"blur_strength"`
	FontRatio       float64 `yaml:"font_ratio"`
	OffsetX         *int    `yaml:"offset_x"`
	OffsetY         *int    `yaml:"offset_y"`
	ContinueOnError bool    `yaml:"continue_on_error"`
	JournalPath     string  `yaml:"journal_path"`
	LogLevel        string  `yaml:"log_level"`
	Workers         int     `yaml:"workers"`
}

// CameraProfile is a saved camera body and lens pair
type CameraProfile struct {
	Name        string    `yaml:"name"`
	CameraModel string    `yaml:"camera_model"`
	Lens        string    `yaml:"lens"`
	SavedAt     time.Time `yaml:"saved_at"`
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".film-exif.yaml"
	}
	return filepath.Join(home, ".film-exif.yaml")
}

// getProfileDir returns the directory holding camera profiles
func getProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".film-exif", "profiles")
	}
	return filepath.Join(home, ".film-exif", "profiles")
}

// configExists checks if config file exists
func configExists() bool {
	_, err := os.Stat(getConfigPath())
	return err == nil
}

// loadConfig loads configuration from the default YAML file
func loadConfig() (*ConfigFile, error) {
	return loadConfigFrom(getConfigPath())
}

// loadConfigFrom loads configuration from a YAML file
func loadConfigFrom(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

// saveConfig saves configuration to a YAML file
func saveConfig(cfg *ConfigFile, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// StampSpec resolves the configured stamp look on top of the defaults
func (c *ConfigFile) StampSpec() (StampSpec, error) {
	spec := DefaultStampSpec()
	if c == nil {
		return spec, nil
	}

	format, err := ParseStampFormat(c.StampFormat)
	if err != nil {
		return spec, err
	}
	spec.Format = format
	spec.FontPath = c.FontPath
	if c.BlurStrength != 0 {
		spec.BlurStrength = c.BlurStrength
	}
	if c.FontRatio != 0 {
		spec.FontRatio = c.FontRatio
	}
	if c.OffsetX != nil {
		spec.OffsetX = *c.OffsetX
	}
	if c.OffsetY != nil {
		spec.OffsetY = *c.OffsetY
	}
	return spec, spec.Validate()
}

// saveProfile writes a camera profile as <dir>/<name>.yaml
func saveProfile(dir string, p CameraProfile) (string, error) {
	name := profileFileName(p.Name)
	if name == "" {
		return "", fmt.Errorf("profile name %q is empty", p.Name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now()
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".yaml")
	return path, os.WriteFile(path, data, 0644)
}

// loadProfile reads a named profile, or a profile file given by path
func loadProfile(dir, name string) (*CameraProfile, error) {
	path := name
	if !strings.HasSuffix(strings.ToLower(name), ".yaml") {
		path = filepath.Join(dir, profileFileName(name)+".yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p CameraProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p.CameraModel = strings.TrimSpace(p.CameraModel)
	p.Lens = strings.TrimSpace(p.Lens)
	return &p, nil
}

// listProfiles returns the saved profiles, newest first
func listProfiles(dir string) ([]*CameraProfile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	var profiles []*CameraProfile
	for _, m := range matches {
		p, err := loadProfile(dir, m)
		if err != nil {
			continue
		}
		if p.SavedAt.IsZero() {
			if info, err := os.Stat(m); err == nil {
				p.SavedAt = info.ModTime()
			}
		}
		profiles = append(profiles, p)
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].SavedAt.After(profiles[j].SavedAt)
	})
	return profiles, nil
}

// latestProfile returns the most recently saved profile, nil if none
func latestProfile(dir string) *CameraProfile {
	profiles, err := listProfiles(dir)
	if err != nil || len(profiles) == 0 {
		return nil
	}
	return profiles[0]
}

// profileFileName keeps letters, digits, dash and underscore
func profileFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// runSetupWizard runs interactive setup and saves the config file
func runSetupWizard(in io.Reader, out io.Writer, path string) (*ConfigFile, error) {
	reader := bufio.NewReader(in)
	ask := func(prompt, def string) string {
		if def != "" {
			fmt.Fprintf(out, "   %s [%s]: ", prompt, def)
		} else {
			fmt.Fprintf(out, "   %s: ", prompt)
		}
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return def
		}
		return answer
	}

	fmt.Fprintln(out, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║              Film EXIF Writer - First Time Setup               ║")
	fmt.Fprintln(out, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This configuration will be saved to:", path)
	fmt.Fprintln(out)

	cfg := &ConfigFile{}
	defaults := DefaultStampSpec()

	// Camera
	fmt.Fprintln(out, "1. Which camera body and lens do you usually shoot with?")
	cfg.CameraModel = ask("Camera model", "")
	cfg.Lens = ask("Lens", "")

	// Film
	fmt.Fprintln(out)
	fmt.Fprintln(out, "2. Film stock or description written into every photo")
	cfg.Film = ask("Film", "")

	// Start time
	fmt.Fprintln(out)
	fmt.Fprintln(out, "3. Time of day assigned to the first photo of each date")
	for {
		cfg.StartTime = ask("Start time (HH:MM)", "12:00")
		if _, err := ParseTimeOfDay(cfg.StartTime); err == nil {
			break
		}
		fmt.Fprintln(out, "   Please use HH:MM, e.g. 09:30")
	}

	// Stamp
	fmt.Fprintln(out)
	fmt.Fprintln(out, "4. Date stamp defaults")
	for {
		format, err := ParseStampFormat(ask("Format ('YY MM DD or YYYY MM DD)", defaults.Format.String()))
		if err == nil {
			cfg.StampFormat = format.String()
			break
		}
		fmt.Fprintln(out, "  ", err)
	}
	cfg.FontPath = ask("Font file (empty for built-in fallback)", "")
	cfg.OutputDir = ask("Output directory for stamped photos", "")

	// Workers
	fmt.Fprintln(out)
	fmt.Fprintln(out, "5. How many parallel workers for reading metadata?")
	workersStr := ask(fmt.Sprintf("Workers (%d CPUs)", runtime.NumCPU()), strconv.Itoa(getDefaultWorkers()))
	workers, err := strconv.Atoi(workersStr)
	if err != nil || workers < 1 {
		workers = getDefaultWorkers()
	}
	cfg.Workers = workers

	// Summary
	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintln(out, "Configuration Summary:")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  Camera:       %s\n", cfg.CameraModel)
	fmt.Fprintf(out, "  Lens:         %s\n", cfg.Lens)
	fmt.Fprintf(out, "  Film:         %s\n", cfg.Film)
	fmt.Fprintf(out, "  Start time:   %s\n", cfg.StartTime)
	fmt.Fprintf(out, "  Stamp format: %s\n", cfg.StampFormat)
	fmt.Fprintf(out, "  Output dir:   %s\n", cfg.OutputDir)
	fmt.Fprintf(out, "  Workers:      %d\n", cfg.Workers)
	fmt.Fprintln(out)

	// Confirm
	confirm := strings.ToLower(ask("Save this configuration? [Y/n]", ""))
	if confirm == "n" || confirm == "no" {
		return nil, errSetupCancelled
	}

	if err := saveConfig(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved to:", path)
	fmt.Fprintln(out)

	return cfg, nil
}

// getDefaultWorkers returns recommended worker count
func getDefaultWorkers() int {
	cpus := runtime.NumCPU()
	workers := cpus / 2
	if workers < 1 {
		workers = 1
	}
	return workers
}
