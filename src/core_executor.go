package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoTimestamp  = errors.New("no date assigned, cannot stamp")
	ErrNoItems      = errors.New("no JPEG files to process")
	ErrNoOutputDir  = errors.New("stamping requires an output directory")
	jpegExtensions  = map[string]bool{".jpg": true, ".jpeg": true}
	tempFilePattern = ".film-exif-*.tmp"
)

// ItemError is a per-photograph failure; the batch may continue past it
type ItemError struct {
	Path string
	Name string
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// RunError rejects a whole run before any photograph is touched
type RunError struct {
	Field string
	Err   error
}

func (e *RunError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid run: %v", e.Err)
	}
	return fmt.Sprintf("invalid run: %s: %v", e.Field, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ItemResult records what happened to one scheduled photograph
type ItemResult struct {
	Item       *PhotoItem
	Timestamp  *time.Time
	OutputPath string
	Bytes      int64
	Err        error
}

// RunSummary is reported at the end of every run
type RunSummary struct {
	RunID        string
	Total        int
	Succeeded    int
	Failed       int
	Aborted      bool
	OutputLabel  string
	BytesWritten int64
	Results      []ItemResult
}

func (s *RunSummary) String() string {
	status := "Done"
	if s.Aborted {
		status = "Stopped"
	}
	return fmt.Sprintf("%s: %d succeeded, %d failed (%s), %s written",
		status, s.Succeeded, s.Failed, s.OutputLabel, humanize.Bytes(uint64(s.BytesWritten)))
}

// ValidateRequest checks the run-level preconditions
func ValidateRequest(req *RunRequest) error {
	if len(req.Items) == 0 {
		return &RunError{Err: ErrNoItems}
	}
	if req.Stamp && strings.TrimSpace(req.OutputDir) == "" {
		return &RunError{Field: "output_dir", Err: ErrNoOutputDir}
	}
	if req.Stamp {
		if err := req.StampSpec.Validate(); err != nil {
			return &RunError{Field: "stamp", Err: err}
		}
	}
	for _, it := range req.Items {
		if it.GPS == nil {
			continue
		}
		if err := it.GPS.Validate(); err != nil {
			return &RunError{Field: "gps " + it.Name(), Err: err}
		}
	}
	return nil
}

// ExecuteRun processes the plan in order, writing one output per item.
// A per-item failure aborts the run unless req.ContinueOnError is set; the
// returned error is then the *ItemError that stopped it.
func ExecuteRun(req *RunRequest, plan *Plan, fonts FontResolver, progressChan chan<- ScanProgress, journal *Journal) (*RunSummary, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if fonts == nil {
		fonts = NewFontResolver()
	}

	summary := &RunSummary{Total: plan.Len(), OutputLabel: "original files"}
	if req.Stamp {
		summary.OutputLabel = req.OutputDir
		if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
			return nil, &RunError{Field: "output_dir", Err: err}
		}
	}

	if journal != nil {
		id, err := journal.BeginRun(req, summary.Total)
		if err != nil {
			log.Warn().Err(err).Msg("journal unavailable for this run")
		} else {
			summary.RunID = id
		}
	}

	processed := 0
	var runErr error
	for _, a := range plan.Assignments() {
		result := processItem(req, a, fonts)
		summary.Results = append(summary.Results, result)

		if result.Err != nil {
			summary.Failed++
			log.Warn().Str("path", a.Item.Path).Err(result.Err).Msg("item failed")
		} else {
			summary.Succeeded++
			summary.BytesWritten += result.Bytes
			log.Debug().Str("path", a.Item.Path).Str("output", result.OutputPath).Msg("item written")
		}

		if journal != nil && summary.RunID != "" {
			if err := journal.Record(summary.RunID, result); err != nil {
				log.Warn().Err(err).Msg("journal record dropped")
			}
		}

		processed++
		if progressChan != nil {
			select {
			case progressChan <- ScanProgress{
				ProcessedFiles: processed,
				TotalFiles:     summary.Total,
				Failures:       summary.Failed,
				CurrentFile:    a.Item.Path,
			}:
			default:
			}
		}

		if result.Err != nil && !req.ContinueOnError {
			summary.Aborted = true
			runErr = result.Err
			break
		}
	}

	if journal != nil && summary.RunID != "" {
		if err := journal.FinishRun(summary); err != nil {
			log.Warn().Err(err).Msg("journal finish dropped")
		}
	}

	return summary, runErr
}

// processItem builds and writes the output for one assignment
func processItem(req *RunRequest, a Assignment, fonts FontResolver) ItemResult {
	result := ItemResult{Item: a.Item, Timestamp: a.Timestamp}
	fail := func(err error) ItemResult {
		result.Err = &ItemError{Path: a.Item.Path, Name: a.Item.Name(), Err: err}
		return result
	}

	if !isJPEGPath(a.Item.Path) {
		return fail(fmt.Errorf("%w: %s", ErrNotJPEG, filepath.Ext(a.Item.Path)))
	}

	fields := ExifFields{
		Timestamp:   a.Timestamp,
		FreeText:    req.Fields.Film,
		CameraModel: req.Fields.CameraModel,
		Lens:        req.Fields.Lens,
		Location:    a.Item.Location,
		GPS:         a.Item.GPS,
	}
	if a.Item.EnteredDMS != nil {
		fields.GPS, fields.LegacyGPS = nil, a.Item.EnteredDMS
	}

	if !req.Stamp {
		data, err := rewriteInPlace(a.Item.Path, fields)
		if err != nil {
			return fail(err)
		}
		result.OutputPath = a.Item.Path
		result.Bytes = int64(len(data))
		return result
	}

	if a.Timestamp == nil {
		return fail(ErrNoTimestamp)
	}
	data, err := renderStamped(a.Item.Path, fields, req.StampSpec, fonts)
	if err != nil {
		return fail(err)
	}

	outPath := allocateOutputPath(req.OutputDir, OutputName(a.Timestamp))
	if err := writeFileAtomic(outPath, data, 0644); err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}
	result.OutputPath = outPath
	result.Bytes = int64(len(data))
	return result
}

// rewriteInPlace replaces only the EXIF segment of the original file
func rewriteInPlace(path string, fields ExifFields) ([]byte, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	block, err := BuildExif(LoadExisting(src.Exif), fields)
	if err != nil {
		return nil, fmt.Errorf("build exif: %w", err)
	}
	data, err := spliceExif(src.Raw, block)
	if err != nil {
		return nil, fmt.Errorf("insert exif: %w", err)
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := writeFileAtomic(path, data, perm); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return data, nil
}

// renderStamped decodes, uprights, stamps and re-encodes one photograph
func renderStamped(path string, fields ExifFields, spec StampSpec, fonts FontResolver) ([]byte, error) {
	src, err := loadSource(path)
	if err != nil {
		return nil, err
	}
	upright, rotated := applyOrientation(src.Image, src.Orientation)

	stamped, _, err := RenderStamp(upright, StampText(*fields.Timestamp, spec.Format), spec, fonts)
	if err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}

	block, err := BuildExif(LoadExisting(src.Exif), fields)
	if err != nil {
		return nil, fmt.Errorf("build exif: %w", err)
	}
	if rotated {
		if block, err = ResetOrientationToNormal(block); err != nil {
			return nil, err
		}
	}

	return encodeJPEG(stamped, block, src.ICC)
}

// previewBounds is the box a preview image is fitted into
var previewBounds = image.Pt(860, 600)

// renderPreview returns the upright, optionally stamped image of one file
// scaled down to preview size
func renderPreview(path string, ts *time.Time, spec StampSpec, fonts FontResolver) (*image.NRGBA, error) {
	src, err := loadSource(path)
	if err != nil {
		return nil, err
	}
	img, _ := applyOrientation(src.Image, src.Orientation)
	if ts != nil {
		if img, _, err = RenderStamp(img, StampText(*ts, spec.Format), spec, fonts); err != nil {
			return nil, fmt.Errorf("stamp: %w", err)
		}
	}
	b := img.Bounds()
	if b.Dx() <= previewBounds.X && b.Dy() <= previewBounds.Y {
		return img, nil
	}
	return imaging.Fit(img, previewBounds.X, previewBounds.Y, imaging.Lanczos), nil
}

// plannedDestination describes where an assignment will be written, before
// collision handling
func plannedDestination(req *RunRequest, a Assignment) string {
	if !req.Stamp {
		return a.Item.Path + " (in place)"
	}
	return filepath.Join(req.OutputDir, OutputName(a.Timestamp))
}

func isJPEGPath(path string) bool {
	return jpegExtensions[strings.ToLower(filepath.Ext(path))]
}

// writeFileAtomic writes data to a temp file beside path, syncs it and renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// allocateOutputPath returns dir/basename, or name_1.ext, name_2.ext, ...
// when taken. Names are checked sequentially, not reserved.
func allocateOutputPath(dir, basename string) string {
	path := filepath.Join(dir, basename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(basename)
	name := basename[:len(basename)-len(ext)]

	for i := 1; ; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}
