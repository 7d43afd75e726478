package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	scanExtensions = map[string]bool{
		".jpg": true, ".jpeg": true,
	}

	excludePatterns = []string{
		"/.Trash/", "/.Thumbnails/", "/Thumbnails/",
		"/.deleted_media/", "/@eaDir/", "/.film-exif/",
	}
)

// shouldExclude checks if a path should be excluded
func shouldExclude(path string) bool {
	slashed := filepath.ToSlash(path) + "/"
	for _, pattern := range excludePatterns {
		if strings.Contains(slashed, pattern) {
			return true
		}
	}
	return false
}

// CollectPhotos expands the given files and directories into a list of
// photo paths. Files named explicitly are kept whatever their extension;
// directories contribute only JPEGs.
func CollectPhotos(paths []string, recursive bool, progressChan chan<- ScanProgress) ([]string, error) {
	var found []string
	count := 0

	report := func(path string) {
		count++
		if progressChan != nil {
			select {
			case progressChan <- ScanProgress{TotalFiles: count, ProcessedFiles: count, CurrentFile: path}:
			default:
			}
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			found = append(found, root)
			report(root)
			continue
		}

		var dirFiles []string
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // Skip unreadable entries
			}
			if d.IsDir() {
				if path != root && (!recursive || shouldExclude(path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !scanExtensions[strings.ToLower(filepath.Ext(path))] || shouldExclude(path) {
				return nil
			}
			dirFiles = append(dirFiles, path)
			report(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(dirFiles)
		found = append(found, dirFiles...)
	}

	return found, nil
}

// InspectPhotos reads existing metadata of items with a worker pool
func InspectPhotos(items []*PhotoItem, workers int, progressChan chan<- ScanProgress) []*ExistingMetadata {
	if workers < 1 {
		workers = 1
	}

	results := make([]*ExistingMetadata, len(items))
	indexChan := make(chan int, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				results[idx] = ReadExistingMetadata(items[idx].Path)

				mu.Lock()
				processed++
				if progressChan != nil {
					select {
					case progressChan <- ScanProgress{
						ProcessedFiles: processed,
						TotalFiles:     len(items),
						CurrentFile:    items[idx].Path,
					}:
					default:
					}
				}
				mu.Unlock()
			}
		}()
	}

	for i := range items {
		indexChan <- i
	}
	close(indexChan)

	wg.Wait()
	return results
}

// AssignDatesFromExif gives every undated item the calendar day of its
// existing capture time, when one is recorded
func AssignDatesFromExif(items []*PhotoItem, metas []*ExistingMetadata) int {
	assigned := 0
	for i, it := range items {
		if it.Date != nil || i >= len(metas) || metas[i] == nil || metas[i].DateTaken == nil {
			continue
		}
		t := metas[i].DateTaken
		it.Date = &CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
		assigned++
	}
	return assigned
}
