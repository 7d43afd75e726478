package main

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"sync"
)

// DuplicateGroup is a set of inputs with identical file contents
type DuplicateGroup struct {
	Sum   string
	Items []*PhotoItem
}

// FindDuplicateInputs hashes every item in parallel and groups the ones
// whose contents are identical. Unreadable files are skipped.
func FindDuplicateInputs(items []*PhotoItem, workers int, progressChan chan<- ScanProgress) []*DuplicateGroup {
	if workers < 1 {
		workers = 1
	}

	sums := make([]string, len(items))
	indexChan := make(chan int, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	// Start worker pool
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				if sum, err := fileChecksum(items[idx].Path); err == nil {
					sums[idx] = sum
				}

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

	bySum := make(map[string][]*PhotoItem)
	var order []string
	for i, sum := range sums {
		if sum == "" {
			continue
		}
		if _, seen := bySum[sum]; !seen {
			order = append(order, sum)
		}
		bySum[sum] = append(bySum[sum], items[i])
	}

	var groups []*DuplicateGroup
	for _, sum := range order {
		if group := bySum[sum]; len(group) > 1 {
			groups = append(groups, &DuplicateGroup{Sum: sum, Items: group})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Items[0].Path < groups[j].Items[0].Path
	})
	return groups
}

// fileChecksum returns the hex SHA-256 of a file
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
