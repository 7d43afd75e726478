package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrNoCoordinates = errors.New("no coordinates selected")
	ErrEmptyCommand  = errors.New("empty picker command")
)

// CoordinateSource supplies one picked position, e.g. from a map picker
type CoordinateSource interface {
	Coordinates(ctx context.Context) (LatLon, error)
}

// CommandSource runs an external picker and reads its answer from stdout
type CommandSource struct {
	Name string
	Args []string
}

// ParseCommandSource splits a picker command line on whitespace
func ParseCommandSource(line string) (*CommandSource, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}
	return &CommandSource{Name: parts[0], Args: parts[1:]}, nil
}

// Coordinates starts the picker and waits for it to exit
func (c *CommandSource) Coordinates(ctx context.Context) (LatLon, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return LatLon{}, fmt.Errorf("picker %s: %w: %s", c.Name, err, msg)
		}
		return LatLon{}, fmt.Errorf("picker %s: %w", c.Name, err)
	}

	// The last non-empty line wins; pickers may log before answering
	var last string
	for _, line := range strings.Split(string(out), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			last = s
		}
	}
	if last == "" {
		return LatLon{}, ErrNoCoordinates
	}
	return parseCoordinateLine(last)
}

// ReaderSource reads one coordinate line, optionally after printing a prompt
type ReaderSource struct {
	R      io.Reader
	Prompt io.Writer
}

// Coordinates reads the first non-empty line
func (r *ReaderSource) Coordinates(ctx context.Context) (LatLon, error) {
	if r.Prompt != nil {
		fmt.Fprint(r.Prompt, "GPS (lat,lon): ")
	}
	scanner := bufio.NewScanner(r.R)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return LatLon{}, err
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return parseCoordinateLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return LatLon{}, err
	}
	return LatLon{}, ErrNoCoordinates
}

// parseCoordinateLine accepts "lat,lon", "lat lon" or a JSON object with
// lat and lon (or lng) keys, and validates the ranges
func parseCoordinateLine(s string) (LatLon, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") {
		var obj struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
			Lng *float64 `json:"lng"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return LatLon{}, fmt.Errorf("parse coordinates: %w", err)
		}
		lon := obj.Lon
		if lon == nil {
			lon = obj.Lng
		}
		if obj.Lat == nil || lon == nil {
			return LatLon{}, fmt.Errorf("parse coordinates: missing lat or lon in %q", s)
		}
		p := LatLon{Lat: *obj.Lat, Lon: *lon}
		return p, p.Validate()
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) != 2 {
		return LatLon{}, fmt.Errorf("parse coordinates: expected \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("parse longitude: %w", err)
	}
	p := LatLon{Lat: lat, Lon: lon}
	return p, p.Validate()
}
