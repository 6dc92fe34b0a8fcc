/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package hosts reads the list of endpoints to probe.
package hosts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/models"
)

var (
	ErrHostFile  = errors.New("failed to read host file")
	errNoLabel   = errors.New("missing service label")
	errBadTarget = errors.New("target is not ip:port")
)

// Entry is one probed endpoint and the service label used in notifications.
type Entry struct {
	Addr    models.HostAddress
	Service string
}

// FileSource loads entries from a text file, one per line:
//
//	10.0.0.5:443  billing api
//
// Blank lines and lines starting with # are ignored.
type FileSource struct {
	Path   string
	logger logger.Logger
}

func NewFileSource(path string, log logger.Logger) *FileSource {
	return &FileSource{Path: path, logger: log}
}

// Check confirms the file can be opened.
func (s *FileSource) Check() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHostFile, err)
	}

	return f.Close()
}

// Load reads the file. Malformed lines are logged and skipped; a missing
// label skips the line without a warning.
func (s *FileSource) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostFile, err)
	}
	defer func() { _ = f.Close() }()

	return Parse(ctx, f, s.logger)
}

// Parse reads entries from r. A target listed twice keeps its first
// position and its last label.
func Parse(ctx context.Context, r io.Reader, log logger.Logger) ([]Entry, error) {
	var entries []Entry

	seen := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if errors.Is(err, errNoLabel) {
			continue
		}

		if err != nil {
			log.Warn().Err(err).Int("line", lineNo).Str("text", line).Msg("Skipping invalid host entry")
			continue
		}

		key := entry.Addr.String()
		if i, ok := seen[key]; ok {
			entries[i].Service = entry.Service
			continue
		}

		seen[key] = len(entries)
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostFile, err)
	}

	return entries, nil
}

func parseLine(line string) (Entry, error) {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return Entry{}, errNoLabel
	}

	target, label := line[:i], strings.TrimSpace(line[i+1:])
	if label == "" {
		return Entry{}, errNoLabel
	}

	ip, portText, ok := strings.Cut(target, ":")
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", errBadTarget, target)
	}

	port, err := strconv.Atoi(portText)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q", errBadTarget, target)
	}

	addr := models.NewHostAddress(ip, port)
	if !addr.Valid() {
		return Entry{}, fmt.Errorf("%w: %s port %d", models.ErrInvalidHostAddress, ip, port)
	}

	return Entry{Addr: addr, Service: label}, nil
}
