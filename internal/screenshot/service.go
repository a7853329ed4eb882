// File: internal/screenshot/service.go

// Package screenshot persists page captures as forensic artifacts. Every
// capture taken during a run is tracked so the whole set can be listed,
// encoded for analysis, or cleaned up afterwards.
package screenshot

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Capturer is the slice of the page surface the service needs.
type Capturer interface {
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// maxLabelLen bounds the sanitized label so filenames stay well under
// filesystem limits.
const maxLabelLen = 100

var unsafeLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Service writes screenshots into a single directory and remembers what it
// wrote.
type Service struct {
	logger *zap.Logger
	dir    string

	// now is swappable for deterministic filenames in tests.
	now func() time.Time

	mu        sync.Mutex
	artifacts []string
}

// NewService creates a screenshot service rooted at dir. The directory is
// created lazily on first capture.
func NewService(dir string, logger *zap.Logger) *Service {
	return &Service{
		logger: logger.Named("screenshot"),
		dir:    dir,
		now:    time.Now,
	}
}

// Dir returns the directory captures are written to.
func (s *Service) Dir() string { return s.dir }

// Capture takes a screenshot and writes it under a timestamped,
// label-derived filename. The returned path is absolute within the service
// directory.
func (s *Service) Capture(ctx context.Context, page Capturer, label string, fullPage bool) (string, error) {
	buf, err := page.Screenshot(ctx, fullPage)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot %q: %w", label, err)
	}
	return s.Store(label, buf)
}

// Store persists already-captured image bytes as a tracked artifact. Used for
// element screenshots, whose capture happens outside the Capturer surface.
func (s *Service) Store(label string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path, err := s.reservePath(label)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.mu.Lock()
	s.artifacts = append(s.artifacts, path)
	s.mu.Unlock()

	s.logger.Debug("Screenshot captured.", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// CaptureError is the best-effort variant used on failure paths: a capture
// error is logged, never propagated, so it cannot mask the failure that
// triggered it. Returns an empty path when the capture failed.
func (s *Service) CaptureError(ctx context.Context, page Capturer, label string) string {
	path, err := s.Capture(ctx, page, label, false)
	if err != nil {
		s.logger.Warn("Failed to capture error screenshot.", zap.String("label", label), zap.Error(err))
		return ""
	}
	return path
}

// reservePath builds the target filename, probing numeric suffixes on the
// rare collision (two captures with the same label in the same microsecond).
func (s *Service) reservePath(label string) (string, error) {
	ts := s.now()
	stamp := fmt.Sprintf("%s_%06d", ts.Format("20060102_150405"), ts.Nanosecond()/1000)
	base := stamp + "_" + sanitizeLabel(label)

	path := filepath.Join(s.dir, base+".png")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil && !os.IsExist(err) {
			return "", fmt.Errorf("failed to probe screenshot path: %w", err)
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d.png", base, n))
	}
}

// sanitizeLabel collapses anything unsafe for a filename into underscores.
func sanitizeLabel(label string) string {
	clean := unsafeLabelChars.ReplaceAllString(label, "_")
	if clean == "" {
		clean = "screenshot"
	}
	if len(clean) > maxLabelLen {
		clean = clean[:maxLabelLen]
	}
	return clean
}

// Artifacts returns the paths of every capture taken so far, oldest first.
func (s *Service) Artifacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Artifact pairs a capture's name with its location and encoded content.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Base64 string `json:"base64"`
}

// ListForAnalysis returns every surviving artifact with its content encoded,
// ready to hand to a multimodal analyzer. Files deleted out from under the
// service are skipped, not errors.
func (s *Service) ListForAnalysis() []Artifact {
	var out []Artifact
	for _, p := range s.Artifacts() {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out = append(out, Artifact{
			Name:   name,
			Path:   p,
			Base64: EncodeBase64(data),
		})
	}
	return out
}

// EncodeBase64 encodes captured image bytes the way multimodal analysis
// endpoints expect them. Element captures taken outside the Capturer surface
// go through here, the same way they go through Store for files.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// CaptureBase64 mirrors Capture but hands back the encoded image instead of
// writing an artifact: nothing touches disk and nothing is tracked.
func (s *Service) CaptureBase64(ctx context.Context, page Capturer, fullPage bool) (string, error) {
	buf, err := page.Screenshot(ctx, fullPage)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return EncodeBase64(buf), nil
}

// Cleanup removes every tracked artifact. Missing files are not an error;
// the first real removal failure is returned after attempting the rest.
func (s *Service) Cleanup() error {
	s.mu.Lock()
	paths := s.artifacts
	s.artifacts = nil
	s.mu.Unlock()

	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove screenshot.", zap.String("path", p), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(paths) > 0 {
		s.logger.Debug("Screenshot cleanup finished.", zap.Int("removed", len(paths)))
	}

	// Best effort: drop the directory too if nothing else lives in it.
	_ = os.Remove(s.dir)
	return firstErr
}
