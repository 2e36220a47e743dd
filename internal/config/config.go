// Package config loads the counting configuration from JSON. All fields
// are optional pointers so a partial file only overrides what it names;
// the Get* accessors supply defaults for everything else. The same schema
// is served back by /api/config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roadtally/carcount/internal/geom"
)

// Counting defaults, matching the roadside deployment this system was
// tuned on.
const (
	DefaultCooldown        = time.Second
	DefaultStaleAfter      = 5 * time.Second
	DefaultCleanupInterval = 10 * time.Second
	DefaultMinConfidence   = 0.3
	DefaultSkipFrames      = 1
	DefaultFrameWidth      = 1920
	DefaultFrameHeight     = 1080
)

// DefaultClasses is the vehicle class allowlist applied to detections.
var DefaultClasses = []string{"car", "motorcycle", "bus", "truck"}

// DefaultLine spans the frame horizontally at 60% height, in relative
// coordinates.
var DefaultLine = LineSpec{
	Start:    [2]float64{0.1, 0.6},
	End:      [2]float64{0.9, 0.6},
	Relative: true,
}

// LineSpec describes the counting line either in absolute pixels or in
// frame-relative coordinates (0..1 scaled to the frame size at resolve
// time).
type LineSpec struct {
	Start    [2]float64 `json:"start"`
	End      [2]float64 `json:"end"`
	Relative bool       `json:"relative,omitempty"`
}

// Resolve converts the spec into a pixel-space line for the given frame
// size. Absolute specs pass through unchanged.
func (l LineSpec) Resolve(width, height int) geom.Line {
	if !l.Relative {
		return geom.Line{
			Start: geom.Point{X: l.Start[0], Y: l.Start[1]},
			End:   geom.Point{X: l.End[0], Y: l.End[1]},
		}
	}
	w := float64(width)
	h := float64(height)
	return geom.Line{
		Start: geom.Point{X: l.Start[0] * w, Y: l.Start[1] * h},
		End:   geom.Point{X: l.End[0] * w, Y: l.End[1] * h},
	}
}

// Validate rejects degenerate lines and out-of-range relative coordinates.
func (l LineSpec) Validate() error {
	if l.Start == l.End {
		return fmt.Errorf("line must have positive length, got identical endpoints (%g,%g)",
			l.Start[0], l.Start[1])
	}
	if l.Relative {
		for _, v := range []float64{l.Start[0], l.Start[1], l.End[0], l.End[1]} {
			if v < 0 || v > 1 {
				return fmt.Errorf("relative line coordinate %g outside [0,1]", v)
			}
		}
	}
	return nil
}

// ParseLineSpec parses a "x1,y1,x2,y2" flag value. When all four values
// fall inside [0,1] the spec is treated as frame-relative, matching how
// deployments write line positions that survive resolution changes.
func ParseLineSpec(s string) (LineSpec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return LineSpec{}, fmt.Errorf("line spec %q: want 4 comma-separated values, got %d", s, len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return LineSpec{}, fmt.Errorf("line spec %q: value %d: %w", s, i+1, err)
		}
		vals[i] = v
	}
	spec := LineSpec{
		Start: [2]float64{vals[0], vals[1]},
		End:   [2]float64{vals[2], vals[3]},
	}
	spec.Relative = true
	for _, v := range vals {
		if v < 0 || v > 1 {
			spec.Relative = false
			break
		}
	}
	if err := spec.Validate(); err != nil {
		return LineSpec{}, err
	}
	return spec, nil
}

// Config is the root counting configuration. Duration fields are strings
// like "1s" so the JSON stays human-editable.
type Config struct {
	// Counting params
	Line       *LineSpec `json:"line,omitempty"`
	Cooldown   *string   `json:"cooldown,omitempty"`    // duration string like "1s"
	StaleAfter *string   `json:"stale_after,omitempty"` // duration string like "5s"

	// Eviction cadence for stream sources
	CleanupInterval *string `json:"cleanup_interval,omitempty"` // duration string like "10s"

	// Detection filtering
	Classes       *[]string `json:"classes,omitempty"`
	MinConfidence *float64  `json:"min_confidence,omitempty"`

	// Video pipeline params
	SkipFrames *int `json:"skip_frames,omitempty"`

	// Frame size used to resolve relative lines for non-video sources
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads and validates a Config from a JSON file. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every field that is set.
func (c *Config) Validate() error {
	if c.Line != nil {
		if err := c.Line.Validate(); err != nil {
			return err
		}
	}
	if c.Cooldown != nil && *c.Cooldown != "" {
		d, err := time.ParseDuration(*c.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown %q: %w", *c.Cooldown, err)
		}
		if d < 0 {
			return fmt.Errorf("cooldown must be non-negative, got %v", d)
		}
	}
	if c.StaleAfter != nil && *c.StaleAfter != "" {
		d, err := time.ParseDuration(*c.StaleAfter)
		if err != nil {
			return fmt.Errorf("invalid stale_after %q: %w", *c.StaleAfter, err)
		}
		if d <= 0 {
			return fmt.Errorf("stale_after must be positive, got %v", d)
		}
	}
	if c.CleanupInterval != nil && *c.CleanupInterval != "" {
		if _, err := time.ParseDuration(*c.CleanupInterval); err != nil {
			return fmt.Errorf("invalid cleanup_interval %q: %w", *c.CleanupInterval, err)
		}
	}
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.SkipFrames != nil {
		if *c.SkipFrames < 1 {
			return fmt.Errorf("skip_frames must be at least 1, got %d", *c.SkipFrames)
		}
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	return nil
}

// GetLine returns the line spec or the default.
func (c *Config) GetLine() LineSpec {
	if c.Line == nil {
		return DefaultLine
	}
	return *c.Line
}

// GetCooldown parses and returns the cooldown or the default.
func (c *Config) GetCooldown() time.Duration {
	if c.Cooldown == nil || *c.Cooldown == "" {
		return DefaultCooldown
	}
	d, err := time.ParseDuration(*c.Cooldown)
	if err != nil {
		return DefaultCooldown
	}
	return d
}

// GetStaleAfter parses and returns the stale age or the default.
func (c *Config) GetStaleAfter() time.Duration {
	if c.StaleAfter == nil || *c.StaleAfter == "" {
		return DefaultStaleAfter
	}
	d, err := time.ParseDuration(*c.StaleAfter)
	if err != nil {
		return DefaultStaleAfter
	}
	return d
}

// GetCleanupInterval parses and returns the eviction cadence or the default.
func (c *Config) GetCleanupInterval() time.Duration {
	if c.CleanupInterval == nil || *c.CleanupInterval == "" {
		return DefaultCleanupInterval
	}
	d, err := time.ParseDuration(*c.CleanupInterval)
	if err != nil {
		return DefaultCleanupInterval
	}
	return d
}

// GetClasses returns the class allowlist or the default. An explicitly
// empty list disables class filtering.
func (c *Config) GetClasses() []string {
	if c.Classes == nil {
		return DefaultClasses
	}
	return *c.Classes
}

// GetMinConfidence returns the confidence floor or the default.
func (c *Config) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return DefaultMinConfidence
	}
	return *c.MinConfidence
}

// GetSkipFrames returns the frame stride or the default.
func (c *Config) GetSkipFrames() int {
	if c.SkipFrames == nil {
		return DefaultSkipFrames
	}
	return *c.SkipFrames
}

// GetFrameSize returns the frame dimensions used to resolve relative lines
// for sources that do not carry their own resolution.
func (c *Config) GetFrameSize() (width, height int) {
	width = DefaultFrameWidth
	height = DefaultFrameHeight
	if c.FrameWidth != nil {
		width = *c.FrameWidth
	}
	if c.FrameHeight != nil {
		height = *c.FrameHeight
	}
	return width, height
}
