// Package config loads client, engine and server settings from the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"liner-layout/internal/interaction"
	"liner-layout/internal/persist"
	"liner-layout/internal/render"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
	"liner-layout/pkg/geometry"
)

// ============================================================
// Configuration
// ============================================================

// Engine holds the canvas tunables.
type Engine struct {
	// WorldScale is pixels per foot at zoom 1.
	WorldScale float64
	MinZoom    float64
	MaxZoom    float64
	ZoomStep   float64

	GridMinor float64
	GridMajor float64
	SnapStep  float64
	AngleStep float64
	Snap      bool

	RotationHandleOffsetPx float64
	RotationHandleRadiusPx float64
	CullBufferPx           float64

	FrameInterval time.Duration
	Debounce      time.Duration

	// Bounds limits panning when set.
	Bounds *geometry.Rect
}

// Client is the desktop client configuration.
type Client struct {
	ServerURL string
	Project   string
	CachePath string
	Token     string
	Login     string
	Password  string
	Engine    Engine
}

// Server is the layout store configuration.
type Server struct {
	Port         string
	Environment  string
	DBPath       string
	ReadTimeout  int
	WriteTimeout int
	DemoLogin    string
	DemoPassword string
}

// DefaultEngine returns the stock tunables.
func DefaultEngine() Engine {
	vp := viewport.DefaultConfig()
	ic := interaction.DefaultConfig()
	hs := shape.DefaultHandles()
	rc := render.DefaultConfig()
	return Engine{
		WorldScale:             vp.WorldScale,
		MinZoom:                vp.MinScale,
		MaxZoom:                vp.MaxScale,
		ZoomStep:               ic.ZoomStep,
		GridMinor:              rc.Grid.Minor,
		GridMajor:              rc.Grid.Major,
		SnapStep:               ic.GridStep,
		AngleStep:              ic.AngleStep,
		Snap:                   ic.Snap,
		RotationHandleOffsetPx: hs.RotationOffsetPx,
		RotationHandleRadiusPx: hs.RotationRadiusPx,
		CullBufferPx:           rc.CullBufferPx,
		FrameInterval:          rc.FrameInterval,
		Debounce:               persist.DefaultDebounce,
	}
}

// LoadClient reads the client configuration from the environment.
func LoadClient() *Client {
	e := DefaultEngine()
	e.SnapStep = getEnvAsFloat("LAYOUT_GRID_STEP", e.SnapStep)
	e.AngleStep = getEnvAsFloat("LAYOUT_ANGLE_STEP", e.AngleStep)
	e.Debounce = time.Duration(getEnvAsInt("LAYOUT_DEBOUNCE_MS", int(e.Debounce/time.Millisecond))) * time.Millisecond

	return &Client{
		ServerURL: getEnv("LAYOUT_SERVER_URL", "http://localhost:3080"),
		Project:   getEnv("LAYOUT_PROJECT", "demo"),
		CachePath: getEnv("LAYOUT_CACHE_PATH", defaultCachePath()),
		Token:     os.Getenv("LAYOUT_TOKEN"),
		Login:     os.Getenv("LAYOUT_LOGIN"),
		Password:  os.Getenv("LAYOUT_PASSWORD"),
		Engine:    e,
	}
}

// LoadServer reads the server configuration from the environment.
func LoadServer() *Server {
	return &Server{
		Port:         getEnv("PORT", "3080"),
		Environment:  getEnv("ENV", "development"),
		DBPath:       getEnv("LAYOUT_DB_PATH", "data/db/layout.db"),
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
		DemoLogin:    getEnv("LAYOUT_DEMO_LOGIN", "demo"),
		DemoPassword: getEnv("LAYOUT_DEMO_PASSWORD", "demo"),
	}
}

// Viewport returns the viewport controller settings.
func (e Engine) Viewport() viewport.Config {
	return viewport.Config{
		WorldScale: e.WorldScale,
		MinScale:   e.MinZoom,
		MaxScale:   e.MaxZoom,
		Bounds:     e.Bounds,
	}
}

// Interaction returns the gesture settings.
func (e Engine) Interaction() interaction.Config {
	cfg := interaction.DefaultConfig()
	cfg.Snap = e.Snap
	cfg.GridStep = e.SnapStep
	cfg.AngleStep = e.AngleStep
	cfg.ZoomStep = e.ZoomStep
	return cfg
}

// Handles returns the handle geometry.
func (e Engine) Handles() shape.Handles {
	hs := shape.DefaultHandles()
	hs.RotationOffsetPx = e.RotationHandleOffsetPx
	hs.RotationRadiusPx = e.RotationHandleRadiusPx
	return hs
}

// Render returns the renderer settings.
func (e Engine) Render() render.Config {
	cfg := render.DefaultConfig()
	cfg.Grid = geometry.Spacing{Minor: e.GridMinor, Major: e.GridMajor}
	cfg.CullBufferPx = e.CullBufferPx
	cfg.FrameInterval = e.FrameInterval
	return cfg
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(dir, "liner-layout", "cache.db")
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}
