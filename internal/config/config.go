// Package config handles clustering configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	cluster "github.com/flywave/go-cluster"
)

// Config holds all meshcluster settings.
type Config struct {
	Cluster ClusterConfig `yaml:"cluster"`
	Grid    GridConfig    `yaml:"grid"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClusterConfig holds the growth parameters.
type ClusterConfig struct {
	Size           int     `yaml:"size" validate:"gt=0"`
	PositionScale  float32 `yaml:"position_scale" validate:"gt=0"`
	MaxNormalAngle float32 `yaml:"max_normal_angle" validate:"gt=0,lte=180"`
	DisableMerge   bool    `yaml:"disable_merge"`
	Concurrency    int     `yaml:"concurrency" validate:"gte=0"`
}

// GridConfig holds the volume grid and neighbour search parameters.
type GridConfig struct {
	CellSize        float32 `yaml:"cell_size" validate:"gt=0"`
	CellSizeStep    float32 `yaml:"cell_size_step" validate:"gt=0"`
	MaxCells        int     `yaml:"max_cells" validate:"gt=0"`
	MinNeighbours   int     `yaml:"min_neighbours" validate:"gt=0"`
	MaxSearchRounds int     `yaml:"max_search_rounds" validate:"gt=0"`
	CarryCellSize   bool    `yaml:"carry_cell_size"`
	Projection      string  `yaml:"projection" validate:"oneof=infinite legacy"`
}

// OutputConfig controls what the cluster command writes.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Gltf bool   `yaml:"gltf"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the library defaults.
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Size:           cluster.DefaultClusterSize,
			PositionScale:  1,
			MaxNormalAngle: cluster.DefaultMaxNormalAngle,
		},
		Grid: GridConfig{
			CellSize:        cluster.DefaultCellSize,
			CellSizeStep:    cluster.DefaultCellSizeStep,
			MaxCells:        cluster.DefaultMaxCells,
			MinNeighbours:   cluster.DefaultMinNeighbours,
			MaxSearchRounds: cluster.DefaultMaxSearchRounds,
			Projection:      cluster.ProjectionInfinite.String(),
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks the value ranges declared on the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SaveTo writes the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Options converts the config to clustering options.
func (c *Config) Options() cluster.Options {
	opts := cluster.DefaultOptions()
	opts.ClusterSize = c.Cluster.Size
	opts.MaxNormalAngle = c.Cluster.MaxNormalAngle
	opts.DisableMerge = c.Cluster.DisableMerge
	opts.Concurrency = c.Cluster.Concurrency
	opts.CellSize = c.Grid.CellSize
	opts.CellSizeStep = c.Grid.CellSizeStep
	opts.MaxCells = c.Grid.MaxCells
	opts.MinNeighbours = c.Grid.MinNeighbours
	opts.MaxSearchRounds = c.Grid.MaxSearchRounds
	opts.CarryCellSize = c.Grid.CarryCellSize
	if c.Grid.Projection == cluster.ProjectionLegacy.String() {
		opts.Projection = cluster.ProjectionLegacy
	}
	return opts
}
