package surface

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration file
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt" json:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http,omitempty" json:"http,omitempty"`
	Mesh    MeshConfig    `yaml:"mesh,omitempty" json:"mesh,omitempty"`
	Polygon PolygonConfig `yaml:"polygon" json:"polygon"`
	Workers int           `yaml:"workers,omitempty" json:"workers,omitempty"` // Polygons filtered concurrently per cluster (default 1)
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	FrameTopic    string `yaml:"frameTopic" json:"frameTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// MeshConfig controls point cloud generation from depth images
type MeshConfig struct {
	Stride int `yaml:"stride,omitempty" json:"stride,omitempty"` // Decimation stride in pixels (default 1)
}

// PolygonConfig groups polygon post-processing and frame skipping settings
type PolygonConfig struct {
	Postprocess PostprocessConfig `yaml:"postprocess" json:"postprocess"`
	FrameSkip   FrameSkipConfig   `yaml:"frameskip,omitempty" json:"frameskip,omitempty"`
}

// FrameSkipConfig decides which depth frames are worth processing
type FrameSkipConfig struct {
	DepthMinValid float64 `yaml:"depthMinValid" json:"depthMinValid"` // Minimum fraction of valid depth pixels
}

// PostprocessConfig configures the 2D geometry pipeline and the metric filter.
// Every distance is in metres, every area in square metres. Zero disables a step.
type PostprocessConfig struct {
	Simplify       float64      `yaml:"simplify" json:"simplify"`
	PositiveBuffer float64      `yaml:"positiveBuffer" json:"positiveBuffer"`
	NegativeBuffer float64      `yaml:"negativeBuffer" json:"negativeBuffer"`
	MitreLimit     float64      `yaml:"mitreLimit,omitempty" json:"mitreLimit,omitempty"` // Mitre length / buffer distance before bevelling (default 5)
	Filter         FilterConfig `yaml:"filter" json:"filter"`
}

// FilterConfig holds the area and vertex thresholds for planes and holes
type FilterConfig struct {
	PlaneArea    Range    `yaml:"planeArea" json:"planeArea"`
	HoleArea     Range    `yaml:"holeArea" json:"holeArea"`
	HoleVertices MinCount `yaml:"holeVertices" json:"holeVertices"`
}

// Range is a half-open [Min, Max) threshold pair
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// MinCount is a lower vertex-count bound
type MinCount struct {
	Min int `yaml:"min" json:"min"`
}

// DefaultMitreLimit matches the mitre limit used by common buffering libraries.
const DefaultMitreLimit = 5.0

// DefaultConfig returns the settings used for wheelchair curb detection with
// a depth camera mounted at chest height.
func DefaultConfig() Config {
	return Config{
		MQTT: MQTTConfig{
			FrameTopic:    "surfacemesh/frames",
			PublishPrefix: "surfacemesh",
			ClientID:      "surfacemesh",
		},
		HTTP: HTTPConfig{Port: 8080},
		Mesh: MeshConfig{Stride: 2},
		Polygon: PolygonConfig{
			Postprocess: PostprocessConfig{
				Simplify:       0.02,
				PositiveBuffer: 0.005,
				NegativeBuffer: 0.03,
				MitreLimit:     DefaultMitreLimit,
				Filter: FilterConfig{
					PlaneArea:    Range{Min: 0.5},
					HoleArea:     Range{Min: 0.025, Max: 0.785},
					HoleVertices: MinCount{Min: 6},
				},
			},
			FrameSkip: FrameSkipConfig{DepthMinValid: 0.5},
		},
		Workers: 1,
	}
}

// LoadConfig loads the configuration from a YAML file. Fields missing from
// the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &config, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error
	pp := c.Polygon.Postprocess
	if pp.Simplify < 0 {
		errs = multierr.Append(errs, fmt.Errorf("polygon.postprocess.simplify must be >= 0, got %g", pp.Simplify))
	}
	if pp.PositiveBuffer < 0 {
		errs = multierr.Append(errs, fmt.Errorf("polygon.postprocess.positiveBuffer must be >= 0, got %g", pp.PositiveBuffer))
	}
	if pp.NegativeBuffer < 0 {
		errs = multierr.Append(errs, fmt.Errorf("polygon.postprocess.negativeBuffer must be >= 0, got %g", pp.NegativeBuffer))
	}
	if pp.MitreLimit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("polygon.postprocess.mitreLimit must be >= 0, got %g", pp.MitreLimit))
	}
	ha := pp.Filter.HoleArea
	if ha.Min > 0 && ha.Max > 0 && ha.Max <= ha.Min {
		errs = multierr.Append(errs, fmt.Errorf("polygon.postprocess.filter.holeArea.max (%g) must exceed min (%g)", ha.Max, ha.Min))
	}
	if fs := c.Polygon.FrameSkip.DepthMinValid; fs < 0 || fs > 1 {
		errs = multierr.Append(errs, fmt.Errorf("polygon.frameskip.depthMinValid must be within [0, 1], got %g", fs))
	}
	if c.Mesh.Stride < 0 {
		errs = multierr.Append(errs, fmt.Errorf("mesh.stride must be >= 0, got %d", c.Mesh.Stride))
	}
	if c.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.MQTT.Broker != "" && c.MQTT.FrameTopic == "" {
		errs = multierr.Append(errs, fmt.Errorf("mqtt.frameTopic is required when mqtt.broker is set"))
	}
	return errs
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
