// Package scenario describes a simulation in YAML, validates it against an
// embedded CUE schema and builds it.
package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed cloudbiz.yaml
var cloudBiz []byte

// Subnet is an IPv4 range in dotted notation.
type Subnet struct {
	Base string `yaml:"base"`
	Mask string `yaml:"mask"`
}

// NodeGroup declares one node, or Count nodes named Name0, Name1 and so on.
// Other sections can refer to the whole group by Name.
type NodeGroup struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// Link is a point-to-point link between two single nodes.
type Link struct {
	A                  string  `yaml:"a"`
	B                  string  `yaml:"b"`
	Delay              float64 `yaml:"delay"`
	DataRate           float64 `yaml:"data_rate"`
	MTU                int     `yaml:"mtu"`
	SerializationDelay bool    `yaml:"serialization_delay"`
	Subnet             *Subnet `yaml:"subnet"`
}

// Channel is a shared medium. A positive DataRate serializes frames on the
// channel.
type Channel struct {
	Name        string   `yaml:"name"`
	Members     []string `yaml:"members"`
	Coordinator string   `yaml:"coordinator"`
	MTU         int      `yaml:"mtu"`
	Delay       float64  `yaml:"delay"`
	DataRate    float64  `yaml:"data_rate"`
	Subnet      *Subnet  `yaml:"subnet"`
}

// Position is a point on the plane.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Grid is a grid placement.
type Grid struct {
	MinX   float64 `yaml:"min_x"`
	MinY   float64 `yaml:"min_y"`
	DeltaX float64 `yaml:"delta_x"`
	DeltaY float64 `yaml:"delta_y"`
	Width  int     `yaml:"width"`
	Layout string  `yaml:"layout"`
}

// Rect bounds a random walk.
type Rect struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

// Mobility installs one model on a set of nodes.
type Mobility struct {
	Nodes     []string   `yaml:"nodes"`
	Model     string     `yaml:"model"`
	Positions []Position `yaml:"positions"`
	Grid      *Grid      `yaml:"grid"`
	Bounds    *Rect      `yaml:"bounds"`
	Interval  float64    `yaml:"interval"`
	StepSize  float64    `yaml:"step_size"`
}

// Application installs one application on each of Nodes.
type Application struct {
	Type  string   `yaml:"type"`
	Nodes []string `yaml:"nodes"`
	Port  uint16   `yaml:"port"`
	Start float64  `yaml:"start"`
	Stop  float64  `yaml:"stop"`

	// Server is the node name or IPv4 address an echo client talks to.
	Server            string  `yaml:"server"`
	MaxPackets        int     `yaml:"max_packets"`
	Interval          float64 `yaml:"interval"`
	PacketSize        int     `yaml:"packet_size"`
	DropOutsideWindow *bool   `yaml:"drop_outside_window"`
}

// Config is the root of a scenario file.
type Config struct {
	Name           string        `yaml:"name"`
	Seed           int64         `yaml:"seed"`
	StopTime       float64       `yaml:"stop_time"`
	Nodes          []NodeGroup   `yaml:"nodes"`
	Links          []Link        `yaml:"links"`
	Channels       []Channel     `yaml:"channels"`
	Mobility       []Mobility    `yaml:"mobility"`
	Applications   []Application `yaml:"applications"`
	PopulateRoutes bool          `yaml:"populate_routes"`
}

// Default returns the built-in CloudBiz scenario.
func Default() *Config {
	cfg, err := Parse(cloudBiz)
	if err != nil {
		panic(err)
	}

	return cfg
}

// DefaultYAML returns the source of the built-in scenario.
func DefaultYAML() []byte {
	return append([]byte(nil), cloudBiz...)
}

// Load reads, validates and decodes a scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: reading %s: %w", path, err)
	}

	return Parse(data)
}

// Parse validates and decodes a scenario.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("scenario: decoding: %w", err)
	}

	return &cfg, nil
}
