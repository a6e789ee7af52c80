// Package config holds the camera agent's static configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// CAMERA_* environment variables (optionally seeded from a .env file). The
// command line applies flag overrides on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults mirror the values the agent has always shipped with.
const (
	DefaultClientID        = "pyzcam"
	DefaultChangeThreshold = 0.005
	DefaultPollInterval    = 3 * time.Second
	DefaultCollectionID    = "security-camera"
	DefaultImageKeyPrefix  = "pizero/"
	DefaultSeenKey         = "pizero/seen.json"
	DefaultMaxLabels       = 5
	DefaultMinConfidence   = 70
)

// DefaultCaptureCommand grabs a single JPEG still and writes it to stdout.
var DefaultCaptureCommand = []string{"libcamera-still", "-n", "-t", "1", "-e", "jpg", "-o", "-"}

// Config is the complete agent configuration.
type Config struct {
	ClientID string        `yaml:"client_id"`
	LogLevel string        `yaml:"log_level"`
	Camera   CameraConfig  `yaml:"camera"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Storage  StorageConfig `yaml:"storage"`
	Vision   VisionConfig  `yaml:"vision"`
	Dynamo   DynamoConfig  `yaml:"dynamo"`
}

// CameraConfig controls capture and change detection.
type CameraConfig struct {
	// Command is the still-capture command; its stdout must be the JPEG.
	Command []string `yaml:"command"`
	// File, when set, replaces the camera with a file read on every capture.
	File            string        `yaml:"file"`
	ChangeThreshold float64       `yaml:"change_threshold"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

// MQTTConfig describes the command channel.
type MQTTConfig struct {
	// Broker is a paho broker URL, e.g. ssl://xxxx-ats.iot.eu-west-1.amazonaws.com:8883.
	Broker string `yaml:"broker"`
	// BrokerSSMParam names an SSM parameter holding the broker URL when Broker is empty.
	BrokerSSMParam string `yaml:"broker_ssm_param"`
	CAFile         string `yaml:"ca_file"`
	CertFile       string `yaml:"cert_file"`
	KeyFile        string `yaml:"key_file"`
	SubscribeTopic string `yaml:"subscribe_topic"`
	PublishTopic   string `yaml:"publish_topic"`
}

// StorageConfig locates uploaded images and the last-seen record.
type StorageConfig struct {
	Bucket         string `yaml:"bucket"`
	ImageKeyPrefix string `yaml:"image_key_prefix"`
	SeenKey        string `yaml:"seen_key"`
}

// VisionConfig parameterizes the remote analysis calls.
type VisionConfig struct {
	CollectionID     string  `yaml:"collection_id"`
	MaxLabels        int32   `yaml:"max_labels"`
	MinConfidence    float32 `yaml:"min_confidence"`
	CreateCollection bool    `yaml:"create_collection"`
}

// DynamoConfig enables the optional last-seen mirror.
type DynamoConfig struct {
	Table string `yaml:"table"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		ClientID: DefaultClientID,
		Camera: CameraConfig{
			Command:         append([]string(nil), DefaultCaptureCommand...),
			ChangeThreshold: DefaultChangeThreshold,
			PollInterval:    DefaultPollInterval,
		},
		Storage: StorageConfig{
			ImageKeyPrefix: DefaultImageKeyPrefix,
			SeenKey:        DefaultSeenKey,
		},
		Vision: VisionConfig{
			CollectionID:     DefaultCollectionID,
			MaxLabels:        DefaultMaxLabels,
			MinConfidence:    DefaultMinConfidence,
			CreateCollection: true,
		},
	}
}

// SubscribeTopic returns the inbound command topic, defaulting to <client-id>/in.
func (c *Config) SubscribeTopic() string {
	if c.MQTT.SubscribeTopic != "" {
		return c.MQTT.SubscribeTopic
	}
	return c.ClientID + "/in"
}

// PublishTopic returns the outbound event topic, defaulting to <client-id>/out.
func (c *Config) PublishTopic() string {
	if c.MQTT.PublishTopic != "" {
		return c.MQTT.PublishTopic
	}
	return c.ClientID + "/out"
}

// Validate reports every missing or out-of-range setting at once.
// The broker may be empty when BrokerSSMParam is set; it is resolved at boot.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateOffline is Validate without the MQTT requirements, for one-off
// commands that never connect to the broker.
func (c *Config) ValidateOffline() error {
	return c.validate(false)
}

func (c *Config) validate(withMQTT bool) error {
	var errs []error
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("client_id is required"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Storage.SeenKey == "" {
		errs = append(errs, errors.New("storage.seen_key is required"))
	}
	if withMQTT && c.MQTT.Broker == "" && c.MQTT.BrokerSSMParam == "" {
		errs = append(errs, errors.New("mqtt.broker or mqtt.broker_ssm_param is required"))
	}
	if (c.MQTT.CertFile == "") != (c.MQTT.KeyFile == "") {
		errs = append(errs, errors.New("mqtt.cert_file and mqtt.key_file must be set together"))
	}
	if c.Camera.File == "" && len(c.Camera.Command) == 0 {
		errs = append(errs, errors.New("camera.command or camera.file is required"))
	}
	if c.Camera.ChangeThreshold < 0 {
		errs = append(errs, fmt.Errorf("camera.change_threshold must be >= 0, got %v", c.Camera.ChangeThreshold))
	}
	if c.Camera.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("camera.poll_interval must be positive, got %v", c.Camera.PollInterval))
	}
	if c.Vision.CollectionID == "" {
		errs = append(errs, errors.New("vision.collection_id is required"))
	}
	if c.Vision.MaxLabels <= 0 {
		errs = append(errs, fmt.Errorf("vision.max_labels must be positive, got %d", c.Vision.MaxLabels))
	}
	return errors.Join(errs...)
}
