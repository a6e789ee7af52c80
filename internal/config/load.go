package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvClientID        = "CAMERA_CLIENT_ID"
	EnvLogLevel        = "CAMERA_LOG_LEVEL"
	EnvCaptureCommand  = "CAMERA_CAPTURE_COMMAND"
	EnvCaptureFile     = "CAMERA_CAPTURE_FILE"
	EnvChangeThreshold = "CAMERA_CHANGE_THRESHOLD"
	EnvPollInterval    = "CAMERA_POLL_INTERVAL"
	EnvBroker          = "CAMERA_BROKER"
	EnvBrokerSSMParam  = "CAMERA_BROKER_SSM_PARAM"
	EnvCAFile          = "CAMERA_CA_FILE"
	EnvCertFile        = "CAMERA_CERT_FILE"
	EnvKeyFile         = "CAMERA_KEY_FILE"
	EnvBucket          = "CAMERA_BUCKET"
	EnvImageKeyPrefix  = "CAMERA_IMAGE_PREFIX"
	EnvSeenKey         = "CAMERA_SEEN_KEY"
	EnvCollectionID    = "CAMERA_COLLECTION_ID"
	EnvDynamoTable     = "CAMERA_DYNAMO_TABLE"
)

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment. When useDotEnv is set, a .env file in the
// working directory is loaded first; a missing .env is not an error.
func Load(path string, useDotEnv bool) (*Config, error) {
	if useDotEnv {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found, using process environment")
		}
	}

	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Config file loaded")
	return nil
}

// ApplyEnv overlays non-empty environment values onto c. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.ClientID, EnvClientID)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.Camera.File, EnvCaptureFile)
	setString(&c.MQTT.Broker, EnvBroker)
	setString(&c.MQTT.BrokerSSMParam, EnvBrokerSSMParam)
	setString(&c.MQTT.CAFile, EnvCAFile)
	setString(&c.MQTT.CertFile, EnvCertFile)
	setString(&c.MQTT.KeyFile, EnvKeyFile)
	setString(&c.Storage.Bucket, EnvBucket)
	setString(&c.Storage.ImageKeyPrefix, EnvImageKeyPrefix)
	setString(&c.Storage.SeenKey, EnvSeenKey)
	setString(&c.Vision.CollectionID, EnvCollectionID)
	setString(&c.Dynamo.Table, EnvDynamoTable)

	if v := getenv(EnvCaptureCommand); v != "" {
		c.Camera.Command = strings.Fields(v)
	}
	if v := getenv(EnvChangeThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvChangeThreshold, err)
		}
		c.Camera.ChangeThreshold = f
	}
	if v := getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.Camera.PollInterval = d
	}
	return nil
}
