package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/pizero-camera/internal/config"
)

// Version is the agent version reported at startup.
const Version = "0.3.0"

// CLI flags
var (
	configFlag    string
	logLevelFlag  string
	brokerFlag    string
	bucketFlag    string
	fileFlag      string
	clientIDFlag  string
	intervalFlag  time.Duration
	thresholdFlag float64
	noDotEnvFlag  bool
)

// rootCmd runs the agent until interrupted.
var rootCmd = &cobra.Command{
	Use:     "camera-agent",
	Short:   "Always-on camera that analyzes scene changes and takes commands over MQTT",
	Version: Version,
	Long: `camera-agent samples the camera every few seconds while monitoring is enabled.
When the scene changes enough, the capture is uploaded to S3 and analyzed with
Rekognition (labels, faces, celebrities, known faces); the result overwrites the
last-seen record.

Commands arrive as JSON on <client-id>/in:
  {"camera": "enable" | "disable" | "use"}
  {"index": "<name>"}

Examples:
  camera-agent --config /etc/pizero-camera.yaml
  camera-agent --broker ssl://xxxx-ats.iot.eu-west-1.amazonaws.com:8883 --bucket my-camera
  camera-agent --file ./testdata/frame.jpg --log-level debug`,
	SilenceUsage: true,
	RunE:         runAgent,
}

// onceCmd performs a single capture and analysis without connecting to MQTT.
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Capture, upload and analyze one image, then exit",
	Args:  cobra.NoArgs,
	RunE:  runOnce,
}

// enrollCmd indexes the current view under a name without connecting to MQTT.
var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Capture one image and index the face in it under <name>",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnroll,
}

// lastSeenCmd prints the DynamoDB last-seen mirror for this device.
var lastSeenCmd = &cobra.Command{
	Use:   "last-seen",
	Short: "Print the last-seen summary mirrored to DynamoDB",
	Args:  cobra.NoArgs,
	RunE:  runLastSeen,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default from "+config.EnvLogLevel+")")
	pf.StringVar(&brokerFlag, "broker", "", "MQTT broker URL, e.g. ssl://host:8883")
	pf.StringVar(&bucketFlag, "bucket", "", "S3 bucket for captures and the last-seen record")
	pf.StringVar(&fileFlag, "file", "", "Read captures from this file instead of the camera")
	pf.StringVar(&clientIDFlag, "client-id", "", "MQTT client id and topic prefix (default "+config.DefaultClientID+")")
	pf.DurationVar(&intervalFlag, "interval", config.DefaultPollInterval, "Poll interval while monitoring")
	pf.Float64Var(&thresholdFlag, "threshold", config.DefaultChangeThreshold, "Relative size change that triggers analysis")
	pf.BoolVar(&noDotEnvFlag, "no-dotenv", false, "Do not load a .env file from the working directory")

	rootCmd.AddCommand(onceCmd, enrollCmd, lastSeenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers flags over file and environment configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag, !noDotEnvFlag)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = brokerFlag
	}
	if flags.Changed("bucket") {
		cfg.Storage.Bucket = bucketFlag
	}
	if flags.Changed("file") {
		cfg.Camera.File = fileFlag
	}
	if flags.Changed("client-id") {
		cfg.ClientID = clientIDFlag
	}
	if flags.Changed("interval") {
		cfg.Camera.PollInterval = intervalFlag
	}
	if flags.Changed("threshold") {
		cfg.Camera.ChangeThreshold = thresholdFlag
	}
	return cfg, nil
}
