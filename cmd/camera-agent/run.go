package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/pizero-camera/internal/agent"
	"github.com/fpang/pizero-camera/internal/analysis"
	"github.com/fpang/pizero-camera/internal/boot"
	"github.com/fpang/pizero-camera/internal/camera"
	"github.com/fpang/pizero-camera/internal/command"
	"github.com/fpang/pizero-camera/internal/config"
	"github.com/fpang/pizero-camera/internal/enroll"
	"github.com/fpang/pizero-camera/internal/logging"
	"github.com/fpang/pizero-camera/internal/metrics"
	"github.com/fpang/pizero-camera/internal/store"
	"github.com/fpang/pizero-camera/internal/transport"
)

// components is everything the subcommands share.
type components struct {
	cfg      *config.Config
	source   camera.Source
	pipeline *analysis.Pipeline
	enroller *enroll.Enroller
	uploader agent.Uploader
	mirror   *store.DynamoStore
}

// setup loads configuration and builds every AWS-backed component.
// Offline setups skip the broker entirely.
func setup(ctx context.Context, cmd *cobra.Command, offline bool) (*components, error) {
	initStart := time.Now()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel)
	metrics.SetDevice(cfg.ClientID)

	awsClients, err := boot.InitAWS(ctx)
	if err != nil {
		return nil, err
	}
	validate := cfg.ValidateOffline
	if !offline {
		if err := boot.ResolveBroker(ctx, awsClients.SSM, cfg); err != nil {
			return nil, err
		}
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var src camera.Source
	if cfg.Camera.File != "" {
		src = camera.NewFileSource(cfg.Camera.File)
	} else {
		cs, err := camera.NewCommandSource(cfg.Camera.Command)
		if err != nil {
			return nil, err
		}
		src = cs
	}
	exclusive := camera.NewExclusive(src)

	uploader := boot.InitS3(awsClients.Config, cfg)
	rk := boot.InitRekognition(awsClients.Config, cfg)
	if cfg.Vision.CreateCollection {
		if err := rk.EnsureCollection(ctx); err != nil {
			return nil, err
		}
	}

	// The S3 record is authoritative and written last.
	var sinks []analysis.Sink
	mirror := boot.InitDynamoOptional(awsClients.Config, cfg)
	if mirror != nil {
		sinks = append(sinks, mirror)
	}
	sinks = append(sinks, uploader)

	startup := boot.StartupLog("camera-agent", initStart).
		Version(Version).
		S3Bucket("storage", cfg.Storage.Bucket).
		Topic("subscribe", cfg.SubscribeTopic()).
		Topic("publish", cfg.PublishTopic()).
		Collection("faces", cfg.Vision.CollectionID).
		Feature("dynamoMirror", mirror != nil).
		Feature("fileSource", cfg.Camera.File != "").
		Feature("tls", cfg.MQTT.CertFile != "").
		Config("clientId", cfg.ClientID).
		Config("broker", cfg.MQTT.Broker).
		Config("interval", cfg.Camera.PollInterval.String()).
		Config("threshold", strconv.FormatFloat(cfg.Camera.ChangeThreshold, 'f', -1, 64)).
		Config("seenKey", cfg.Storage.SeenKey)
	if cfg.Camera.File == "" {
		startup.Config("captureCommand", strings.Join(cfg.Camera.Command, " "))
	}
	if mirror != nil {
		startup.DynamoTable("seen", mirror.TableName())
	}
	if cfg.MQTT.BrokerSSMParam != "" {
		startup.SSMParam("broker", cfg.MQTT.BrokerSSMParam)
	}
	startup.Log()

	return &components{
		cfg:      cfg,
		source:   exclusive,
		pipeline: analysis.NewPipeline(rk, sinks...),
		enroller: enroll.New(exclusive, uploader, rk),
		uploader: uploader,
		mirror:   mirror,
	}, nil
}

func (c *components) newAgent(notifier agent.Notifier) *agent.Agent {
	return agent.New(agent.Config{
		Interval:  c.cfg.Camera.PollInterval,
		Threshold: c.cfg.Camera.ChangeThreshold,
	}, camera.NewState(), c.source, c.uploader, c.pipeline, c.enroller, notifier)
}

// runAgent connects to the broker and runs the poll loop and the command
// consumer until the context ends.
func runAgent(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := setup(ctx, cmd, false)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}

	var queue *command.Queue
	client := transport.New(transport.Options{
		Broker:         c.cfg.MQTT.Broker,
		ClientID:       c.cfg.ClientID,
		CAFile:         c.cfg.MQTT.CAFile,
		CertFile:       c.cfg.MQTT.CertFile,
		KeyFile:        c.cfg.MQTT.KeyFile,
		SubscribeTopic: c.cfg.SubscribeTopic(),
		PublishTopic:   c.cfg.PublishTopic(),
	}, func(payload []byte) {
		queue.Push(ctx, payload)
	})

	a := c.newAgent(client)
	queue = command.NewQueue(command.NewRouter(a), command.DefaultQueueSize)

	if err := client.Connect(ctx); err != nil {
		if !errors.Is(err, transport.ErrConnectPending) {
			log.Error().Err(err).Msg("MQTT connect failed")
			return err
		}
		log.Warn().Err(err).Msg("Broker not reachable yet, retrying in background")
	}
	defer client.Disconnect()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return a.Run(gctx)
	})
	err = g.Wait()
	log.Info().Msg("Camera agent stopped")
	return err
}

func runOnce(cmd *cobra.Command, _ []string) error {
	c, err := setup(cmd.Context(), cmd, true)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	if err := c.newAgent(nil).UseOnce(cmd.Context()); err != nil {
		log.Error().Err(err).Msg("One-shot capture failed")
		return err
	}
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	c, err := setup(cmd.Context(), cmd, true)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	if err := c.newAgent(nil).Enroll(cmd.Context(), args[0]); err != nil {
		log.Error().Err(err).Msg("Enrollment failed")
		return err
	}
	return nil
}

func runLastSeen(cmd *cobra.Command, _ []string) error {
	c, err := setup(cmd.Context(), cmd, true)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	if c.mirror == nil {
		return fmt.Errorf("no DynamoDB table configured (set %s)", config.EnvDynamoTable)
	}
	seen, err := c.mirror.GetSeen(cmd.Context())
	if err != nil {
		return err
	}
	if seen == nil {
		log.Info().Str("device", c.cfg.ClientID).Msg("Nothing seen yet")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(seen)
}
