// Package boot provides the agent's startup wiring: AWS config, service
// clients, SSM parameter resolution, and the startup log line.
//
// main composes these helpers; each returns an error instead of exiting so
// the caller decides what is fatal.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/pizero-camera/internal/config"
	"github.com/fpang/pizero-camera/internal/logging"
	"github.com/fpang/pizero-camera/internal/s3util"
	"github.com/fpang/pizero-camera/internal/store"
	"github.com/fpang/pizero-camera/internal/vision"
)

// AWSClients holds the shared AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// ParameterAPI is the subset of the SSM client used to resolve parameters.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config chain (env, shared files, instance role).
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// ResolveParam reads a (possibly encrypted) SSM parameter value.
func ResolveParam(ctx context.Context, client ParameterAPI, name string) (string, error) {
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get SSM parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", name)
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Parameter loaded from SSM")
	return aws.ToString(out.Parameter.Value), nil
}

// ResolveBroker fills cfg.MQTT.Broker from SSM when only the parameter name
// is configured.
func ResolveBroker(ctx context.Context, client ParameterAPI, cfg *config.Config) error {
	if cfg.MQTT.Broker != "" || cfg.MQTT.BrokerSSMParam == "" {
		return nil
	}
	broker, err := ResolveParam(ctx, client, cfg.MQTT.BrokerSSMParam)
	if err != nil {
		return fmt.Errorf("resolve broker: %w", err)
	}
	cfg.MQTT.Broker = broker
	return nil
}

// InitS3 creates the image and last-seen uploader.
func InitS3(awsCfg aws.Config, cfg *config.Config) *s3util.Uploader {
	client := s3.NewFromConfig(awsCfg)
	return s3util.NewUploader(client, cfg.Storage.Bucket, cfg.Storage.ImageKeyPrefix, cfg.Storage.SeenKey, cfg.ClientID)
}

// InitRekognition creates the vision client bound to the configured collection.
func InitRekognition(awsCfg aws.Config, cfg *config.Config) *vision.Rekognition {
	client := rekognition.NewFromConfig(awsCfg)
	return vision.NewRekognition(client, cfg.Vision.CollectionID, cfg.Vision.MaxLabels, cfg.Vision.MinConfidence)
}

// InitDynamoOptional creates the DynamoDB last-seen mirror if a table is
// configured. Returns nil (with a log line) if not.
func InitDynamoOptional(awsCfg aws.Config, cfg *config.Config) *store.DynamoStore {
	if cfg.Dynamo.Table == "" {
		log.Info().Msg("DynamoDB table not set, last-seen mirror disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Dynamo.Table, cfg.ClientID)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
