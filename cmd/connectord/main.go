// Command connectord runs the consumer-side transfer engine: the process
// manager, the command queue, the S3 bucket provisioner and the parallel
// data pipeline, wired over an in-memory process store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/pipeline"
	"github.com/agri-gaia/DataSpaceConnector/s3"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/command"
	"github.com/agri-gaia/DataSpaceConnector/transfer/manager"
	"github.com/agri-gaia/DataSpaceConnector/transfer/provision"
	"github.com/agri-gaia/DataSpaceConnector/transfer/query"
	"github.com/agri-gaia/DataSpaceConnector/transfer/service"
	"github.com/agri-gaia/DataSpaceConnector/transfer/store"
	"github.com/agri-gaia/DataSpaceConnector/vault"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "connectord",
		Short:         "Dataspace connector transfer engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.Bool("debug", false, "enable debug logging")
	flags.Duration("iteration-interval", 500*time.Millisecond, "pause between state machine passes")
	flags.Int("command-queue-size", 64, "capacity of the command queue")
	flags.String("vault", "memory", "vault backend: memory or secretsmanager")
	flags.Int("sink-concurrency", 5, "parallel part uploads per transfer")
	flags.Int64("chunk-size", 500*1024*1024, "multipart chunk size in bytes")
	flags.Uint64("provision-max-retries", 10, "retry attempts per provisioning pipeline")
	flags.Duration("session-duration", time.Hour, "lifetime of minted transfer credentials")
	flags.String("request", "", "path to a data request JSON to admit at startup")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("CONNECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mon, err := monitor.New(v.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = mon.Sync() }()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading aws configuration: %w", err)
	}
	clients := s3.NewProviderFromConfig(awsCfg)

	var secrets vault.Vault
	switch backend := v.GetString("vault"); backend {
	case "memory":
		secrets = vault.NewInMemory()
	case "secretsmanager":
		secrets = vault.NewSecretsManager(secretsmanager.NewFromConfig(awsCfg))
	default:
		return fmt.Errorf("unknown vault backend %q", backend)
	}

	processStore := store.NewInMemory()
	tx := store.PassthroughTransactionContext{}

	registry := command.NewRegistry()
	if err := registry.Register(command.NewCancelHandler(processStore, tx, mon)); err != nil {
		return err
	}
	if err := registry.Register(command.NewDeprovisionHandler(processStore, tx, mon)); err != nil {
		return err
	}

	provisioners := provision.NewManager(mon)
	provisioners.Register(s3.NewBucketProvisioner(clients, mon,
		s3.WithMaxRetries(v.GetUint64("provision-max-retries")),
		s3.WithSessionDuration(v.GetDuration("session-duration")),
	))

	manifests := provision.NewManifestGenerator()
	manifests.Register(s3.NewConsumerResourceGenerator())

	checkers := transfer.NewStatusCheckerRegistry()
	checkers.Register(s3.TypeAmazonS3, s3.NewBucketStatusChecker(clients, mon))

	pipelineService := pipeline.NewService(mon)
	pipelineService.RegisterSourceFactory(s3.NewSourceFactory(clients, secrets))
	pipelineService.RegisterSinkFactory(s3.NewSinkFactory(clients, secrets, mon,
		s3.WithSinkConcurrency(v.GetInt("sink-concurrency")),
		s3.WithChunkSize(v.GetInt64("chunk-size")),
	))

	processManager := manager.New(
		processStore, tx, secrets,
		registry, provisioners, manifests, checkers, pipelineService, mon,
		manager.WithIterationInterval(v.GetDuration("iteration-interval")),
		manager.WithCommandQueueSize(v.GetInt("command-queue-size")),
	)

	validator := query.NewValidator(transfer.TransferProcess{}, map[any][]any{
		(*transfer.ResourceDefinition)(nil):  {s3.BucketResourceDefinition{}},
		(*transfer.ProvisionedResource)(nil): {s3.BucketProvisionedResource{}},
	})
	transfers := service.New(processStore, tx, processManager, validator)

	processManager.Start(ctx)
	mon.Info("connector started")

	if path := v.GetString("request"); path != "" {
		if err := admitRequest(ctx, transfers, mon, path); err != nil {
			processManager.Stop()
			return err
		}
	}

	<-ctx.Done()
	mon.Info("shutting down")
	processManager.Stop()
	return nil
}

// admitRequest reads a data request from disk and hands it to the transfer
// service, the same path an embedding management layer would use.
func admitRequest(ctx context.Context, transfers *service.Service, mon monitor.Monitor, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading data request: %w", err)
	}
	var request transfer.DataRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return fmt.Errorf("decoding data request: %w", err)
	}
	processID, err := transfers.InitiateTransfer(ctx, request)
	if err != nil {
		return fmt.Errorf("admitting data request: %w", err)
	}
	mon.Info("transfer admitted", "process", processID, "request", request.ID)
	return nil
}
