// Command device is the firmware-side runtime entrypoint: it loads
// configuration, dials a transport, and wires the MQTT client, dispatcher,
// and update channel together behind an errgroup that runs the connection,
// the metrics server, and signal handling side by side.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	mqtt "github.com/fleetcore/otamqtt"
	"github.com/fleetcore/otamqtt/internal/config"
	"github.com/fleetcore/otamqtt/internal/deviceid"
	"github.com/fleetcore/otamqtt/transport"
	"github.com/fleetcore/otamqtt/update"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	cfgFile      string
	identityFile string
	metricsAddr  string
	libPrefix    string
)

func main() {
	root := &cobra.Command{
		Use:   "device",
		Short: "Connects to the fleet broker and applies OTA updates",
		RunE:  runDevice,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to device config file (default: ./device.yaml)")
	root.PersistentFlags().StringVar(&identityFile, "identity", "device.id", "path to this device's persisted identity")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9421", "address to serve Prometheus metrics on")
	root.PersistentFlags().StringVar(&libPrefix, "lib-prefix", "/lib", "root directory for installed wheels and src files")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDevice(cmd *cobra.Command, _ []string) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// crashBuf is reserved once at boot: capturing a stack trace must not
	// itself require an allocation, since the panic may be the result of
	// memory already running out.
	crashBuf := make([]byte, cfg.EmergencyBufLen)
	defer func() {
		if r := recover(); r != nil {
			n := runtime.Stack(crashBuf, false)
			log.Error().Interface("panic", r).Str("stack", string(crashBuf[:n])).Msg("device crashed")
			panic(r)
		}
	}()

	uniqueID, err := loadOrCreateUniqueID(identityFile)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	platform := newHostPlatform(cfg.Hostname)
	clientID := deviceid.Build(platform.Sysname(), uniqueID)
	log = log.With().Str("client_id", clientID).Logger()

	reg := prometheus.NewRegistry()
	metrics := mqtt.NewMetrics(reg)

	opts := []mqtt.Option{
		mqtt.WithServer(cfg.MQTT.Server, cfg.MQTT.Port),
		mqtt.WithClientID(clientID),
		mqtt.WithCredentials(cfg.MQTT.Username, cfg.MQTT.Password),
		mqtt.WithKeepAlive(time.Duration(cfg.MQTT.KeepAliveSeconds) * time.Second),
		mqtt.WithInboundQueueSize(cfg.MQTT.MaxMsgsWaiting),
	}
	if cfg.MQTT.SSL {
		opts = append(opts, mqtt.WithTLS(&tls.Config{ServerName: cfg.MQTT.Server}))
	}

	client := mqtt.New(opts...).WithLogger(log).WithMetrics(metrics)

	inventory := update.NewFSInventory(libPrefix)
	installer := update.NewFSInstaller(libPrefix)
	channel := update.NewFromConfig(update.Config{
		Channel:    cfg.Update.Channel,
		ClientID:   clientID,
		AutoUpdate: cfg.Update.AutoUpdate,
		Publisher:  client,
		Dispatcher: client.Dispatcher,
		Inventory:  inventory,
		Installer:  installer,
		Platform:   platform,
		Rebooter:   processRebooter{},
	}).WithLogger(log).WithMetrics(metrics)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		srv := &http.Server{Addr: metricsAddr, Handler: mqtt.Handler(reg)}
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", metricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel()
			return nil
		}
	})

	group.Go(func() error {
		tr, err := dial(ctx, cfg)
		if err != nil {
			return fmt.Errorf("dialing broker: %w", err)
		}

		runGroup, runCtx := errgroup.WithContext(ctx)
		runGroup.Go(func() error { return client.Run(runCtx, tr) })
		runGroup.Go(func() error {
			if err := client.Connect(runCtx); err != nil {
				return err
			}
			return channel.Register(runCtx)
		})
		return runGroup.Wait()
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func dial(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	addr := fmt.Sprintf("%s:%d", cfg.MQTT.Server, cfg.MQTT.Port)
	if cfg.MQTT.SSL {
		return transport.DialTLS(ctx, addr, &tls.Config{ServerName: cfg.MQTT.Server})
	}
	return transport.DialTCP(ctx, addr)
}
