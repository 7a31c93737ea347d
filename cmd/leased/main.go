package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leased/internal/admin"
	"leased/internal/config"
	"leased/internal/lease"
	"leased/internal/server"
	"leased/pkg/bus"
	"leased/pkg/telemetry"
)

const serviceName = "leased"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "leased",
		Short:         "DHCPv4 server with a read-only admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "leased.yaml", "path to the YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the DHCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate the config file and print the resolved settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	})

	return root
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := lease.NewPool(cfg.PoolStart, cfg.PoolEnd)
	if err != nil {
		return fmt.Errorf("build pool: %w", err)
	}
	store := lease.NewStore(pool, cfg.OfferHold)

	opts := server.Options{}
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer b.Close()
		opts.Publisher = b
		logger.Printf("INFO publishing lease events to %s", cfg.NATSURL)
	}

	srv := server.New(cfg, store, logger, opts)

	var dhcpReady atomic.Bool
	errCh := make(chan error, 2)

	go func() {
		if err := srv.Run(ctx, &dhcpReady); err != nil {
			errCh <- fmt.Errorf("dhcp: %w", err)
		}
	}()

	api, err := admin.New(srv, &dhcpReady)
	if err != nil {
		return fmt.Errorf("build admin api: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.AdminListen,
		Handler: middleware(api.Routes()),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: http shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO admin api listening on %s", httpServer.Addr)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func printConfig(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "listen:          %s\n", cfg.Listen)
	if cfg.Interface != "" {
		fmt.Fprintf(w, "interface:       %s\n", cfg.Interface)
	}
	fmt.Fprintf(w, "server_ip:       %s\n", cfg.ServerIP)
	fmt.Fprintf(w, "subnet_mask:     %s\n", net.IP(cfg.SubnetMask))
	fmt.Fprintf(w, "router:          %s\n", cfg.Router)
	for _, d := range cfg.DNS {
		fmt.Fprintf(w, "dns:             %s\n", d)
	}
	if cfg.DomainName != "" {
		fmt.Fprintf(w, "domain_name:     %s\n", cfg.DomainName)
	}
	fmt.Fprintf(w, "pool:            %s - %s\n", cfg.PoolStart, cfg.PoolEnd)
	fmt.Fprintf(w, "lease_time:      %s\n", cfg.LeaseTime)
	fmt.Fprintf(w, "max_lease_time:  %s\n", cfg.MaxLeaseTime)
	fmt.Fprintf(w, "offer_hold:      %s\n", cfg.OfferHold)
	fmt.Fprintf(w, "decline_hold:    %s\n", cfg.DeclineHold)
	fmt.Fprintf(w, "sweep_every:     %s\n", cfg.SweepEvery)
	fmt.Fprintf(w, "admin_listen:    %s\n", cfg.AdminListen)
	if cfg.NATSURL != "" {
		fmt.Fprintf(w, "nats_url:        %s\n", cfg.NATSURL)
	}
}
