package main

import (
	"context"
	"fmt"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/infrastructure/cache"
	"paybridge/internal/infrastructure/database"
	"paybridge/internal/infrastructure/lock"
	"paybridge/internal/job"
	"paybridge/internal/service"
	"paybridge/pkg/idgen"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass over pending payments and exit",
		Long: `Polls the payment gateway for every pending payment and credits those reported as succeeded.

Top-up notices are written to the outbox and delivered by the running server.`,
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := idgen.Init(2); err != nil {
		return err
	}

	db := database.InitDatabase(cfg)
	redisClient := cache.InitRedis(&cfg.Redis)
	defer redisClient.Close()

	tariffs := service.NewTariffCatalog(cfg.Tariffs)
	fulfiller := service.NewFulfillService(db, lock.NewLocker(redisClient, cfg.Business.LockTTL), tariffs, cfg)
	payments := service.NewPaymentService(db, gateway.NewClient(&cfg.Gateway), tariffs, fulfiller, cfg)

	stats, err := job.NewReconcileJob(payments, cfg.Reconcile.Interval).RunOnce(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pending=%d credited=%d already=%d waiting=%d timeouts=%d failed=%d\n",
		stats.Pending, stats.Credited, stats.Already, stats.Waiting, stats.Timeouts, stats.Failed)
	return nil
}
