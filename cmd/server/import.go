package main

import (
	"context"
	"fmt"
	"os"

	"paybridge/internal/config"
	"paybridge/internal/infrastructure/database"
	"paybridge/internal/legacy"
	"paybridge/internal/repository"

	"github.com/spf13/cobra"
)

var importDryRun bool

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [payments.json]",
		Short: "Import payment records from the legacy JSON store",
		Long: `Reads the legacy payment_id -> record JSON file and upserts it into the database.

An unreadable or malformed file aborts the import with a non-zero exit; nothing is written.
Completed records in the database are never reverted to pending.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
	cmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and validate the file without writing")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("打开支付文件失败: %w", err)
	}
	defer f.Close()

	records, err := legacy.ParsePayments(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "parsed %d payment records\n", len(records))
	if importDryRun {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := database.Open(&cfg.Database, &cfg.MySQL)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo := repository.NewPaymentRepository(db)
	if err := repo.Save(ctx, records); err != nil {
		return fmt.Errorf("写入支付记录失败: %w", err)
	}

	all, err := repo.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records, store now holds %d\n", len(records), len(all))
	return nil
}
