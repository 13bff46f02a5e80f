package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lppm/pkg/config"
	"lppm/pkg/database"
	"lppm/pkg/logging"
	"lppm/pkg/notify"
	"lppm/process/retention"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var opts retention.Options
	pflag.IntVar(&opts.OlderThanDays, "older-than-days", 90, "delete read notifications older than this many days")
	pflag.BoolVar(&opts.DryRun, "dry-run", true, "only report what would be deleted")
	pflag.BoolVar(&opts.Yes, "yes", false, "confirm the deletion")
	pflag.Parse()

	loader, err := config.NewLoader()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log, _, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	gdb, err := database.Open(cfg.DBDSN, log)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := retention.Run(ctx, notify.NewStore(gdb), opts, os.Stdout); err != nil {
		log.Fatal("retention", zap.Error(err))
	}
}
