package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lppm/models"
	"lppm/pkg/config"
	"lppm/pkg/database"
	"lppm/pkg/logging"
	"lppm/process/report"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	month := pflag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	username := pflag.String("username", "", "only report submissions owned by this user")
	list := pflag.Bool("list", false, "list matching submissions")
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
	log, _, err := logging.New("warn", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	gdb, err := database.Open(cfg.DBDSN, log)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	ctx := context.Background()

	var owner uint
	if *username != "" {
		var user models.User
		if err := gdb.WithContext(ctx).Where("username = ?", *username).First(&user).Error; err != nil {
			log.Fatal("user not found", zap.String("username", *username), zap.Error(err))
		}
		owner = user.ID
	}

	sum, rows, err := report.Monthly(ctx, gdb, *month, owner)
	if err != nil {
		log.Fatal("report", zap.Error(err))
	}
	report.Print(os.Stdout, sum, rows, *list)
}
