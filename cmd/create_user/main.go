package main

import (
	"fmt"
	"os"

	"lppm/models"
	"lppm/pkg/config"
	"lppm/pkg/database"
	"lppm/pkg/logging"
	"lppm/pkg/roles"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	akses := pflag.String("akses", "Dosen", `comma separated access list, e.g. "Staff LPPM, Keuangan"`)
	name := pflag.String("name", "", "profile display name (defaults to the username)")
	pflag.Parse()
	if pflag.NArg() < 2 {
		fmt.Println("usage: go run ./cmd/create_user [--akses LIST] [--name NAME] <username> <password>")
		os.Exit(2)
	}
	username, password := pflag.Arg(0), pflag.Arg(1)
	if roles.Parse(*akses).Empty() {
		fmt.Fprintf(os.Stderr, "akses %q names no known role\n", *akses)
		os.Exit(2)
	}
	if *name == "" {
		*name = username
	}

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
	db, err := database.Open(cfg.DBDSN, log)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("bcrypt failed", zap.Error(err))
	}
	user := models.User{Username: username, HashedPassword: hpw}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.HakAkses{UserID: user.ID, Akses: *akses}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{UserID: user.ID, Name: *name}).Error
	})
	if err != nil {
		log.Fatal("failed to create user", zap.Error(err))
	}
	fmt.Printf("created user %s id=%d roles=%s\n", username, user.ID, roles.Parse(*akses))
}
