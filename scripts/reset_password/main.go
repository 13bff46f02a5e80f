package main

import (
	"fmt"
	"log"

	"lppm/models"
	"lppm/pkg/config"
	"lppm/pkg/database"
	"lppm/pkg/logging"
	"lppm/pkg/roles"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

func main() {
	username := pflag.String("username", "", "username to update")
	password := pflag.String("password", "", "new plaintext password (min 6 chars)")
	akses := pflag.String("akses", "", `replace the access list, e.g. "Ketua LPPM"`)
	pflag.Parse()
	if *username == "" || (*password == "" && *akses == "") {
		log.Fatal("--username and at least one of --password or --akses are required")
	}
	if *password != "" && len(*password) < 6 {
		log.Fatal("password too short (min 6)")
	}
	if *akses != "" && roles.Parse(*akses).Empty() {
		log.Fatalf("akses %q names no known role", *akses)
	}

	loader, err := config.NewLoader()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, _, err := logging.New("warn", "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	db, err := database.Open(cfg.DBDSN, zl)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var user models.User
	if err := db.Where("username = ?", *username).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	if *password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("bcrypt: %v", err)
		}
		if err := db.Model(&user).Update("hashed_password", hash).Error; err != nil {
			log.Fatalf("update failed: %v", err)
		}
		fmt.Printf("Password reset for user %s\n", user.Username)
	}
	if *akses != "" {
		row := models.HakAkses{UserID: user.ID, Akses: *akses}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"akses", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			log.Fatalf("update akses failed: %v", err)
		}
		fmt.Printf("Access for user %s set to %s\n", user.Username, roles.Parse(*akses))
	}
}
