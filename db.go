package main

import (
	"errors"
	"fmt"

	"lppm/models"
	"lppm/pkg/config"
	"lppm/pkg/database"
	"lppm/pkg/notify"
	"lppm/pkg/roles"
	"lppm/pkg/workflow"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var db *gorm.DB

var (
	resolver    roles.Resolver
	engine      *workflow.Engine
	submissions *workflow.Store
	inbox       *notify.Service
)

func initDB(cfg *config.Config) error {
	var err error
	db, err = database.Open(cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		migrate()
	}
	seedDB()
	return nil
}

// migrate runs AutoMigrate one model at a time so a permission problem on
// one table does not block the others.
func migrate() {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			logger.Warn("migration warning", zap.String("model", fmt.Sprintf("%T", m)), zap.Error(err))
		}
	}
}

// wireServices builds the workflow and inbox services on top of db.
func wireServices(cfg *config.Config) {
	resolver = roles.NewGormResolver(db)
	engine = workflow.NewEngine(db, resolver, workflow.NewDocumentChecker(db, cfg.RequiredDocuments), logger)
	submissions = workflow.NewStore(db)
	inbox = notify.NewService(notify.NewStore(db), notify.NewMaterializer(db, resolver, logger), logger)
}

type seedAccount struct {
	username string
	password string
	name     string
	akses    string
}

var seedAccounts = []seedAccount{
	{"admin", "admin123", "Administrator", "Staff LPPM, Ketua LPPM, Keuangan"},
}

func seedDB() {
	for _, a := range seedAccounts {
		if err := seedUser(a); err != nil {
			logger.Warn("seed user", zap.String("username", a.username), zap.Error(err))
		}
	}
}

// seedUser creates the account with its profile and akses row unless the
// username already exists.
func seedUser(a seedAccount) error {
	var existing models.User
	err := db.Where("username = ?", a.username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		u := models.User{Username: a.username, HashedPassword: hashed}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.HakAkses{UserID: u.ID, Akses: a.akses}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Profile{UserID: u.ID, Name: a.name}).Error; err != nil {
			return err
		}
		logger.Info("seeded user", zap.String("username", a.username), zap.String("akses", a.akses))
		return nil
	})
}
