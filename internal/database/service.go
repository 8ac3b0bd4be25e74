package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"farmdb/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("not found")

// Service wraps SQLite access via GORM
type Service struct {
	db   *gorm.DB
	path string
}

// NewService creates and initializes the local store
func NewService() (*Service, error) {
	dbPath, db, err := openWritableDatabase()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&StoredCredential{},
		&ClientSetting{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	// The store holds the refresh token fallback; keep it private
	os.Chmod(dbPath, 0600)

	log.Printf("[DB] Local store initialized at %s", dbPath)
	return &Service{db: db, path: dbPath}, nil
}

// NewServiceAt opens the store at an explicit path (tests)
func NewServiceAt(path string) (*Service, error) {
	db, err := openAt(path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&StoredCredential{}, &ClientSetting{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	os.Chmod(path, 0600)
	return &Service{db: db, path: path}, nil
}

func openWritableDatabase() (string, *gorm.DB, error) {
	candidates := make([]string, 0, 4)
	if override := strings.TrimSpace(os.Getenv("FARMDB_DB_PATH")); override != "" {
		candidates = append(candidates, override)
	}
	candidates = append(candidates, config.DBPath())

	if cwd, err := os.Getwd(); err == nil && strings.TrimSpace(cwd) != "" {
		candidates = append(candidates, filepath.Join(cwd, ".farmdb", config.DBFileName))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), config.AppName, config.DBFileName))

	var lastErr error
	for _, candidate := range candidates {
		path := strings.TrimSpace(candidate)
		if path == "" {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			lastErr = err
			continue
		}
		if !isLikelyWritable(path) {
			lastErr = fmt.Errorf("path not writable: %s", path)
			continue
		}

		db, err := openAt(path)
		if err != nil {
			lastErr = err
			continue
		}
		return path, db, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no database path candidates available")
	}
	return "", nil, fmt.Errorf("failed to open writable database: %w", lastErr)
}

func openAt(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.Exec("PRAGMA journal_mode=WAL")
	sqlDB.Exec("PRAGMA busy_timeout=5000")
	sqlDB.Exec("PRAGMA synchronous=NORMAL")

	// Write probe avoids opening a readonly DB in sandboxed environments
	probeErr := db.Exec("CREATE TABLE IF NOT EXISTS _farmdb_write_probe (id INTEGER PRIMARY KEY AUTOINCREMENT)").Error
	if probeErr == nil {
		probeErr = db.Exec("INSERT INTO _farmdb_write_probe DEFAULT VALUES").Error
	}
	if probeErr == nil {
		_ = db.Exec("DELETE FROM _farmdb_write_probe WHERE id = (SELECT MAX(id) FROM _farmdb_write_probe)").Error
	}
	if probeErr != nil {
		_ = sqlDB.Close()
		return nil, probeErr
	}
	return db, nil
}

func isLikelyWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Path returns the backing file path
func (s *Service) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetCredential reads a stored secret by key
func (s *Service) GetCredential(key string) (string, error) {
	var cred StoredCredential
	err := s.db.Where("key = ?", key).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return cred.Value, nil
}

// SetCredential upserts a stored secret
func (s *Service) SetCredential(key, value string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var cred StoredCredential
		err := tx.Where("key = ?", key).First(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&StoredCredential{Key: key, Value: value}).Error
		}
		if err != nil {
			return err
		}
		cred.Value = value
		return tx.Save(&cred).Error
	})
}

// DeleteCredential removes a stored secret; missing keys are not an error
func (s *Service) DeleteCredential(key string) error {
	return s.db.Where("key = ?", key).Delete(&StoredCredential{}).Error
}

// GetSetting reads a client preference by key
func (s *Service) GetSetting(key string) (string, error) {
	var setting ClientSetting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// SetSetting upserts a client preference
func (s *Service) SetSetting(key, value string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var setting ClientSetting
		err := tx.Where("key = ?", key).First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&ClientSetting{Key: key, Value: value}).Error
		}
		if err != nil {
			return err
		}
		setting.Value = value
		return tx.Save(&setting).Error
	})
}
