package database

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedatabase "github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
	source fs.FS
}

type MigrationConfig struct {
	// MigrationFolderPath overrides the embedded migrations with a folder on disk.
	MigrationFolderPath string
	Version             uint
	Force               int
	AutoRollback        bool // If enabled, will attempt to rollback the database to the previous version if an error occurs
}

// NewMigrationService applies the migrations in embedded unless the config
// names a folder on disk.
func NewMigrationService(logger ectologger.Logger, config *MigrationConfig, embedded fs.FS) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
		source: embedded,
	}
}

func (ms *MigrationService) resolveSource() (fs.FS, error) {
	if ms.config.MigrationFolderPath == "" {
		if ms.source == nil {
			return nil, errors.New("no migration source configured")
		}
		return ms.source, nil
	}

	migrationFolder := ms.config.MigrationFolderPath
	if _, err := os.Stat(migrationFolder); err != nil {
		workingDirectory, _ := os.Getwd()
		migrationFolder = strings.TrimSuffix(workingDirectory, "/") + "/" + migrationFolder
	}
	if _, err := os.Stat(migrationFolder); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}
	return os.DirFS(migrationFolder), nil
}

// Migrate applies the migration set to db using the golang-migrate driver
// that matches its dialect.
func (ms *MigrationService) Migrate(db DB) error {
	driver, name, err := migrationDriver(db)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migration driver")
		return err
	}

	source, err := ms.resolveSource()
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(source, ".")
	if err != nil {
		return errors.Wrap(err, "failed to open migration source")
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, name, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m, source)
}

func migrationDriver(db DB) (migratedatabase.Driver, string, error) {
	switch db.DriverName() {
	case DriverSQLite:
		driver, err := migratesqlite.WithInstance(db.SQLDB(), &migratesqlite.Config{})
		return driver, DriverSQLite, errors.Wrap(err, "sqlite3 migration driver")
	case DriverPostgres:
		driver, err := migratepostgres.WithInstance(db.SQLDB(), &migratepostgres.Config{})
		return driver, DriverPostgres, errors.Wrap(err, "postgres migration driver")
	default:
		return nil, "", fmt.Errorf("migrations are not supported for driver %q", db.DriverName())
	}
}

func (ms *MigrationService) runMigration(m *migrate.Migrate, source fs.FS) error {
	if ms.config.Force != 0 {
		err := m.Force(ms.config.Force)
		if err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	version, _, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}
	if versionErr != nil {
		version = 0
	}

	done := make(chan bool)
	go ms.logProgress(done)

	startTime := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	done <- true

	ms.logger.Infof("Database migrations completed in %v", time.Since(startTime))

	return ms.handleMigrationError(m, migrationErr, version, source)
}

func (ms *MigrationService) logProgress(done chan bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	dots := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			dots = (dots + 1) % 4
			ms.logger.Debugf("Executing database migrations%s", strings.Repeat(".", dots))
		}
	}
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previousVersion uint, source fs.FS) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	if err == migrate.ErrNoChange {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	// usually left behind by a rollback to a build that predates the recorded version
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := getLatestVersion(source)
		if latestErr != nil {
			ms.logger.WithError(latestErr).Error("Failed to get latest migration version")
			return latestErr
		}
		ms.logger.Warnf("No migration found for version %d. Latest version is %d", previousVersion, latest)
		ms.logger.Infof("Forcing database to version %d", latest)
		if err := m.Force(latest); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", latest)
			return err
		}
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return err
	}

	if ms.config.AutoRollback && dirty {
		if previousVersion == 0 && version > 0 {
			previousVersion = version - 1
		}
		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previousVersion)
		if forceErr := m.Force(int(previousVersion)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
			return forceErr
		}
		// still fail so the service does not start on a half applied schema
		return err
	}

	ms.logger.WithError(err).Errorf("Failed to apply migrations. Database version is dirty=%t at version %d", dirty, version)
	return err
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

func getLatestVersion(source fs.FS) (int, error) {
	files, err := fs.ReadDir(source, ".")
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(file.Name())
		if len(matches) > 1 {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return 0, err
			}
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
