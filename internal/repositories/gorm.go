package repositories

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/samber/oops"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenGORM opens a GORM connection for driver ("sqlite" or "postgres") and dsn.
func OpenGORM(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, oops.Code("UNSUPPORTED_DRIVER").
			With("driver", driver).
			Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGORMLogger(os.Stdout),
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("driver", driver).
			Wrapf(err, "failed to connect to database")
	}
	return db, nil
}

// newGORMLogger logs slow queries and errors to w. A lookup that finds nothing
// is an expected outcome here, so ErrRecordNotFound is not logged.
func newGORMLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
