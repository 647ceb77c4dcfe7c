package cache

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore is the PostgreSQL-backed durable tier, grounded on the
// teacher corpus's gorm.Open(postgres.Open(dsn), ...) + AutoMigrate +
// clause.OnConflict upsert idiom.
type GormStore struct {
	db *gorm.DB
}

// DSNConfig are the durable cache connection parameters from spec.md §6.
type DSNConfig struct {
	Host     string
	Port     int
	DB       string
	User     string
	Password string
	PoolMax  int
}

// OpenGormStore connects to Postgres, runs AutoMigrate for the cache
// relation, and returns a ready Store.
func OpenGormStore(cfg DSNConfig) (*GormStore, error) {
	dsn := postgresDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg.PoolMax > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.PoolMax)
	}

	if err := db.AutoMigrate(&cacheRow{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func postgresDSN(cfg DSNConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	return "host=" + cfg.Host +
		" port=" + itoa(port) +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.DB +
		" sslmode=disable"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (g *GormStore) Get(ctx context.Context, ip, rblHost string) (Entry, bool, error) {
	var row cacheRow

	err := g.db.WithContext(ctx).
		Where("ip = ? AND rbl_host = ?", ip, rblHost).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	return entryFromRow(row), true, nil
}

func (g *GormStore) Put(ctx context.Context, e Entry) error {
	row := rowFromEntry(e)

	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}, {Name: "rbl_host"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"listed", "response", "error_kind", "ttl", "cached_at", "expires_at",
		}),
	}).Create(&row).Error
}

func (g *GormStore) DeleteByIP(ctx context.Context, ip string) (int, error) {
	res := g.db.WithContext(ctx).Where("ip = ?", ip).Delete(&cacheRow{})
	return int(res.RowsAffected), res.Error
}

func (g *GormStore) DeleteAll(ctx context.Context) (int, error) {
	res := g.db.WithContext(ctx).Where("1 = 1").Delete(&cacheRow{})
	return int(res.RowsAffected), res.Error
}

func (g *GormStore) CleanExpired(ctx context.Context, now time.Time) (int, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", now.Unix()).Delete(&cacheRow{})
	return int(res.RowsAffected), res.Error
}

func (g *GormStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var rows []cacheRow
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Stats{}, err
	}

	var s Stats
	s.Total = len(rows)
	for _, r := range rows {
		if r.ExpiresAt > now.Unix() {
			s.Valid++
			switch {
			case r.Listed:
				s.Listed++
			case r.ErrorKind != "":
				s.Errors++
			default:
				s.NotListed++
			}
		} else {
			s.Expired++
		}
	}

	return s, nil
}
