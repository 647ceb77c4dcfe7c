package customrbl

import (
	"context"
	"errors"
	"net"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// store is the GORM-backed durable tier for custom-RBL entries and the
// single zone-config row, mirroring cache.GormStore's connection idiom.
type store struct {
	db *gorm.DB
}

func openStore(dsn string) (*store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&entryRow{}, &configRow{}); err != nil {
		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) add(ctx context.Context, network, reason, addedBy string, listed bool) (Entry, error) {
	if _, _, err := net.ParseCIDR(network); err != nil {
		return Entry{}, ErrMalformedCIDR
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&entryRow{}).Where("network = ?", network).Count(&count).Error; err != nil {
		return Entry{}, err
	}
	if count > 0 {
		return Entry{}, ErrDuplicateEntry
	}

	row := entryRow{Network: network, Listed: listed, Reason: reason, AddedBy: addedBy}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		// The Count check above is a courtesy for the common case; the
		// unique index on network is the actual backstop against two
		// concurrent Add calls for the same CIDR both passing it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, err
	}

	return entryFromRow(row), nil
}

func (s *store) removeByID(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&entryRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) removeByCIDR(ctx context.Context, network string) error {
	res := s.db.WithContext(ctx).Where("network = ?", network).Delete(&entryRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) updateReason(ctx context.Context, id uint, reason string) error {
	res := s.db.WithContext(ctx).Model(&entryRow{}).Where("id = ?", id).Update("reason", reason)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) setListed(ctx context.Context, id uint, listed bool) error {
	res := s.db.WithContext(ctx).Model(&entryRow{}).Where("id = ?", id).Update("listed", listed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) list(ctx context.Context, offset, limit int) ([]Entry, int64, error) {
	var rows []entryRow
	var total int64

	if err := s.db.WithContext(ctx).Model(&entryRow{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := s.db.WithContext(ctx).Order("id")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = entryFromRow(r)
	}

	return entries, total, nil
}

func (s *store) all(ctx context.Context) ([]Entry, error) {
	var rows []entryRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = entryFromRow(r)
	}

	return entries, nil
}

func (s *store) zoneConfig(ctx context.Context) (ZoneConfig, bool, error) {
	var row configRow
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ZoneConfig{}, false, nil
		}
		return ZoneConfig{}, false, err
	}

	return ZoneConfig{ZoneName: row.ZoneName, Description: row.Description, Enabled: row.Enabled}, true, nil
}
