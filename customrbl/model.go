package customrbl

import "time"

// entryRow is the GORM model for a custom-RBL CIDR entry, per spec.md §6.
type entryRow struct {
	ID        uint   `gorm:"primaryKey"`
	Network   string `gorm:"column:network;size:64;not null;uniqueIndex:idx_customrbl_network"`
	Listed    bool   `gorm:"column:listed;not null;default:true"`
	Reason    string `gorm:"column:reason"`
	AddedBy   string `gorm:"column:added_by"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (entryRow) TableName() string { return "custom_rbl_entries" }

// configRow is the single-row (at most one enabled) custom-RBL zone
// configuration the DNS engine reads at startup and on reload.
type configRow struct {
	ID          uint   `gorm:"primaryKey"`
	ZoneName    string `gorm:"column:zone_name;uniqueIndex;not null"`
	Description string `gorm:"column:description"`
	Enabled     bool   `gorm:"column:enabled;not null;default:false"`
	UpdatedAt   time.Time
}

func (configRow) TableName() string { return "custom_rbl_configs" }

// Entry is the store-agnostic representation of a custom-RBL row.
type Entry struct {
	ID        uint
	Network   string
	Listed    bool
	Reason    string
	AddedBy   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ZoneConfig is the store-agnostic representation of the enabled zone.
type ZoneConfig struct {
	ZoneName    string
	Description string
	Enabled     bool
}

func entryFromRow(r entryRow) Entry {
	return Entry{
		ID:        r.ID,
		Network:   r.Network,
		Listed:    r.Listed,
		Reason:    r.Reason,
		AddedBy:   r.AddedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
