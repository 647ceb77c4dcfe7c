package cache

import "time"

// cacheRow is the GORM model for the durable cache tier (L2), mapping
// 1:1 onto the persisted relation spec.md §6 describes: key (ip,
// rbl_host) unique, value columns listed/response/error/ttl/cached_at/
// expires_at, with an index on expires_at for the maintenance sweep.
type cacheRow struct {
	IP        string `gorm:"column:ip;size:45;uniqueIndex:idx_cache_ip_rbl;not null"`
	RBLHost   string `gorm:"column:rbl_host;size:255;uniqueIndex:idx_cache_ip_rbl;not null"`
	Listed    bool   `gorm:"column:listed;not null"`
	Response  string `gorm:"column:response"`
	ErrorKind string `gorm:"column:error_kind"`
	TTL       int    `gorm:"column:ttl;not null"`
	CachedAt  int64  `gorm:"column:cached_at;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;index:idx_cache_expires_at"`
}

func (cacheRow) TableName() string { return "cache_entries" }

func rowFromEntry(e Entry) cacheRow {
	return cacheRow{
		IP:        e.IP,
		RBLHost:   e.RBLHost,
		Listed:    e.Listed == Listed,
		Response:  e.Response,
		ErrorKind: string(e.ErrorKind),
		TTL:       int(e.TTL / time.Second),
		CachedAt:  e.CachedAt.Unix(),
		ExpiresAt: e.ExpiresAt.Unix(),
	}
}

func entryFromRow(r cacheRow) Entry {
	listed := NotListed
	if r.Listed {
		listed = Listed
	} else if r.ErrorKind != "" {
		listed = Error
	}

	return Entry{
		IP:        r.IP,
		RBLHost:   r.RBLHost,
		Listed:    listed,
		Response:  r.Response,
		ErrorKind: ErrorKind(r.ErrorKind),
		TTL:       time.Duration(r.TTL) * time.Second,
		CachedAt:  time.Unix(r.CachedAt, 0).UTC(),
		ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
	}
}
