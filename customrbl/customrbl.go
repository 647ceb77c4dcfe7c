// Package customrbl implements the locally administered, CIDR-matched
// block-list described in spec.md §4.C: a durable store of networks
// plus an in-memory longest-prefix index rebuilt on every mutation.
package customrbl

import (
	"context"
	"net"

	zlog "github.com/semihalev/zlog/v2"
)

// CheckResult is the outcome of a custom-RBL containment check.
type CheckResult struct {
	Listed  bool
	Network string
	Reason  string
}

// CustomRBL is the durable+indexed custom-RBL engine: admin writes go
// through it and rebuild the in-memory index; the DNS path only ever
// calls Check.
type CustomRBL struct {
	store  *store
	ranger *ranger
}

// NewEmpty returns a CustomRBL with no durable store and an empty
// index, so Check never matches. It is used when no custom-RBL zone is
// configured and in router tests; the admin methods need a store.
func NewEmpty() *CustomRBL {
	return &CustomRBL{ranger: newRanger()}
}

// Open connects to the durable store, loads every row, and builds the
// initial longest-prefix index.
func Open(ctx context.Context, dsn string) (*CustomRBL, error) {
	s, err := openStore(dsn)
	if err != nil {
		return nil, err
	}

	c := &CustomRBL{store: s, ranger: newRanger()}
	if err := c.reload(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *CustomRBL) reload(ctx context.Context) error {
	entries, err := c.store.all(ctx)
	if err != nil {
		return err
	}

	c.ranger.rebuild(entries)
	return nil
}

// ZoneConfig returns the single enabled custom-RBL zone, if any.
func (c *CustomRBL) ZoneConfig(ctx context.Context) (ZoneConfig, bool, error) {
	return c.store.zoneConfig(ctx)
}

// Check performs the longest-prefix containment lookup the DNS path
// uses. Only listed=true rows are ever considered a match: listed=false
// rows exist in the store but are inert here.
func (c *CustomRBL) Check(ip net.IP) CheckResult {
	e, found := c.ranger.current().lookup(ip)
	if !found {
		return CheckResult{Listed: false}
	}

	reason := e.Reason
	if reason == "" {
		reason = "Listed in custom blocklist"
	}

	return CheckResult{Listed: true, Network: e.Network, Reason: reason}
}

// Add inserts a new entry by CIDR and rebuilds the index.
func (c *CustomRBL) Add(ctx context.Context, network, reason, addedBy string, listed bool) (Entry, error) {
	e, err := c.store.add(ctx, network, reason, addedBy, listed)
	if err != nil {
		return Entry{}, err
	}

	if err := c.reload(ctx); err != nil {
		zlog.Warn("customrbl index reload after add failed", "error", err.Error())
	}

	return e, nil
}

// RemoveByID deletes an entry by id and rebuilds the index.
func (c *CustomRBL) RemoveByID(ctx context.Context, id uint) error {
	if err := c.store.removeByID(ctx, id); err != nil {
		return err
	}

	if err := c.reload(ctx); err != nil {
		zlog.Warn("customrbl index reload after removeByID failed", "error", err.Error())
	}

	return nil
}

// RemoveByCIDR deletes an entry by network and rebuilds the index.
func (c *CustomRBL) RemoveByCIDR(ctx context.Context, network string) error {
	if err := c.store.removeByCIDR(ctx, network); err != nil {
		return err
	}

	if err := c.reload(ctx); err != nil {
		zlog.Warn("customrbl index reload after removeByCIDR failed", "error", err.Error())
	}

	return nil
}

// UpdateReason changes an entry's administrator-supplied reason and
// rebuilds the index, since Check returns the reason held there.
func (c *CustomRBL) UpdateReason(ctx context.Context, id uint, reason string) error {
	if err := c.store.updateReason(ctx, id, reason); err != nil {
		return err
	}

	if err := c.reload(ctx); err != nil {
		zlog.Warn("customrbl index reload after updateReason failed", "error", err.Error())
	}

	return nil
}

// SetListed flips an entry's listed flag and rebuilds the index, since
// Check only ever considers listed=true rows.
func (c *CustomRBL) SetListed(ctx context.Context, id uint, listed bool) error {
	if err := c.store.setListed(ctx, id, listed); err != nil {
		return err
	}

	if err := c.reload(ctx); err != nil {
		zlog.Warn("customrbl index reload after setListed failed", "error", err.Error())
	}

	return nil
}

// List returns a page of entries plus the total row count.
func (c *CustomRBL) List(ctx context.Context, offset, limit int) ([]Entry, int64, error) {
	return c.store.list(ctx, offset, limit)
}
