package customrbl

import "errors"

// Distinct error kinds admin operations reject input with, per spec.md §4.C.
var (
	ErrMalformedCIDR  = errors.New("customrbl: malformed CIDR")
	ErrDuplicateEntry = errors.New("customrbl: duplicate entry")
	ErrNotFound       = errors.New("customrbl: entry not found")
)
