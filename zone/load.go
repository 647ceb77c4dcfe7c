package zone

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// rblFile mirrors the on-disk shape of the RBL servers file.
type rblFile struct {
	RBLs []RBL `toml:"rbl"`
}

// aggregateFile mirrors the on-disk shape of the aggregate zones file.
type aggregateFile struct {
	Zones []aggregateFileZone `toml:"zone"`
}

type aggregateFileZone struct {
	Domain      string   `toml:"domain"`
	Description string   `toml:"description"`
	RBLs        []string `toml:"rbls"`
}

// LoadRBLs decodes the RBL servers file named in config.
func LoadRBLs(path string) ([]RBL, error) {
	var f rblFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("zone: load rbls: %w", err)
	}
	return f.RBLs, nil
}

// LoadAggregates decodes the optional aggregate zones file. "*" RBL
// lists are expanded against all against the full RBL set.
func LoadAggregates(path string, all []RBL) ([]AggregateZone, error) {
	if path == "" {
		return nil, nil
	}

	var f aggregateFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("zone: load aggregates: %w", err)
	}

	zones := make([]AggregateZone, 0, len(f.Zones))
	for _, z := range f.Zones {
		zones = append(zones, AggregateZone{
			Domain:      z.Domain,
			Description: z.Description,
			RBLs:        ExpandWildcard(z.RBLs, all),
		})
	}

	return zones, nil
}
