package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wolfeidau/traceledger/internal/auth"
	"gopkg.in/yaml.v3"
)

// Seed is the declarative initial state applied to an empty audit log.
type Seed struct {
	Organizations []OrganizationSeed `yaml:"organizations" json:"organizations"`
}

type OrganizationSeed struct {
	Code    string       `yaml:"code" json:"code"`
	Name    string       `yaml:"name" json:"name"`
	Wallet  string       `yaml:"wallet" json:"wallet"`
	Ledgers []LedgerSeed `yaml:"ledgers" json:"ledgers"`
}

type LedgerSeed struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Grants      []GrantSeed   `yaml:"grants" json:"grants"`
	Products    []ProductSeed `yaml:"products" json:"products"`
}

type GrantSeed struct {
	Identity   string `yaml:"identity" json:"identity"`
	Capability string `yaml:"capability" json:"capability"`
}

type ProductSeed struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Batches     []BatchSeed `yaml:"batches" json:"batches"`
}

type BatchSeed struct {
	ID        string `yaml:"id" json:"id"`
	Processes string `yaml:"processes" json:"processes"`
	Status    string `yaml:"status" json:"status"`
}

// LoadSeed reads a seed file. Files ending in .json are parsed as JSON,
// anything else as YAML.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse JSON seed file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse YAML seed file: %w", err)
		}
	}

	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate catches mistakes that would otherwise fail half way through
// applying the seed.
func (s *Seed) Validate() error {
	codes := make(map[string]bool)
	for i, org := range s.Organizations {
		if org.Code == "" {
			return fmt.Errorf("organizations[%d]: code is required", i)
		}
		if codes[org.Code] {
			return fmt.Errorf("organizations[%d]: duplicate code %q", i, org.Code)
		}
		codes[org.Code] = true

		names := make(map[string]bool)
		for j, l := range org.Ledgers {
			if names[l.Name] {
				return fmt.Errorf("organization %s ledgers[%d]: duplicate name %q", org.Code, j, l.Name)
			}
			names[l.Name] = true

			for k, g := range l.Grants {
				if _, err := auth.ParseCapability(g.Capability); err != nil {
					return fmt.Errorf("organization %s ledger %q grants[%d]: %w", org.Code, l.Name, k, err)
				}
			}
		}
	}
	return nil
}
