// Package catalog adapts the read-only domain/catalog table to the one
// validation rule the domain package itself does not know about: a join's
// amount must equal price(program, 1) exactly (§6 "Amount must equal
// price(program, 1)"), as distinct from an upgrade's amount which follows
// the per-program convention domain/catalog.ValidateUpgradeAmount already
// implements.
package catalog

import (
	"fmt"

	domaincatalog "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// Service exposes the catalog's read surface to the rest of the engine
// plus the two amount-validation rules named in §6.
type Service struct {
	Catalog *domaincatalog.Catalog
}

// New wraps a domain catalog.
func New(cat *domaincatalog.Catalog) *Service {
	return &Service{Catalog: cat}
}

// ValidateJoinAmount implements §6's join validation: amount must equal
// price(program, 1) exactly.
func (s *Service) ValidateJoinAmount(p program.Program, amount float64) error {
	price, err := s.Catalog.Price(p, 1)
	if err != nil {
		return err
	}
	const epsilon = 1e-8
	if diff := amount - price; diff > epsilon || diff < -epsilon {
		return fmt.Errorf("%s join requires %.8f, got %.8f", p, price, amount)
	}
	return nil
}

// ValidateUpgradeAmount delegates to the domain catalog's per-program
// upgrade-amount convention (Open Question #1, SPEC_FULL.md §11.2).
func (s *Service) ValidateUpgradeAmount(p program.Program, targetSlot int, amount float64) error {
	return s.Catalog.ValidateUpgradeAmount(p, targetSlot, amount)
}
