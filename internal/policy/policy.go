// Package policy resolves the policy terms a claim is adjudicated against.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// Service resolves per-tenant policy terms with a cache in front of the
// repository. Tenant-specific terms win; the global tenant holds the
// seeded default.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService creates a policy terms service. Cache may be nil.
func NewService(repo domain.Repository, cache domain.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: 5 * time.Minute,
		logger:   logger,
	}
}

// Terms returns the policy terms for a tenant. Resolution order: cache,
// tenant row, global row. A miss everywhere is ErrPolicyLookup.
func (s *Service) Terms(ctx context.Context, tenantID string) (*domain.PolicyTerms, error) {
	if s.cache != nil {
		terms, err := s.cache.GetPolicyTerms(ctx, tenantID)
		if err != nil {
			s.logger.Warn("policy cache read failed", "tenant", tenantID, "error", err)
		} else if terms != nil {
			return terms, nil
		}
	}

	terms, err := s.repo.GetPolicyTerms(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading policy terms: %w", err)
	}
	if terms == nil && tenantID != domain.GlobalTenantID {
		terms, err = s.repo.GetPolicyTerms(ctx, domain.GlobalTenantID)
		if err != nil {
			return nil, fmt.Errorf("loading global policy terms: %w", err)
		}
	}
	if terms == nil {
		return nil, domain.ErrPolicyLookup
	}

	if s.cache != nil {
		if err := s.cache.SetPolicyTerms(ctx, tenantID, terms, s.cacheTTL); err != nil {
			s.logger.Warn("policy cache write failed", "tenant", tenantID, "error", err)
		}
	}
	return terms, nil
}

// Save stores terms for a tenant and invalidates the cached copy.
func (s *Service) Save(ctx context.Context, tenantID string, terms *domain.PolicyTerms) error {
	if err := s.repo.SavePolicyTerms(ctx, tenantID, terms); err != nil {
		return fmt.Errorf("saving policy terms: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, tenantID, "policy:terms"); err != nil {
			s.logger.Warn("policy cache invalidation failed", "tenant", tenantID, "error", err)
		}
	}
	return nil
}

// Seed installs the default terms under the global tenant if none exist.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.repo.GetPolicyTerms(ctx, domain.GlobalTenantID)
	if err != nil {
		return fmt.Errorf("checking seeded policy terms: %w", err)
	}
	if existing != nil {
		return nil
	}
	s.logger.Info("seeding default policy terms", "version", DefaultTerms().Version)
	return s.repo.SavePolicyTerms(ctx, domain.GlobalTenantID, DefaultTerms())
}

// IsNetworkHospital reports whether the hospital is in the network list.
// Matching is case-insensitive substring in either direction, so
// "Apollo Hospitals Chennai" matches "Apollo Hospitals".
func IsNetworkHospital(terms *domain.PolicyTerms, hospitalName string) bool {
	if hospitalName == "" {
		return false
	}
	name := strings.ToLower(hospitalName)
	for _, h := range terms.NetworkHospitals {
		network := strings.ToLower(h)
		if strings.Contains(name, network) || strings.Contains(network, name) {
			return true
		}
	}
	return false
}
