// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// GlobalTenantID is the shared tenant for configuration visible to every
// tenant (seeded policy terms, built-in fraud rules).
const GlobalTenantID = "*"

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, tenantID string, claim *Claim) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*Claim, error)
	ListClaims(ctx context.Context, tenantID string, memberID string, skip, limit int) ([]*Claim, int, error)

	// UpdateClaimDecision writes the decision, status and processed
	// timestamp, guarded by an optimistic version check. A stale
	// expectedVersion returns ErrVersionConflict (repository package).
	UpdateClaimDecision(ctx context.Context, tenantID string, claim *Claim, expectedVersion int64) error

	// UpdateClaimStatus transitions only the lifecycle status, with the
	// same version guard.
	UpdateClaimStatus(ctx context.Context, tenantID string, claimID string, status string, expectedVersion int64) error

	// Member claim history (fraud signals and annual limits)
	CountClaimsOnDate(ctx context.Context, tenantID string, memberID string, treatmentDate string) (int64, error)
	CountClaimsSince(ctx context.Context, tenantID string, memberID string, since time.Time) (int64, error)
	SumApprovedYTD(ctx context.Context, tenantID string, memberID string, year int) (float64, error)
	CountDuplicateClaims(ctx context.Context, tenantID string, memberID string, amount float64, treatmentDate string) (int64, error)

	// Appeal operations
	SaveAppeal(ctx context.Context, tenantID string, appeal *Appeal) error
	GetAppeal(ctx context.Context, tenantID string, appealID string) (*Appeal, error)
	ResolveAppeal(ctx context.Context, tenantID string, appealID string, resolution string) error

	// Policy terms
	SavePolicyTerms(ctx context.Context, tenantID string, terms *PolicyTerms) error
	GetPolicyTerms(ctx context.Context, tenantID string) (*PolicyTerms, error)

	// Fraud rule configuration
	SaveFraudRule(ctx context.Context, tenantID string, rule *FraudRuleConfig) error
	GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*FraudRuleConfig, error)
	ListFraudRules(ctx context.Context, tenantID string) ([]*FraudRuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
