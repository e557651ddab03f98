// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict indicates an optimistic version check failed:
	// the claim was modified since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a new claim with tenant isolation.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, claim *domain.Claim) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	documents, _ := json.Marshal(claim.Input.Documents)
	extracted, decision := marshalClaimState(claim)

	cashless := 0
	if claim.Input.CashlessRequest {
		cashless = 1
	}

	var approved float64
	if claim.Decision != nil {
		approved = claim.Decision.ApprovedAmount
	}

	query := `
		INSERT INTO claims (
			claim_id, tenant_id, member_id, member_name, member_join_date,
			treatment_date, claim_amount, category, diagnosis, hospital_name,
			cashless_request, documents, extracted, status, decision,
			approved_amount, version, created_at, updated_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ClaimID, tenantID,
		claim.Input.MemberID, claim.Input.MemberName, claim.Input.MemberJoinDate,
		claim.Input.TreatmentDate, claim.Input.ClaimAmount,
		claim.Input.Category, claim.Input.Diagnosis, claim.Input.HospitalName,
		cashless, string(documents), extracted, claim.Status, decision,
		approved, claim.Version,
		claim.CreatedAt, claim.UpdatedAt, claim.ProcessedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID with tenant isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := claimSelectColumns + ` FROM claims WHERE tenant_id = ? AND claim_id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

// ListClaims retrieves claims newest-first with tenant isolation.
// memberID filters when non-empty. Returns the page and the total count.
func (r *SQLRepository) ListClaims(ctx context.Context, tenantID string, memberID string, skip, limit int) ([]*domain.Claim, int, error) {
	if tenantID == "" {
		return nil, 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	where := "WHERE tenant_id = ?"
	args := []any{tenantID}
	if memberID != "" {
		where += " AND member_id = ?"
		args = append(args, memberID)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM claims " + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := claimSelectColumns + " FROM claims " + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, claim)
	}

	return claims, total, rows.Err()
}

// UpdateClaimDecision writes the decision outcome with an optimistic
// version check. A stale expectedVersion returns ErrVersionConflict.
func (r *SQLRepository) UpdateClaimDecision(ctx context.Context, tenantID string, claim *domain.Claim, expectedVersion int64) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if claim.Decision == nil {
		return fmt.Errorf("%w: decision is required", ErrInvalidInput)
	}

	extracted, decision := marshalClaimState(claim)
	now := time.Now().UTC()

	query := `
		UPDATE claims
		SET status = ?, decision = ?, extracted = ?, category = ?,
		    approved_amount = ?, version = version + 1,
		    updated_at = ?, processed_at = ?
		WHERE tenant_id = ? AND claim_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.Status, decision, extracted, claim.Input.Category,
		claim.Decision.ApprovedAmount,
		now, now,
		tenantID, claim.ClaimID, expectedVersion,
	)
	if err != nil {
		return err
	}

	return r.checkVersionedUpdate(ctx, result, tenantID, claim.ClaimID)
}

// UpdateClaimStatus transitions the claim lifecycle status with the same
// optimistic version check.
func (r *SQLRepository) UpdateClaimStatus(ctx context.Context, tenantID string, claimID string, status string, expectedVersion int64) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE claims
		SET status = ?, version = version + 1, updated_at = ?
		WHERE tenant_id = ? AND claim_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		status, time.Now().UTC(), tenantID, claimID, expectedVersion,
	)
	if err != nil {
		return err
	}

	return r.checkVersionedUpdate(ctx, result, tenantID, claimID)
}

// checkVersionedUpdate distinguishes a missing claim from a stale version
// when a guarded update touched no rows.
func (r *SQLRepository) checkVersionedUpdate(ctx context.Context, result sql.Result, tenantID, claimID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists int
	query := `SELECT COUNT(*) FROM claims WHERE tenant_id = ? AND claim_id = ?`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// CountClaimsOnDate counts a member's claims for a treatment date.
// Includes the claim being adjudicated once it is saved.
func (r *SQLRepository) CountClaimsOnDate(ctx context.Context, tenantID string, memberID string, treatmentDate string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM claims
		WHERE tenant_id = ? AND member_id = ? AND treatment_date = ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, memberID, treatmentDate).Scan(&count)
	return count, err
}

// CountClaimsSince counts a member's claims created at or after a point in time.
func (r *SQLRepository) CountClaimsSince(ctx context.Context, tenantID string, memberID string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM claims
		WHERE tenant_id = ? AND member_id = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, memberID, since).Scan(&count)
	return count, err
}

// SumApprovedYTD sums approved amounts for a member's APPROVED claims
// created in the given calendar year.
func (r *SQLRepository) SumApprovedYTD(ctx context.Context, tenantID string, memberID string, year int) (float64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	query := `
		SELECT COALESCE(SUM(approved_amount), 0) FROM claims
		WHERE tenant_id = ? AND member_id = ? AND status = ?
		  AND created_at >= ? AND created_at < ?
	`

	var total float64
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		tenantID, memberID, domain.StatusApproved, yearStart, yearEnd,
	).Scan(&total)
	return total, err
}

// CountDuplicateClaims counts claims matching member + amount + treatment
// date. Includes the claim being adjudicated once it is saved.
func (r *SQLRepository) CountDuplicateClaims(ctx context.Context, tenantID string, memberID string, amount float64, treatmentDate string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM claims
		WHERE tenant_id = ? AND member_id = ? AND claim_amount = ? AND treatment_date = ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, memberID, amount, treatmentDate).Scan(&count)
	return count, err
}

// SaveAppeal stores an appeal with tenant isolation.
func (r *SQLRepository) SaveAppeal(ctx context.Context, tenantID string, appeal *domain.Appeal) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	docs, _ := json.Marshal(appeal.AdditionalDocuments)

	query := `
		INSERT INTO appeals (
			appeal_id, claim_id, tenant_id, reason, additional_documents,
			status, resolution, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		appeal.AppealID, appeal.ClaimID, tenantID,
		appeal.Reason, string(docs),
		appeal.Status, appeal.Resolution,
		appeal.CreatedAt, appeal.ResolvedAt,
	)
	return err
}

// ResolveAppeal marks an appeal as resolved with the given resolution text.
func (r *SQLRepository) ResolveAppeal(ctx context.Context, tenantID string, appealID string, resolution string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE appeals
		SET status = ?, resolution = ?, resolved_at = ?
		WHERE tenant_id = ? AND appeal_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		domain.AppealStatusResolved, resolution, time.Now().UTC(),
		tenantID, appealID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAppeal retrieves an appeal by ID with tenant isolation.
func (r *SQLRepository) GetAppeal(ctx context.Context, tenantID string, appealID string) (*domain.Appeal, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT appeal_id, claim_id, tenant_id, reason, additional_documents,
		       status, resolution, created_at, resolved_at
		FROM appeals
		WHERE tenant_id = ? AND appeal_id = ?
	`

	var appeal domain.Appeal
	var docs string
	var resolution sql.NullString
	var resolvedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appealID).Scan(
		&appeal.AppealID, &appeal.ClaimID, &appeal.TenantID,
		&appeal.Reason, &docs,
		&appeal.Status, &resolution,
		&appeal.CreatedAt, &resolvedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	appeal.Resolution = resolution.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		appeal.ResolvedAt = &t
	}
	if docs != "" {
		json.Unmarshal([]byte(docs), &appeal.AdditionalDocuments)
	}

	return &appeal, nil
}

// SavePolicyTerms upserts the tenant's policy terms document.
func (r *SQLRepository) SavePolicyTerms(ctx context.Context, tenantID string, terms *domain.PolicyTerms) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("failed to encode policy terms: %w", err)
	}

	query := `
		INSERT INTO policy_terms (tenant_id, version, terms, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			version = excluded.version,
			terms = excluded.terms,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tenantID, terms.Version, string(payload), time.Now().UTC(),
	)
	return err
}

// GetPolicyTerms retrieves the tenant's policy terms.
// Returns nil, nil when the tenant has no terms of its own.
func (r *SQLRepository) GetPolicyTerms(ctx context.Context, tenantID string) (*domain.PolicyTerms, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT terms FROM policy_terms WHERE tenant_id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var terms domain.PolicyTerms
	if err := json.Unmarshal([]byte(payload), &terms); err != nil {
		return nil, fmt.Errorf("failed to parse policy terms: %w", err)
	}
	return &terms, nil
}

// SaveFraudRule stores a fraud rule configuration with tenant isolation.
func (r *SQLRepository) SaveFraudRule(ctx context.Context, tenantID string, rule *domain.FraudRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO fraud_rules (
			id, tenant_id, name, description, version, expression, flag, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			flag = excluded.flag,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Flag, rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetFraudRule retrieves a fraud rule configuration with tenant isolation.
func (r *SQLRepository) GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*domain.FraudRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, flag, weight, enabled
		FROM fraud_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.FraudRuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Flag, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListFraudRules retrieves all active fraud rules for a tenant.
func (r *SQLRepository) ListFraudRules(ctx context.Context, tenantID string) ([]*domain.FraudRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, flag, weight, enabled
		FROM fraud_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FraudRuleConfig
	for rows.Next() {
		var cfg domain.FraudRuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Flag, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const claimSelectColumns = `
	SELECT claim_id, tenant_id, member_id, member_name, member_join_date,
	       treatment_date, claim_amount, category, diagnosis, hospital_name,
	       cashless_request, documents, extracted, status, decision,
	       version, created_at, updated_at, processed_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var claim domain.Claim
	var joinDate, category, diagnosis, hospital sql.NullString
	var documents, extracted, decision sql.NullString
	var cashless int
	var processedAt sql.NullTime

	err := row.Scan(
		&claim.ClaimID, &claim.TenantID,
		&claim.Input.MemberID, &claim.Input.MemberName, &joinDate,
		&claim.Input.TreatmentDate, &claim.Input.ClaimAmount,
		&category, &diagnosis, &hospital,
		&cashless, &documents, &extracted, &claim.Status, &decision,
		&claim.Version, &claim.CreatedAt, &claim.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.Input.MemberJoinDate = joinDate.String
	claim.Input.Category = category.String
	claim.Input.Diagnosis = diagnosis.String
	claim.Input.HospitalName = hospital.String
	claim.Input.CashlessRequest = cashless == 1

	if documents.String != "" {
		json.Unmarshal([]byte(documents.String), &claim.Input.Documents)
	}
	if extracted.String != "" {
		var data domain.ExtractedDocumentData
		if err := json.Unmarshal([]byte(extracted.String), &data); err == nil {
			claim.Extracted = &data
		}
	}
	if decision.String != "" {
		var rec domain.DecisionRecord
		if err := json.Unmarshal([]byte(decision.String), &rec); err == nil {
			claim.Decision = &rec
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		claim.ProcessedAt = &t
	}

	return &claim, nil
}

// marshalClaimState encodes the extraction and decision snapshots for
// storage. Missing snapshots are stored as empty strings.
func marshalClaimState(claim *domain.Claim) (extracted string, decision string) {
	if claim.Extracted != nil {
		b, _ := json.Marshal(claim.Extracted)
		extracted = string(b)
	}
	if claim.Decision != nil {
		b, _ := json.Marshal(claim.Decision)
		decision = string(b)
	}
	return extracted, decision
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
