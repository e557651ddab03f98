package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testClaim(id, memberID string, amount float64, treatmentDate string) *domain.Claim {
	now := time.Now().UTC()
	return &domain.Claim{
		ClaimID: id,
		Input: domain.ClaimInput{
			MemberID:      memberID,
			MemberName:    "Test Member",
			TreatmentDate: treatmentDate,
			ClaimAmount:   amount,
			Category:      domain.CategoryConsultation,
			Diagnosis:     "viral fever",
			HospitalName:  "Apollo Hospitals",
		},
		Status:    domain.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetClaim", func(t *testing.T) {
		claim := testClaim("CLM_1_aaaa0001", "member-001", 1500, "2025-06-10")
		claim.Input.Documents = domain.ClaimDocuments{
			Prescription: map[string]any{"doctor_name": "Dr. Sharma"},
			Bill:         map[string]any{"total_amount": 1500.0},
		}

		if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claim.ClaimID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		if retrieved.ClaimID != claim.ClaimID {
			t.Errorf("expected ClaimID %s, got %s", claim.ClaimID, retrieved.ClaimID)
		}
		if retrieved.Input.ClaimAmount != claim.Input.ClaimAmount {
			t.Errorf("expected amount %.2f, got %.2f", claim.Input.ClaimAmount, retrieved.Input.ClaimAmount)
		}
		if retrieved.Status != domain.StatusPending {
			t.Errorf("expected status PENDING, got %s", retrieved.Status)
		}
		if retrieved.Version != 1 {
			t.Errorf("expected version 1, got %d", retrieved.Version)
		}
		if retrieved.Input.Documents.Prescription["doctor_name"] != "Dr. Sharma" {
			t.Error("expected prescription payload to round-trip")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, "tenant-002", "CLM_1_aaaa0001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := repo.SaveClaim(ctx, "", testClaim("CLM_1_x", "m", 100, "2025-06-10"))
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetClaim(ctx, "", "CLM_1_aaaa0001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("UpdateClaimDecision", func(t *testing.T) {
		claim := testClaim("CLM_2_bbbb0002", "member-002", 1800, "2025-06-11")
		if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		claim.Status = domain.StatusApproved
		claim.Decision = &domain.DecisionRecord{
			Decision:       domain.StatusApproved,
			ApprovedAmount: 1620,
			Deductions:     domain.Deductions{Copay: 180},
			Confidence:     0.95,
			CreatedAt:      time.Now().UTC(),
		}

		if err := repo.UpdateClaimDecision(ctx, tenantID, claim, 1); err != nil {
			t.Fatalf("UpdateClaimDecision failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claim.ClaimID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.Version != 2 {
			t.Errorf("expected version 2 after decision, got %d", retrieved.Version)
		}
		if retrieved.Decision == nil || retrieved.Decision.ApprovedAmount != 1620 {
			t.Error("expected decision to round-trip")
		}
		if retrieved.Status != domain.StatusApproved {
			t.Errorf("expected status APPROVED, got %s", retrieved.Status)
		}
		if retrieved.ProcessedAt == nil {
			t.Error("expected processed_at to be set")
		}
	})

	t.Run("VersionConflict", func(t *testing.T) {
		claim, err := repo.GetClaim(ctx, tenantID, "CLM_2_bbbb0002")
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		// Stale version: the decision update already bumped it to 2.
		err = repo.UpdateClaimDecision(ctx, tenantID, claim, 1)
		if !errors.Is(err, ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict, got: %v", err)
		}

		err = repo.UpdateClaimStatus(ctx, tenantID, claim.ClaimID, domain.StatusUnderAppeal, 1)
		if !errors.Is(err, ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict, got: %v", err)
		}
	})

	t.Run("UpdateClaimStatus", func(t *testing.T) {
		err := repo.UpdateClaimStatus(ctx, tenantID, "CLM_2_bbbb0002", domain.StatusUnderAppeal, 2)
		if err != nil {
			t.Fatalf("UpdateClaimStatus failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, "CLM_2_bbbb0002")
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.Status != domain.StatusUnderAppeal {
			t.Errorf("expected status UNDER_APPEAL, got %s", retrieved.Status)
		}
		if retrieved.Version != 3 {
			t.Errorf("expected version 3, got %d", retrieved.Version)
		}
	})

	t.Run("UpdateMissingClaim", func(t *testing.T) {
		err := repo.UpdateClaimStatus(ctx, tenantID, "nonexistent", domain.StatusRejected, 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("ListClaims", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			claim := testClaim(fmt.Sprintf("CLM_list_%d", i), "member-list", 600, "2025-06-12")
			claim.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
			if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
				t.Fatalf("SaveClaim failed: %v", err)
			}
		}

		claims, total, err := repo.ListClaims(ctx, tenantID, "member-list", 0, 3)
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
		if len(claims) != 3 {
			t.Errorf("expected page of 3, got %d", len(claims))
		}
		// Newest first
		if len(claims) > 1 && claims[0].CreatedAt.Before(claims[1].CreatedAt) {
			t.Error("expected claims ordered newest first")
		}

		// Second page
		claims, _, err = repo.ListClaims(ctx, tenantID, "member-list", 3, 3)
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if len(claims) != 2 {
			t.Errorf("expected 2 claims on second page, got %d", len(claims))
		}
	})

	t.Run("ClaimHistory", func(t *testing.T) {
		member := "member-history"
		for i := 0; i < 3; i++ {
			claim := testClaim(fmt.Sprintf("CLM_hist_%d", i), member, 1000, "2025-06-15")
			if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
				t.Fatalf("SaveClaim failed: %v", err)
			}
		}

		sameDay, err := repo.CountClaimsOnDate(ctx, tenantID, member, "2025-06-15")
		if err != nil {
			t.Fatalf("CountClaimsOnDate failed: %v", err)
		}
		if sameDay != 3 {
			t.Errorf("expected 3 same-day claims, got %d", sameDay)
		}

		recent, err := repo.CountClaimsSince(ctx, tenantID, member, time.Now().UTC().Add(-time.Hour))
		if err != nil {
			t.Fatalf("CountClaimsSince failed: %v", err)
		}
		if recent != 3 {
			t.Errorf("expected 3 recent claims, got %d", recent)
		}

		dupes, err := repo.CountDuplicateClaims(ctx, tenantID, member, 1000, "2025-06-15")
		if err != nil {
			t.Fatalf("CountDuplicateClaims failed: %v", err)
		}
		if dupes != 3 {
			t.Errorf("expected 3 duplicate matches, got %d", dupes)
		}

		dupes, err = repo.CountDuplicateClaims(ctx, tenantID, member, 999, "2025-06-15")
		if err != nil {
			t.Fatalf("CountDuplicateClaims failed: %v", err)
		}
		if dupes != 0 {
			t.Errorf("expected 0 duplicate matches for different amount, got %d", dupes)
		}
	})

	t.Run("SumApprovedYTD", func(t *testing.T) {
		member := "member-ytd"
		year := time.Now().UTC().Year()

		approved := testClaim("CLM_ytd_1", member, 2000, "2025-06-16")
		if err := repo.SaveClaim(ctx, tenantID, approved); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}
		approved.Status = domain.StatusApproved
		approved.Decision = &domain.DecisionRecord{Decision: domain.StatusApproved, ApprovedAmount: 1800}
		if err := repo.UpdateClaimDecision(ctx, tenantID, approved, 1); err != nil {
			t.Fatalf("UpdateClaimDecision failed: %v", err)
		}

		rejected := testClaim("CLM_ytd_2", member, 3000, "2025-06-17")
		if err := repo.SaveClaim(ctx, tenantID, rejected); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}
		rejected.Status = domain.StatusRejected
		rejected.Decision = &domain.DecisionRecord{Decision: domain.StatusRejected, ApprovedAmount: 0}
		if err := repo.UpdateClaimDecision(ctx, tenantID, rejected, 1); err != nil {
			t.Fatalf("UpdateClaimDecision failed: %v", err)
		}

		total, err := repo.SumApprovedYTD(ctx, tenantID, member, year)
		if err != nil {
			t.Fatalf("SumApprovedYTD failed: %v", err)
		}
		if total != 1800 {
			t.Errorf("expected YTD total 1800, got %.2f", total)
		}
	})

	t.Run("SaveAndGetAppeal", func(t *testing.T) {
		appeal := &domain.Appeal{
			AppealID:            "APL_1_cccc0003",
			ClaimID:             "CLM_2_bbbb0002",
			Reason:              "Disagree with partial approval",
			AdditionalDocuments: []string{"second_opinion.pdf"},
			Status:              domain.AppealStatusUnderReview,
			CreatedAt:           time.Now().UTC(),
		}

		if err := repo.SaveAppeal(ctx, tenantID, appeal); err != nil {
			t.Fatalf("SaveAppeal failed: %v", err)
		}

		retrieved, err := repo.GetAppeal(ctx, tenantID, appeal.AppealID)
		if err != nil {
			t.Fatalf("GetAppeal failed: %v", err)
		}
		if retrieved.ClaimID != appeal.ClaimID {
			t.Errorf("expected ClaimID %s, got %s", appeal.ClaimID, retrieved.ClaimID)
		}
		if retrieved.Status != domain.AppealStatusUnderReview {
			t.Errorf("expected status UNDER_REVIEW, got %s", retrieved.Status)
		}
		if len(retrieved.AdditionalDocuments) != 1 {
			t.Errorf("expected 1 additional document, got %d", len(retrieved.AdditionalDocuments))
		}
	})

	t.Run("PolicyTerms", func(t *testing.T) {
		terms, err := repo.GetPolicyTerms(ctx, tenantID)
		if err != nil {
			t.Fatalf("GetPolicyTerms failed: %v", err)
		}
		if terms != nil {
			t.Fatal("expected nil terms before seeding")
		}

		saved := &domain.PolicyTerms{
			Version:       "2025-01",
			AnnualLimit:   50000,
			PerClaimLimit: 5000,
			SubLimits:     map[string]float64{domain.CategoryConsultation: 2000},
		}
		if err := repo.SavePolicyTerms(ctx, tenantID, saved); err != nil {
			t.Fatalf("SavePolicyTerms failed: %v", err)
		}

		terms, err = repo.GetPolicyTerms(ctx, tenantID)
		if err != nil {
			t.Fatalf("GetPolicyTerms failed: %v", err)
		}
		if terms == nil || terms.AnnualLimit != 50000 {
			t.Error("expected terms to round-trip")
		}

		// Upsert replaces
		saved.Version = "2025-02"
		saved.PerClaimLimit = 6000
		if err := repo.SavePolicyTerms(ctx, tenantID, saved); err != nil {
			t.Fatalf("SavePolicyTerms upsert failed: %v", err)
		}
		terms, _ = repo.GetPolicyTerms(ctx, tenantID)
		if terms.PerClaimLimit != 6000 {
			t.Errorf("expected upserted per-claim limit 6000, got %.0f", terms.PerClaimLimit)
		}
	})

	t.Run("FraudRules", func(t *testing.T) {
		rule := &domain.FraudRuleConfig{
			ID:         "near-limit",
			Name:       "Near Per-Claim Limit",
			Version:    "v1",
			Expression: "amount > per_claim_limit * 0.95",
			Flag:       domain.FlagNearPerClaimLimit,
			Weight:     0.10,
			Enabled:    true,
		}

		if err := repo.SaveFraudRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveFraudRule failed: %v", err)
		}

		retrieved, err := repo.GetFraudRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetFraudRule failed: %v", err)
		}
		if retrieved.Flag != domain.FlagNearPerClaimLimit {
			t.Errorf("expected flag %s, got %s", domain.FlagNearPerClaimLimit, retrieved.Flag)
		}

		rules, err := repo.ListFraudRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListFraudRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, tenantID, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetAppeal(ctx, tenantID, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetFraudRule(ctx, tenantID, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
