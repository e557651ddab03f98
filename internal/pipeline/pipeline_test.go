package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/bus"
	"github.com/opensource-health/heron/internal/cache"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/extract"
	"github.com/opensource-health/heron/internal/fraud"
	"github.com/opensource-health/heron/internal/history"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/repository"
)

const testTenant = "tenant-001"

func newTestAdjudicator(t *testing.T) (*Adjudicator, domain.Repository, *bus.ChannelBus) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	policySvc := policy.NewService(repo, cache.NewLRUCache(100), nil)
	if err := policySvc.Seed(context.Background()); err != nil {
		t.Fatalf("failed to seed policy terms: %v", err)
	}

	engine, err := fraud.NewEngine(5, 0.35, 3)
	if err != nil {
		t.Fatalf("failed to create fraud engine: %v", err)
	}
	if err := engine.LoadRules(fraud.BuiltinRules()); err != nil {
		t.Fatalf("failed to load fraud rules: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	adjudicator := New(
		repo,
		policySvc,
		extract.NewDocumentExtractor(nil),
		engine,
		history.NewService(repo, nil),
		eventBus,
		domain.DefaultConfig().Adjudication,
		nil,
	)
	return adjudicator, repo, eventBus
}

// recentWeekday returns the most recent Mon-Fri date as YYYY-MM-DD, to
// keep routine test claims off the weekend fraud signal.
func recentWeekday() string {
	d := time.Now().UTC()
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d.Format("2006-01-02")
}

func cleanClaim(amount float64) *domain.ClaimInput {
	date := recentWeekday()
	return &domain.ClaimInput{
		MemberID:       "M001",
		MemberName:     "Asha Rao",
		MemberJoinDate: time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02"),
		TreatmentDate:  date,
		ClaimAmount:    amount,
		Diagnosis:      "viral fever",
		HospitalName:   "Apollo Hospitals",
		Documents: domain.ClaimDocuments{
			Prescription: map[string]any{
				"doctor_name":          "Dr. Mehta",
				"doctor_reg":           "MH/12345/2015",
				"diagnosis":            "viral fever",
				"medicines_prescribed": []any{"Paracetamol 500mg", "Azithromycin 250mg"},
				"prescription_date":    date,
			},
			Bill: map[string]any{
				"hospital_name":    "Apollo Hospitals",
				"bill_date":        date,
				"consultation_fee": 820.0,
				"medicines":        680.0,
				"total_amount":     amount,
			},
		},
	}
}

func TestSubmit(t *testing.T) {
	adjudicator, repo, _ := newTestAdjudicator(t)
	ctx := context.Background()

	t.Run("CleanApproval", func(t *testing.T) {
		claim, err := adjudicator.Submit(ctx, testTenant, cleanClaim(1500))
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if claim.Status != domain.StatusApproved {
			t.Fatalf("expected APPROVED, got %s (%+v)", claim.Status, claim.Decision)
		}
		// 1500 within every limit, minus the 10% copay.
		if claim.Decision.ApprovedAmount != 1350 {
			t.Errorf("expected approved 1350, got %.2f", claim.Decision.ApprovedAmount)
		}
		if claim.Decision.FraudScore != 0 {
			t.Errorf("expected clean fraud score, got %.2f (%v)",
				claim.Decision.FraudScore, claim.Decision.FraudFlags)
		}
		if claim.Version != 2 {
			t.Errorf("expected version 2 after decision write, got %d", claim.Version)
		}

		stored, err := repo.GetClaim(ctx, testTenant, claim.ClaimID)
		if err != nil {
			t.Fatalf("failed to load stored claim: %v", err)
		}
		if stored.Status != domain.StatusApproved || stored.Decision == nil {
			t.Errorf("stored claim not updated: %+v", stored)
		}
		if stored.ProcessedAt == nil {
			t.Error("expected processed_at set")
		}
	})

	t.Run("WaitingPeriodRejection", func(t *testing.T) {
		input := cleanClaim(1200)
		input.MemberID = "M002"
		input.MemberJoinDate = time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")

		claim, err := adjudicator.Submit(ctx, testTenant, input)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if claim.Status != domain.StatusRejected {
			t.Fatalf("expected REJECTED, got %s", claim.Status)
		}
		if len(claim.Decision.RejectionReasons) == 0 ||
			claim.Decision.RejectionReasons[0] != domain.ReasonWaitingPeriod {
			t.Errorf("expected WAITING_PERIOD, got %v", claim.Decision.RejectionReasons)
		}
		if claim.Decision.ApprovedAmount != 0 {
			t.Errorf("expected approved 0, got %.2f", claim.Decision.ApprovedAmount)
		}
	})

	t.Run("InactivePolicyRejection", func(t *testing.T) {
		input := cleanClaim(1200)
		input.MemberID = "M007"
		input.PolicyStatus = domain.PolicyInactive

		claim, err := adjudicator.Submit(ctx, testTenant, input)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if claim.Status != domain.StatusRejected {
			t.Fatalf("expected REJECTED for inactive policy, got %s", claim.Status)
		}
		if len(claim.Decision.RejectionReasons) == 0 ||
			claim.Decision.RejectionReasons[0] != domain.ReasonPolicyInactive {
			t.Errorf("expected POLICY_INACTIVE, got %v", claim.Decision.RejectionReasons)
		}
	})

	t.Run("PerClaimLimitRejection", func(t *testing.T) {
		input := cleanClaim(7500)
		input.MemberID = "M003"

		claim, err := adjudicator.Submit(ctx, testTenant, input)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if claim.Status != domain.StatusRejected {
			t.Fatalf("expected REJECTED over per-claim limit, got %s", claim.Status)
		}
		found := false
		for _, r := range claim.Decision.RejectionReasons {
			if r == domain.ReasonPerClaimExceeded {
				found = true
			}
		}
		if !found {
			t.Errorf("expected PER_CLAIM_EXCEEDED, got %v", claim.Decision.RejectionReasons)
		}
	})

	t.Run("PartialForExcludedItems", func(t *testing.T) {
		date := recentWeekday()
		input := &domain.ClaimInput{
			MemberID:       "M004",
			MemberName:     "Ravi Kumar",
			MemberJoinDate: time.Now().UTC().AddDate(-3, 0, 0).Format("2006-01-02"),
			TreatmentDate:  date,
			ClaimAmount:    4800,
			Diagnosis:      "dental caries",
			Documents: domain.ClaimDocuments{
				Prescription: map[string]any{
					"doctor_reg":        "TN/D/7890/2019",
					"diagnosis":         "dental caries",
					"procedures":        []any{"dental filling", "teeth whitening"},
					"prescription_date": date,
				},
				Bill: map[string]any{
					"bill_date":       date,
					"dental_filling":  3000.0,
					"teeth_whitening": 1800.0,
					"total_amount":    4800.0,
				},
			},
		}

		claim, err := adjudicator.Submit(ctx, testTenant, input)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if claim.Status != domain.StatusPartial {
			t.Fatalf("expected PARTIAL, got %s (%+v)", claim.Status, claim.Decision)
		}
		if claim.Decision.Deductions.ExcludedItems != 1800 {
			t.Errorf("expected excluded 1800, got %.2f", claim.Decision.Deductions.ExcludedItems)
		}
		// Eligible 3000 within dental sub-limit, 10% copay.
		if claim.Decision.ApprovedAmount != 2700 {
			t.Errorf("expected approved 2700, got %.2f", claim.Decision.ApprovedAmount)
		}
	})

	t.Run("SameDayBurstFlagsReview", func(t *testing.T) {
		for i, amount := range []float64{900, 1100} {
			input := cleanClaim(amount)
			input.MemberID = "M005"
			if _, err := adjudicator.Submit(ctx, testTenant, input); err != nil {
				t.Fatalf("submit %d failed: %v", i, err)
			}
		}

		// Third claim the same day, near the per-claim ceiling.
		input := cleanClaim(4900)
		input.MemberID = "M005"
		claim, err := adjudicator.Submit(ctx, testTenant, input)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}

		found := false
		for _, f := range claim.Decision.FraudFlags {
			if f == domain.FlagMultipleClaimsSameDay {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected multiple_claims_same_day flag, got %v", claim.Decision.FraudFlags)
		}
		// Burst (0.30) plus near-limit (0.10) crosses the review threshold.
		if claim.Status != domain.StatusManualReview {
			t.Errorf("expected MANUAL_REVIEW, got %s (score %.2f)",
				claim.Status, claim.Decision.FraudScore)
		}
	})

	t.Run("DuplicateClaimFlagged", func(t *testing.T) {
		input := cleanClaim(1600)
		input.MemberID = "M006"
		if _, err := adjudicator.Submit(ctx, testTenant, input); err != nil {
			t.Fatalf("first submit failed: %v", err)
		}

		dup := cleanClaim(1600)
		dup.MemberID = "M006"
		claim, err := adjudicator.Submit(ctx, testTenant, dup)
		if err != nil {
			t.Fatalf("duplicate submit failed: %v", err)
		}

		found := false
		for _, f := range claim.Decision.FraudFlags {
			if f == domain.FlagDuplicateClaim {
				found = true
			}
		}
		if !found {
			t.Errorf("expected duplicate_claim flag, got %v", claim.Decision.FraudFlags)
		}
		// Duplicate (0.30) plus same-day pair (0.15) crosses the threshold.
		if claim.Status != domain.StatusManualReview {
			t.Errorf("expected MANUAL_REVIEW for duplicate, got %s", claim.Status)
		}
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		cases := map[string]*domain.ClaimInput{
			"MissingMemberID":   {MemberName: "X", TreatmentDate: "2025-06-10", ClaimAmount: 100},
			"MissingMemberName": {MemberID: "M1", TreatmentDate: "2025-06-10", ClaimAmount: 100},
			"MissingDate":       {MemberID: "M1", MemberName: "X", ClaimAmount: 100},
			"ZeroAmount":        {MemberID: "M1", MemberName: "X", TreatmentDate: "2025-06-10"},
		}
		for name, input := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := adjudicator.Submit(ctx, testTenant, input)
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			})
		}
	})
}

func TestAppeal(t *testing.T) {
	adjudicator, repo, _ := newTestAdjudicator(t)
	ctx := context.Background()

	reject := cleanClaim(1200)
	reject.MemberID = "M010"
	reject.MemberJoinDate = time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02")
	rejected, err := adjudicator.Submit(ctx, testTenant, reject)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Fatalf("setup: expected REJECTED claim, got %s", rejected.Status)
	}

	t.Run("FileAppeal", func(t *testing.T) {
		appeal, err := adjudicator.Appeal(ctx, testTenant, rejected.ClaimID, &domain.AppealRequest{
			Reason: "Enrollment date on record is wrong",
		})
		if err != nil {
			t.Fatalf("appeal failed: %v", err)
		}
		if appeal.Status != domain.AppealStatusUnderReview {
			t.Errorf("expected UNDER_REVIEW, got %s", appeal.Status)
		}

		claim, err := repo.GetClaim(ctx, testTenant, rejected.ClaimID)
		if err != nil {
			t.Fatalf("failed to load claim: %v", err)
		}
		if claim.Status != domain.StatusUnderAppeal {
			t.Errorf("expected UNDER_APPEAL, got %s", claim.Status)
		}

		stored, err := repo.GetAppeal(ctx, testTenant, appeal.AppealID)
		if err != nil {
			t.Fatalf("failed to load appeal: %v", err)
		}
		if stored.ClaimID != rejected.ClaimID {
			t.Errorf("appeal claim mismatch: %s", stored.ClaimID)
		}
	})

	t.Run("AppealRequiresReason", func(t *testing.T) {
		_, err := adjudicator.Appeal(ctx, testTenant, rejected.ClaimID, &domain.AppealRequest{})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("ApprovedClaimNotAppealable", func(t *testing.T) {
		approved, err := adjudicator.Submit(ctx, testTenant, cleanClaim(1500))
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if approved.Status != domain.StatusApproved {
			t.Fatalf("setup: expected APPROVED, got %s", approved.Status)
		}

		_, err = adjudicator.Appeal(ctx, testTenant, approved.ClaimID, &domain.AppealRequest{Reason: "x"})
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestSubmitPublishesEvents(t *testing.T) {
	adjudicator, _, eventBus := newTestAdjudicator(t)
	ctx := context.Background()

	var submitted, decided atomic.Int32
	eventBus.Subscribe(ctx, testTenant, domain.TopicClaimSubmitted, func(ctx context.Context, msg *domain.Message) error {
		submitted.Add(1)
		return nil
	})
	eventBus.Subscribe(ctx, testTenant, domain.TopicClaimDecided, func(ctx context.Context, msg *domain.Message) error {
		decided.Add(1)
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	if _, err := adjudicator.Submit(ctx, testTenant, cleanClaim(1500)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	deadline := time.After(time.Second)
	for submitted.Load() != 1 || decided.Load() != 1 {
		select {
		case <-deadline:
			t.Fatalf("expected submitted/decided events, got %d/%d", submitted.Load(), decided.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReadjudicate(t *testing.T) {
	adjudicator, _, _ := newTestAdjudicator(t)
	ctx := context.Background()

	claim, err := adjudicator.Submit(ctx, testTenant, cleanClaim(1500))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	redone, err := adjudicator.Readjudicate(ctx, testTenant, claim.ClaimID)
	if err != nil {
		t.Fatalf("readjudicate failed: %v", err)
	}
	if redone.Status != domain.StatusApproved {
		t.Errorf("expected APPROVED on re-run, got %s", redone.Status)
	}
	if redone.Version != claim.Version+1 {
		t.Errorf("expected version bump to %d, got %d", claim.Version+1, redone.Version)
	}
}
