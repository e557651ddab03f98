// Benchmark tool for testing Heron against synthetic claim traffic.
//
// Usage:
//   go run cmd/benchmark/main.go -n 5000 -url http://localhost:8080
//
// This tool:
//   1. Generates synthetic outpatient claims, a fraction with injected
//      fraud patterns (invalid registrations, duplicates, round amounts)
//   2. Submits each claim to Heron for adjudication
//   3. Compares Heron's routing (MANUAL_REVIEW or not) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// SyntheticClaim is one generated claim with its injected fraud label.
type SyntheticClaim struct {
	Payload map[string]any
	IsFraud bool
}

// SubmitResponse is the subset of the claim response the benchmark reads.
type SubmitResponse struct {
	ClaimID  string `json:"claimId"`
	Status   string `json:"status"`
	Decision struct {
		ApprovedAmount float64  `json:"approvedAmount"`
		FraudScore     float64  `json:"fraudScore"`
		FraudFlags     []string `json:"fraudFlags"`
	} `json:"decision"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraudulent claim routed to review
	FalsePositives int64 // Clean claim routed to review
	TrueNegatives  int64 // Clean claim decided normally
	FalseNegatives int64 // Fraudulent claim decided normally (missed!)

	TotalProcessed int64
	TotalFraud     int64
	TotalClean     int64
	TotalErrors    int64

	Approved int64
	Partial  int64
	Rejected int64
	Review   int64

	ProcessingTimeMs int64
}

func main() {
	count := flag.Int("n", 1000, "Number of claims to submit")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudRate := flag.Float64("fraud-rate", 0.1, "Fraction of claims with injected fraud patterns")
	seed := flag.Int64("seed", 42, "RNG seed for reproducible runs")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         HERON BENCHMARK - Synthetic Claim Adjudication        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHeron URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Claims:      %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Fraud Rate:  %.2f\n", *fraudRate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	rng := rand.New(rand.NewSource(*seed))
	claims := generateClaims(rng, *count, *fraudRate)

	fraudCount := 0
	for _, c := range claims {
		if c.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("✓ Generated %d claims (%d with fraud patterns)\n", len(claims), fraudCount)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var diagnoses = []string{
	"viral fever", "acute bronchitis", "migraine", "gastritis",
	"lower back pain", "allergic rhinitis", "urinary tract infection",
}

// weekday returns a recent Mon-Fri date offset by up to 20 weekdays.
func weekday(rng *rand.Rand) string {
	d := time.Now().UTC().AddDate(0, 0, -rng.Intn(20))
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d.Format("2006-01-02")
}

// generateClaims builds the synthetic workload. Clean claims use valid
// registrations, non-round amounts, and one claim per member per day.
// Fraudulent claims inject one of the patterns the engine should catch.
func generateClaims(rng *rand.Rand, count int, fraudRate float64) []SyntheticClaim {
	claims := make([]SyntheticClaim, 0, count)

	for i := 0; i < count; i++ {
		memberID := fmt.Sprintf("BM%05d", i)
		date := weekday(rng)
		amount := 600 + float64(rng.Intn(3500)) + float64(rng.Intn(97))
		consult := 400 + float64(rng.Intn(500)) + 17
		diagnosis := diagnoses[rng.Intn(len(diagnoses))]
		reg := fmt.Sprintf("MH/%05d/20%02d", 10000+rng.Intn(80000), 5+rng.Intn(18))

		isFraud := rng.Float64() < fraudRate
		if isFraud {
			// Inject one of the detectable patterns.
			switch rng.Intn(3) {
			case 0:
				reg = "FAKE/000/0000"
				amount = 4800 + float64(rng.Intn(150)) // near the per-claim limit too
			case 1:
				// Round amounts throughout.
				amount = 3000
				consult = 1000
			case 2:
				// Duplicate: same member, amount, and date twice.
				reg = "XX/99999/2030"
				amount = 2500
			}
		}

		payload := map[string]any{
			"memberId":       memberID,
			"memberName":     fmt.Sprintf("Member %d", i),
			"memberJoinDate": time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02"),
			"treatmentDate":  date,
			"claimAmount":    amount,
			"diagnosis":      diagnosis,
			"hospitalName":   "Apollo Hospitals",
			"documents": map[string]any{
				"prescription": map[string]any{
					"doctor_name":          "Dr. Iyer",
					"doctor_reg":           reg,
					"diagnosis":            diagnosis,
					"medicines_prescribed": []string{"Paracetamol 500mg"},
					"prescription_date":    date,
				},
				"bill": map[string]any{
					"hospital_name":    "Apollo Hospitals",
					"bill_date":        date,
					"consultation_fee": consult,
					"medicines":        amount - consult,
					"total_amount":     amount,
				},
			},
		}

		claims = append(claims, SyntheticClaim{Payload: payload, IsFraud: isFraud})

		// Duplicate pattern submits the identical claim twice.
		if isFraud && amount == 2500 {
			claims = append(claims, SyntheticClaim{Payload: payload, IsFraud: true})
			i++
		}
	}

	return claims
}

func runBenchmark(claims []SyntheticClaim, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan SyntheticClaim, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 15 * time.Second}

			for claim := range work {
				start := time.Now()
				result, err := submitClaim(client, baseURL, tenantID, claim)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v -> %v\n", claim.Payload["memberId"], err)
					}
					continue
				}

				if claim.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				switch result.Status {
				case "APPROVED":
					atomic.AddInt64(&metrics.Approved, 1)
				case "PARTIAL":
					atomic.AddInt64(&metrics.Partial, 1)
				case "REJECTED":
					atomic.AddInt64(&metrics.Rejected, 1)
				case "MANUAL_REVIEW":
					atomic.AddInt64(&metrics.Review, 1)
				}

				predicted := result.Status == "MANUAL_REVIEW"
				actual := claim.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-8v | Amount: ₹%8.2f | Fraud: %-5v | Heron: %-13s (%.2f) %v\n",
						status,
						claim.Payload["memberId"],
						claim.Payload["claimAmount"],
						claim.IsFraud,
						result.Status,
						result.Decision.FraudScore,
						result.Decision.FraudFlags,
					)
				}
			}
		}()
	}

	for _, claim := range claims {
		work <- claim
	}
	close(work)

	wg.Wait()

	return metrics
}

func submitClaim(client *http.Client, baseURL, tenantID string, claim SyntheticClaim) (*SubmitResponse, error) {
	body, err := json.Marshal(claim.Payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 WORKLOAD STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Fraud Patterns:   %d\n", m.TotalFraud)
	fmt.Printf("   Clean Claims:     %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📋 DECISION MIX\n")
	fmt.Printf("   Approved:       %d\n", m.Approved)
	fmt.Printf("   Partial:        %d\n", m.Partial)
	fmt.Printf("   Rejected:       %d\n", m.Rejected)
	fmt.Printf("   Manual Review:  %d\n", m.Review)

	fmt.Printf("\n📈 CONFUSION MATRIX (review routing vs injected fraud)\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   REVIEW      DECIDED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          C   │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\n🎯 REVIEW ROUTING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of reviews, how many had fraud patterns)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud patterns, how many were caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	fmt.Println()
}
