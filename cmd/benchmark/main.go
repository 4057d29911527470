package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/carconfig/internal/catalog"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	users       int
	password    string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Saved
	fail409       uint64 // Out of stock or owner conflict
	fail422       uint64 // Rejected by validation
	failOther     uint64
)

var rootCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Drive concurrent configuration saves against the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if workload != "uniform" && workload != "hotspot" {
			return fmt.Errorf("unknown workload %q", workload)
		}
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	rootCmd.Flags().IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	rootCmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	rootCmd.Flags().StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	rootCmd.Flags().IntVar(&users, "users", 0, "Spread load over seeded users bench-1..bench-N (0 uses user1 only)")
	rootCmd.Flags().StringVar(&password, "password", "password1", "Password shared by the benchmark users")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	log.Printf("Starting Benchmark: %s | Workers: %d | Users: %d | Duration: %s", workload, concurrency, users, duration)

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			worker(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return printResults(time.Since(start))
}

func worker(ctx context.Context) {
	client := &http.Client{Timeout: 5 * time.Second}
	accessories := catalog.SeedAccessories()
	modelCount := len(catalog.SeedModels())

	for ctx.Err() == nil {
		modelID, picked := generateConfiguration(modelCount, accessories)
		body, _ := json.Marshal(map[string]interface{}{
			"car_model_id": modelID,
			"accessories":  picked,
		})

		req, _ := http.NewRequestWithContext(ctx, "POST", targetURL+"/api/v1/configurations", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		req.SetBasicAuth(pickUser(), password)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddUint64(&failOther, 1)
			}
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickUser() string {
	if users <= 0 {
		return "user1"
	}
	return fmt.Sprintf("bench-%d", rand.IntN(users)+1)
}

// generateConfiguration returns a model id and a small accessory set.
// Hotspot sends 90% of traffic to model 1 with the radio, so every save
// contends on the same two stock rows.
func generateConfiguration(modelCount int, accessories []domain.Accessory) (int64, []string) {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return 1, []string{"radio"}
	}

	modelID := int64(rand.IntN(modelCount) + 1)
	n := rand.IntN(3)
	picked := make([]string, 0, n)
	for _, i := range rand.Perm(len(accessories))[:n] {
		picked = append(picked, accessories[i].Name)
	}
	return modelID, picked
}

func printResults(d time.Duration) error {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var conflictRate float64
	if total > 0 {
		conflictRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"saved":             s201,
		"conflicts":         f409,
		"conflict_rate_pct": conflictRate,
		"rejected":          f422,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(results)
}
