// Load tool for exercising Orbit's mission lifecycle under concurrency.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -user test_user -starts 20 -checkers 8
//
// This tool:
//  1. Reads the user's funds and the mission catalog
//  2. Starts missions concurrently until funds run out or -starts is reached
//  3. Waits out the mission duration, then checks every mission from
//     several goroutines at once
//  4. Verifies funds = initial - costs + payouts of SUCCESS missions
//  5. Optionally drives /predict with generated presets for throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type mission struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	Payout   int64  `json:"payout"`
	Duration string `json:"duration"`
}

type userSummary struct {
	Username string `json:"username"`
	Funds    int64  `json:"funds"`
}

type startResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UserMissionID int64  `json:"user_mission_id"`
}

type checkResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	NewFunds *int64 `json:"new_funds"`
}

// Stats tracks load results.
type Stats struct {
	Started       int64
	Rejected      int64
	Checks        int64
	Successes     int64
	Failures      int64
	StillRunning  int64
	Errors        int64
	PredictCalls  int64
	PredictErrors int64
	LatencyMs     int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Orbit base URL")
	username := flag.String("user", "test_user", "User to spend funds as")
	missionIdx := flag.Int("mission", 0, "Catalog index of the mission to start")
	starts := flag.Int("starts", 20, "Concurrent mission starts to attempt")
	checkers := flag.Int("checkers", 8, "Concurrent checks per started mission")
	timeUnit := flag.Duration("time-unit", time.Second, "Server mission.time_unit")
	predicts := flag.Int("predicts", 0, "Preset+predict round trips to run afterwards")
	workers := flag.Int("workers", 10, "Workers for the predict phase")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("==============================================")
	fmt.Println("          ORBIT LOAD TEST")
	fmt.Println("==============================================")
	fmt.Printf("\nOrbit URL:  %s\n", *baseURL)
	fmt.Printf("User:       %s\n", *username)
	fmt.Printf("Starts:     %d\n", *starts)
	fmt.Printf("Checkers:   %d\n", *checkers)
	fmt.Println()

	if err := checkHealth(client, *baseURL); err != nil {
		fmt.Printf("ERROR: Orbit not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	var catalog []mission
	if err := getJSON(client, *baseURL+"/api/missions", &catalog); err != nil {
		fmt.Printf("ERROR: failed to list missions: %v\n", err)
		os.Exit(1)
	}
	if *missionIdx < 0 || *missionIdx >= len(catalog) {
		fmt.Printf("ERROR: mission index %d out of range (catalog has %d)\n", *missionIdx, len(catalog))
		os.Exit(1)
	}
	target := catalog[*missionIdx]

	var before userSummary
	if err := getJSON(client, *baseURL+"/api/user/"+*username, &before); err != nil {
		fmt.Printf("ERROR: failed to read user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initial funds: %d, mission %q cost %d payout %d\n", before.Funds, target.Name, target.Cost, target.Payout)

	stats := &Stats{}
	ids := runStarts(client, *baseURL, *username, target.ID, *starts, stats)
	fmt.Printf("Started %d, rejected %d\n", stats.Started, stats.Rejected)

	wait := time.Duration(durationUnits(target)) * *timeUnit
	fmt.Printf("Waiting %v for missions to elapse...\n", wait)
	time.Sleep(wait + 500*time.Millisecond)

	outcomes := runChecks(client, *baseURL, ids, *checkers, stats)

	var after userSummary
	if err := getJSON(client, *baseURL+"/api/user/"+*username, &after); err != nil {
		fmt.Printf("ERROR: failed to read user: %v\n", err)
		os.Exit(1)
	}

	var payouts int64
	for _, status := range outcomes {
		if status == "SUCCESS" {
			payouts += target.Payout
		}
	}
	expected := before.Funds - stats.Started*target.Cost + payouts

	if *predicts > 0 {
		runPredicts(client, *baseURL, *predicts, *workers, stats)
	}

	printResults(stats, before.Funds, after.Funds, expected)
	if after.Funds != expected {
		os.Exit(2)
	}
}

// durationUnits parses the "<n>Y" catalog duration.
func durationUnits(m mission) int64 {
	var n int64
	if _, err := fmt.Sscanf(m.Duration, "%dY", &n); err != nil {
		return 0
	}
	return n
}

func runStarts(client *http.Client, baseURL, username string, missionID int64, n int, stats *Stats) []int64 {
	var mu sync.Mutex
	var ids []int64
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := map[string]any{"username": username, "mission_id": missionID, "fuel": 10, "crew": 5, "research": 20}
			var resp startResponse
			status, err := postJSON(client, baseURL+"/api/missions/start", body, &resp)
			switch {
			case err != nil:
				atomic.AddInt64(&stats.Errors, 1)
			case status == http.StatusOK && resp.Success:
				atomic.AddInt64(&stats.Started, 1)
				mu.Lock()
				ids = append(ids, resp.UserMissionID)
				mu.Unlock()
			default:
				atomic.AddInt64(&stats.Rejected, 1)
			}
		}()
	}
	wg.Wait()
	return ids
}

func runChecks(client *http.Client, baseURL string, ids []int64, checkers int, stats *Stats) map[int64]string {
	var mu sync.Mutex
	outcomes := make(map[int64]string, len(ids))
	var wg sync.WaitGroup

	for _, id := range ids {
		for c := 0; c < checkers; c++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				start := time.Now()
				var resp checkResponse
				err := getJSON(client, fmt.Sprintf("%s/api/missions/check/%d", baseURL, id), &resp)
				atomic.AddInt64(&stats.LatencyMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&stats.Checks, 1)
				if err != nil {
					atomic.AddInt64(&stats.Errors, 1)
					return
				}

				mu.Lock()
				defer mu.Unlock()
				if prev, ok := outcomes[id]; ok && prev != resp.Status {
					fmt.Printf("INCONSISTENT: user mission %d reported %s then %s\n", id, prev, resp.Status)
				}
				outcomes[id] = resp.Status
			}(id)
		}
	}
	wg.Wait()

	for _, status := range outcomes {
		switch status {
		case "SUCCESS":
			stats.Successes++
		case "FAILURE":
			stats.Failures++
		default:
			stats.StillRunning++
		}
	}
	return outcomes
}

func runPredicts(client *http.Client, baseURL string, n, workers int, stats *Stats) {
	work := make(chan int, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range work {
				var preset map[string]any
				err := getJSON(client, fmt.Sprintf("%s/preset?difficulty=normal&seed=%d", baseURL, seed), &preset)
				if err == nil {
					var out map[string]any
					_, err = postJSON(client, baseURL+"/predict", preset, &out)
				}
				atomic.AddInt64(&stats.PredictCalls, 1)
				if err != nil {
					atomic.AddInt64(&stats.PredictErrors, 1)
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	wg.Wait()
}

func checkHealth(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(client *http.Client, url string, body, out any) (int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func printResults(s *Stats, initial, actual, expected int64) {
	fmt.Println("\n==============================================")
	fmt.Println("                 RESULTS")
	fmt.Println("==============================================")

	fmt.Printf("\nLIFECYCLE\n")
	fmt.Printf("   Started:        %d\n", s.Started)
	fmt.Printf("   Rejected:       %d\n", s.Rejected)
	fmt.Printf("   Success:        %d\n", s.Successes)
	fmt.Printf("   Failure:        %d\n", s.Failures)
	fmt.Printf("   Still running:  %d\n", s.StillRunning)
	fmt.Printf("   Errors:         %d\n", s.Errors)

	fmt.Printf("\nFUNDS\n")
	fmt.Printf("   Initial:   %d\n", initial)
	fmt.Printf("   Expected:  %d\n", expected)
	fmt.Printf("   Actual:    %d\n", actual)
	if actual == expected {
		fmt.Println("   OK: funds conserved, every payout credited once")
	} else {
		fmt.Println("   MISMATCH: funds not conserved")
	}

	if s.Checks > 0 {
		fmt.Printf("\nPERFORMANCE\n")
		fmt.Printf("   Checks:          %d\n", s.Checks)
		fmt.Printf("   Avg check (ms):  %.2f\n", float64(s.LatencyMs)/float64(s.Checks))
	}
	if s.PredictCalls > 0 {
		fmt.Printf("   Predict trips:   %d (%d errors)\n", s.PredictCalls, s.PredictErrors)
	}
	fmt.Println()
}
