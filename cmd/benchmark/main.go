// Benchmark tool for testing Shrike against labeled subscriber data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/subscribers.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled subscriber data (with an is_fraud column)
//   2. Sends the rows to Shrike's /score endpoint in batches
//   3. Compares Shrike's predictions with the actual fraud labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Batch is the Shrike /score request format.
type Batch struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ScoreResponse is the Shrike /score response format.
type ScoreResponse struct {
	ID      string `json:"id"`
	Summary struct {
		Total           int     `json:"total"`
		PredictedFrauds int     `json:"predicted_frauds"`
		LegitCount      int     `json:"legit_count"`
		AvgProb         float64 `json:"avg_prob"`
	} `json:"summary"`
	Predictions []struct {
		SubscriberID     string  `json:"subscriber_id"`
		FraudProbability float64 `json:"fraud_probability"`
		PredictedFraud   int     `json:"predicted_fraud"`
		Classification   string  `json:"classification"`
	} `json:"predictions"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int // Fraud predicted as fraud
	FalsePositives int // Non-fraud predicted as fraud
	TrueNegatives  int // Non-fraud predicted as legitimate
	FalseNegatives int // Fraud predicted as legitimate (missed fraud!)

	TotalProcessed int
	TotalFraud     int
	TotalNonFraud  int
	TotalErrors    int
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled subscriber CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Shrike base URL")
	limit := flag.Int("limit", 10000, "Maximum rows to process (0 = all)")
	batchSize := flag.Int("batch", 500, "Rows per /score request")
	verbose := flag.Bool("verbose", false, "Print each prediction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/subscribers.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        SHRIKE BENCHMARK - Subscriber Fraud Detection          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Shrike URL:  %s\n", *baseURL)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Println()

	// Check Shrike is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Shrike not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Shrike is running:")
		fmt.Println("  cd shrike && go run cmd/shrike/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Shrike is healthy")

	// Read labeled data
	fmt.Printf("\nReading subscriber data from %s...\n", *csvPath)
	header, rows, labels, err := readLabeledCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d subscribers\n", len(rows))

	fraudCount := 0
	for _, isFraud := range labels {
		if isFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(rows)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(rows)-fraudCount, 100*float64(len(rows)-fraudCount)/float64(len(rows)))

	// Run benchmark
	fmt.Printf("\nScoring in batches of %d...\n", *batchSize)
	startTime := time.Now()
	metrics := runBenchmark(header, rows, labels, *baseURL, *batchSize, *verbose)
	duration := time.Since(startTime)

	// Print results
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

// readLabeledCSV loads the rows, stripping the is_fraud column into a
// per-subscriber label map keyed by subscriber_id.
func readLabeledCSV(path string, limit int) ([]string, [][]string, map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	labelIdx := -1
	idIdx := -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "is_fraud", "isfraud":
			labelIdx = i
		case "subscriber_id":
			idIdx = i
		}
	}
	if labelIdx < 0 {
		return nil, nil, nil, fmt.Errorf("CSV has no is_fraud column")
	}
	if idIdx < 0 {
		return nil, nil, nil, fmt.Errorf("CSV has no subscriber_id column")
	}

	// Header sent to Shrike excludes the label column
	scoreHeader := make([]string, 0, len(header)-1)
	for i, col := range header {
		if i != labelIdx {
			scoreHeader = append(scoreHeader, col)
		}
	}

	var rows [][]string
	labels := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		labels[record[idIdx]] = record[labelIdx] == "1"

		row := make([]string, 0, len(record)-1)
		for i, cell := range record {
			if i != labelIdx {
				row = append(row, cell)
			}
		}
		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return scoreHeader, rows, labels, nil
}

func runBenchmark(header []string, rows [][]string, labels map[string]bool, baseURL string, batchSize int, verbose bool) *Metrics {
	metrics := &Metrics{}
	client := &http.Client{Timeout: 60 * time.Second}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		result, err := scoreBatch(client, baseURL, Batch{Header: header, Rows: rows[start:end]})
		if err != nil {
			metrics.TotalErrors += end - start
			if verbose {
				fmt.Printf("ERROR: batch %d-%d -> %v\n", start, end, err)
			}
			continue
		}

		for _, p := range result.Predictions {
			metrics.TotalProcessed++

			actual := labels[p.SubscriberID]
			if actual {
				metrics.TotalFraud++
			} else {
				metrics.TotalNonFraud++
			}

			predicted := p.PredictedFraud == 1
			switch {
			case predicted && actual:
				metrics.TruePositives++
			case predicted && !actual:
				metrics.FalsePositives++
			case !predicted && !actual:
				metrics.TrueNegatives++
			default:
				metrics.FalseNegatives++
			}

			if verbose {
				status := "✓"
				if predicted != actual {
					status = "✗"
				}
				fmt.Printf("%s %-12s | Fraud: %-5v | Shrike: %-10s (%.4f)\n",
					status, p.SubscriberID, actual, p.Classification, p.FraudProbability)
			}
		}
	}

	return metrics
}

func scoreBatch(client *http.Client, baseURL string, batch Batch) (*ScoreResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   Fraud       Legit")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
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

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of fraud predictions, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 && duration.Seconds() > 0 {
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f rows/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - predictions are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
