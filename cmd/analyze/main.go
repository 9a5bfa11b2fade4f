// Analyze runs the full decision pipeline over a transaction CSV export
// without a server, writing a per-customer report.
//
// Usage:
//
//	go run cmd/analyze/main.go -csv /path/to/online_retail.csv -window 90
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

func main() {
	csvPath := flag.String("csv", "", "Path to transaction CSV export")
	snapshot := flag.String("snapshot", "", "Snapshot date (YYYY-MM-DD, default: latest transaction date)")
	window := flag.Int("window", 90, "Trailing window in days")
	outPath := flag.String("out", "kestrel_report.csv", "Output report path")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *csvPath == "" {
		fmt.Println("Usage: analyze -csv /path/to/transactions.csv [-snapshot YYYY-MM-DD] [-window 90]")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	start := time.Now()
	ctx := context.Background()

	txs, err := ingest.LoadCSV(*csvPath)
	if err != nil {
		slog.Error("failed to load transactions", "path", *csvPath, "error", err)
		os.Exit(1)
	}

	summary, err := ingest.Validate(txs)
	if err != nil {
		slog.Error("transaction validation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("transactions loaded",
		"rows", summary.RowCount,
		"customers", summary.CustomerCount,
	)

	cfg := domain.DefaultPipelineConfig()
	cfg.WindowDays = *window
	if *snapshot != "" {
		date, err := domain.ParseDate(*snapshot)
		if err != nil {
			slog.Error("invalid snapshot date", "snapshot", *snapshot, "error", err)
			os.Exit(1)
		}
		cfg = cfg.WithSnapshot(date)
	}

	result, err := pipeline.Run(ctx, txs, cfg)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	if err := writeReport(*outPath, result); err != nil {
		slog.Error("failed to write report", "path", *outPath, "error", err)
		os.Exit(1)
	}

	printSummary(result, time.Since(start), *outPath)
}

// writeReport writes the joined per-customer tables as one CSV.
func writeReport(path string, result *domain.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"customer_id", "recency_days", "frequency", "monetary", "lifetime_value",
		"spend_trend", "frequency_trend",
		"lifecycle_stage", "value_segment", "segment_label",
		"risk_score", "risk_level",
		"recommended_action", "action_priority",
		"action_cost", "expected_benefit", "estimated_roi",
		"explanation",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	segments := make(map[string]domain.SegmentRecord, len(result.Segments))
	for _, s := range result.Segments {
		segments[s.CustomerID] = s
	}
	risk := make(map[string]domain.RiskRecord, len(result.Risk))
	for _, r := range result.Risk {
		risk[r.CustomerID] = r
	}
	decisions := make(map[string]domain.DecisionRecord, len(result.Decisions))
	for _, d := range result.Decisions {
		decisions[d.CustomerID] = d
	}

	bar := progressbar.Default(int64(len(result.Features)))
	for _, feat := range result.Features {
		seg := segments[feat.CustomerID]
		rr := risk[feat.CustomerID]
		dec := decisions[feat.CustomerID]

		row := []string{
			feat.CustomerID,
			strconv.Itoa(feat.RecencyDays),
			strconv.Itoa(feat.Frequency),
			formatFloat(feat.Monetary),
			formatFloat(feat.LifetimeValue),
			formatFloat(feat.SpendTrend),
			formatFloat(feat.FrequencyTrend),
			seg.LifecycleStage,
			seg.ValueSegment,
			seg.SegmentLabel,
			formatFloat(rr.RiskScore),
			rr.RiskLevel,
			dec.Action.RecommendedAction,
			dec.Action.ActionPriority,
			formatFloat(dec.ROI.ActionCost),
			formatFloat(dec.ROI.ExpectedBenefit),
			formatFloat(dec.ROI.EstimatedROI),
			dec.Explanation.DecisionExplanation,
		}
		if err := w.Write(row); err != nil {
			return err
		}
		_ = bar.Add(1)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func printSummary(result *domain.RunResult, elapsed time.Duration, outPath string) {
	stageCounts := make(map[string]int)
	for _, s := range result.Segments {
		stageCounts[s.LifecycleStage]++
	}
	riskCounts := make(map[string]int)
	for _, r := range result.Risk {
		riskCounts[r.RiskLevel]++
	}

	var totalROI float64
	var highPriority int
	for _, d := range result.Decisions {
		totalROI += d.ROI.EstimatedROI
		if d.Action.ActionPriority == domain.PriorityHigh {
			highPriority++
		}
	}

	fmt.Println()
	fmt.Println("Run summary")
	fmt.Println("-----------")
	fmt.Printf("Run ID:          %s\n", result.Run.ID)
	fmt.Printf("Snapshot:        %s\n", result.Run.SnapshotDate.Format("2006-01-02"))
	fmt.Printf("Window:          %d days\n", result.Run.WindowDays)
	fmt.Printf("Customers:       %d\n", result.Run.CustomerCount)
	fmt.Println()
	fmt.Printf("Lifecycle:       Active=%d AtRisk=%d Dormant=%d Churned=%d\n",
		stageCounts[domain.StageActive],
		stageCounts[domain.StageAtRisk],
		stageCounts[domain.StageDormant],
		stageCounts[domain.StageChurned],
	)
	fmt.Printf("Risk levels:     Low=%d Medium=%d High=%d\n",
		riskCounts[domain.RiskLow],
		riskCounts[domain.RiskMedium],
		riskCounts[domain.RiskHigh],
	)
	fmt.Printf("High priority:   %d customers\n", highPriority)
	fmt.Printf("Total est. ROI:  %.2f\n", totalROI)
	fmt.Println()
	fmt.Printf("Report:          %s\n", outPath)
	fmt.Printf("Elapsed:         %s\n", elapsed.Round(time.Millisecond))
}
