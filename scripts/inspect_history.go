//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"loan-risk/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		limit    = flag.Int("limit", 10, "Number of predictions to show")
	)
	flag.Parse()

	fmt.Printf("Inspecting history in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	run, ok, err := store.LatestTrainingRun()
	if err != nil {
		log.Fatalf("Failed to fetch training runs: %v", err)
	}
	if ok {
		fmt.Println("\nLatest training run:")
		fmt.Printf("  Finished:  %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Data:      %s\n", run.DataPath)
		fmt.Printf("  Schema:    %s\n", run.SchemaVersion)
		fmt.Printf("  Model:     %s\n", run.ModelDigest)
		fmt.Printf("  Artifacts: %s\n", run.ArtifactDir)

		var report struct {
			Evaluation struct {
				Accuracy float64 `json:"accuracy"`
				ROCAUC   float64 `json:"roc_auc"`
			} `json:"evaluation"`
		}
		if err := json.Unmarshal(run.Report, &report); err == nil {
			fmt.Printf("  Accuracy:  %.4f\n", report.Evaluation.Accuracy)
			fmt.Printf("  ROC AUC:   %.4f\n", report.Evaluation.ROCAUC)
		}
	} else {
		fmt.Println("\nNo training runs recorded")
	}

	records, err := store.RecentPredictions(*limit)
	if err != nil {
		log.Fatalf("Failed to fetch recent predictions: %v", err)
	}

	fmt.Printf("\nRecent predictions (%d):\n", len(records))
	for _, r := range records {
		driver := "-"
		if len(r.TopAttributions) > 0 {
			driver = fmt.Sprintf("%s %+.3f", r.TopAttributions[0].Feature, r.TopAttributions[0].Value)
		}
		fmt.Printf("  %s  p=%.4f  %s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.DefaultProbability, driver)
	}
}
