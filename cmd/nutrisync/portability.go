package nutrisync

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/saadjs/nutrisync/internal/service"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOut     string
	importIn      string
	importMode    string
	importDryRun  bool
	importConfirm bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local data (json snapshot or csv diary)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(exportOut) == "" {
			return fmt.Errorf("--out is required")
		}
		format := strings.ToLower(strings.TrimSpace(exportFormat))
		if format != "json" && format != "csv" {
			return fmt.Errorf("unsupported --format %q (use json or csv)", exportFormat)
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			data, err := rt.svc.Export(ctx)
			if err != nil {
				return err
			}
			if format == "json" {
				b, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal export json: %w", err)
				}
				if err := os.WriteFile(exportOut, b, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
			} else if err := writeDiaryCSV(exportOut, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported data to %s\n", exportOut)
			return nil
		})
	},
}

// writeDiaryCSV flattens diary entries with their food names for spreadsheets.
func writeDiaryCSV(path string, data *service.ExportData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export csv: %w", err)
	}
	defer f.Close()

	foodNames := make(map[string]string, len(data.Foods))
	for _, food := range data.Foods {
		foodNames[food.ID] = food.Name
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "meal_type", "food", "servings", "calories", "protein_g", "carbs_g", "fat_g", "user_id", "food_id"}); err != nil {
		return fmt.Errorf("write export csv header: %w", err)
	}
	for _, e := range data.DiaryEntries {
		record := []string{
			e.Date,
			string(e.MealType),
			foodNames[e.FoodID],
			strconv.FormatFloat(e.Servings, 'f', -1, 64),
			strconv.FormatFloat(e.Calories, 'f', -1, 64),
			strconv.FormatFloat(e.ProteinG, 'f', -1, 64),
			strconv.FormatFloat(e.CarbsG, 'f', -1, 64),
			strconv.FormatFloat(e.FatG, 'f', -1, 64),
			e.UserID,
			e.FoodID,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write export csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export csv: %w", err)
	}
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a json snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(importIn) == "" {
			return fmt.Errorf("--in is required")
		}
		raw, err := os.ReadFile(importIn)
		if err != nil {
			return fmt.Errorf("read import file: %w", err)
		}
		var payload service.ExportData
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("parse import json: %w", err)
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			report, err := rt.svc.Import(ctx, &payload, service.ImportOptions{
				Mode:    service.ImportMode(importMode),
				DryRun:  importDryRun,
				Confirm: importConfirm,
			})
			if err != nil {
				return confirmHint(err)
			}
			prefix := "Import report"
			if importDryRun {
				prefix = "Dry run"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: inserted=%d updated=%d skipped=%d removed=%d\n", prefix, report.Inserted, report.Updated, report.Skipped, report.Removed)
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json|csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path")
	importCmd.Flags().StringVar(&importIn, "in", "", "Input json file path")
	importCmd.Flags().StringVar(&importMode, "mode", "fail", "On existing ids: fail|skip|merge|replace")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Report without writing")
	importCmd.Flags().BoolVar(&importConfirm, "yes", false, "Confirm --mode replace")
}
