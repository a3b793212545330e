package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/Sternrassler/category-browser/pkg/pagination"
	"github.com/spf13/cobra"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <category>",
		Short: "Fetch every page of a category and write it as JSON or CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("export")
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			collector := pagination.NewCollector(a.source, pagination.Config{
				MaxConcurrency: c.cfg.Export.Concurrency,
				Timeout:        c.cfg.Export.PageTimeout,
				MaxPages:       c.cfg.Export.MaxPages,
			})
			result, err := collector.Collect(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			w := c.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if format == "csv" {
				err = writeCSV(w, result)
			} else {
				err = writeJSON(w, result)
			}
			if err != nil {
				return err
			}

			logger.Info().
				Str("category", result.Category).
				Int("pages", result.Pages).
				Int("items", len(result.Items)).
				Msg("Category exported")
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func writeJSON(w io.Writer, result *pagination.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var csvHeader = []string{"id", "title", "authors", "languages", "subjects", "cover_image_url"}

func writeCSV(w io.Writer, result *pagination.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range result.Items {
		record := []string{
			strconv.FormatInt(item.ID, 10),
			item.Title,
			strings.Join(item.Authors, "; "),
			strings.Join(item.Languages, "; "),
			strings.Join(item.Subjects, "; "),
			item.CoverImageURL,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
