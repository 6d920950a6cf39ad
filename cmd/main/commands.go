package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"menucrawler/crawler/internal/export"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var (
		subcategories bool
		format        string
		output        string
	)

	cmd := &cobra.Command{
		Use:   "discover <menu-url>",
		Short: "List the categories of a menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.Discover(cmd.Context(), args[0], subcategories)
			if !result.Success {
				return errors.New(result.Error)
			}

			if output == "" {
				return export.WriteCategories(cmd.OutOrStdout(), result.Categories, format)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer f.Close()

			if err := export.WriteCategories(f, result.Categories, format); err != nil {
				return err
			}
			log.Infof("💾 Wrote %d categories to %s", result.Count, output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&subcategories, "subcategories", true, "Descend into subcategories")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write categories to a file instead of stdout")

	return cmd
}

func newCrawlCmd(a *app) *cobra.Command {
	var (
		sel    selectorFlags
		report string
	)

	cmd := &cobra.Command{
		Use:   "crawl <menu-url>",
		Short: "Discover every category of a menu and crawl its items",
		Long: `Crawl discovers the categories of a menu page, crawls each category page
with the selector set and appends the items to the session. Categories that
fail are reported and, with redis enabled, queued for the retry command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors, err := sel.resolve(a.cfg, args[0])
			if err != nil {
				return err
			}

			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.CrawlWithCategories(cmd.Context(), a.sessionID, args[0], selectors)
			if !result.Success {
				return errors.New(result.Error)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSTATUS\tITEMS\tERROR")
			for _, r := range result.CrawlResults {
				status := "ok"
				if !r.Success {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Category, status, r.Count, r.Error)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d items from %d categories (%d failed)\n",
				result.Count, result.CategoriesDiscovered, len(result.FailedCategories()))

			if report != "" {
				saved := c.Service.ExportReport(result, report, true)
				if !saved.Success {
					return errors.New(saved.Error)
				}
			}
			return nil
		},
	}

	sel.register(cmd)
	cmd.Flags().StringVarP(&report, "report", "r", "", "Also save this crawl in the given format (json, csv, excel, markdown)")

	return cmd
}

func newCrawlSingleCmd(a *app) *cobra.Command {
	var (
		sel      selectorFlags
		category string
	)

	cmd := &cobra.Command{
		Use:   "crawl-single <page-url>",
		Short: "Crawl the items of a single page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors, err := sel.resolve(a.cfg, args[0])
			if err != nil {
				return err
			}

			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.CrawlSingle(cmd.Context(), a.sessionID, args[0], selectors, category)
			if !result.Success {
				return errors.New(result.Error)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	sel.register(cmd)
	cmd.Flags().StringVar(&category, "category", "", "Category label for the crawled items")

	return cmd
}

func newTestSelectorsCmd(a *app) *cobra.Command {
	var sel selectorFlags

	cmd := &cobra.Command{
		Use:   "test-selectors <page-url>",
		Short: "Show what each selector matches on a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors, err := sel.resolve(a.cfg, args[0])
			if err != nil {
				return err
			}

			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.TestSelectors(cmd.Context(), args[0], selectors)
			if !result.Success {
				return errors.New(result.Error)
			}
			return printJSON(cmd.OutOrStdout(), result.Results)
		},
	}

	sel.register(cmd)

	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the items accumulated in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.Export(cmd.Context(), a.sessionID, format, !stdout)
			if !result.Success {
				return errors.New(result.Error)
			}

			if stdout {
				_, err := cmd.OutOrStdout().Write(result.Content)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Filepath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: json, csv, excel or markdown")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Write the export to stdout instead of the export directory")

	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the items accumulated in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return c.Service.ResetSession(cmd.Context(), a.sessionID)
		},
	}
}

func newRetryCmd(a *app) *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Crawl again the categories that failed in earlier crawls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.RetryFailed(cmd.Context(), consumer)
			if !result.Success {
				return errors.New(result.Error)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	host, _ := os.Hostname()
	cmd.Flags().StringVar(&consumer, "consumer", "menucrawler-"+host, "Consumer name within the retry group")

	return cmd
}

func newCategoryImagesCmd(a *app) *cobra.Command {
	var (
		subcategories bool
		output        string
	)

	cmd := &cobra.Command{
		Use:   "category-images <menu-url>",
		Short: "Download the category thumbnails of a menu as a ZIP archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			result := c.Service.DownloadCategoryImages(cmd.Context(), args[0], subcategories)
			if !result.Success {
				return errors.New(result.Error)
			}

			path := output
			if path == "" {
				path = filepath.Join(a.cfg.Export.Directory, result.Filename)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(path, result.Content, 0644); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}

			log.Infof("💾 Saved %d images to %s (%d skipped)", result.Images, path, result.Skipped)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&subcategories, "subcategories", false, "Include subcategory images")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default in the export directory)")

	return cmd
}

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the configured selector presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tCONTAINER\tITEM\tNAME\tPRICE")
			for _, name := range a.cfg.PresetNames() {
				p, _ := a.cfg.Preset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, p.Container, p.Item, p.Name, p.Price)
			}
			return w.Flush()
		},
	}
}
