package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dara-tech/preartweb/internal/config"
	"github.com/dara-tech/preartweb/internal/domain/indicator"
	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/db"
	"github.com/dara-tech/preartweb/internal/platform/export"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run site registry migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			writeMigrationStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.MigrationsDir
}

func writeMigrationStatus(out io.Writer, statuses []db.MigrationStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	w.Flush()
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the query catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			kind, _ := cmd.Flags().GetString("kind")
			catalog, err := query.LoadCatalog(dir)
			if err != nil {
				return err
			}
			writeCatalog(os.Stdout, catalog, query.Kind(kind))
			return nil
		},
	}
	listCmd.Flags().String("dir", "./queries", "Query catalog directory")
	listCmd.Flags().String("kind", "", "Only list aggregate, detail or section templates")
	cmd.AddCommand(listCmd)

	renderCmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Print a template with the period values inlined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")

			catalog, err := query.LoadCatalog(dir)
			if err != nil {
				return err
			}
			t, err := catalog.Get(args[0])
			if err != nil {
				return err
			}
			p := query.NewParams(start, end)
			if err := p.Validate(); err != nil {
				return err
			}
			fmt.Println(query.Inline(t.SQL, p))
			return nil
		},
	}
	renderCmd.Flags().String("dir", "./queries", "Query catalog directory")
	renderCmd.Flags().String("start", "", "Period start (YYYY-MM-DD)")
	renderCmd.Flags().String("end", "", "Period end (YYYY-MM-DD)")
	cmd.AddCommand(renderCmd)

	return cmd
}

func writeCatalog(out io.Writer, catalog *query.Catalog, kind query.Kind) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCOST\tLABEL")
	for _, t := range catalog.Templates(kind) {
		label := t.LabelEn
		if label == "" {
			label = query.Humanize(t.ID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Kind, t.Cost, label)
	}
	w.Flush()
}

func sitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage the site registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer a.Close()

			sites, err := a.sites.Sites(ctx)
			if err != nil {
				return err
			}
			writeSites(os.Stdout, sites)
			return nil
		},
	})

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert sites from a YAML file into the registry database",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			src, err := site.LoadFileRegistry(file)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := importSites(ctx, src, site.NewRegistryPG(pool))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d site(s) from %s.\n", n, file)
			return nil
		},
	}
	importCmd.Flags().String("file", "sites.yaml", "YAML site list")
	cmd.AddCommand(importCmd)

	return cmd
}

func importSites(ctx context.Context, src site.Registry, dst site.RegistryWriter) (int, error) {
	sites, err := src.ListSites(ctx)
	if err != nil {
		return 0, err
	}
	for i := range sites {
		if err := dst.UpsertSite(ctx, &sites[i]); err != nil {
			return i, fmt.Errorf("import site %s: %w", sites[i].Code, err)
		}
	}
	return len(sites), nil
}

func writeSites(out io.Writer, sites []site.Site) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPROVINCE\tTYPE")
	for _, s := range sites {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Code, s.Name, s.Province, s.Type)
	}
	w.Flush()
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run the ART indicators and write the results to a Parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, _ := cmd.Flags().GetString("site")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			out, _ := cmd.Flags().GetString("out")

			p := query.NewParams(start, end)
			if err := p.Validate(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.aggregator(a.executor()).RunAllSites(ctx, selector, nil, p, false)
			if err != nil {
				return err
			}

			w, err := export.NewIndicatorWriter(out)
			if err != nil {
				return err
			}
			if _, err := w.Write(exportRows(report)); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Printf("Wrote %d row(s) for %d site(s) to %s.\n", w.Count(), report.SiteCount, out)
			return nil
		},
	}
	cmd.Flags().String("site", site.AllSites, "Site code or \"all\"")
	cmd.Flags().String("start", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Period end (YYYY-MM-DD)")
	cmd.Flags().String("out", "indicators.parquet", "Output file")
	return cmd
}

// exportRows flattens a multi-site report into one row per site and
// indicator.
func exportRows(r *indicator.MultiSiteReport) []export.IndicatorRow {
	var rows []export.IndicatorRow
	for _, s := range r.Sites {
		for _, res := range s.Results {
			errMsg := res.Error
			if errMsg == "" {
				errMsg = s.Error
			}
			rows = append(rows, export.IndicatorRow{
				SiteCode:     s.SiteCode,
				SiteName:     s.SiteName,
				IndicatorID:  res.IndicatorID,
				Indicator:    res.Data.Indicator,
				Total:        res.Data.Total,
				Male0To14:    res.Data.Male0To14,
				Female0To14:  res.Data.Female0To14,
				MaleOver14:   res.Data.MaleOver14,
				FemaleOver14: res.Data.FemaleOver14,
				Error:        errMsg,
				StartDate:    r.Period.StartDate,
				EndDate:      r.Period.EndDate,
			})
		}
	}
	return rows
}
