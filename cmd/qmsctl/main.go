package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qms-data/internal/client"
	"qms-data/internal/domain"
	"qms-data/internal/logger"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags connection settings shared by every command
type globalFlags struct {
	server  string
	user    string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "qmsctl",
		Short:        "Command line client for the qms-data API",
		SilenceUsage: true,
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVar(&g.server, "server", envOr("QMS_SERVER", "http://localhost:8080"), "qms-data base URL")
	pf.StringVar(&g.user, "user", envOr("QMS_USER", "u-admin"), "user id sent as X-User-Id")
	pf.DurationVar(&g.timeout, "timeout", 2*time.Minute, "overall command timeout")
	pf.BoolVar(&g.verbose, "verbose", false, "log requests to stderr")

	// connect builds the API client and the command context.
	connect := func(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
		log := zap.NewNop()
		if g.verbose {
			if l, err := logger.NewLogger("debug", "console", "qmsctl"); err == nil {
				log = l
			}
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
		return client.New(g.server, g.user, log), ctx, cancel
	}

	root.AddCommand(
		newHealthCmd(connect),
		newExportCmd(connect),
		newImportCmd(connect),
		newRangeCmd(connect),
		newDocumentsCmd(connect),
		newArchivesCmd(connect),
	)
	return root
}

type connectFunc func(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc)

func newHealthCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			h, err := c.Health(ctx)
			if err != nil {
				return codeError(2, "health check: %s", err)
			}
			if err := printJSON(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if h.Status != "healthy" {
				return codeError(3, "server is %s", h.Status)
			}
			return nil
		},
	}
}

type exportFlags struct {
	format  string
	out     string
	modules []string
	start   string
	end     string
}

func newExportCmd(connect connectFunc) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a backup export (json, csv or xlsx)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			d, err := c.Export(ctx, flags.format, flags.modules, domain.DateRange{Start: flags.start, End: flags.end})
			if err != nil {
				return codeError(2, "export: %s", err)
			}
			path := flags.out
			if path == "" {
				path = d.Filename
			}
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, d.Filename)
			}
			if err := os.WriteFile(path, d.Body, 0o644); err != nil {
				return codeError(3, "writing %s: %s", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(d.Body))
			if d.ArchiveKey != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "archived as %s\n", d.ArchiveKey)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.format, "format", "json", "Export format: json, csv or xlsx")
	f.StringVar(&flags.out, "out", "", "Output file or directory (default: server supplied filename)")
	f.StringSliceVar(&flags.modules, "modules", nil, "Sections to export, e.g. safetyIncidents,users (default: all)")
	f.StringVar(&flags.start, "start", "", "Range start YYYY-MM-DD (default: configured range)")
	f.StringVar(&flags.end, "end", "", "Range end YYYY-MM-DD, inclusive")
	return cmd
}

func newImportCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import <backup-file>",
		Short: "Replace stored data with the sections of a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(3, "reading %s: %s", args[0], err)
			}
			c, ctx, cancel := connect(cmd)
			defer cancel()
			res, err := c.Import(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return codeError(2, "import: %s", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newRangeCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Show or change the backup date range",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the configured backup range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			r, err := c.GetRange(ctx)
			if err != nil {
				return codeError(2, "range get: %s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Label())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <start> <end>",
		Short: "Set the backup range; use - for an open bound",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.DateRange{Start: openBound(args[0]), End: openBound(args[1])}
			c, ctx, cancel := connect(cmd)
			defer cancel()
			saved, err := c.SetRange(ctx, r)
			if err != nil {
				return codeError(2, "range set: %s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.Label())
			return nil
		},
	})
	return cmd
}

func newDocumentsCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Controlled documents",
	}
	var q client.DocumentQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			page, err := c.ListDocuments(ctx, q)
			if err != nil {
				return codeError(2, "documents list: %s", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tVERSION\tSTATUS\tTITLE")
			for _, d := range page.Items {
				fmt.Fprintf(tw, "%s\tv%d\t%s\t%s\n", d.DocNumber, d.Version, d.Status, d.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}
	f := list.Flags()
	f.StringVar(&q.Search, "search", "", "Free text search")
	f.StringVar(&q.Status, "status", "", "DRAFT, PENDING_APPROVAL, APPROVED, REJECTED or ARCHIVED")
	f.IntVar(&q.Page, "page", 1, "Page number")
	f.IntVar(&q.Size, "size", 50, "Page size")
	cmd.AddCommand(list)
	return cmd
}

func newArchivesCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Backups archived to object storage",
	}
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			objs, err := c.Archives(ctx, limit)
			if err != nil {
				return codeError(2, "archives list: %s", err)
			}
			for _, o := range objs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of archives")
	cmd.AddCommand(list, &cobra.Command{
		Use:   "restore <key>",
		Short: "Import an archived backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := connect(cmd)
			defer cancel()
			res, err := c.Restore(ctx, args[0])
			if err != nil {
				return codeError(2, "archives restore: %s", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openBound(s string) string {
	if s = strings.TrimSpace(s); s == "-" {
		return ""
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
