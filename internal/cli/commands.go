package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/history"
	"github.com/famomatic/ytfetch/internal/server"
)

// formatFlags are shared by url and download.
type formatFlags struct {
	itag   int
	mode   string
	format string
}

func (f *formatFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.itag, "itag", 0, "exact itag to use")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "format expression, e.g. \"bestaudio[ext=m4a]/bestaudio\"")
	cmd.Flags().StringVar(&f.mode, "mode", "", "selection mode: best, mp4av, videoonly, audioonly")
}

func (f *formatFlags) options() (client.DownloadOptions, error) {
	if f.itag < 0 {
		return client.DownloadOptions{}, fmt.Errorf("%w: itag must not be negative", client.ErrInvalidArgument)
	}
	mode, err := client.ParseSelectionMode(f.mode)
	if err != nil {
		return client.DownloadOptions{}, err
	}
	return client.DownloadOptions{Itag: f.itag, Mode: mode, Format: f.format}, nil
}

func newServeCmd(opts *Options) *cobra.Command {
	var (
		addr        string
		cacheKind   string
		withHistory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cacheKind != "" {
				cfg.Cache.Backend = cacheKind
			}
			if cmd.Flags().Changed("history") {
				cfg.History.Enabled = withHistory
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := server.New(serverOptions(rt))
			log.Info().Str("addr", cfg.Server.Addr).Str("cache", cfg.Cache.Backend).Bool("history", rt.history != nil).Msg("Starting ytfetch")
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&cacheKind, "cache", "", "cache backend: memory, redis, none")
	cmd.Flags().BoolVar(&withHistory, "history", false, "record lookups in the history database")
	return cmd
}

func serverOptions(rt *runtime) server.Options {
	so := server.Options{
		Service:          rt.client,
		CORSOrigins:      rt.cfg.Server.CORSOrigins,
		RateLimit:        rt.cfg.Server.RateLimit,
		RateBurst:        rt.cfg.Server.RateBurst,
		RequestTimeout:   rt.cfg.Server.RequestTimeout,
		PresentableLimit: rt.cfg.Server.PresentableLimit,
		Version:          Version,
		Logger:           log.Logger,
	}
	if rt.history != nil {
		so.History = rt.history
	}
	return so
}

func newInfoCmd(opts *Options) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "info <url>",
		Short: "Show video metadata, the best combined format and a format table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("%w: limit must not be negative", client.ErrInvalidArgument)
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.client.Inspect(cmd.Context(), args[0], limit)
			entry := history.Entry{Kind: history.KindInfo, VideoID: resolvedID(args[0]), Error: errorText(err)}
			if report != nil && report.Video != nil {
				entry.Title = report.Video.Title
			}
			rt.record(cmd.Context(), entry)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to show (0 uses server.presentable_limit)")
	return cmd
}

func newResolveCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the 11-character video id of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := client.ResolveIdentifier(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return recordResolve(cmd, opts, id)
		},
	}
}

// recordResolve writes a history entry without building the full runtime;
// resolving never touches the network.
func recordResolve(cmd *cobra.Command, opts *Options, id client.VideoID) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	rt := &runtime{history: store}
	rt.record(cmd.Context(), history.Entry{Kind: history.KindResolve, VideoID: string(id)})
	return nil
}

func newURLCmd(opts *Options) *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Print a direct stream URL for the selected format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dl, err := ff.options()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, streamURL, err := rt.client.ResolveStreamURL(cmd.Context(), args[0], dl)
			rt.record(cmd.Context(), history.Entry{Kind: history.KindURL, VideoID: resolvedID(args[0]), Itag: f.Itag, Error: errorText(err)})
			if err != nil {
				return err
			}
			log.Debug().Int("itag", f.Itag).Str("mime", f.MimeType).Msg("Selected format")
			fmt.Fprintln(cmd.OutOrStdout(), streamURL)
			return nil
		},
	}
	ff.bind(cmd)
	return cmd
}

func newDownloadCmd(opts *Options) *cobra.Command {
	var (
		ff     formatFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Save the selected stream to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dl, err := ff.options()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			path, n, f, err := saveStream(cmd, rt.client, args[0], dl, output)
			rt.record(cmd.Context(), history.Entry{
				Kind:      history.KindDownload,
				VideoID:   resolvedID(args[0]),
				Itag:      f.Itag,
				SizeBytes: n,
				Error:     errorText(err),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", color.GreenString("Saved"), path, client.HumanSize(strconv.FormatInt(n, 10)))
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory (default: sanitized title)")
	return cmd
}

func saveStream(cmd *cobra.Command, c *client.Client, input string, opts client.DownloadOptions, output string) (string, int64, client.FormatInfo, error) {
	d, err := c.OpenStream(cmd.Context(), input, opts)
	if err != nil {
		return "", 0, client.FormatInfo{}, err
	}
	defer d.Body.Close()

	path := outputPath(output, d.Filename)
	file, err := os.Create(path)
	if err != nil {
		return "", 0, d.Format, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, copyErr := io.Copy(file, d.Body)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", n, d.Format, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, n, d.Format, nil
}

// outputPath resolves -o: empty uses the suggested name, an existing
// directory receives it.
func outputPath(output, suggested string) string {
	if output == "" {
		return suggested
	}
	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return filepath.Join(output, suggested)
	}
	return output
}

func newHistoryCmd(opts *Options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent lookups and downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "History is disabled (set history.enabled or YTFETCH_HISTORY).")
				return nil
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ytfetch %s\n", Version)
		},
	}
}

func openRuntime(cmd *cobra.Command, opts *Options) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return newRuntime(cmd.Context(), cfg)
}

func resolvedID(input string) string {
	id, err := client.ResolveIdentifier(input)
	if err != nil {
		return ""
	}
	return string(id)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
