package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/media"
	"github.com/spf13/cobra"
)

// runFunc is a command body that receives the bootstrapped app.
type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

// withApp bootstraps the app before fn and releases it afterwards.
func withApp(logOut func(cmd *cobra.Command) io.Writer, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, a, err := bootstrap(cmd.Context(), logOut(cmd))
		if err != nil {
			return err
		}

		defer func() {
			if err := a.Close(context.WithoutCancel(ctx)); err != nil {
				a.logger.Error("failed to release resources", "err", err)
			}
		}()

		return fn(ctx, cmd, a, args)
	}
}

func stdoutLogs(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

func stderrLogs(cmd *cobra.Command) io.Writer { return cmd.ErrOrStderr() }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "youcast",
		Short:        "Batch media downloader",
		Long:         "youcast downloads audio or video from media URLs with yt-dlp and keeps a history of the files it produced.",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(historyCmd())

	return root
}

// serveCmd starts the HTTP API.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serve the batch, status and history API. Configuration is read from the environment.",
		Args:  cobra.NoArgs,
		RunE: withApp(stdoutLogs, func(ctx context.Context, _ *cobra.Command, a *app, _ []string) error {
			return serve(ctx, a)
		}),
	}
}

// fetchCmd downloads a batch from the command line.
func fetchCmd() *cobra.Command {
	var mediaType, format, quality, playlist, output, urlsFile string

	fetchCmd := &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Download a batch of URLs",
		Long:  "Fetch downloads every URL in order, falling back to simpler formats when one fails. URLs come from the arguments and from --urls-file.",
		RunE: withApp(stderrLogs, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			urls := media.ParseURLs(strings.Join(args, "\n"))

			if urlsFile != "" {
				fromFile, err := readURLsFile(cmd, urlsFile)
				if err != nil {
					return err
				}

				urls = append(urls, fromFile...)
			}

			req := a.cfg.RequestDefaults().Apply(media.Request{
				URLs:         urls,
				MediaType:    media.MediaType(mediaType),
				Format:       format,
				Quality:      quality,
				PlaylistMode: media.PlaylistMode(playlist),
				OutputFolder: output,
			})

			d, err := a.newDownloader(ctx, newConsoleObserver(cmd.OutOrStdout()), downloader.NewLogObserver())
			if err != nil {
				return err
			}

			result, err := d.ProcessBatch(ctx, req)
			if err != nil {
				return err
			}

			if _, failed := result.Counts(); failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, result.Total)
			}

			return nil
		}),
	}

	fetchCmd.Flags().StringVarP(&mediaType, "media", "m", "", "Media type: audio or video")
	fetchCmd.Flags().StringVarP(&format, "format", "f", "", "Audio format (mp3, m4a, wav, ...). Ignored for video")
	fetchCmd.Flags().StringVarP(&quality, "quality", "q", "", "Audio bitrate in kbps or maximum video height")
	fetchCmd.Flags().StringVarP(&playlist, "playlist", "p", "", "Playlist mode: single or playlist")
	fetchCmd.Flags().StringVarP(&output, "output", "o", "", "Output folder")
	fetchCmd.Flags().StringVar(&urlsFile, "urls-file", "", "File with one URL per line, - for stdin")

	return fetchCmd
}

func historyCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "History commands",
		Long:  "Inspect or clear the download history. Needs HISTORY_DB_PATH, the in-memory history does not outlive a process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("please specify a subcommand. Use --help to see available subcommands")
		},
	}

	historyCmd.AddCommand(historyListCmd())
	historyCmd.AddCommand(historyClearCmd())

	return historyCmd
}

var errNoDurableHistory = errors.New("history is kept in memory; set HISTORY_DB_PATH to use history commands")

func historyListCmd() *cobra.Command {
	var asJSON bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List downloaded files",
		Args:  cobra.NoArgs,
		RunE: withApp(stderrLogs, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if !a.cfg.UsesDurableHistory() {
				return errNoDurableHistory
			}

			entries, err := a.history.Entries(ctx)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No downloads yet.")

				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tSIZE\tFORMAT\tADDED\tSTATUS\tPATH")

			for _, e := range entries {
				status := "ok"
				if !e.Available {
					status = "missing"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Title, e.SizeHuman, e.Format, humanize.Time(e.AddedAt), status, e.Path)
			}

			return w.Flush()
		}),
	}

	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return listCmd
}

func historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the history",
		Long:  "Clear removes every history entry. Downloaded files stay on disk.",
		Args:  cobra.NoArgs,
		RunE: withApp(stderrLogs, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if !a.cfg.UsesDurableHistory() {
				return errNoDurableHistory
			}

			if err := a.history.Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")

			return nil
		}),
	}
}

func readURLsFile(cmd *cobra.Command, path string) ([]string, error) {
	if path == "-" {
		return media.ReadURLs(cmd.InOrStdin())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open urls file: %w", err)
	}
	defer f.Close()

	return media.ReadURLs(f)
}
