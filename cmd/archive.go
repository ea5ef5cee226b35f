package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Rippers/core/app"
	"Rippers/core/archive"
	"Rippers/model"

	"github.com/spf13/cobra"
)

var (
	matchArtist string
	matchTitle  string
	buildOutput string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Look things up in the music archive index",
}

func entryRows(entries []model.ArchiveEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Artist, e.Title, e.Album, e.Path})
	}
	return rows
}

var archiveSearchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search the archive by words",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			results, err := svc.Archive().Search(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Artist", "Title", "Album", "Path"}, entryRows(results), nil))
			return nil
		})
	},
}

var archiveMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the archive copy of an artist and title",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			e, ok := svc.Archive().MatchByArtistTitle(matchArtist, matchTitle)
			if !ok {
				return fmt.Errorf("%w: no archive match for %q - %q", model.ErrNotFound, matchArtist, matchTitle)
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Path)
			return nil
		})
	},
}

var archiveBuildCmd = &cobra.Command{
	Use:   "build <dir>",
	Short: "Index a local music directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := archive.ScanDir(args[0])
		if err != nil {
			return err
		}
		index := archive.BuildIndex(paths, time.Now())
		out := buildOutput
		if out == "" {
			out = loadConfig().ArchiveIndex
		}
		if err := archive.WriteIndexFile(out, index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d file(s) into %s\n", index.Count, out)
		return nil
	},
}

func init() {
	archiveMatchCmd.Flags().StringVar(&matchArtist, "artist", "", "artist")
	archiveMatchCmd.Flags().StringVar(&matchTitle, "title", "", "title")
	archiveBuildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "index file to write (default: ARCHIVE_INDEX)")

	archiveCmd.AddCommand(archiveSearchCmd, archiveMatchCmd, archiveBuildCmd)
	rootCmd.AddCommand(archiveCmd)
}
