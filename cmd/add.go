package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/intake"
	"github.com/sells-group/portverify/internal/store"
	"github.com/sells-group/portverify/pkg/notion"
)

var (
	addFile     string
	addFTP      string
	addNotionDB string
)

var addCmd = &cobra.Command{
	Use:   "add [names...]",
	Short: "Queue location names for verification",
	Long:  "Queues names from arguments, a file (txt, csv or xlsx), an FTP URL or a Notion database. Use - as the only argument to read names from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store", false); err != nil {
			return err
		}

		src := nameSources{
			Args:     args,
			Stdin:    cmd.InOrStdin(),
			File:     addFile,
			FTP:      addFTP,
			NotionDB: addNotionDB,
		}
		if addNotionDB != "" {
			if cfg.Notion.Token == "" {
				return eris.New("notion.token is required for --notion-db (PORTVERIFY_NOTION_TOKEN)")
			}
			src.Notion = intake.NewNotionSource(notion.NewClient(cfg.Notion.Token), cfg.Notion.TitleProperty)
		}

		names, err := src.collect(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return eris.New("no names given")
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		added, err := store.Enqueue(ctx, env.Store, env.Ledger, names)
		if err != nil {
			return err
		}

		zap.L().Info("names queued", zap.Int("added", len(added)), zap.Int("ledger", env.Ledger.Len()))
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %d names (%d records in ledger).\n", len(added), env.Ledger.Len())
		return nil
	},
}

// nameSources gathers names from every intake the add command supports, in
// a fixed order: arguments, file, FTP, Notion.
type nameSources struct {
	Args     []string
	Stdin    io.Reader
	File     string
	FTP      string
	NotionDB string
	Notion   *intake.NotionSource
}

func (s nameSources) collect(ctx context.Context) ([]string, error) {
	var names []string

	if len(s.Args) == 1 && s.Args[0] == "-" {
		fromStdin, err := intake.ReadText(s.Stdin)
		if err != nil {
			return nil, err
		}
		names = append(names, fromStdin...)
	} else {
		names = append(names, intake.SplitNames(strings.Join(s.Args, "\n"))...)
	}

	if s.File != "" {
		fromFile, err := intake.ReadFile(s.File)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}

	if s.FTP != "" {
		fromFTP, err := intake.FetchFTP(ctx, s.FTP)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFTP...)
	}

	if s.NotionDB != "" && s.Notion != nil {
		fromNotion, err := s.Notion.QueryNames(ctx, s.NotionDB)
		if err != nil {
			return nil, err
		}
		names = append(names, fromNotion...)
	}

	return names, nil
}

func init() {
	addCmd.Flags().StringVar(&addFile, "file", "", "read names from a txt, csv or xlsx file")
	addCmd.Flags().StringVar(&addFTP, "ftp", "", "download names from an ftp:// URL")
	addCmd.Flags().StringVar(&addNotionDB, "notion-db", "", "read names from the title property of a Notion database")
	rootCmd.AddCommand(addCmd)
}
