package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/24601/agent-deep-research/cmd/deep-research/ui"
	"github.com/24601/agent-deep-research/internal/gemini"
	"github.com/24601/agent-deep-research/internal/state"
)

var storesCreateName string

// storesCmd manages the file search stores that ground research
var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage file search stores used to ground research",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known store aliases",
	Args:  cobra.NoArgs,
	RunE:  runStoresList,
}

var storesCreateCmd = &cobra.Command{
	Use:   "create <file>...",
	Short: "Create a store and index files into it",
	Long: `Creates a file search store, uploads the given files, and waits for
indexing to finish. The alias is saved locally so later runs can reference
the store with --store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStoresCreate,
}

func init() {
	storesCreateCmd.Flags().StringVar(&storesCreateName, "name", "", "Store alias (required)")
	_ = storesCreateCmd.MarkFlagRequired("name")
	storesCmd.AddCommand(storesListCmd, storesCreateCmd)
	rootCmd.AddCommand(storesCmd)
}

func runStoresList(cmd *cobra.Command, args []string) error {
	store := state.NewStore(cfg.StatePath, logger)
	aliases := store.StoreAliases()

	if len(aliases) == 0 {
		fmt.Fprintln(os.Stderr, ui.Dim("No file search stores recorded"))
		return printJSON(aliases)
	}

	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	for _, alias := range names {
		fmt.Fprintf(os.Stderr, "  %s -> %s\n", ui.Bold(alias), aliases[alias])
	}
	return printJSON(aliases)
}

// storesCreateResult is the stdout contract of stores create.
type storesCreateResult struct {
	Alias string `json:"alias"`
	Name  string `json:"name"`
	Files int    `json:"files"`
}

func runStoresCreate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	store := state.NewStore(cfg.StatePath, logger)
	client, err := gemini.NewClient(cfg.APIKey, gemini.WithBaseURL(cfg.BaseURL), gemini.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not create API client: %w", err)
	}

	fss, err := client.CreateFileSearchStore(ctx, storesCreateName)
	if err != nil {
		return fmt.Errorf("create file search store: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range args {
		g.Go(func() error {
			base := filepath.Base(path)
			fmt.Fprintln(os.Stderr, ui.Dim("Uploading "+base+"..."))
			op, err := client.UploadToFileSearchStore(gctx, fss.Name, path, base)
			if err != nil {
				return fmt.Errorf("upload %s: %w", base, err)
			}
			if _, err := client.WaitOperation(gctx, op); err != nil {
				return fmt.Errorf("index %s: %w", base, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := store.SetStoreAlias(storesCreateName, fss.Name); err != nil {
		logger.Warn("could not save store alias", zap.String("alias", storesCreateName), zap.Error(err))
	}

	fmt.Fprintln(os.Stderr, ui.SuccessLine(fmt.Sprintf("Indexed %d file(s) into %s", len(args), fss.Name)))
	return printJSON(storesCreateResult{Alias: storesCreateName, Name: fss.Name, Files: len(args)})
}
