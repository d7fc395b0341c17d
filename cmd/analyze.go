package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aleksis/flipkit/config"
	"github.com/aleksis/flipkit/internal/enhance"
	"github.com/aleksis/flipkit/internal/llm"
	"github.com/aleksis/flipkit/internal/pipeline"
	"github.com/aleksis/flipkit/internal/pricing"
	"github.com/aleksis/flipkit/internal/session"
	"github.com/aleksis/flipkit/internal/storage"
)

func newAnalyzeCmd() *cobra.Command {
	var noEnhance bool
	var noStream bool
	var useOriginal []int

	cmd := &cobra.Command{
		Use:   "analyze <photo>...",
		Short: "Analyze item photos and create a listing draft",
		Long: `Analyzes up to five photos of one item. Each photo is enhanced
concurrently while the originals are submitted to the vision model; the
resulting listing is priced and persisted as a draft.`,
		Example: `  # Single photo
  flipkit analyze hoodie.jpg

  # Several angles of the same item, keeping the second photo unenhanced
  flipkit analyze front.jpg back.jpg label.jpg --use-original 2`,
		Args: cobra.RangeArgs(1, session.MaxImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := cmd.Context()

			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			estimator, err := newEstimator(cfg)
			if err != nil {
				return err
			}

			var gateway llm.Gateway
			if cfg.AnalyzeStreamURL != "" || cfg.AnalyzeURL != "" {
				gateway = llm.NewHTTPGateway(cfg.AnalyzeStreamURL, cfg.AnalyzeURL, cfg.AnalysisTimeout)
			} else {
				gateway = llm.NewGeminiGateway(cfg.GeminiModel)
			}

			enhancer := enhance.Enhancer(enhance.Disabled())
			if cfg.EnhanceURL != "" && !noEnhance {
				enhancer = enhance.NewClient(cfg.EnhanceURL, cfg.EnhanceTimeout)
			}

			dispatcher := enhance.NewDispatcher(ctx, enhancer, cfg.EnhanceDir)
			sess := session.New(dispatcher.Dispatch)
			dispatcher.SetSession(sess)

			// Add photos; enhancement for each starts immediately.
			var items []session.ImageItem
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				abs, err := filepath.Abs(path)
				if err != nil {
					abs = path
				}
				item, err := sess.AddImage(data, abs)
				if err != nil {
					return fmt.Errorf("failed to add %s: %w", path, err)
				}
				items = append(items, *item)
			}

			dispatcher.Wait()

			for i, item := range items {
				snapshot := findImage(sess, item.ID)
				if snapshot == nil {
					continue
				}
				if snapshot.Enhancement == session.EnhancementFailed && !noEnhance && cfg.EnhanceURL != "" {
					log.Warn().Str("photo", args[i]).Msg("enhancement failed, original will be kept")
				}
				for _, n := range useOriginal {
					if n == i+1 && snapshot.Enhancement == session.EnhancementSucceeded {
						if err := sess.ToggleSelection(item.ID, false); err != nil {
							return err
						}
					}
				}
			}

			orch := pipeline.NewOrchestrator(gateway, estimator, store, store).
				WithStreaming(!noStream).
				WithDeltaObserver(func(string) { fmt.Fprint(os.Stderr, ".") })

			draft, err := orch.RunAnalysis(ctx, sess)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				if msg := sess.LastError(); msg != "" {
					return fmt.Errorf("analysis failed: %s", msg)
				}
				return err
			}

			printDraft(cmd, draft)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noEnhance, "no-enhance", false, "Skip image enhancement")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Use the non-streaming analysis endpoint")
	cmd.Flags().IntSliceVar(&useOriginal, "use-original", nil, "1-based photo numbers to persist unenhanced")

	return cmd
}

func newEstimator(cfg config.Config) (*pricing.Estimator, error) {
	pricingCfg := pricing.DefaultConfig()
	if cfg.PricingPath != "" {
		loaded, err := pricing.LoadConfig(cfg.PricingPath)
		if err != nil {
			return nil, err
		}
		pricingCfg = loaded
	}
	return pricing.NewEstimator(pricingCfg), nil
}

func findImage(sess *session.Session, id string) *session.ImageItem {
	for _, item := range sess.Images() {
		if item.ID == id {
			return &item
		}
	}
	return nil
}

func printDraft(cmd *cobra.Command, draft *storage.ListingDraft) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Draft %s\n", draft.ID)
	fmt.Fprintf(out, "  Title:       %s\n", draft.Title)
	fmt.Fprintf(out, "  Brand:       %s\n", draft.Brand)
	fmt.Fprintf(out, "  Category:    %s\n", draft.Category)
	fmt.Fprintf(out, "  Material:    %s\n", draft.Material)
	fmt.Fprintf(out, "  Condition:   %s (%s)\n", draft.Condition, draft.ConditionScore)
	fmt.Fprintf(out, "  Flaws:       %s\n", draft.Flaws)
	fmt.Fprintf(out, "  Price:       %d € (quick sell %d €, sell probability %d%%)\n",
		draft.SuggestedPrice, draft.QuickSellPrice, draft.SellProbability)
	fmt.Fprintf(out, "  Images:      %s\n", strings.Join(draft.ImageRefs, ", "))
	if draft.Description != "" {
		fmt.Fprintf(out, "  Description:\n%s\n", draft.Description)
	}
}
