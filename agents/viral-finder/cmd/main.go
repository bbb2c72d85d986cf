package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	viralfinder "viral-finder/agents/viral-finder"
	"viral-finder/agents/viral-finder/web"
	"viral-finder/agents/viral-finder/youtube"
	"viral-finder/internal/models"
	"viral-finder/shared/ai"
	"viral-finder/shared/config"
	"viral-finder/shared/logging"
	"viral-finder/shared/monitoring"
	"viral-finder/shared/scheduler"
	"viral-finder/shared/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	kv        storage.KeyValueStore
	keys      *storage.CredentialStore
	youtube   *youtube.Client
	generator *ai.Generator
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("viral-finder failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "viral-finder",
		Short:         "Find YouTube videos that outperform their channel size",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.AddCommand(
		a.serveCommand(),
		a.searchCommand(),
		a.analyzeCommand(),
		a.outlineCommand(),
		a.keysCommand(),
		a.watchCommand(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level)

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	a.cfg = cfg
	a.kv = kv
	a.keys = storage.NewCredentialStore(kv)
	a.youtube = youtube.NewClient(&cfg.YouTube)
	a.generator = ai.NewGenerator(&cfg.AI)
	return nil
}

func (a *app) close() error {
	if a.kv == nil {
		return nil
	}
	return a.kv.Close()
}

// credentials returns the saved key pair. The configured YouTube key fills in when
// none was saved; the Gemini fallback lives in the generator.
func (a *app) credentials() (models.CredentialPair, error) {
	creds, err := a.keys.Load()
	if err != nil {
		return creds, err
	}
	if creds.YouTubeAPIKey == "" {
		creds.YouTubeAPIKey = a.cfg.YouTube.APIKey
	}
	return creds, nil
}

func (a *app) newController() (*viralfinder.Controller, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	return viralfinder.NewController(a.youtube, a.youtube, a.generator, a.keys, creds), nil
}

func (a *app) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.newController()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			server, err := web.NewServer(cmd.Context(), controller, monitoring.NewMonitor())
			if err != nil {
				return err
			}
			return server.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

type searchFlags struct {
	duration string
	minScore float64
	asJSON   bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.duration, "duration", "any", "video length: any, short or long")
	cmd.Flags().Float64Var(&f.minScore, "min-score", viralfinder.DefaultMinScore, "minimum viral score (0-5, step 0.5)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
}

// run searches keyword and returns the videos left after the score filter.
func (f *searchFlags) run(ctx context.Context, controller *viralfinder.Controller, keyword string) ([]models.VideoRecord, error) {
	duration, err := models.ParseDuration(f.duration)
	if err != nil {
		return nil, err
	}
	controller.SetMinViralScore(f.minScore)
	if err := controller.Search(ctx, keyword, duration); err != nil {
		return nil, err
	}
	return controller.Snapshot().Visible(), nil
}

func (a *app) searchCommand() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Rank videos for a keyword by views per subscriber",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.newController()
			if err != nil {
				return err
			}

			videos, err := flags.run(cmd.Context(), controller, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), videos)
			}
			return printVideos(cmd.OutOrStdout(), videos)
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *app) analyzeCommand() *cobra.Command {
	flags := &searchFlags{}
	var rank int

	cmd := &cobra.Command{
		Use:   "analyze <keyword>",
		Short: "Search a keyword and analyze one of the ranked videos with Gemini",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.newController()
			if err != nil {
				return err
			}

			videos, err := flags.run(cmd.Context(), controller, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if rank < 1 || rank > len(videos) {
				return fmt.Errorf("rank %d is out of range: %d videos passed the filter", rank, len(videos))
			}

			video := videos[rank-1]
			if err := controller.Analyze(cmd.Context(), video.ID); err != nil {
				return err
			}

			snap := controller.Snapshot()
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), snap.Analysis)
			}
			return printAnalysis(cmd.OutOrStdout(), video, snap.CommentCount, snap.Analysis)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&rank, "rank", 1, "which video to analyze, 1 is the highest score")
	return cmd
}

func (a *app) outlineCommand() *cobra.Command {
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "outline <keyword>",
		Short: "Generate a script outline for a keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.credentials()
			if err != nil {
				return err
			}

			outline, err := a.generator.Outline(cmd.Context(), strings.Join(args, " "), title, creds)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), outline)
			}
			return printOutline(cmd.OutOrStdout(), outline)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "reference video title")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the saved API keys",
	}

	var youtubeKey, geminiKey string
	set := &cobra.Command{
		Use:   "set",
		Short: "Save API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("youtube") && !cmd.Flags().Changed("gemini") {
				return fmt.Errorf("nothing to save: pass --youtube and/or --gemini")
			}
			if cmd.Flags().Changed("youtube") {
				if err := a.keys.SaveYouTubeKey(youtubeKey); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("gemini") {
				if err := a.keys.SaveGeminiKey(geminiKey); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Keys saved.")
			return nil
		},
	}
	set.Flags().StringVar(&youtubeKey, "youtube", "", "YouTube Data API key")
	set.Flags().StringVar(&geminiKey, "gemini", "", "Gemini API key")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the saved API keys (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.keys.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "YouTube: %s\nGemini:  %s\n", maskKey(creds.YouTubeAPIKey), maskKey(creds.GeminiAPIKey))
			return nil
		},
	}

	cmd.AddCommand(set, show)
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Search the configured keywords on a schedule and e-mail new viral videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateWatch(); err != nil {
				return err
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}

			agent := viralfinder.NewWatchAgent(a.cfg, creds)
			s := scheduler.New(a.cfg, agent)

			if once {
				log.Info().Msg("Running once...")
				if err := agent.Initialize(); err != nil {
					return fmt.Errorf("failed to initialize agent: %w", err)
				}
				return s.RunOnce(cmd.Context())
			}

			log.Info().Msg("Starting scheduler...")
			if err := s.Start(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}
