package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deckfm/cache"
	"deckfm/config"
	"deckfm/core/engine"
	"deckfm/core/frame"
	"deckfm/core/source"
	"deckfm/eventlog"
	"deckfm/logger"
	"deckfm/notify"
	"deckfm/player"
	"deckfm/publish"
)

var (
	playNoLocal bool
	playVolume  int
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Host playback of the shared queue",
	Long: `Runs the playback loop: pops queued tracks, resolves them to PCM,
plays them on the local speaker and publishes 10 ms frames to the room relay.
Stops on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}
		appender := eventlog.NewAppender(store)

		audioCache := cache.New(cfg.CacheDir, cfg.CacheCapacity)
		resolver := source.NewResolver(cfg.YtDlpPath, cfg.FFmpegPath, cfg.SampleRate, cfg.Channels, audioCache)

		notifier := newNotifier(cfg, store)
		if notifier != nil {
			defer notifier.Close()
		}

		volume := cfg.Volume
		if cmd.Flags().Changed("volume") {
			volume = playVolume
		}
		localPlayback := cfg.LocalPlayback && !playNoLocal

		var output engine.LocalOutput
		if localPlayback {
			output = speakerOutput{speaker: player.NewSpeaker(cfg.SampleRate, cfg.Channels)}
		}

		eng := engine.New(engine.Options{
			Appender:      appender,
			Source:        resolver,
			Notifier:      notifier,
			Output:        output,
			SampleRate:    cfg.SampleRate,
			Channels:      cfg.Channels,
			Volume:        volume,
			LocalPlayback: localPlayback,
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cfg.RelayURL != "" {
			pub := publish.NewRelayPublisher(publish.Options{
				URL:        cfg.RelayURL,
				APIKey:     cfg.RelayAPIKey,
				Secret:     cfg.RelaySecret,
				Room:       cfg.Room,
				Identity:   cfg.Identity,
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
			})
			if err := pub.Connect(); err != nil {
				logger.Warn("relay publishing disabled", logger.ErrorField(err))
			} else {
				defer pub.Close()
				assembler := frame.NewAssembler(cfg.SampleRate, cfg.Channels, pub)
				go func() {
					if err := assembler.Run(ctx, eng.PCMOutput()); err != nil && ctx.Err() == nil {
						logger.Error("publish pipeline stopped", logger.ErrorField(err))
					}
				}()
			}
		}

		eng.Start(ctx)
		logger.Info("playback engine started",
			logger.String("backend", cfg.StoreBackend),
			logger.String("room", cfg.Room),
			logger.String("identity", cfg.Identity),
			logger.Bool("localPlayback", localPlayback))

		<-ctx.Done()
		logger.Info("shutting down")
		eng.Stop()
		return nil
	},
}

// speakerOutput adapts the concrete speaker to the engine's output port.
type speakerOutput struct {
	speaker *player.Speaker
}

func (o speakerOutput) Begin() (engine.LocalSession, error) {
	return o.speaker.Begin()
}

// newNotifier picks the push transport for queue updates: webhook relay over
// websocket, then a direct webhook receiver, then a filesystem watch for the
// file backend. Returning nil degrades the engine to polling.
func newNotifier(cfg *config.Config, store eventlog.Store) notify.Notifier {
	switch {
	case cfg.NotifyURL != "":
		return notify.NewRelayListener(cfg.NotifyURL, cfg.GitHubToken, cfg.QueueRepo, cfg.QueueFile)
	case cfg.HookAddr != "":
		return notify.NewHookServer(cfg.HookAddr, cfg.QueueRepo, cfg.QueueFile)
	}
	if fs, ok := store.(*eventlog.FileStore); ok {
		fw, err := notify.NewFileWatcher(fs.Path())
		if err != nil {
			logger.Warn("log watch unavailable, falling back to polling", logger.ErrorField(err))
			return nil
		}
		return fw
	}
	return nil
}

func init() {
	playCmd.Flags().BoolVar(&playNoLocal, "no-local", false, "disable local speaker playback")
	playCmd.Flags().IntVar(&playVolume, "volume", 50, "initial volume, 0 to 100")
	rootCmd.AddCommand(playCmd)
}
