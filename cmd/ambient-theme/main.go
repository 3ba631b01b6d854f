// Command ambient-theme reads an ambient light sensor and switches between a
// light and a dark theme, served as a web page or drawn in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/ambient-theme/internal/light"
	"github.com/sweeney/ambient-theme/internal/sensor"
	"github.com/sweeney/ambient-theme/internal/status"
	"github.com/sweeney/ambient-theme/internal/tui"
	"github.com/sweeney/ambient-theme/internal/web"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ambient-theme",
		Short:         "Switch between light and dark themes from an ambient light sensor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setDefaults(v)
	cfgFile := bindFlags(v, rootCmd)
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		initConfig(v, *cfgFile)
		return nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the themed status page over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := runServe(cfg); err != nil {
				log.Error().Err(err).Msg("fatal")
				return err
			}
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the reading full-screen in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The alternate screen owns the terminal; log output would tear it.
			cfg, err := setup(v, io.Discard)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			if err := runWatch(cfg); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Report whether the configured light sensor is available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runProbe(cfg, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(serveCmd, watchCmd, probeCmd)
	return rootCmd
}

// setup resolves config and configures the global logger.
func setup(v *viper.Viper, logOut io.Writer) (Config, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		fmt.Fprintf(logOut, "Error: %v\n", err)
		return Config{}, err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat, logOut); err != nil {
		fmt.Fprintf(logOut, "Error: %v\n", err)
		return Config{}, err
	}
	return cfg, nil
}

func setupLogging(level, format string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	}
	return nil
}

func runServe(cfg Config) error {
	provider, source := newProvider(cfg)

	tracker := status.NewTracker(time.Now(), status.Config{
		Sensor:         cfg.Sensor,
		Source:         source,
		HTTPAddr:       cfg.HTTPAddr,
		RefreshSeconds: int(cfg.Refresh / time.Second),
	})

	// Listen before starting the sensor so a busy port fails fast.
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	srv := web.New(cfg.HTTPAddr, tracker)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("http status server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sub := sensor.NewSubscription(provider)
	log.Info().Str("sensor", cfg.Sensor).Str("source", source).Msg("started")
	go sub.Start()

	return runLoop(sub, light.NewSelector(), tracker, sigCh)
}

// runLoop is the single consumer of subscription updates. It derives the
// theme from each reading and publishes state to the tracker until a signal
// arrives or the subscription is released.
func runLoop(sub *sensor.Subscription, selector *light.Selector, tracker *status.Tracker, sig <-chan os.Signal) error {
	updates := sub.Updates()
	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			if err := sub.Release(); err != nil {
				log.Warn().Err(err).Msg("release sensor")
				return err
			}
			return nil

		case u, ok := <-updates:
			if !ok {
				return nil
			}
			switch u.Kind {
			case sensor.UpdateReading:
				theme, changed := selector.Observe(u.State.Reading)
				if changed {
					log.Info().Float64("lux", u.State.Reading.Lux).Str("theme", string(theme)).Msg("theme changed")
				} else {
					log.Debug().Float64("lux", u.State.Reading.Lux).Msg("reading")
				}
				if tracker != nil {
					tracker.MarkReading(u.Time)
				}
			case sensor.UpdateError:
				log.Warn().Err(u.State.Err).Str("status", string(u.State.Status)).Msg("sensor error")
			case sensor.UpdateStatus:
				log.Info().Str("status", string(u.State.Status)).Msg("sensor status")
			}
			if tracker != nil {
				tracker.Update(u.State, selector.Theme(), u.Counts)
			}
		}
	}
}

func runWatch(cfg Config) error {
	provider, _ := newProvider(cfg)
	sub := sensor.NewSubscription(provider)
	go sub.Start()

	err := tui.Run(sub.Updates(), light.NewSelector())
	if rerr := sub.Release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// runProbe prints whether the capability is present and fails when it is not.
func runProbe(cfg Config, out io.Writer) error {
	provider, source := newProvider(cfg)
	if !provider.Probe() {
		fmt.Fprintf(out, "%s: unsupported\n", cfg.Sensor)
		return fmt.Errorf("%s: %w", cfg.Sensor, light.ErrUnsupported)
	}
	if source != "" {
		fmt.Fprintf(out, "%s: supported (%s)\n", cfg.Sensor, source)
	} else {
		fmt.Fprintf(out, "%s: supported\n", cfg.Sensor)
	}
	return nil
}
