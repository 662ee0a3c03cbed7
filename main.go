// Package main provides the entry point for the livecapture command.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Raikerian/go-livecapture/internal/app"
	"github.com/Raikerian/go-livecapture/internal/capture"
	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/internal/infrastructure"
	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/internal/platform/backends"
	"github.com/Raikerian/go-livecapture/internal/transcribe"
)

// version is set at build time.
var version = "dev"

var (
	cfgFile    string
	source     string
	sampleRate int
	backend    string
)

var rootCmd = &cobra.Command{
	Use:           "livecapture",
	Short:         "Capture live display and microphone audio as base64 PCM16",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a capture session and stream it until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.New(
			// Core modules
			config.Module,
			infrastructure.LoggerModule,

			// Audio modules
			backends.Module,
			capture.Module,
			transcribe.Module,

			fx.Supply(configSource(cmd)),
			fx.WithLogger(infrastructure.NewFxLoggerAdapter),
		)
		if err := application.Err(); err != nil {
			return err
		}

		application.Run()
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report the audio backend and whether display audio can be captured",
	RunE: func(cmd *cobra.Command, args []string) error {
		var p platform.Platform
		fxApp := fx.New(
			config.Module,
			infrastructure.LoggerModule,
			backends.Module,
			fx.Supply(configSource(cmd)),
			fx.NopLogger,
			fx.Populate(&p),
		)
		if err := fxApp.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fxApp.Start(ctx); err != nil {
			return err
		}

		fmt.Printf("backend: %s\n", p.Name())
		fmt.Printf("display capture: %t\n", capture.IsSupported(p))

		return fxApp.Stop(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("livecapture %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "audio backend: auto, pulse, miniaudio or fake")

	runCmd.Flags().StringVar(&source, "source", "", "capture source: microphone, system or both")
	runCmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "microphone sample rate in Hz")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

// configSource reads the config file, letting explicitly set flags win. The
// file may be absent when the flags and defaults are enough.
func configSource(cmd *cobra.Command) config.Source {
	return config.Source{
		Path:         cfgFile,
		AllowMissing: !cmd.Flags().Changed("config"),
		Override: func(c *config.Config) {
			if cmd.Flags().Changed("source") {
				c.Capture.Source = source
			}
			if cmd.Flags().Changed("sample-rate") {
				c.Capture.SampleRate = sampleRate
			}
			if cmd.Flags().Changed("backend") {
				c.Platform.Backend = backend
			}
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
