package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imazen/zencodecs"
	"github.com/imazen/zencodecs/hooks"
)

var (
	version = "0.1.0"

	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zcimg",
	Short: "Multi-format image transcoder and inspector",
	Long: `zcimg provides unified decode, resize, and encode across JPEG, PNG, GIF,
WebP, BMP, AVIF, and JPEG XL with consistent quality scales and resource
limits.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zcimg: %v\n", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/zcimg/zcimg.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zcimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// initConfig loads defaults, an optional config file, and ZCIMG_* env vars.
func initConfig() {
	viper.SetDefault("quality", 0) // 0 = per-format default
	viper.SetDefault("effort", 0)
	viper.SetDefault("jobs", runtime.NumCPU())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("zcimg")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/zcimg")
		}
	}
	viper.SetEnvPrefix("zcimg")
	viper.AutomaticEnv()
	// Missing config file is fine; defaults and flags cover everything.
	_ = viper.ReadInConfig()
}

// opHooks returns the observation hooks for dispatch operations.  Debug
// logging only appears with --verbose.
func opHooks() []zencodecs.Hook {
	if !verbose {
		return nil
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return []zencodecs.Hook{hooks.NewSlogHook(logger)}
}
