package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the recognition result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache location and occupancy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		c, err := openCache(cfg)
		if err != nil {
			return err
		}
		st, err := c.Stats()
		if err != nil {
			return err
		}
		return writeOutput(cmd, cfg, st)
	},
}

var cacheTrimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Drop the oldest entries beyond the configured maximum",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openCache(GetConfig())
		if err != nil {
			return err
		}
		n, err := c.Trim()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openCache(GetConfig())
		if err != nil {
			return err
		}
		n, err := c.Clear()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	},
}

func openCache(cfg *config.Config) (*cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, errors.New("cache is disabled (set cache.enabled or MOTORPASS_CACHE_ENABLED)")
	}
	return cache.New(cfg.Cache.Dir, cfg.Cache.MaxEntries)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheTrimCmd, cacheClearCmd)
}
