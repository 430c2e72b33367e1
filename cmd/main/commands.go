package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/models"
	"github.com/maecare/airouter/src/router"
)

var (
	routeCmd = &cobra.Command{
		Use:   "route <message>",
		Short: "Print the routing decision for a message without calling a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, _ := cmd.Flags().GetInt("history")
			credentials := config.NewCredentials(&cfg.Providers)
			queryRouter := router.NewQueryRouter(credentials, nil, nil, logger)

			decision, routeErr := queryRouter.Route(cmd.Context(), "", args[0], history)
			if err := printJSON(decision); err != nil {
				return err
			}
			return routeErr
		},
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache entries and size per provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(a.cache.Stats(cmd.Context()))
		},
	}

	cacheSweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("Deleted %d expired entries\n", a.cache.ClearExpired(cmd.Context()))
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear <provider>",
		Short: "Delete every cache entry of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := models.ParseProvider(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cache.ClearProvider(cmd.Context(), provider) {
				return fmt.Errorf("failed to clear cache for %s", provider)
			}
			fmt.Printf("Cleared cache for %s\n", provider)
			return nil
		},
	}

	flagsCmd = &cobra.Command{
		Use:   "flags",
		Short: "Manage feature flags and A/B groups",
	}

	flagsDistributionCmd = &cobra.Command{
		Use:   "distribution",
		Short: "Count users per A/B group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(a.flags.Distribution(cmd.Context()))
		},
	}

	flagsAssignCmd = &cobra.Command{
		Use:   "assign <user_id> <group>",
		Short: "Assign a user to an A/B group and enable its flags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := models.ParseABGroup(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.flags.AssignToGroup(cmd.Context(), args[0], group) {
				return fmt.Errorf("failed to assign %s to %s", args[0], group)
			}
			return printJSON(a.flags.GetFlags(cmd.Context(), args[0]))
		},
	}
)

func init() {
	routeCmd.Flags().Int("history", 0, "number of prior messages in the conversation")

	cacheCmd.AddCommand(cacheStatsCmd, cacheSweepCmd, cacheClearCmd)
	flagsCmd.AddCommand(flagsDistributionCmd, flagsAssignCmd)
	rootCmd.AddCommand(routeCmd, cacheCmd, flagsCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
