package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/board"
	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/registry"
	"github.com/spf13/cobra"
)

var fireCmd = &cobra.Command{
	Use:   "fire <node>",
	Short: "Fire a node of the demo graph once",
	Long:  `Creates a fresh kiln, supplies raw inputs given as --input key=value pairs, fires the node and finalizes with the firing outcome. The value is printed as JSON.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		inputs, _ := cmd.Flags().GetStringArray("input")

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		level, err := cfg.SlogLevel()
		if err != nil {
			fmt.Printf("Error in config: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(level)

		reg := registry.New(registry.WithLogger(logger))
		board.Register(reg, logger)

		engine, err := kiln.New(reg, kiln.WithLogger(logger))
		if err != nil {
			fmt.Printf("Error initializing kiln: %v\n", err)
			os.Exit(1)
		}

		supplied := make(map[string]any, len(inputs))
		for _, pair := range inputs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				fmt.Printf("Invalid --input %q, want key=value\n", pair)
				os.Exit(1)
			}
			supplied[key] = value
		}

		results, err := engine.Run(context.Background(), supplied, args[0])
		if err != nil {
			fmt.Printf("Firing failed: %v\n", err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(results[args[0]], "", "  ")
		if err != nil {
			fmt.Printf("Encoding result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

func init() {
	fireCmd.Flags().StringArray("input", nil, "Raw input as key=value (repeatable)")
	rootCmd.AddCommand(fireCmd)
}
