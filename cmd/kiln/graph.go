package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/board"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/registry"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "List and validate the demo graph",
	Run: func(cmd *cobra.Command, args []string) {
		reg := registry.New()
		board.Register(reg, logging.NewNop())

		for _, name := range reg.Names() {
			def, err := reg.Lookup(name)
			if err != nil {
				continue
			}
			if len(def.Deps) > 0 {
				fmt.Printf("%s (%s) <- %v\n", def.Name, def.Kind, def.Deps)
			} else {
				fmt.Printf("%s (%s)\n", def.Name, def.Kind)
			}
		}

		if err := reg.Validate(); err != nil {
			fmt.Printf("Graph validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Graph OK")
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
