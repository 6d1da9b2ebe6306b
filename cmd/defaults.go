package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/market-sim/sim"
)

// defaultsCmd prints the default configuration as a starting point for --config.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeDefaults(os.Stdout); err != nil {
			logrus.Fatalf("Failed to encode defaults: %v", err)
		}
	},
}

func writeDefaults(w io.Writer) error {
	data, err := sim.DefaultConfig().YAML()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(data))
	return err
}
