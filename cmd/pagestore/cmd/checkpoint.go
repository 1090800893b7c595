package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rennervale/pagestore/pkg/engine"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Force the write-ahead log and record a checkpoint with no live transactions",
	RunE:  runCheckpoint,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	td := tuplerec.NewTupleDescriptor(tupleWidth)

	eng, err := engine.Open(cfg, td)
	if err != nil {
		return fmt.Errorf("pagestore: %w", err)
	}
	defer eng.Close()

	if err := eng.FlushAllPages(); err != nil {
		return fmt.Errorf("pagestore: %w", err)
	}
	if err := eng.Checkpoint(); err != nil {
		return fmt.Errorf("pagestore: %w", err)
	}

	fmt.Println("checkpoint complete")
	return nil
}
