package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rennervale/pagestore/pkg/engine"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

var (
	insertTable string
	insertData  string
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert one fixed-width tuple into a heap file",
	RunE:  runInsert,
}

func init() {
	fs := insertCmd.Flags()
	fs.StringVar(&insertTable, "table", "", "`path` to the heap file")
	fs.StringVar(&insertData, "data", "", "tuple bytes, hex-encoded, padded/truncated to --tuple-width")
	rootCmd.AddCommand(insertCmd)
}

func runInsert(cmd *cobra.Command, args []string) error {
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

	tableID, err := eng.CreateTable(primitives.Filepath(insertTable), td)
	if err != nil {
		return fmt.Errorf("pagestore: %w", err)
	}

	raw, err := hex.DecodeString(insertData)
	if err != nil {
		return fmt.Errorf("pagestore: decoding --data: %w", err)
	}
	buf := make([]byte, tupleWidth)
	copy(buf, raw)
	t := tuplerec.NewTuple(td, buf)

	tid := eng.Begin()
	if err := eng.InsertTuple(tid, tableID, t); err != nil {
		_ = eng.Abort(tid)
		return fmt.Errorf("pagestore: insert failed: %w", err)
	}
	if err := eng.Commit(tid); err != nil {
		return fmt.Errorf("pagestore: commit failed: %w", err)
	}

	fmt.Printf("inserted into table %d page %d slot %d\n", tableID, t.RecordID.PageID, t.RecordID.Slot)
	return nil
}
