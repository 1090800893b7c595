package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rennervale/pagestore/pkg/engine"
	"github.com/rennervale/pagestore/pkg/pagelock"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

var (
	getPageTable string
	getPageNum   uint32
)

var getPageCmd = &cobra.Command{
	Use:   "get-page",
	Short: "Read a page and print its occupied tuples",
	RunE:  runGetPage,
}

func init() {
	fs := getPageCmd.Flags()
	fs.StringVar(&getPageTable, "table", "", "`path` to the heap file")
	fs.Uint32Var(&getPageNum, "page", 0, "page number to read")
	rootCmd.AddCommand(getPageCmd)
}

func runGetPage(cmd *cobra.Command, args []string) error {
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

	tableID, err := eng.CreateTable(primitives.Filepath(getPageTable), td)
	if err != nil {
		return fmt.Errorf("pagestore: %w", err)
	}

	tid := eng.Begin()
	pid := storage.NewPageId(tableID, primitives.PageNumber(getPageNum))
	page, err := eng.GetPage(tid, pid, pagelock.ReadOnly)
	if err != nil {
		_ = eng.Abort(tid)
		return fmt.Errorf("pagestore: %w", err)
	}

	lister, ok := page.(interface{ Tuples() []*tuplerec.Tuple })
	if !ok {
		_ = eng.Abort(tid)
		return fmt.Errorf("pagestore: page type does not support listing tuples")
	}
	for _, t := range lister.Tuples() {
		fmt.Printf("slot %d: %s\n", t.RecordID.Slot, hex.EncodeToString(t.Data))
	}

	return eng.Commit(tid)
}
