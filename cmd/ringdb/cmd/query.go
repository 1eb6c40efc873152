package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/cursor"
	"github.com/ringdb/ringdb/pkg/page"
)

// queryReadBatch is how many results the query command pulls per read.
const queryReadBatch = 256

func parseParamId(s string) (codec.ParamId, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid param id %q", s)
	}
	return codec.ParamId(v), nil
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <param>",
	Short: "Run a range query for one parameter",
	Long: `Scan the storage for samples of one parameter inside a timestamp
range and print them in scan order.

Examples:
  ringdb query 7 --from 100 --to 200
  ringdb query 7 --direction backward`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		param, err := parseParamId(args[0])
		if err != nil {
			return err
		}

		from, _ := cmd.Flags().GetInt64("from")
		to, _ := cmd.Flags().GetInt64("to")
		if to == 0 {
			to = int64(codec.MaxTimestamp)
		}
		dirFlag, _ := cmd.Flags().GetString("direction")
		dir := codec.Forward
		if dirFlag == "backward" {
			dir = codec.Backward
		} else if dirFlag != "forward" {
			return fmt.Errorf("direction must be forward or backward, got %q", dirFlag)
		}

		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		// Publish anything still staged so the query sees it.
		if err := store.Sync(); err != nil {
			return err
		}

		q := page.Query{
			Param:      param,
			Lowerbound: codec.Timestamp(from),
			Upperbound: codec.Timestamp(to),
			Direction:  dir,
		}
		cur := store.Search(cmd.Context(), q)
		defer cur.Close()

		total := 0
		buf := make([]cursor.Result, queryReadBatch)
		for {
			n := cur.Read(buf)
			if n == 0 {
				break
			}
			for _, res := range buf[:n] {
				entry, err := res.Page.ReadEntry(res.Offset)
				if err != nil {
					return err
				}
				cmd.Printf("%d\t%d\t%s\n", entry.Timestamp, entry.ParamId, string(entry.Payload))
				total++
			}
		}
		if code, ok := cur.IsError(); ok {
			return fmt.Errorf("query failed: %s", code)
		}
		cmd.Printf("%d samples\n", total)
		return nil
	},
}

func init() {
	queryCmd.Flags().Int64("from", 0, "Lower timestamp bound (inclusive)")
	queryCmd.Flags().Int64("to", 0, "Upper timestamp bound (inclusive, default: max)")
	queryCmd.Flags().String("direction", "forward", "Scan direction: forward or backward")
	rootCmd.AddCommand(queryCmd)
}
