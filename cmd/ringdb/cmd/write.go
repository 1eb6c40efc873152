package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/pkg/codec"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <param> <value>",
	Short: "Append one sample",
	Long: `Append a sample for a parameter id. The timestamp defaults to the
current wall clock in nanoseconds.

Examples:
  ringdb write 7 "cpu=42.5"
  ringdb write 7 "cpu=42.5" --timestamp 1700000000000000000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		param, err := parseParamId(args[0])
		if err != nil {
			return err
		}
		ts, _ := cmd.Flags().GetInt64("timestamp")
		if ts == 0 {
			ts = time.Now().UnixNano()
		}

		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.WriteEntry2(codec.Entry2{
			ParamId:   param,
			Timestamp: codec.Timestamp(ts),
			Payload:   []byte(args[1]),
		})
		if err != nil {
			return err
		}
		cmd.Printf("Wrote param=%d timestamp=%d (%d bytes)\n", param, ts, len(args[1]))
		return nil
	},
}

func init() {
	writeCmd.Flags().Int64("timestamp", 0, "Sample timestamp (default: now, in nanoseconds)")
	rootCmd.AddCommand(writeCmd)
}
