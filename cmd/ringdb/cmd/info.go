package cmd

import (
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show per-volume page statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		cmd.Printf("%-5s %-8s %-8s %-10s %-10s %-6s %-6s %s\n",
			"idx", "page_id", "count", "synced", "free", "open", "close", "path")
		for _, vs := range store.Stats() {
			marker := ""
			if vs.Active {
				marker = " *"
			}
			cmd.Printf("%-5d %-8d %-8d %-10d %-10d %-6d %-6d %s%s\n",
				vs.Index, vs.PageID, vs.Count, vs.SyncIndex, vs.FreeSpace,
				vs.OpenCount, vs.CloseCount, vs.Path, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
