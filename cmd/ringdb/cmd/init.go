package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/pkg/storage"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new storage instance",
	Long: `Create the page files and the metadata document for a new storage
instance. The instance is ready for writes afterwards.

Examples:
  ringdb init --data-dir=./data --name=metrics --volumes=8
  ringdb init --volumes=4 --page-size=1048576`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetInt("volumes"); v != 0 {
			cfg.NumVolumes = v
		}
		if v, _ := cmd.Flags().GetInt("page-size"); v != 0 {
			cfg.PageSize = v
		}

		mdPath, err := storage.Create(storage.CreateConfig{
			BaseName:    cfg.BaseName,
			MetadataDir: cfg.DataDir,
			VolumesDir:  cfg.VolumesPath(),
			NumVolumes:  cfg.NumVolumes,
			PageSize:    cfg.PageSize,
		})
		if err != nil {
			return err
		}
		cmd.Printf("Created storage %q: %d volumes of %d bytes\n", cfg.BaseName, cfg.NumVolumes, cfg.PageSize)
		cmd.Printf("Metadata: %s\n", mdPath)
		return nil
	},
}

func init() {
	initCmd.Flags().Int("volumes", 0, "Number of volumes in the ring")
	initCmd.Flags().Int("page-size", 0, "Size of one volume file in bytes")
	rootCmd.AddCommand(initCmd)
}
