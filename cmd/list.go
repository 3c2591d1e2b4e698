package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/batch"
	"github.com/fairlens/leaseaudit/internal/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured models and request file status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Models:")
			for _, m := range cfg.Models {
				kind := "local"
				if m.IsHosted() {
					kind = "hosted/" + m.Provider
				}
				fmt.Printf("  - %s [%s, format=%s]\n", m.Name, kind, m.Format)
			}

			files, err := batch.ScanRequests(cfg.Dirs.Requests)
			if err != nil {
				fmt.Printf("\nRequest files: none (%v)\n", err)
				return nil
			}
			fmt.Println("\nRequest files:")
			for _, f := range files {
				status := "pending"
				switch {
				case batch.IsHosted(f, cfg.Hosted.Patterns):
					status = "hosted"
				case batch.OutputExists(batch.OutputPath(cfg.Dirs.Results, f)):
					status = "done"
				}
				fmt.Printf("  - %s [%s]\n", f, status)
			}
			return nil
		},
	}
}
