package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/config"
	"github.com/patdx/fly-watch/internal/ui"
)

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "List stored machine snapshots and their watermarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		machines, err := st.GetAllMachines(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(machines)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAPP\tNAME\tSTATE\tREGION\tWATERMARK")
		for _, m := range machines {
			watermark := ui.RenderMuted("-")
			if m.LastProcessedEventTimestamp != nil {
				watermark = time.UnixMilli(*m.LastProcessedEventTimestamp).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				m.ID, m.AppName, m.Name, ui.RenderState(string(m.LastState)), m.Region, watermark)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(machinesCmd)
}
