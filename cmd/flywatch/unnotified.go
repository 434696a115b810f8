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
)

var unnotifiedCmd = &cobra.Command{
	Use:   "unnotified",
	Short: "List recorded events whose notification never succeeded",
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

		gaps, err := st.GetUnnotifiedEvents(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(gaps)
		}

		if len(gaps) == 0 {
			fmt.Println("no unnotified events")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMACHINE\tTYPE\tNEW STATE\tTIME")
		for _, e := range gaps {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.ID, e.MachineID, e.EventType, e.NewState,
				time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(unnotifiedCmd)
}
