package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/florinutz/icefloe/catalog"
	"github.com/florinutz/icefloe/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <namespace> <table>",
	Short: "Print a table's refs and snapshot history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := strings.Split(args[0], ".")
		name := args[1]

		cat := catalog.NewHadoop(viper.GetString("warehouse"), &storage.Local{})
		ops, err := cat.LoadTable(cmd.Context(), ns, name)
		if err != nil {
			return err
		}
		if ops == nil {
			return fmt.Errorf("table %s.%s does not exist", args[0], name)
		}

		meta := ops.Current()
		fmt.Printf("table:          %s\n", ops.Name())
		fmt.Printf("uuid:           %s\n", meta.TableUUID)
		fmt.Printf("format version: %d\n", meta.FormatVersion)
		fmt.Printf("location:       %s\n", meta.Location)

		if len(meta.Refs) > 0 {
			fmt.Println("refs:")
			names := make([]string, 0, len(meta.Refs))
			for n := range meta.Refs {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				ref := meta.Refs[n]
				fmt.Printf("  %-16s %-6s -> %d\n", n, ref.Type, ref.SnapshotID)
			}
		}

		fmt.Println("snapshots:")
		for _, s := range meta.Snapshots {
			ts := time.UnixMilli(s.TimestampMS).UTC().Format(time.RFC3339)
			fmt.Printf("  %d  seq=%d  %-9s  %s  %s\n",
				s.SnapshotID, s.SequenceNumber, s.Operation, ts, summarize(s.Summary))
		}
		return nil
	},
}

func summarize(summary map[string]string) string {
	if len(summary) == 0 {
		return ""
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+summary[k])
	}
	return strings.Join(parts, " ")
}
