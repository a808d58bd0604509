package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/florinutz/icefloe/catalog"
	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

var createFormatVersion int

var createCmd = &cobra.Command{
	Use:   "create <namespace> <table>",
	Short: "Create a table in the warehouse",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := strings.Split(args[0], ".")
		name := args[1]

		if createFormatVersion < 1 || createFormatVersion > 3 {
			return fmt.Errorf("unsupported format version %d", createFormatVersion)
		}

		cat := catalog.NewHadoop(viper.GetString("warehouse"), &storage.Local{})
		meta := table.NewTableMetadata(createFormatVersion, "", rawSchema(), table.UnpartitionedSpec())
		ops, err := cat.CreateTable(cmd.Context(), ns, name, meta)
		if err != nil {
			return err
		}

		fmt.Printf("created %s at %s (format v%d)\n", ops.Name(), ops.Current().Location, createFormatVersion)
		return nil
	},
}

func init() {
	createCmd.Flags().IntVar(&createFormatVersion, "format-version", 2, "table format version (1-3)")
}

// rawSchema is the generic event schema used for CLI-created tables.
func rawSchema() table.Schema {
	return table.Schema{
		SchemaID: 0,
		Fields: []table.Field{
			{ID: 1, Name: "event_id", Type: "string", Required: true},
			{ID: 2, Name: "timestamp", Type: "timestamptz", Required: true},
			{ID: 3, Name: "payload", Type: "string", Required: false},
		},
	}
}
