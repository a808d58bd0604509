package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/florinutz/icefloe/catalog"
	"github.com/florinutz/icefloe/commit"
	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
	"github.com/florinutz/icefloe/tracing"
)

var appendBranch string

var appendCmd = &cobra.Command{
	Use:   "append <namespace> <table> <file.parquet>...",
	Short: "Append parquet data files to a table as one snapshot",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ns := strings.Split(args[0], ".")
		name := args[1]

		_, shutdown, err := tracing.Setup(ctx, tracing.Config{
			Exporter:       viper.GetString("trace_exporter"),
			ServiceVersion: Version,
		}, nil)
		if err != nil {
			return err
		}
		defer shutdown()

		cat := catalog.NewHadoop(viper.GetString("warehouse"), &storage.Local{})
		ops, err := cat.LoadTable(ctx, ns, name)
		if err != nil {
			return err
		}
		if ops == nil {
			return fmt.Errorf("table %s.%s does not exist", args[0], name)
		}

		op := commit.NewAppend(ops, ops.Name())
		op.SetEnvironment(map[string]string{
			"engine-name":    "icefloe",
			"engine-version": Version,
		})
		if appendBranch != "" {
			if err := op.TargetBranch(appendBranch); err != nil {
				return err
			}
		}

		for _, path := range args[2:] {
			df, err := parquetDataFile(path)
			if err != nil {
				return err
			}
			if err := op.AppendFile(df); err != nil {
				return err
			}
		}

		snap, err := op.Commit(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("committed snapshot %d (sequence %d) with %d files\n",
			snap.SnapshotID, snap.SequenceNumber, len(args[2:]))
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendBranch, "branch", "", "target branch (default: main)")
}

// parquetDataFile reads a parquet footer to build the data file entry.
func parquetDataFile(path string) (*table.DataFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read parquet footer of %s: %w", path, err)
	}

	return &table.DataFile{
		Content:       table.ContentData,
		FilePath:      path,
		FileFormat:    "PARQUET",
		RecordCount:   pf.NumRows(),
		FileSizeBytes: info.Size(),
	}, nil
}
