package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/waveplanner/internal/schema"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields available to condition clauses",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return writeFields(cmd.OutOrStdout(), schema.Default(), asJSON)
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.Flags().Bool("json", false, "print descriptors as JSON")
}

func writeFields(out io.Writer, reg *schema.Registry, asJSON bool) error {
	fields := reg.Fields()
	if asJSON {
		return json.NewEncoder(out).Encode(fields)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSUB-KEY\tVALUES")
	for _, f := range fields {
		subKey := "no"
		if f.AllowsDynamicSubKey {
			subKey = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.ValueType, subKey, strings.Join(f.EnumValues, ","))
	}
	return w.Flush()
}
