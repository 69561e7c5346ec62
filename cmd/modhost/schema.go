package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/modbridge/application/schema"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [document]",
		Short: "Print the JSON schema of a modbridge document",
		Long: fmt.Sprintf(`Print the JSON schema of a document modhost reads or writes. Documents:
%s. The default is manifest.`, strings.Join(documentNames(), ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "manifest"
			if len(args) == 1 {
				name = args[0]
			}
			out, err := schema.Generate(name)
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

func documentNames() []string {
	names := make([]string, 0, len(schema.Documents))
	for name := range schema.Documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
