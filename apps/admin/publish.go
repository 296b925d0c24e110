package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) publishCmd(published bool) *cobra.Command {
	var school, section string
	use, short := "unpublish", "Hide every entry of a section from readers again"
	if published {
		use, short = "publish", "Publish every entry of a section"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ec, _, err := cli.store.EditContext(cmd.Context(), school, section, true)
			if err != nil {
				return err
			}

			var n int
			if published {
				n, err = cli.engine.PublishAll(cmd.Context(), ec)
			} else {
				n, err = cli.engine.UnpublishAll(cmd.Context(), ec)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sed %d entries of section %q\n", use, n, section)
			return nil
		},
	}
	schoolSectionFlags(cmd, &school, &section)
	return cmd
}
