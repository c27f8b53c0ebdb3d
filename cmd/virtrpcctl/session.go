package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect open RPC sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently open RPC connections",
	RunE:  runSessionList,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	client, err := authenticatedClient()
	if err != nil {
		return err
	}

	sessions, err := client.Sessions()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Remote Address", "Accepted At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, s := range sessions {
		table.Append([]string{s.RemoteAddr, s.AcceptedAt.Format("2006-01-02 15:04:05")})
	}
	table.Render()
	return nil
}
