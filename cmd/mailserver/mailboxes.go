package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mailboxesCmd = &cobra.Command{
	Use:   "mailboxes",
	Short: "List the mailboxes known to the active backend",
	RunE:  runMailboxes,
}

func init() {
	rootCmd.AddCommand(mailboxesCmd)
}

func runMailboxes(cmd *cobra.Command, args []string) error {
	service, err := newService()
	if err != nil {
		return err
	}
	defer service.Close()

	mailboxes, err := service.Mailboxes(context.Background())
	if err != nil {
		return err
	}

	if len(mailboxes) == 0 {
		fmt.Println("No mailboxes found")
		return nil
	}
	for _, mailbox := range mailboxes {
		fmt.Println(mailbox)
	}
	return nil
}
