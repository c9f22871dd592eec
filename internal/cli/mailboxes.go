package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/mailtap/pkg/output"
)

// mailboxRow is one recipient in mailboxes output.
type mailboxRow struct {
	Recipient string `json:"recipient" yaml:"recipient"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
}

var mailboxesCmd = &cobra.Command{
	Use:     "mailboxes",
	Aliases: []string{"ls"},
	Short:   "List recipients defined by the receipt rule sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := loadService(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = svc.Close(closeCtx)
		}()

		table := svc.Mailboxes()
		rows := make([]mailboxRow, 0, len(table))
		for _, r := range table.Recipients() {
			mbx := table[r]
			rows = append(rows, mailboxRow{Recipient: mbx.Address, Bucket: mbx.Bucket, TopicARN: mbx.TopicARN})
		}

		format := outputFormat(cmd)
		if len(rows) == 0 && format == output.FormatTable {
			output.Info("No recipients found in rule sets %v", cfg.RuleSets)
			return nil
		}

		return output.Print(format, rows, func() *output.Table {
			t := output.NewTable([]string{"RECIPIENT", "BUCKET", "TOPIC"})
			for _, row := range rows {
				t.AddRow([]string{row.Recipient, row.Bucket, row.TopicARN})
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(mailboxesCmd)
}
