// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/praxis-hq/praxis/internal/store"
	"github.com/praxis-hq/praxis/internal/store/sqlite"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the extension audit trail",
	}

	cmd.AddCommand(
		newAuditQueryCmd(),
		newAuditVerifyCmd(),
	)

	return cmd
}

func newAuditQueryCmd() *cobra.Command {
	var (
		action, severity, extensionID, actorID string
		since                                  string
		limit                                  int
		asJSON                                 bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.AuditFilter{
				Action:      action,
				Severity:    store.Severity(severity),
				ExtensionID: extensionID,
				ActorID:     actorID,
				Limit:       limit,
			}
			if since != "" {
				from, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return praxiserr.Errorf(praxiserr.CodeCLIInputInvalid,
						"--since must be RFC 3339, got %q", since)
				}
				filter.From = from
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.auditStore.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no audit entries match")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tACTION\tSEVERITY\tEXTENSION\tACTOR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.Action, e.Severity, e.ExtensionID, e.ActorID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "filter by action, e.g. extension.enable")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (info, warning, critical)")
	cmd.Flags().StringVar(&extensionID, "extension", "", "filter by extension id")
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this RFC 3339 time")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output entries as JSON")

	return cmd
}

func newAuditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify audit trail row checksums",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			sqlStore, ok := app.auditStore.(*sqlite.AuditStore)
			if !ok {
				return praxiserr.New(praxiserr.CodeCLIInputInvalid,
					"audit verify requires the sqlite audit backend")
			}

			tampered, err := sqlStore.VerifyIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			if len(tampered) > 0 {
				for _, id := range tampered {
					fmt.Fprintf(cmd.ErrOrStderr(), "tampered entry: %s\n", id)
				}
				return praxiserr.Errorf(praxiserr.CodeStoreDatabaseFailure,
					"%d audit entries failed checksum verification", len(tampered))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "audit trail verified, all checksums match")
			return nil
		},
	}
}
