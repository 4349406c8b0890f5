package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := newClient().Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode:    %s\n", modeName(st.PublicMode))
			fmt.Fprintf(out, "admin:   %s\n", st.Admin)
			fmt.Fprintf(out, "allowed: %d\n", st.AllowedCount)
			fmt.Fprintf(out, "jobs:    %d\n", st.ActiveJobs)
			fmt.Fprintf(out, "uptime:  %s\n", time.Duration(st.UptimeSeconds)*time.Second)
			return nil
		},
	}
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List running jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			jobs, err := newClient().Jobs(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "no running jobs")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(out, "%s  %-12s %-11s %s (%s ago)\n",
					j.ID, j.ChatID, j.State, j.Source, time.Since(j.StartedAt).Round(time.Second))
			}
			return nil
		},
	}
}

func newACLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage the allow list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the access mode and allow list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			list, err := newClient().AllowList(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s\n", modeName(list.PublicMode))
			if len(list.Identities) == 0 {
				fmt.Fprintln(out, "(nobody)")
				return nil
			}
			fmt.Fprintln(out, strings.Join(list.Identities, "\n"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "allow <identity>",
		Short: "Allow an identity to use the bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			added, err := newClient().Allow(ctx, args[0])
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "%s allowed\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already allowed\n", args[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deny <identity>",
		Short: "Remove an identity from the allow list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			removed, err := newClient().Deny(ctx, args[0])
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not allowed\n", args[0])
			}
			return nil
		},
	})

	return cmd
}

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "mode [public|private]",
		Short:     "Show or switch the access mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"public", "private"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient()

			if len(args) == 0 {
				list, err := client.AllowList(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), modeName(list.PublicMode))
				return nil
			}

			var public bool
			switch strings.ToLower(args[0]) {
			case "public":
				public = true
			case "private":
			default:
				return fmt.Errorf("mode must be public or private, got %q", args[0])
			}
			if err := client.SetMode(ctx, public); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mode set to %s\n", modeName(public))
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <chat_id> <text...>",
		Short: "Send a text message to a chat as the bot",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := newClient().Send(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

func modeName(public bool) string {
	if public {
		return "public"
	}
	return "private"
}
