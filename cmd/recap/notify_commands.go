package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"recap/internal/notify"
	"recap/internal/store"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage summary-ready notifications",
	}
	cmd.AddCommand(newNotifyScheduleCommand(ctx))
	cmd.AddCommand(newNotifyTriggerCommand(ctx))
	cmd.AddCommand(newNotifyListCommand(ctx))
	cmd.AddCommand(newNotifyAdminCommand(ctx, "cancel", "Cancel a pending notification"))
	cmd.AddCommand(newNotifyAdminCommand(ctx, "force-send", "Send a pending notification immediately"))
	cmd.AddCommand(newNotifyAdminCommand(ctx, "resend", "Retry a failed notification"))
	return cmd
}

func newNotifyScheduleCommand(ctx *commandContext) *cobra.Command {
	var channel string
	var recipient string
	var at string

	cmd := &cobra.Command{
		Use:   "schedule <episode-id>",
		Short: "Schedule a notification for when the summary is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			parsedChannel, ok := store.ParseChannel(channel)
			if !ok {
				return fmt.Errorf("unknown channel %q (email, telegram)", channel)
			}
			var scheduledAt time.Time
			if at != "" {
				scheduledAt, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			notification, err := rt.store.CreateNotification(cmd.Context(), args[0], parsedChannel, recipient, scheduledAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %d scheduled for %s via %s\n",
				notification.ID, notification.EpisodeID, notification.Channel)
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Delivery channel (email, telegram)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Email address or chat id")
	cmd.Flags().StringVar(&at, "at", "", "Earliest delivery time (RFC 3339, default now)")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func newNotifyTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger [episode-id]",
		Short: "Deliver due pending notifications",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := triggerNotifications(cmd, rt, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, failed %d, pending %d\n", result.Sent, result.Failed, result.Pending)
			return nil
		},
	}
}

func newNotifyListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <episode-id>",
		Short: "List notification requests for an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			notifications, err := rt.store.ListNotificationsForEpisode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(notifications) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no notifications")
				return nil
			}

			rows := make([][]string, 0, len(notifications))
			for _, n := range notifications {
				detail := n.ErrorMessage
				if n.Status == store.NotificationSent && !n.SentAt.IsZero() {
					detail = n.SentAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					strconv.FormatInt(n.ID, 10),
					string(n.Channel),
					n.Recipient,
					string(n.Status),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Channel", "Recipient", "Status", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newNotifyAdminCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <notification-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}

			switch action {
			case "cancel":
				err = rt.notifier.Cancel(cmd.Context(), id)
			case "force-send":
				err = rt.notifier.ForceSend(cmd.Context(), id)
			case "resend":
				err = rt.notifier.Resend(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %d: %s ok\n", id, action)
			return nil
		},
	}
}

func triggerNotifications(cmd *cobra.Command, rt *runtime, args []string) (notify.Result, error) {
	if len(args) == 1 {
		return rt.notifier.TriggerEpisode(cmd.Context(), args[0])
	}
	return rt.notifier.TriggerPending(cmd.Context())
}
