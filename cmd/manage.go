package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/ipc"
	"cryogon/rizumu-fetch/media"

	"github.com/spf13/cobra"
)

var (
	rmType     string
	clearScope string
	clearQueue bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <source-id> <title>",
	Short: "Delete a downloaded file and its metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := media.ParseType(rmType)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			removed, err := a.RemoveDownload(ctx, args[0], args[1], t)
			if err != nil {
				return err
			}
			if !removed {
				warnColor.Println("Nothing to remove.")
				return nil
			}
			okColor.Println("Removed", a.MediaPath(args[0], args[1], t))
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all downloads of a type (audio, video or all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := media.ParseScope(clearScope)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.ClearAllDownloads(ctx, scope); err != nil {
				return err
			}
			okColor.Printf("Cleared %s downloads.\n", scope)
			return nil
		})
	},
}

// pendingCmd talks to a running server, since queues live in its memory.
var pendingCmd = &cobra.Command{
	Use:   "pending <owner>",
	Short: "Show (or with --clear, drop) the queued downloads of an owner on a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SocketPath == "" {
			return errors.New("RIZUMU_SOCKET is empty, the event socket is disabled")
		}
		client, err := ipc.Dial(cmd.Context(), cfg.SocketPath)
		if err != nil {
			return fmt.Errorf("is the server running? %w", err)
		}
		defer client.Close()

		command := ipc.Command{Type: ipc.CmdPending, Owner: args[0]}
		if clearQueue {
			command.Type = ipc.CmdClear
		}
		msg, err := client.Request(command)
		if err != nil {
			return err
		}

		switch msg.Type {
		case ipc.MsgPending:
			var reply ipc.PendingReply
			if err := json.Unmarshal(msg.Data, &reply); err != nil {
				return err
			}
			printPending(reply.Owner, reply.Jobs)
			return nil
		case ipc.MsgCleared:
			var reply ipc.ClearedReply
			if err := json.Unmarshal(msg.Data, &reply); err != nil {
				return err
			}
			if reply.Existed {
				okColor.Println("Queue cleared.")
			} else {
				warnColor.Println("No queue for", reply.Owner)
			}
			return nil
		default:
			var reply ipc.ErrorReply
			json.Unmarshal(msg.Data, &reply)
			return errors.New(reply.Error)
		}
	},
}

func init() {
	rmCmd.Flags().StringVarP(&rmType, "type", "t", "audio", "audio or video")
	clearCmd.Flags().StringVar(&clearScope, "scope", "all", "audio, video or all")
	pendingCmd.Flags().BoolVar(&clearQueue, "clear", false, "drop the queued downloads instead of listing them")
	rootCmd.AddCommand(rmCmd, clearCmd, pendingCmd)
}
