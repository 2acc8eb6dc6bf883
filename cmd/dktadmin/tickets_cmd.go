package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/ticket"
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Work the ticket queue (agent)",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context(), auth.RoleAgent)
		if err != nil {
			return err
		}
		q := ticket.NewQueue(env.api, env.resourceConfig(snap))
		if err := q.LoadFor(cmd.Context(), snap.User, auth.RoleAgent); err != nil {
			return err
		}
		if len(q.Items()) == 0 {
			fmt.Fprintln(env.out, "No tickets found.")
			return nil
		}
		w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTICKET\tTYPE\tSTATUS\tCLIENT\tAGENCY\tCREATED")
		for _, t := range q.Items() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.TicketNumber, t.TypeReservation, t.Status.Label(),
				t.ClientName(), t.AgencyName(), t.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// transitionCmd builds the subcommand that applies action to one ticket.
func transitionCmd(action ticket.Action) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s ID", strings.ToLower(action.Name)),
		Short: fmt.Sprintf("Set a ticket's status to %s", action.Target),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			env, err := newCLIEnv(cmd)
			if err != nil {
				return err
			}
			snap, err := env.requireSession(cmd.Context(), auth.RoleAgent)
			if err != nil {
				return err
			}
			q := ticket.NewQueue(env.api, env.resourceConfig(snap))
			return q.Transition(cmd.Context(), id, action.Target)
		},
	}
}

func init() {
	ticketsCmd.AddCommand(ticketsListCmd)
	for _, a := range []ticket.Action{ticket.ActionCall, ticket.ActionComplete, ticket.ActionCancel} {
		ticketsCmd.AddCommand(transitionCmd(a))
	}
	rootCmd.AddCommand(ticketsCmd)
}
