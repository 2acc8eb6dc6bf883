package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alecgard/dktadmin/internal/account"
	"github.com/alecgard/dktadmin/internal/agency"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/resource"
)

var deleteYes bool

var agenciesCmd = &cobra.Command{
	Use:   "agencies",
	Short: "Manage agencies (admin)",
}

var agenciesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context(), auth.RoleAdmin)
		if err != nil {
			return err
		}
		c := agency.NewController(env.api, env.resourceConfig(snap))
		if err := c.LoadFor(cmd.Context(), snap.User, auth.RoleAdmin); err != nil {
			return err
		}
		if len(c.Items()) == 0 {
			fmt.Fprintln(env.out, "No agencies found.")
			return nil
		}
		w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE\tADDRESS")
		for _, a := range c.Items() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Email, a.Phone, a.Address)
		}
		return w.Flush()
	},
}

var agenciesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an agency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context(), auth.RoleAdmin)
		if err != nil {
			return err
		}
		c := agency.NewController(env.api, env.resourceConfig(snap))
		return deleteEntity(cmd, env, c, args[0], "agency", "its", func(a agency.Agency) string { return a.Name })
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users (admin)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context(), auth.RoleAdmin)
		if err != nil {
			return err
		}
		c := account.NewController(env.api, env.resourceConfig(snap))
		if err := c.LoadFor(cmd.Context(), snap.User, auth.RoleAdmin); err != nil {
			return err
		}
		if len(c.Items()) == 0 {
			fmt.Fprintln(env.out, "No users found.")
			return nil
		}
		w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
		for _, u := range c.Items() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role.Label())
		}
		return w.Flush()
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context(), auth.RoleAdmin)
		if err != nil {
			return err
		}
		c := account.NewController(env.api, env.resourceConfig(snap))
		return deleteEntity(cmd, env, c, args[0], "user", "their", func(u account.User) string { return u.Name })
	},
}

// deleteEntity looks the entity up for the prompt, asks for confirmation
// unless --yes was given, then deletes it.
func deleteEntity[E resource.Entity, P any](cmd *cobra.Command, env *cliEnv, c *resource.Controller[E, P], arg, noun, possessive string, name func(E) string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid %s id %q", noun, arg)
	}
	if err := c.List(cmd.Context()); err != nil {
		return err
	}
	e, ok := c.Find(id)
	if !ok {
		return fmt.Errorf("no %s with id %d", noun, id)
	}

	confirmed := deleteYes
	if !confirmed {
		question := fmt.Sprintf("This will permanently delete the %s %q and remove %s data. Continue?", noun, name(e), possessive)
		confirmed = confirm(env.in, cmd.ErrOrStderr(), question)
	}
	if err := c.Delete(cmd.Context(), id, confirmed); err != nil {
		if errors.Is(err, resource.ErrNotConfirmed) {
			return errors.New("aborted")
		}
		return err
	}
	return nil
}

func init() {
	for _, del := range []*cobra.Command{agenciesDeleteCmd, usersDeleteCmd} {
		del.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	}
	agenciesCmd.AddCommand(agenciesListCmd, agenciesDeleteCmd)
	usersCmd.AddCommand(usersListCmd, usersDeleteCmd)
	rootCmd.AddCommand(agenciesCmd, usersCmd)
}
