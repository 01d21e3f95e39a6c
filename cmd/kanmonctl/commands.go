package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/asakaida/kanmon/internal/app"
	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services"
	"github.com/asakaida/kanmon/internal/services/authorization"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type registryOpener func(ctx context.Context, env string) (*app.Registry, *config.Config, logrus.FieldLogger, error)

// cli holds what every subcommand needs once the registry is open
type cli struct {
	open registryOpener
	env  string

	registry      *app.Registry
	gate          *authorization.Gate
	functionality services.FunctionalityServiceInterface
	authority     services.AuthorityServiceInterface
	roles         config.GateConfig
}

func newRootCmd(open registryOpener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "kanmonctl",
		Short: "Administer the Kanmon permission registry",
		Long: `kanmonctl reads and changes the permission registry configured by
STORAGE_DRIVER and the DB_* settings of the selected environment.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	root.PersistentFlags().StringVarP(&c.env, "env", "e", "dev", "Environment to use (dev, test, prod)")

	root.AddCommand(c.permissionCmd(), c.authorityCmd(), c.seedCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	registry, cfg, logger, err := c.open(cmd.Context(), c.env)
	if err != nil {
		return err
	}
	c.registry = registry
	c.roles = cfg.Gate
	c.gate = authorization.NewGate(registry.Functionalities, cfg.Gate.AnonymousAuthority, logger)
	c.functionality = services.NewFunctionalityService(registry.Functionalities, logger)
	c.authority = services.NewAuthorityService(registry.Authorities, logger)
	return nil
}

func (c *cli) teardown(cmd *cobra.Command, args []string) error {
	if c.registry == nil {
		return nil
	}
	return c.registry.Close()
}

func (c *cli) permissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "permission",
		Aliases: []string{"perm"},
		Short:   "Check, grant and revoke operation permissions",
	}

	var callerAuthorities []string
	check := &cobra.Command{
		Use:   "check <operation> <authority>",
		Short: "Decide whether a caller may perform an operation",
		Long: `Decide whether a caller holding --as may perform <operation> guarded by
<authority>. Exits non-zero when the call would be denied.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			allowed, err := c.gate.IsPermitted(cmd.Context(), args[0], args[1], callerAuthorities)
			if err != nil {
				return err
			}
			if !allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "denied")
				return authorization.ErrForbidden
			}
			fmt.Fprintln(cmd.OutOrStdout(), "allowed")
			return nil
		},
	}
	check.Flags().StringSliceVar(&callerAuthorities, "as", nil, "Authorities held by the caller (comma separated)")

	register := &cobra.Command{
		Use:   "register <operation> <authority>",
		Short: "Grant an operation to an authority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.gate.RegisterPermission(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s for %s\n", args[0], args[1])
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <operation> <authority>",
		Short: "Withdraw an operation from an authority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.gate.RevokePermission(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s for %s\n", args[0], args[1])
			return nil
		},
	}

	var filter repositories.FunctionalityFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.functionality.List(cmd.Context(), &filter)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tOPERATION\tAUTHORITY")
			for _, f := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\n", f.ID, f.Name, f.AuthorityName)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&filter.Name, "operation", "", "Only entries for this operation")
	list.Flags().StringVar(&filter.AuthorityName, "authority", "", "Only entries for this authority")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of entries (0 means all)")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "Number of entries to skip")

	cmd.AddCommand(check, register, revoke, list)
	return cmd
}

func (c *cli) authorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "authority",
		Aliases: []string{"auth"},
		Short:   "Manage authorities",
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.authority.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", a.Name)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List authorities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authorities, err := c.authority.List(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "NAME\tCREATED")
			for _, a := range authorities {
				fmt.Fprintf(w, "%s\t%s\n", a.Name, a.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an authority that no permission references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.authority.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the built-in authorities and default permissions",
		Long: `Create the admin, ` + entities.AuthorityUser + ` and anonymous authorities with the
default permission set. The admin and anonymous names come from
GATE_ADMIN_AUTHORITY and GATE_ANONYMOUS_AUTHORITY. Existing entries are
left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repositories.SeedDefaultsAs(cmd.Context(), c.registry.Authorities, c.registry.Functionalities, c.roles.AdminAuthority, c.roles.AnonymousAuthority); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d permissions\n", len(repositories.DefaultFunctionalities))
			return nil
		},
	}
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}
