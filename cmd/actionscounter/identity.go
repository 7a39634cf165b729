package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/life-experimentalist/actionscounter/internal/config"
	"github.com/life-experimentalist/actionscounter/internal/identity"
)

// errInvalidPair makes `validate` exit non-zero without a usage dump.
var errInvalidPair = errors.New("invalid alias/token pair")

type deriveFlags struct {
	owner string
	repo  string
	at    int64 // unix milliseconds; 0 means now
}

func (f *deriveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "repository owner (default from ACTIONSCOUNTER_REPO_OWNER)")
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository name (default from ACTIONSCOUNTER_REPO_NAME)")
	cmd.Flags().Int64Var(&f.at, "at", 0, "derive at this unix time in milliseconds instead of now")
}

// resolve fills owner and repo from the environment and returns the deriver.
func (f *deriveFlags) resolve() (identity.Deriver, error) {
	cfg, err := config.Parse()
	if err != nil {
		return identity.Deriver{}, err
	}
	if f.owner == "" {
		f.owner = cfg.RepoOwner
	}
	if f.repo == "" {
		f.repo = cfg.RepoName
	}

	d := identity.Deriver{}
	if f.at != 0 {
		at := time.UnixMilli(f.at)
		d.Now = func() time.Time { return at }
	}
	return d, nil
}

func newAliasCmd() *cobra.Command {
	var flags deriveFlags
	cmd := &cobra.Command{
		Use:   "alias <name>",
		Short: "Print the alias derived for a project name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.resolve()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.DeriveAlias(args[0], flags.owner, flags.repo))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var flags deriveFlags
	cmd := &cobra.Command{
		Use:   "token <name>",
		Short: "Print the auth token derived for a project name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.resolve()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.DeriveAuthToken(args[0], flags.owner, flags.repo))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <alias> <token>",
		Short: "Check the shape of an alias/token pair; exits 1 when invalid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, ok := identity.ValidateToken(args[0], args[1])
			if !ok {
				return errInvalidPair
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}
