package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/and161185/dolist/internal/app"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/session"
	"github.com/spf13/cobra"
)

type userView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Login    bool   `json:"login"`
	IsGuest  bool   `json:"isGuest"`
}

type sessionView struct {
	Destination string    `json:"destination"`
	User        *userView `json:"user,omitempty"`
}

func (o *options) printResolution(w io.Writer, res model.Resolution) error {
	if o.json {
		v := sessionView{Destination: res.Destination.String()}
		if u := res.User; u != nil {
			v.User = &userView{
				ID: u.ID, Name: u.Name, LastName: u.LastName, Username: u.Username,
				Email: u.Email, Login: u.Login, IsGuest: u.IsGuest,
			}
		}
		return printJSON(w, v)
	}
	if res.User == nil {
		fmt.Fprintln(w, "signed out: run `dolist guest`, `dolist login` or `dolist register`")
		return nil
	}
	kind := "account"
	if res.User.IsGuest {
		kind = "guest"
	}
	fmt.Fprintf(w, "%s: %s (%s, %s)\n", res.Destination, res.User.Name, kind, res.User.ID)
	return nil
}

func statusCmd(o *options) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Resolve the session as the app does at launch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Session.Start(ctx)
				if err != nil {
					return err
				}
				if err := o.printResolution(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if verify {
					id, err := a.IDP.WhoAmI(ctx)
					if err != nil {
						return fmt.Errorf("verify session: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "identity provider: %s <%s>\n", id.UID, id.Email)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "validate the session token with the identity provider")
	return cmd
}

func guestCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Continue as a guest on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Session.ContinueAsGuest(ctx)
				if err != nil {
					return err
				}
				return o.printResolution(cmd.OutOrStdout(), res)
			})
		},
	}
}

func loginCmd(o *options) *cobra.Command {
	var cred model.Credential
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email/password or a federated id token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Session.SignIn(ctx, cred)
				if err != nil {
					return err
				}
				return o.printResolution(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cred.Email, "email", "e", "", "email")
	f.StringVarP(&cred.Password, "password", "p", "", "password")
	f.StringVar(&cred.Provider, "provider", "", "federated provider name")
	f.StringVar(&cred.IDToken, "id-token", "", "federated id token")
	cmd.MarkFlagsMutuallyExclusive("password", "id-token")
	return cmd
}

func registerCmd(o *options) *cobra.Command {
	var r session.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Session.Register(ctx, r)
				if err != nil {
					return err
				}
				return o.printResolution(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&r.Name, "name", "", "first name")
	f.StringVar(&r.LastName, "last-name", "", "last name")
	f.StringVarP(&r.Username, "username", "u", "", "username")
	f.StringVarP(&r.Email, "email", "e", "", "email")
	f.StringVarP(&r.Password, "password", "p", "", "password (at least 6 characters)")
	return cmd
}

func logoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; guests keep their lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Session.Logout(ctx, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}
