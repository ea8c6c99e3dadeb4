package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-auth-client/internal/config"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/transport"
)

func newRootCmd(cfg config.Config) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:   "authclient",
		Short: "Session client for the auth service",
		Long: `authclient holds a login session in DATA_FOLDER and keeps every
authclient process using that folder in step with it.

Example usage:
  authclient login -u alice       # Obtain a credential (password from -p or AUTH_PASSWORD)
  authclient get /documents/12    # Authenticated API request
  authclient switch-tenant 7      # Re-scope the session to another tenant
  authclient watch                # Follow logouts made by other processes
  authclient logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}

	root.AddCommand(
		newLoginCmd(&a),
		newSwitchTenantCmd(&a),
		newLogoutCmd(&a),
		newStatusCmd(&a),
		newGetCmd(&a),
		newWatchCmd(&a),
	)
	return root
}

func newLoginCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("AUTH_PASSWORD")
			}
			if username == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}

			resp, err := (*a).login.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (tenant %d)\n", (*a).store.SubjectID(), resp.TenantID)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "subject to log in as")
	cmd.Flags().StringP("password", "p", "", "password (default $AUTH_PASSWORD)")
	return cmd
}

func newSwitchTenantCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch-tenant <tenant-id>",
		Short: "Re-scope the session to another tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tenant id %q: %w", args[0], err)
			}
			if _, err := (*a).login.SwitchTenant(cmd.Context(), tenantID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now in tenant %d\n", (*a).store.TenantID())
			return nil
		},
	}
}

func newLogoutCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session for every process sharing the data folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(*a).store.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			(*a).store.Logout(session.LogoutManual)
			return nil
		},
	}
}

type statusView struct {
	Authenticated bool     `json:"authenticated"`
	SubjectID     string   `json:"subjectId,omitempty"`
	TenantID      int64    `json:"tenantId,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	ExpiresAt     string   `json:"expiresAt,omitempty"`
}

func newStatusCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state := (*a).store.State()
			view := statusView{
				Authenticated: state.IsAuthenticated,
				SubjectID:     state.SubjectID,
				TenantID:      state.TenantID,
				Roles:         state.Roles,
			}
			if c, err := (*a).store.Codec().Decode(state.Credential); err == nil {
				view.ExpiresAt = c.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}

func newGetCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET request and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			url := strings.TrimRight((*a).cfg.GetBaseURL(), "/") + path

			resp, err := (*a).apiClient.Get(url)
			if err != nil {
				var respErr *transport.ResponseError
				if apperrors.As(err, &respErr) {
					return fmt.Errorf("%s: %w", respErr.Kind, err)
				}
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
}

func newWatchCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the shared session until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current := *a
			displayAppname(current.cfg.GetAppName())

			bridge := navigation.NewBridge(navigation.NavigatorFunc(func(route string) {
				fmt.Fprintf(cmd.OutOrStdout(), "-> %s\n", route)
			}))
			bridge.Attach(current.store.LogoutEvents(), current.notFound)
			defer bridge.Detach()

			if err := current.sync.Start(); err != nil {
				return err
			}
			defer current.sync.Stop()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go current.store.WatchExpiry(ctx, current.cfg.GetExpiryCheckInterval())

			fmt.Fprintf(cmd.OutOrStdout(), "Watching session (authenticated=%t). Press Ctrl+C to stop.\n", current.store.IsAuthenticated())
			waitForStopSignal(ctx)
			return nil
		},
	}
}
