// Command dashboard is a headless client for the LankaSat Live gateway. It
// drives the same client core the map UI uses: session store, view lock,
// layer selection, and the panel pollers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lankasat/lankasat-live/internal/dashboard"
	"github.com/lankasat/lankasat-live/internal/dashboard/api"
	"github.com/spf13/cobra"
)

var (
	apiURL    string
	statePath string

	client   *api.Client
	sessions *dashboard.SessionStore
	lock     *dashboard.ViewLock
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lankasat",
		Short: "Headless client for the LankaSat Live flood dashboard",
		Long: `lankasat talks to a LankaSat Live gateway: satellite layers,
island weather, river gauge levels, flood shelters, and the relief
directory, with the same session and view-lock rules as the map UI.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client = api.New(apiURL)
			sessions = dashboard.NewSessionStore(client, statePath)
			lock = dashboard.NewViewLock(sessions)
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Gateway base URL (defaults to LANKASAT_API_URL, then "+api.DefaultBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", defaultStatePath(), "Session state file")

	addAuthCmds(rootCmd)
	addPanelCmds(rootCmd)
	addWatchCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lankasat-session.json"
	}
	return filepath.Join(home, ".lankasat", "session.json")
}

func addAuthCmds(rootCmd *cobra.Command) {
	var email, password, displayName string

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessions.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			session, _ := sessions.Current()
			cmd.Println(fmt.Sprintf("Logged in as %s (%s)", session.User.Email, session.User.Role))
			return nil
		},
	}
	loginCmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log into it",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sessions.Register(cmd.Context(), email, password, displayName)
			if errors.Is(err, dashboard.ErrPasswordTooShort) {
				return errors.New("password must be at least 6 characters")
			}
			if err != nil {
				return err
			}
			session, _ := sessions.Current()
			cmd.Println(fmt.Sprintf("Registered %s as %s", session.User.Email, session.User.DisplayName))
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	registerCmd.Flags().StringVarP(&password, "password", "p", "", "Account password (6+ characters)")
	registerCmd.Flags().StringVar(&displayName, "name", "", "Display name")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")

	guestCmd := &cobra.Command{
		Use:   "guest",
		Short: "Start an anonymous guest session",
		Long: `Guest sessions can register flood shelters but satellite imagery
panels stay locked, exactly as in the map UI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessions.LoginAsGuest(cmd.Context()); err != nil {
				return err
			}
			session, _ := sessions.Current()
			cmd.Println(fmt.Sprintf("Guest session started as %s", session.User.DisplayName))
			return nil
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Run: func(cmd *cobra.Command, args []string) {
			sessions.Logout()
			cmd.Println("Logged out.")
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session and view lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sessions.Validate(cmd.Context())
			if errors.Is(err, dashboard.ErrSessionExpired) {
				cmd.Println("Not logged in.")
			} else if session, ok := sessions.Current(); ok {
				name := session.User.Email
				if name == "" {
					name = session.User.DisplayName
				}
				cmd.Println(fmt.Sprintf("Logged in as %s (%s)", name, session.User.Role))
			}
			cmd.Println(fmt.Sprintf("View state: %s", lock.State()))
			cmd.Println(fmt.Sprintf("Satellite panels locked: %v", lock.IsLocked()))
			cmd.Println(fmt.Sprintf("Can register shelters: %v", lock.CanRegisterShelters()))
			return nil
		},
	}

	rootCmd.AddCommand(loginCmd, registerCmd, guestCmd, logoutCmd, statusCmd)
}

// requireUnlocked gates imagery commands on a registered session.
func requireUnlocked() error {
	if lock.IsLocked() {
		return errors.New("satellite panels require a registered account: run 'lankasat login' or 'lankasat register'")
	}
	return nil
}

// run wraps a context-taking action for commands without extra setup.
func run(fn func(ctx context.Context, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return fn(cmd.Context(), cmd)
	}
}
