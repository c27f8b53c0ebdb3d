package main

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/virtrpcd/virtrpcd/internal/cliclient"
	"github.com/virtrpcd/virtrpcd/internal/clicreds"
)

var (
	loginUsername string
	loginPassword string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the admin API session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a virtrpcd admin API and save the session token",
	Long: `Authenticate with a virtrpcd admin API and store the resulting
bearer token for use by later commands.

Examples:
  virtrpcctl auth login --server http://127.0.0.1:16510 --username admin
  virtrpcctl auth login --username admin -p secret`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (omit to be prompted)")
	authCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	base, err := resolveServerURL(false)
	if err != nil {
		return err
	}

	username := loginUsername
	if username == "" {
		prompt := promptui.Prompt{Label: "Username"}
		username, err = prompt.Run()
		if err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
	}

	password := loginPassword
	if password == "" {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err = prompt.Run()
		if err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
	}

	client := cliclient.New(base)
	result, err := client.Login(username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := clicreds.Save(&clicreds.Session{
		ServerURL: base,
		Username:  username,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Printf("Logged in to %s as %s\n", base, username)
	return nil
}

// resolveServerURL returns --server if set, otherwise the saved session's
// URL. A missing saved session is always an error: requireSession selects
// whether that is the load error itself or a "--server is required" error.
func resolveServerURL(requireSession bool) (string, error) {
	if serverURL != "" {
		return serverURL, nil
	}
	sess, err := clicreds.Load()
	if err != nil {
		if requireSession {
			return "", err
		}
		return "", fmt.Errorf("--server is required on first login")
	}
	return sess.ServerURL, nil
}

// authenticatedClient loads the saved session and returns a client primed
// with its bearer token, or an error telling the caller to log in first.
func authenticatedClient() (*cliclient.Client, error) {
	sess, err := clicreds.Load()
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, fmt.Errorf("session expired, run 'virtrpcctl auth login' again")
	}
	base := serverURL
	if base == "" {
		base = sess.ServerURL
	}
	client := cliclient.New(base)
	client.SetToken(sess.Token)
	return client, nil
}
