package main

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage credential-store users",
}

var (
	userAddPassword string
)

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a new PLAIN-mechanism credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove a credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

func init() {
	userAddCmd.Flags().StringVarP(&userAddPassword, "password", "p", "", "password (omit to be prompted)")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := userAddPassword
	if password == "" {
		var err error
		password, err = promptNewPassword()
		if err != nil {
			return err
		}
	}

	client, err := authenticatedClient()
	if err != nil {
		return err
	}
	if err := client.CreateUser(username, password); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("User %q created\n", username)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	client, err := authenticatedClient()
	if err != nil {
		return err
	}
	if err := client.DeleteUser(username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}

func promptNewPassword() (string, error) {
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			return nil
		},
	}
	password, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("aborted: %w", err)
	}

	confirm := promptui.Prompt{Label: "Confirm password", Mask: '*'}
	confirmed, err := confirm.Run()
	if err != nil {
		return "", fmt.Errorf("aborted: %w", err)
	}
	if confirmed != password {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
