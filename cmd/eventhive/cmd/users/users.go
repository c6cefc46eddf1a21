package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage EventHive accounts",
	Long:  `Commands for managing EventHive accounts directly against the database.`,
}

func init() {
	createAdminCmd.Flags().StringVar(&usernameFlag, "username", "", "Username of the admin (prompted when omitted)")
	createAdminCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the admin (prompted when omitted)")
	createAdminCmd.Flags().BoolVar(&passwordStdinFlag, "password-stdin", false, "Read the password from the first line of stdin")

	UsersCmd.AddCommand(createAdminCmd)
}
