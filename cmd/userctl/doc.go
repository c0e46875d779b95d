// Command userctl provides a CLI utility for user management in the
// library viewer application.
//
// It supports the following operations:
//   - add: Create a user account with a role
//   - reset: Reset a user's password
//   - role: Change a user's role
//   - list: List all accounts
//   - status: Check whether any accounts exist
//
// Usage:
//
//	userctl <command> [arguments]
//
// Commands:
//
//	add <username> <role>  Create an account (role: admin, librarian,
//	                       or reader) with an interactively prompted
//	                       password.
//
//	reset <username>       Reset an account's password. All of the
//	                       account's sessions are invalidated.
//
//	role <username> <role> Change an account's role.
//
//	list                   Print all accounts with their roles.
//
//	status                 Display whether any accounts exist. If none
//	                       do, the first account can also be created
//	                       through the web setup endpoint.
//
// Environment:
//
//	DATA_DIR - Path to the application data directory (default: /data)
package main
