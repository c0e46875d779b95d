package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"library-viewer/internal/appdb"
)

const defaultDataDir = "/data"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dbPath := filepath.Join(dataDir, "library-viewer.db")

	store, err := appdb.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open application database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	ok := true
	switch command {
	case "add":
		ok = addUser(store, args)
	case "reset":
		ok = resetPassword(store, args)
	case "role":
		ok = changeRole(store, args)
	case "list":
		ok = listUsers(store)
	case "status":
		showStatus(store)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Library Viewer User Management")
	fmt.Println("")
	fmt.Println("Usage: userctl <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  add <username> <role>   - Create an account (admin|librarian|reader)")
	fmt.Println("  reset <username>        - Reset an account's password")
	fmt.Println("  role <username> <role>  - Change an account's role")
	fmt.Println("  list                    - List all accounts")
	fmt.Println("  status                  - Check whether any accounts exist")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATA_DIR - Path to application data directory (default: %s)\n", defaultDataDir)
}

// promptPassword reads and confirms a password from the terminal.
func promptPassword() (string, bool) {
	fmt.Print("New Password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return "", false
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return "", false
	}

	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		return "", false
	}
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "Error: Password must be at least 6 characters")
		return "", false
	}
	if len(password) > 72 {
		fmt.Fprintln(os.Stderr, "Error: Password must not exceed 72 characters")
		return "", false
	}

	return string(password), true
}

func addUser(store *appdb.Store, args []string) bool {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: userctl add <username> <role>")
		return false
	}
	username, role := args[0], args[1]

	if !appdb.ValidRole(role) {
		fmt.Fprintf(os.Stderr, "Error: Unknown role %q (admin|librarian|reader)\n", sanitizeCommand(role))
		return false
	}

	existing, err := store.GetUser(username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if existing != nil {
		fmt.Fprintf(os.Stderr, "Error: User %q already exists\n", existing.Username)
		return false
	}

	password, ok := promptPassword()
	if !ok {
		return false
	}

	user, err := store.CreateUser(username, password, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create user: %v\n", err)
		return false
	}

	store.RecordAudit(appdb.AuditUserCreated, user.Username, "created via userctl", "local")
	fmt.Printf("User %q created with role %s.\n", user.Username, user.Role)
	return true
}

func resetPassword(store *appdb.Store, args []string) bool {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: userctl reset <username>")
		return false
	}
	username := args[0]

	user, err := store.GetUser(username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if user == nil {
		fmt.Fprintf(os.Stderr, "Error: No such user %q\n", sanitizeCommand(username))
		return false
	}

	password, ok := promptPassword()
	if !ok {
		return false
	}

	if err := store.UpdatePassword(user.Username, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to update password: %v\n", err)
		return false
	}

	store.RecordAudit(appdb.AuditPasswordChanged, user.Username, "reset via userctl", "local")
	fmt.Println("Password updated successfully.")
	fmt.Println("All of the account's sessions have been invalidated.")
	return true
}

func changeRole(store *appdb.Store, args []string) bool {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: userctl role <username> <role>")
		return false
	}
	username, role := args[0], args[1]

	if !appdb.ValidRole(role) {
		fmt.Fprintf(os.Stderr, "Error: Unknown role %q (admin|librarian|reader)\n", sanitizeCommand(role))
		return false
	}

	if err := store.SetRole(username, role); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	store.RecordAudit(appdb.AuditRoleChanged, username, "role set to "+role+" via userctl", "local")
	fmt.Printf("Role for %q set to %s.\n", sanitizeCommand(username), role)
	return true
}

func listUsers(store *appdb.Store) bool {
	users, err := store.ListUsers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list users: %v\n", err)
		return false
	}

	if len(users) == 0 {
		fmt.Println("No accounts configured.")
		return true
	}

	fmt.Printf("%-20s %-10s %s\n", "USERNAME", "ROLE", "CREATED")
	for _, u := range users {
		fmt.Printf("%-20s %-10s %s\n", u.Username, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return true
}

func showStatus(store *appdb.Store) {
	if store.HasUsers() {
		fmt.Println("Status: Accounts are configured")
	} else {
		fmt.Println("Status: No accounts configured (setup required)")
	}
}
