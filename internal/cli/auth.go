package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pmt/internal/client"
	"pmt/internal/config"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long: `Authentication commands for user registration and login.

Manage your account and authentication tokens for publishing packages.`,
}

// registerCmd handles user registration
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new user account",
	Long: `Register a new user account with username, email, and password.

After successful registration, you'll be automatically logged in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegister()
	},
}

// loginCmd handles user login
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to your user account",
	Long: `Login to your user account with username and password.

Your JWT token will be saved locally for future API calls.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin()
	},
}

// logoutCmd handles user logout
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout from your user account",
	Long:  `Remove the saved credentials for the active registry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogout()
	},
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password input
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}

func runRegister() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, reg, err := getCurrentRegistry(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("📝 Registering new account at %s\n\n", reg.URL)

	username, err := readLine("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	email, err := readLine("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	authClient := client.NewAuthClient(reg.URL)
	authResp, err := authClient.Register(client.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return saveCredentials(cfg, authResp)
}

func runLogin() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, reg, err := getCurrentRegistry(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("🔑 Logging in to %s\n\n", reg.URL)

	username, err := readLine("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	authClient := client.NewAuthClient(reg.URL)
	authResp, err := authClient.Login(client.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return saveCredentials(cfg, authResp)
}

func saveCredentials(cfg config.CLIConfig, authResp *client.AuthResponse) error {
	registryConfig := cfg.Registries[cfg.Current]
	registryConfig.Username = authResp.User.Username
	registryConfig.JWTToken = authResp.Token
	cfg.Registries[cfg.Current] = registryConfig

	if err := config.SaveCLI(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Successfully logged in as %s\n", authResp.User.Username)
	fmt.Printf("🔑 Authentication token saved\n")
	return nil
}

func runLogout() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Current == "" {
		fmt.Println("You are not currently logged in")
		return nil
	}

	registryConfig, exists := cfg.Registries[cfg.Current]
	if !exists || registryConfig.Username == "" {
		fmt.Println("You are not currently logged in")
		return nil
	}

	// Best effort: revoke server-side, then clear local credentials either way
	if registryConfig.JWTToken != "" {
		if err := client.NewAuthClient(registryConfig.URL).Logout(registryConfig.JWTToken); err != nil {
			fmt.Printf("Warning: could not revoke token on server: %v\n", err)
		}
	}

	username := registryConfig.Username
	registryConfig.Username = ""
	registryConfig.JWTToken = ""
	cfg.Registries[cfg.Current] = registryConfig

	if err := config.SaveCLI(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Successfully logged out %s\n", username)
	return nil
}

func init() {
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
}
