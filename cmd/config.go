package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dt-pm-tools/jira-bridge/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure the source and target Jira connections",
	Long:  `Interactively set up the URL, email and API token for both Jira instances. Settings are saved to ~/.jira-bridge.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		// Load existing config for defaults
		existing, _ := config.Load(cfgFile)

		source, err := promptCredentials(reader, "Source", existing.Source)
		if err != nil {
			return err
		}
		target, err := promptCredentials(reader, "Target", existing.Target)
		if err != nil {
			return err
		}

		cfg := config.Config{
			Source:    source,
			Target:    target,
			StorePath: existing.StorePath,
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", path)
		return nil
	},
}

// promptCredentials asks for one instance's URL, email and token. The
// token input is masked.
func promptCredentials(reader *bufio.Reader, label string, existing config.Credentials) (config.Credentials, error) {
	if existing.URL != "" {
		fmt.Printf("%s Jira URL [%s]: ", label, existing.URL)
	} else {
		fmt.Printf("%s Jira URL (e.g., https://your-org.atlassian.net): ", label)
	}
	url, _ := reader.ReadString('\n')
	url = strings.TrimSpace(url)
	if url == "" {
		url = existing.URL
	}

	if existing.Email != "" {
		fmt.Printf("%s email [%s]: ", label, existing.Email)
	} else {
		fmt.Printf("%s email: ", label)
	}
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		email = existing.Email
	}

	fmt.Printf("%s API token (input hidden): ", label)
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // newline after hidden input
	if err != nil {
		return config.Credentials{}, fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		token = existing.Token
	}

	return config.Credentials{URL: url, Email: email, Token: token}, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
}
