// Command leadscout watches social-network groups for posts that match a
// keyword profile and keeps the matches as leads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadscout",
		Short:         "Scan monitored groups for lead posts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug | info | warn | error (default: from config)")

	root.AddCommand(serveCmd())
	root.AddCommand(scrapeCmd())
	root.AddCommand(browseCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(hashPasswordCmd())

	return root
}

func serveCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator, HTTP channel and autorun heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), noBrowser)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "serve the API without driving a browser (autorun ticks fail)")
	return cmd
}

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <group-url>",
		Short: "Open a group page and run one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), args[0])
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <url>",
		Short: "Open a visible browser with the group card injected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), args[0])
		},
	}
}

func loginCmd() *cobra.Command {
	var (
		email    string
		password string
		signup   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("LEADSCOUT_PASSWORD")
			}
			return runLogin(cmd.Context(), email, password, signup)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: $LEADSCOUT_PASSWORD)")
	cmd.Flags().BoolVar(&signup, "signup", false, "register a new account first")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		out    string
		remote string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all leads as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), out, remote)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&remote, "remote", "", "fetch from a running server (e.g. http://127.0.0.1:8427)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the lead tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context())
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for auth.admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHashPassword(cmd.OutOrStdout(), args[0])
		},
	}
}
