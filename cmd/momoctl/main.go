// Command momoctl drives a momo-ops server from the terminal: sign in, seed
// fixtures, read stock and submit monthly counts.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/momoworks/momo-ops/pkg/client"
)

type options struct {
	server    string
	token     string
	tokenFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "momoctl",
		Short:         "Command line client for momo-ops",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("MOMO_SERVER", "http://localhost:8080"), "momo-ops base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MOMO_TOKEN"), "bearer token; defaults to the saved login")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where login stores the access token")

	root.AddCommand(
		newLoginCmd(opts),
		newSeedCmd(opts),
		newStockCmd(opts),
		newRecalibrateCmd(opts),
		newKitchenCmd(opts),
		newMigrateCmd(),
		newBootstrapCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".momoctl-token"
	}
	return filepath.Join(dir, "momoctl", "token")
}

func (o *options) client() *client.Client {
	return client.New(o.server, client.WithToken(o.bearer()))
}

// bearer prefers --token, then the saved login.
func (o *options) bearer() string {
	if o.token != "" {
		return o.token
	}
	raw, err := os.ReadFile(o.tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (o *options) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(o.tokenFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(o.tokenFile, []byte(token+"\n"), 0o600)
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

var errNoToken = errors.New("not signed in: run momoctl login or pass --token")

func (o *options) requireToken() error {
	if o.bearer() == "" {
		return errNoToken
	}
	return nil
}
