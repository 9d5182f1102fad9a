package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/sheets"
	"github.com/spf13/cobra"
)

// checkStatus is the outcome of one setup check.
type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
	checkSkip
)

func (s checkStatus) String() string {
	switch s {
	case checkOK:
		return "OK"
	case checkWarn:
		return "WARN"
	case checkFail:
		return "FAIL"
	default:
		return "SKIP"
	}
}

// setupCheck verifies one prerequisite and returns a detail line.
type setupCheck struct {
	name string
	run  func(ctx context.Context) (checkStatus, string)
}

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that Chrome and Google Sheets access are set up",
		Long: `Check verifies the prerequisites of a scheduled run:

- Chrome or Chromium can be launched
- the service-account credentials file is readable and names a client_email
- the spreadsheet is reachable with those credentials

A missing credentials file is only a warning, since --no-upload runs do not
need it.`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().String("sheet-id", "", "Spreadsheet ID (env "+sheetIDEnv+")")
	cmd.Flags().String("credentials", config.DefaultCredentialsFile, "Service-account JSON key")
	cmd.Flags().String("chrome-path", "", "Chrome or Chromium executable")
	cmd.Flags().Bool("no-sandbox", false, "Run Chrome without its sandbox")
	cmd.Flags().StringP("config", "c", "", "Configuration file path")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	configFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if path := config.FindConfigFile(configFlag); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.ApplyFile(file)
	}
	if cfg.SheetID == "" {
		cfg.SheetID = lookupEnv(sheetIDEnv)
	}

	f := flagSetter{cmd: cmd}
	f.str("sheet-id", &cfg.SheetID)
	f.str("credentials", &cfg.CredentialsFile)
	f.str("chrome-path", &cfg.ChromePath)
	f.boolean("no-sandbox", &cfg.NoSandbox)
	if f.err != nil {
		return f.err
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	checks := []setupCheck{
		chromeCheck(cfg, func(ctx context.Context) (string, error) {
			opener, closeBrowser, err := launchChrome(ctx, cfg, logger)
			if err != nil {
				return "", err
			}
			defer closeBrowser()
			if b, ok := opener.(*browser.Browser); ok {
				return b.Version(ctx)
			}
			return "", nil
		}),
		credentialsCheck(cfg),
		sheetCheck(cfg, func(ctx context.Context) (string, error) {
			u, err := sheets.NewFromCredentialsFile(ctx, cfg.CredentialsFile, cfg.SheetID, cfg.Worksheet,
				sheets.WithLogger(logger))
			if err != nil {
				return "", err
			}
			return u.Ping(ctx)
		}),
	}

	return runChecks(cmd.Context(), cmd.OutOrStdout(), checks)
}

// runChecks runs every check in order and fails when any check failed.
func runChecks(ctx context.Context, out io.Writer, checks []setupCheck) error {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "arrestscan setup check")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	failed := 0
	for _, c := range checks {
		status, detail := c.run(ctx)
		fmt.Fprintf(out, "%s %s\n", padDots(c.name, 40), status)
		if detail != "" {
			fmt.Fprintf(out, "    %s\n", detail)
		}
		if status == checkFail {
			failed++
		}
	}

	fmt.Fprintln(out, strings.Repeat("=", 60))
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Fprintln(out, "Ready to scrape.")
	return nil
}

func padDots(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(".", width-len(s))
}

// chromeCheck launches the browser through launch.
func chromeCheck(cfg *config.Config, launch func(ctx context.Context) (string, error)) setupCheck {
	return setupCheck{
		name: "Chrome",
		run: func(ctx context.Context) (checkStatus, string) {
			product, err := launch(ctx)
			if err != nil {
				hint := "install Chrome or Chromium, or set --chrome-path"
				if !cfg.NoSandbox {
					hint += "; inside containers try --no-sandbox"
				}
				return checkFail, fmt.Sprintf("%v (%s)", err, hint)
			}
			return checkOK, product
		},
	}
}

// credentialsCheck reads the service-account key file.
func credentialsCheck(cfg *config.Config) setupCheck {
	return setupCheck{
		name: "Credentials",
		run: func(context.Context) (checkStatus, string) {
			_, creds, err := sheets.LoadCredentials(cfg.CredentialsFile)
			switch {
			case errors.Is(err, sheets.ErrNoCredentials):
				return checkWarn, fmt.Sprintf("%s not found; needed for Google Sheets upload", cfg.CredentialsFile)
			case err != nil:
				return checkFail, err.Error()
			case !creds.HasPrivateKey():
				return checkFail, "private_key is missing"
			}
			return checkOK, "service account: " + creds.ClientEmail
		},
	}
}

// sheetCheck pings the spreadsheet through ping.
func sheetCheck(cfg *config.Config, ping func(ctx context.Context) (string, error)) setupCheck {
	return setupCheck{
		name: "Google Sheets",
		run: func(ctx context.Context) (checkStatus, string) {
			if cfg.SheetID == "" {
				return checkSkip, "no spreadsheet ID configured"
			}
			if _, _, err := sheets.LoadCredentials(cfg.CredentialsFile); err != nil {
				return checkSkip, "no usable credentials"
			}
			title, err := ping(ctx)
			if err != nil {
				return checkFail, fmt.Sprintf("%v (share the sheet with the service account email)", err)
			}
			return checkOK, fmt.Sprintf("connected to %q", title)
		},
	}
}
