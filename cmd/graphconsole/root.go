package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/spf13/cobra"

	"github.com/codehedgehog/msgraph-console/config"
	"github.com/codehedgehog/msgraph-console/graph"
	"github.com/codehedgehog/msgraph-console/httpclient"
	"github.com/codehedgehog/msgraph-console/oauth2client"
)

// Exit codes.
const (
	exitSuccess    = 0
	exitError      = 1
	exitConfig     = 2
	exitAuthFailed = 3
)

const configHelp = "Missing or invalid appsettings.json file. Please see README.md for configuration instructions."

type options struct {
	configPath string
	useMSAL    bool
	top        int
	rawTop     int
	timeout    time.Duration
	verbose    bool

	// httpClient carries requests to the authority and to Graph. Nil uses the defaults.
	httpClient *http.Client
}

func newRootCmd(opts *options, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphconsole",
		Short: "Query Microsoft Graph with application credentials",
		Long: `graphconsole acquires an app-only token for Microsoft Graph using the
client-credentials grant and lists users, once through the typed client and once
with a raw HTTP request.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *opts, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the settings file")
	flags.BoolVar(&opts.useMSAL, "msal", false, "acquire tokens through MSAL instead of a plain token request")
	flags.IntVar(&opts.top, "top", 1, "number of users to fetch with the typed client")
	flags.IntVar(&opts.rawTop, "raw-top", 5, "number of users to fetch with the raw request")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for each request")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log token acquisition")

	return cmd
}

func execute(args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	cmd := newRootCmd(opts, stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return exitSuccess
	}

	var cfgErr *oauth2client.ConfigurationError
	var authErr *oauth2client.AuthenticationError
	switch {
	case errors.As(err, &cfgErr):
		fmt.Fprintln(stderr, configHelp)
		fmt.Fprintln(stderr, err)
		return exitConfig
	case errors.As(err, &authErr):
		fmt.Fprintln(stderr, err)
		return exitAuthFailed
	default:
		fmt.Fprintln(stderr, err)
		return exitError
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		var cfgErr *oauth2client.ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return &oauth2client.ConfigurationError{Fields: []string{opts.configPath}, Reason: err.Error()}
	}

	tm, err := newTokenManager(ctx, cfg.Credentials(), opts)
	if err != nil {
		return err
	}

	builder := httpclient.NewBuilder().WithTokenManager(tm).WithTimeout(opts.timeout)
	if opts.httpClient != nil && opts.httpClient.Transport != nil {
		builder = builder.WithBaseTransport(opts.httpClient.Transport)
	}
	httpClient, err := builder.Build()
	if err != nil {
		return err
	}

	client := graph.NewClient(httpClient, graph.WithBaseURL(cfg.GraphBaseURL()))

	users, err := client.ListUsers(ctx, opts.top)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Graph SDK Result")
	if len(users) > 0 {
		fmt.Fprintln(out, users[0].DisplayName)
	}

	raw, err := client.GetString(ctx, fmt.Sprintf("%s/users?$top=%d", cfg.GraphBaseURL(), opts.rawTop))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "HTTP Result")
	fmt.Fprintln(out, raw)

	return nil
}

func newTokenManager(ctx context.Context, creds oauth2client.Credentials, opts options) (*oauth2client.TokenManager, error) {
	tmOpts := []oauth2client.Option{}
	if opts.verbose {
		tmOpts = append(tmOpts, oauth2client.WithLoggingEnabled())
	}
	if opts.httpClient != nil {
		tmOpts = append(tmOpts, oauth2client.WithHTTPClient(opts.httpClient))
	}

	if opts.useMSAL {
		var msalOpts []confidential.Option
		if opts.httpClient != nil {
			msalOpts = append(msalOpts, confidential.WithHTTPClient(opts.httpClient))
		}
		src, err := oauth2client.NewMSALSource(creds, msalOpts...)
		if err != nil {
			return nil, err
		}
		tmOpts = append(tmOpts, oauth2client.WithSource(src))
	}

	return oauth2client.NewTokenManager(ctx, creds, tmOpts...)
}
