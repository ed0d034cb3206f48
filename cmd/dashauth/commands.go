package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-auth/auth"
	"github.com/jrsteele09/dashboard-auth/guard"
	"github.com/jrsteele09/dashboard-auth/server"
	"github.com/jrsteele09/dashboard-auth/session"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

// LoginCommand signs in and persists the session.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Username",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password",
				EnvVars: []string{"DASHAUTH_PASSWORD"},
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	if err := rt.session.Initialize(c.Context); err != nil {
		return err
	}

	result, err := rt.auth.Login(c.Context, auth.Credentials{
		Username: c.String("username"),
		Password: c.String("password"),
	})
	if err != nil {
		return cli.Exit(userMessage(err), 1)
	}
	if err := rt.session.SignIn(c.Context, result); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Signed in as %s\n", result.Username)
	return nil
}

// RegisterCommand creates an account and signs it in.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Username",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password (at least 6 characters)",
				EnvVars: []string{"DASHAUTH_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Email address (optional)",
			},
		},
		Action: register,
	}
}

func register(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	if err := rt.session.Initialize(c.Context); err != nil {
		return err
	}

	password := c.String("password")
	if err := auth.ValidatePasswordLength(password, auth.MinPasswordLength); err != nil {
		return cli.Exit(userMessage(err), 1)
	}

	result, err := rt.auth.Register(c.Context, auth.Registration{
		Username: c.String("username"),
		Password: password,
		Email:    c.String("email"),
	})
	if err != nil {
		return cli.Exit(userMessage(err), 1)
	}
	if err := rt.session.SignIn(c.Context, result); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Registered and signed in as %s\n", result.Username)
	return nil
}

// LogoutCommand revokes the session and clears storage.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and clear the stored session",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.session.Initialize(c.Context); err != nil {
				return err
			}
			if err := rt.session.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "Signed out")
			return nil
		},
	}
}

type statusView struct {
	session.State
	AccessExpiresAt  *time.Time `json:"accessExpiresAt,omitempty"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
}

// StatusCommand prints the stored session after validating it.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current session",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.session.Initialize(c.Context); err != nil {
				return err
			}

			view := statusView{State: rt.session.State()}
			if tok := rt.session.Token(); tok != nil {
				access, refresh := tok.AccessExpiresAt(), tok.RefreshExpiresAt()
				view.AccessExpiresAt = &access
				if tok.RefreshExpiry != 0 {
					view.RefreshExpiresAt = &refresh
				}
			}
			return printStatus(c, view)
		},
	}
}

func printStatus(c *cli.Context, view statusView) error {
	w := c.App.Writer
	if c.String("output") == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	if !view.Authenticated {
		fmt.Fprintln(w, "Not signed in")
		return nil
	}
	fmt.Fprintf(w, "Signed in as %s\n", view.Username)
	if view.AccessExpiresAt != nil {
		fmt.Fprintf(w, "  access expires:  %s (in %s)\n",
			view.AccessExpiresAt.Format(time.RFC3339), time.Until(*view.AccessExpiresAt).Round(time.Second))
	}
	if view.RefreshExpiresAt != nil {
		fmt.Fprintf(w, "  refresh expires: %s\n", view.RefreshExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// OpenCommand reports what the route guards do with PATH for the stored
// session.
func OpenCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Resolve a dashboard path through the route guards",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("PATH is required", 1)
			}
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.session.Initialize(c.Context); err != nil {
				return err
			}

			d := guard.Resolve(path, rt.session.IsAuthenticated())
			if d.Allow {
				fmt.Fprintf(c.App.Writer, "%s: allowed\n", path)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "%s: redirect to %s\n", path, d.RedirectTo)
			return nil
		},
	}
}

// WhoAmICommand calls a running dashboard's whoami endpoint with the stored
// access token as a bearer credential.
func WhoAmICommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Ask a running dashboard server who the stored token belongs to",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Dashboard base URL",
				Value: "http://localhost:8080",
			},
		},
		Action: whoami,
	}
}

func whoami(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	if err := rt.session.Initialize(c.Context); err != nil {
		return err
	}
	if !rt.session.IsAuthenticated() {
		return cli.Exit("Not signed in", 1)
	}

	client := oauth2.NewClient(c.Context, rt.session.TokenSource())
	client.Timeout = 10 * time.Second

	url := strings.TrimSuffix(c.String("url"), "/") + server.RouteAPIWhoAmI
	resp, err := client.Get(url)
	if err != nil {
		return errors.Wrapf(err, "[whoami] GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "[whoami] read body")
	}
	if resp.StatusCode != http.StatusOK {
		return cli.Exit(fmt.Sprintf("whoami: %s: %s", resp.Status, strings.TrimSpace(string(body))), 1)
	}
	fmt.Fprintln(c.App.Writer, strings.TrimSpace(string(body)))
	return nil
}

// userMessage maps service errors to the messages the dashboard shows.
func userMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return "Invalid username or password"
	case errors.Is(err, auth.ErrDuplicateUser):
		return "Username already exists"
	case errors.Is(err, auth.ErrValidation):
		return strings.TrimSpace(err.Error())
	default:
		return "An error occurred. Please try again."
	}
}
