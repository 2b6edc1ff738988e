package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	apiclient "github.com/recruitment/portal/pkg/api/client"
	"github.com/recruitment/portal/pkg/config"
	"github.com/recruitment/portal/pkg/logger"
)

var buildVersion = "dev"

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	log    *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stdout)
		return errUsage
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	a := &app{
		cfg:    cfg,
		log:    logger.New(stderr, "recruit", logger.ParseLevel(cfg.LogLevel)),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.commandLogin(ctx, rest)
	case "signup":
		return a.commandSignup(ctx, rest)
	case "apply":
		return a.commandApply(ctx, rest)
	case "applications":
		return a.commandApplications(ctx, rest)
	case "status":
		return a.commandStatus(ctx, rest)
	case "role":
		return a.commandRole(rest)
	case "logout":
		return a.commandLogout(rest)
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, strings.TrimSpace(buildVersion))
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// newClient builds a client for base (or the configured default) seeded
// with sess.
func (a *app) newClient(base string, sess apiclient.Session) (*apiclient.Client, error) {
	if strings.TrimSpace(base) == "" {
		base = a.cfg.APIBaseURL
	}
	return apiclient.New(base,
		apiclient.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		apiclient.WithLogger(a.log),
		apiclient.WithSession(sess),
	)
}

// requireSession loads the stored session and refuses to continue without
// a live one.
func (a *app) requireSession() (*apiclient.Client, error) {
	stored, sess, err := loadSession(a.cfg.SessionFile, a.cfg.TokenSecret)
	if err != nil {
		return nil, err
	}
	if !sess.LoggedIn() {
		return nil, errors.New("please login first using 'recruit login'")
	}
	if sess.Expired(time.Now()) {
		return nil, errors.New("session expired, please login again")
	}
	return a.newClient(stored.APIBaseURL, sess)
}

func (a *app) commandLogin(ctx context.Context, args []string) error {
	fs := a.flagSet("login")
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	secret, err := a.passwordOrPrompt(*password)
	if err != nil {
		return err
	}

	cli, err := a.newClient(*apiBase, apiclient.Session{})
	if err != nil {
		return err
	}
	res, err := cli.Login(ctx, *username, secret)
	if err != nil {
		return err
	}
	if err := saveSession(a.cfg.SessionFile, a.cfg.TokenSecret, cli.BaseURL(), res.Session); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "logged in as %s (role: %s)\n", *username, res.Session.RoleName())
	return nil
}

func (a *app) commandSignup(ctx context.Context, args []string) error {
	fs := a.flagSet("signup")
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	pnr := fs.String("pnr", "", "Personal number")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := a.passwordOrPrompt(*password)
	if err != nil {
		return err
	}

	cli, err := a.newClient(*apiBase, apiclient.Session{})
	if err != nil {
		return err
	}
	out, err := cli.CreateAccount(ctx, apiclient.UserRecord{
		Username:       *username,
		Email:          *email,
		PersonalNumber: *pnr,
		Password:       secret,
		FirstName:      *first,
		LastName:       *last,
	})
	if err != nil {
		return err
	}
	if !out.Created.Success {
		taken := takenFields(out.Created.ExistingFields)
		if len(taken) == 0 {
			return fmt.Errorf("account not created: %s", out.Created.Raw)
		}
		return fmt.Errorf("account not created: already in use: %s", strings.Join(taken, ", "))
	}
	fmt.Fprintf(a.stdout, "account %s created\n", *username)
	if out.LoginErr != nil {
		return fmt.Errorf("login after signup failed: %w", out.LoginErr)
	}
	if err := saveSession(a.cfg.SessionFile, a.cfg.TokenSecret, cli.BaseURL(), out.Login.Session); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "logged in as %s (role: %s)\n", *username, out.Login.Session.RoleName())
	return nil
}

func takenFields(existing map[string]bool) []string {
	var taken []string
	for field, inUse := range existing {
		if inUse {
			taken = append(taken, field)
		}
	}
	sort.Strings(taken)
	return taken
}

func (a *app) commandApply(ctx context.Context, args []string) error {
	fs := a.flagSet("apply")
	file := fs.String("file", "", "Application JSON file ('-' reads stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}
	var (
		data []byte
		err  error
	)
	if *file == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read application: %w", err)
	}
	var application apiclient.ApplicationRecord
	if err := json.Unmarshal(data, &application); err != nil {
		return fmt.Errorf("parse application: %w", err)
	}

	cli, err := a.requireSession()
	if err != nil {
		return err
	}
	reply, err := cli.SubmitApplication(ctx, application)
	if err != nil {
		return err
	}
	if !apiclient.Accepted(reply) {
		return fmt.Errorf("application not accepted: %s", reply)
	}
	fmt.Fprintln(a.stdout, "application submitted")
	return nil
}

func (a *app) commandApplications(ctx context.Context, args []string) error {
	fs := a.flagSet("applications")
	limit := fs.Int("limit", 0, "Maximum number of applications to display")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cli, err := a.requireSession()
	if err != nil {
		return err
	}
	entries, err := cli.ListApplications(ctx)
	if err != nil {
		return err
	}
	count := len(entries)
	if *limit > 0 && *limit < count {
		count = *limit
	}
	for _, e := range entries[:count] {
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", e.LastName, e.FirstName, e.Status)
	}
	return nil
}

func (a *app) commandStatus(ctx context.Context, args []string) error {
	fs := a.flagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	stored, sess, err := loadSession(a.cfg.SessionFile, a.cfg.TokenSecret)
	if err != nil {
		return err
	}
	cli, err := a.newClient(stored.APIBaseURL, sess)
	if err != nil {
		return err
	}
	status, err := cli.CheckRoleID(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\n", status)
	return nil
}

func (a *app) commandRole(args []string) error {
	fs := a.flagSet("role")
	id := fs.Int("id", 0, "Role identifier (1 recruiter, 2 applicant)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("--id is required")
	}
	stored, sess, err := loadSession(a.cfg.SessionFile, a.cfg.TokenSecret)
	if err != nil {
		return err
	}
	cli, err := a.newClient(stored.APIBaseURL, sess)
	if err != nil {
		return err
	}
	updated := cli.SetRoleID(*id)
	if err := saveSession(a.cfg.SessionFile, a.cfg.TokenSecret, cli.BaseURL(), updated); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "role set to %s\n", updated.RoleName())
	return nil
}

// commandLogout forgets the stored session. The backend keeps no login
// state, so nothing is sent.
func (a *app) commandLogout(args []string) error {
	fs := a.flagSet("logout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := removeSession(a.cfg.SessionFile); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "signed out")
	return nil
}

func (a *app) passwordOrPrompt(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.stdout, "Password: ")
	secret, err := readPassword(a.stdin)
	fmt.Fprintln(a.stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("password cannot be empty")
	}
	return secret, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "recruit CLI %s\n\n", buildVersion)
	fmt.Fprint(w, `Usage:
	recruit login --username <name> [--password secret] [--api URL]
	recruit signup --username <name> --email <addr> [--pnr N] [--first F] [--last L] [--password secret] [--api URL]
	recruit apply --file application.json
	recruit applications [--limit N]
	recruit status
	recruit role --id <1|2>
	recruit logout
	recruit version

Environment:
	RECRUIT_API_URL, RECRUIT_HTTP_TIMEOUT, RECRUIT_SESSION_FILE, RECRUIT_TOKEN_SECRET, LOG_LEVEL
`)
}
