package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitment/portal/pkg/api/apitest"
	apiclient "github.com/recruitment/portal/pkg/api/client"
)

type harness struct {
	backend     *apitest.Server
	sessionFile string
	stdout      *bytes.Buffer
	stderr      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := apitest.NewServer()
	t.Cleanup(backend.Close)

	sessionFile := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("RECRUIT_API_URL", backend.URL)
	t.Setenv("RECRUIT_SESSION_FILE", sessionFile)
	t.Setenv("RECRUIT_TOKEN_SECRET", "")
	t.Setenv("LOG_LEVEL", "error")
	return &harness{
		backend:     backend,
		sessionFile: sessionFile,
		stdout:      new(bytes.Buffer),
		stderr:      new(bytes.Buffer),
	}
}

func (h *harness) run(stdin string, args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	return run(context.Background(), args, bytes.NewBufferString(stdin), h.stdout, h.stderr)
}

func (h *harness) stored(t *testing.T) storedSession {
	t.Helper()
	data, err := os.ReadFile(h.sessionFile)
	require.NoError(t, err)
	var s storedSession
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestRun_LoginPersistsSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))

	err := h.run("", "login", "--username", "rita", "--password", "recruit")
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "logged in as rita (role: recruiter)")

	info, err := os.Stat(h.sessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	s := h.stored(t)
	assert.NotEmpty(t, s.Token)
	assert.False(t, s.Encrypted)
	assert.Equal(t, apiclient.RoleRecruiter, s.RoleID)
	assert.Equal(t, h.backend.URL, s.APIBaseURL)
	assert.False(t, s.ExpiresAt.IsZero())
}

func TestRun_LoginEncryptsTokenWhenSecretSet(t *testing.T) {
	h := newHarness(t)
	t.Setenv("RECRUIT_TOKEN_SECRET", "correct horse")
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))
	h.backend.AddListing("Per", "Strand", "accepted")

	require.NoError(t, h.run("", "login", "--username", "rita", "--password", "recruit"))
	s := h.stored(t)
	assert.True(t, s.Encrypted)

	token, err := h.backend.IssueToken("rita", apiclient.RoleRecruiter)
	require.NoError(t, err)
	assert.NotContains(t, s.Token, token[:20], "token stored in clear")

	require.NoError(t, h.run("", "applications"))
	assert.Equal(t, "Strand\tPer\taccepted\n", h.stdout.String())

	t.Setenv("RECRUIT_TOKEN_SECRET", "")
	err = h.run("", "applications")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECRUIT_TOKEN_SECRET")
}

func TestRun_LoginPromptsForPassword(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "interactive", apiclient.RoleApplicant))

	err := h.run("interactive\n", "login", "--username", "alice")
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "Password: ")
	assert.Contains(t, h.stdout.String(), "logged in as alice (role: applicant)")
}

func TestRun_LoginEmptyPassword(t *testing.T) {
	h := newHarness(t)
	err := h.run("\n", "login", "--username", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password cannot be empty")
	assert.Zero(t, h.backend.TotalHits())
}

func TestRun_LoginRejected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "secret", apiclient.RoleApplicant))

	err := h.run("", "login", "--username", "alice", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "could not login", err.Error())
	assert.NoFileExists(t, h.sessionFile)
}

func TestRun_LoginMissingUsername(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "login", "--password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--username is required")
}

func TestRun_TransportFailure(t *testing.T) {
	h := newHarness(t)
	dead := httptest.NewServer(nil)
	dead.Close()

	err := h.run("", "login", "--username", "alice", "--password", "secret", "--api", dead.URL)
	require.Error(t, err)
	assert.Equal(t, "Could not connect to server, please try again later.\n", err.Error())
}

func TestRun_SignupThenApply(t *testing.T) {
	h := newHarness(t)

	err := h.run("", "signup", "--username", "alice", "--email", "alice@example.com",
		"--pnr", "19900101-1234", "--first", "Alice", "--last", "Andersson", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "account alice created")
	assert.Contains(t, h.stdout.String(), "logged in as alice (role: applicant)")

	appFile := filepath.Join(t.TempDir(), "application.json")
	require.NoError(t, os.WriteFile(appFile, []byte(`{"competences":[{"name":"lotteries","years":1}]}`), 0o600))
	require.NoError(t, h.run("", "apply", "--file", appFile))
	assert.Contains(t, h.stdout.String(), "application submitted")

	subs := h.backend.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "alice", subs[0].Username)
	assert.Contains(t, subs[0].Application, "competences")
}

func TestRun_ApplyFromStdin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "secret", apiclient.RoleApplicant))
	require.NoError(t, h.run("", "login", "--username", "alice", "--password", "secret"))

	require.NoError(t, h.run(`{"availability":[]}`, "apply", "--file", "-"))
	assert.Len(t, h.backend.Submissions(), 1)
}

func TestRun_SignupConflict(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "secret", apiclient.RoleApplicant))

	err := h.run("", "signup", "--username", "alice", "--email", "alice@example.com", "--password", "pw")
	require.Error(t, err)
	assert.Equal(t, "account not created: already in use: email, username", err.Error())
	assert.Zero(t, h.backend.Hits("/unauthorized/login"))
	assert.NoFileExists(t, h.sessionFile)
}

func TestRun_ApplicationsRequiresLogin(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "applications")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please login first")
	assert.Zero(t, h.backend.TotalHits())
}

func TestRun_ApplicationsAsApplicantIsRejected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "secret", apiclient.RoleApplicant))
	require.NoError(t, h.run("", "login", "--username", "alice", "--password", "secret"))

	err := h.run("", "applications")
	require.Error(t, err)
	assert.Equal(t, "unauthorized role", err.Error())
}

func TestRun_ApplicationsLimit(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))
	h.backend.AddListing("Per", "Strand", "accepted")
	h.backend.AddListing("Maria", "Lind", "unhandled")
	require.NoError(t, h.run("", "login", "--username", "rita", "--password", "recruit"))

	require.NoError(t, h.run("", "applications", "--limit", "1"))
	assert.Equal(t, "Strand\tPer\taccepted\n", h.stdout.String())
}

func TestRun_StatusWithoutSessionSendsNothing(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "status")
	require.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
	assert.Zero(t, h.backend.TotalHits())
}

func TestRun_StatusAfterLogin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("alice", "secret", apiclient.RoleApplicant))
	require.NoError(t, h.run("", "login", "--username", "alice", "--password", "secret"))

	require.NoError(t, h.run("", "status"))
	assert.Contains(t, h.stdout.String(), `"loggedIn":true`)
}

func TestRun_RoleAndLogout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))
	require.NoError(t, h.run("", "login", "--username", "rita", "--password", "recruit"))

	require.NoError(t, h.run("", "role", "--id", "2"))
	assert.Contains(t, h.stdout.String(), "role set to applicant")
	assert.Equal(t, 2, h.stored(t).RoleID)

	require.NoError(t, h.run("", "logout"))
	assert.Contains(t, h.stdout.String(), "signed out")
	assert.NoFileExists(t, h.sessionFile)

	// Logging out twice is harmless.
	require.NoError(t, h.run("", "logout"))
}

func TestRun_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: deploy")
	assert.Contains(t, h.stderr.String(), "Usage:")
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	h := newHarness(t)
	err := h.run("")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, h.stdout.String(), "Usage:")
}

func TestRun_LoginTightensExistingSessionFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))
	require.NoError(t, os.WriteFile(h.sessionFile, []byte(`{}`), 0o644))
	require.NoError(t, os.Chmod(h.sessionFile, 0o644))

	require.NoError(t, h.run("", "login", "--username", "rita", "--password", "recruit"))

	info, err := os.Stat(h.sessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.NotEmpty(t, h.stored(t).Token)

	entries, err := os.ReadDir(filepath.Dir(h.sessionFile))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestRun_LogoutWithoutSecretRemovesEncryptedSession(t *testing.T) {
	h := newHarness(t)
	t.Setenv("RECRUIT_TOKEN_SECRET", "correct horse")
	require.NoError(t, h.backend.AddUser("rita", "recruit", apiclient.RoleRecruiter))
	require.NoError(t, h.run("", "login", "--username", "rita", "--password", "recruit"))
	require.True(t, h.stored(t).Encrypted)

	t.Setenv("RECRUIT_TOKEN_SECRET", "")
	require.NoError(t, h.run("", "logout"))
	assert.NoFileExists(t, h.sessionFile)
	assert.Equal(t, 1, h.backend.TotalHits())
}
