package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = `{
  // alice may push to release branches only
  "UsersInfo": [
    {"UserName": "alice", "AccessList": [
      {"Branch": "release/*", "Role": "write"},
      {"Branch": "feature/*", "Role": "admin"}
    ]},
    {"UserName": "bob", "AccessList": [
      {"Branch": "main", "Role": "delete"}
    ]}
  ]
}`

var zeroID = strings.Repeat("0", 40)

type result struct {
	stdout string
	stderr string
	code   int
}

// execute runs the root command with fresh flag state.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()

	cfgFile, flagPolicy, flagAuditLog, flagGitDir, verbose = "", "", "", "", false
	roleJSON = false
	policyInitFormat, policyInitForce = "", false
	installMode, installForce, installBin = "update", false, ""
	tailLines, tailDecision, tailCommitter, tailRef, tailJSON = 10, "", "", "", false

	res := result{}
	origExit := osExit
	osExit = func(code int) { res.code = code }
	t.Cleanup(func() { osExit = origExit })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		res.code = 1
	}
	res.stdout, res.stderr = stdout.String(), stderr.String()
	return res
}

// testRepo creates a repository with two commits on the default branch:
// first by carol, second by the given committer. It returns the git dir
// and both commit ids.
func testRepo(t *testing.T, committer string) (gitDir, first, second string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := t.TempDir()

	run := func(name string, args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=author",
			"GIT_AUTHOR_EMAIL=author@example.com",
			"GIT_COMMITTER_NAME="+name,
			"GIT_COMMITTER_EMAIL="+name+"@example.com",
			"GIT_CONFIG_GLOBAL=/dev/null",
			"GIT_CONFIG_NOSYSTEM=1",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
		return strings.TrimSpace(string(out))
	}

	run("setup", "init", "-q")
	run("carol", "commit", "-q", "--allow-empty", "-m", "first")
	first = run("carol", "rev-parse", "HEAD")
	run(committer, "commit", "-q", "--allow-empty", "-m", "second")
	second = run(committer, "rev-parse", "HEAD")
	return filepath.Join(dir, ".git"), first, second
}

// workspace isolates the working directory and writes the test policy.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(testPolicy), 0o644))
	return path
}

func TestHookAllowsPermittedPush(t *testing.T) {
	policyPath := workspace(t)
	gitDir, first, second := testRepo(t, "alice")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir,
		"refs/heads/release/1.0", first, second)

	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "User Ok\n", res.stdout)
}

func TestHookDeniesUserWithoutRole(t *testing.T) {
	policyPath := workspace(t)
	gitDir, first, second := testRepo(t, "alice")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir,
		"refs/heads/main", first, second)

	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
	assert.Contains(t, res.stderr, "alice has no role on main")
}

func TestHookDeniesInsufficientRole(t *testing.T) {
	policyPath := workspace(t)
	gitDir, first, second := testRepo(t, "bob")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir,
		"refs/heads/main", first, second)

	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `role "delete" does not permit push_commits`)
}

func TestHookDeniesTags(t *testing.T) {
	policyPath := workspace(t)
	gitDir, _, second := testRepo(t, "alice")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir,
		"refs/tags/feature/v1", zeroID, second)

	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
	assert.Contains(t, res.stderr, "tag updates are not accepted")
}

func TestHookCreateBranchWithAdminWildcard(t *testing.T) {
	policyPath := workspace(t)
	gitDir, _, second := testRepo(t, "alice")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir,
		"refs/heads/feature/x", zeroID, second)

	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "User Ok\n", res.stdout)
}

func TestHookMalformedIDDenied(t *testing.T) {
	policyPath := workspace(t)

	res := execute(t, "", "--policy", policyPath, "refs/heads/main", "nope", zeroID)

	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
	// Errors are logged, not echoed as a policy reason.
	assert.NotContains(t, res.stderr, "gitgate: refs/heads/main:")
}

func TestHookMissingPolicyDenied(t *testing.T) {
	workspace(t)
	gitDir, first, second := testRepo(t, "alice")

	res := execute(t, "", "--policy", "missing.json", "--git-dir", gitDir,
		"refs/heads/release/1.0", first, second)

	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
}

func TestHookBadConfigDenied(t *testing.T) {
	workspace(t)

	res := execute(t, "", "--config", "does-not-exist.yaml", "refs/heads/main", zeroID, zeroID)

	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
	assert.Contains(t, res.stderr, "read config")
}

func TestHookWrongArgCount(t *testing.T) {
	workspace(t)

	res := execute(t, "", "refs/heads/main")

	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)
}

func TestHookWritesAuditLog(t *testing.T) {
	policyPath := workspace(t)
	gitDir, first, second := testRepo(t, "alice")
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	res := execute(t, "", "--policy", policyPath, "--git-dir", gitDir, "--audit-log", logPath,
		"refs/heads/release/1.0", first, second)
	require.Equal(t, 0, res.code, res.stderr)

	res = execute(t, "", "--policy", policyPath, "--git-dir", gitDir, "--audit-log", logPath,
		"refs/heads/main", first, second)
	require.Equal(t, 1, res.code)

	res = execute(t, "", "audit", "verify", logPath)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "OK: 2 entries verified\n", res.stdout)

	res = execute(t, "", "audit", "tail", logPath, "--decision", "deny")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "refs/heads/main")
	assert.NotContains(t, res.stdout, "release/1.0")
	assert.Contains(t, res.stdout, "1 entries: 0 allowed, 1 denied")

	res = execute(t, "", "audit", "tail", logPath, "--json", "-n", "1")
	assert.Equal(t, 1, strings.Count(res.stdout, "\n"))
	assert.Contains(t, res.stdout, `"decision":"deny"`)
}

func TestAuditVerifyDetectsTampering(t *testing.T) {
	workspace(t)
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte(`{"prev_hash":"sha256:forged"}`+"\n"), 0o644))

	res := execute(t, "", "audit", "verify", logPath)

	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "FAILED at line 1")
}

func TestPreReceiveAllOrNothing(t *testing.T) {
	policyPath := workspace(t)
	gitDir, first, second := testRepo(t, "alice")

	ok := first + " " + second + " refs/heads/release/1.0\n"
	res := execute(t, ok, "--policy", policyPath, "--git-dir", gitDir, "pre-receive")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "User Ok\n", res.stdout)

	mixed := ok + first + " " + second + " refs/heads/main\n"
	res = execute(t, mixed, "--policy", policyPath, "--git-dir", gitDir, "pre-receive")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "User Not Permission\n", res.stdout)
	assert.Contains(t, res.stderr, "refs/heads/main")
}

func TestPreReceiveEmptyInputDenied(t *testing.T) {
	policyPath := workspace(t)

	res := execute(t, "", "--policy", policyPath, "pre-receive")

	assert.Equal(t, 1, res.code)
}

func TestRoleCommand(t *testing.T) {
	policyPath := workspace(t)

	res := execute(t, "", "--policy", policyPath, "role", "alice", "release/2.0")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "write\n", res.stdout)

	res = execute(t, "", "--policy", policyPath, "role", "alice", "main")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = execute(t, "", "--policy", policyPath, "role", "--json", "alice", "feature/x")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"role": "admin"`)
	assert.Contains(t, res.stdout, `"create_branch"`)
	assert.Contains(t, res.stdout, `"delete_branch"`)
	assert.Contains(t, res.stdout, `"push_commits"`)
}

func TestPolicyValidate(t *testing.T) {
	policyPath := workspace(t)

	res := execute(t, "", "policy", "validate", policyPath)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "OK: ")
	assert.Contains(t, res.stdout, "2 users")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"UsersInfo": [{"UserName": ""}]}`), 0o644))
	res = execute(t, "", "policy", "validate", bad)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "INVALID")
}

func TestPolicyValidateWarnings(t *testing.T) {
	workspace(t)
	path := filepath.Join(t.TempDir(), "users.yaml")
	content := "UsersInfo:\n  - UserName: alice\n    AccessList:\n      - Branch: main\n        Role: read\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res := execute(t, "", "policy", "validate", path)

	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stderr, `role "read" grants nothing`)
}

func TestPolicyInit(t *testing.T) {
	workspace(t)
	path := filepath.Join(t.TempDir(), "hooks", "users.yaml")

	res := execute(t, "", "policy", "init", path)
	require.Equal(t, 0, res.code, res.stderr)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "UsersInfo:")

	res = execute(t, "", "policy", "init", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "already exists")

	res = execute(t, "", "policy", "init", "--force", "--format", "json", path)
	require.Equal(t, 0, res.code, res.stderr)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"UsersInfo"`)

	res = execute(t, "", "policy", "init", "--force", "--format", "toml", path)
	assert.Equal(t, 1, res.code)
}

func TestInstallBareRepository(t *testing.T) {
	workspace(t)
	repo := t.TempDir()

	res := execute(t, "", "install", "--binary", "/usr/local/bin/gitgate", repo)
	require.Equal(t, 0, res.code, res.stderr)

	hook := filepath.Join(repo, "hooks", "update")
	info, err := os.Stat(hook)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "hook must be executable")

	script, err := os.ReadFile(hook)
	require.NoError(t, err)
	assert.Contains(t, string(script), `"/usr/local/bin/gitgate" --config`)
	assert.Contains(t, string(script), `"$1" "$2" "$3"`)

	cfg, err := os.ReadFile(filepath.Join(repo, "hooks", "gitgate.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "policy: "+filepath.Join(repo, "hooks", "users.json"))

	res = execute(t, "", "policy", "validate", filepath.Join(repo, "hooks", "users.json"))
	assert.Equal(t, 0, res.code, res.stderr)

	res = execute(t, "", "install", repo)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "already installed")
}

func TestInstallWorkingTreePreReceive(t *testing.T) {
	workspace(t)
	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))

	res := execute(t, "", "install", "--mode", "pre-receive", "--binary", "gitgate", repo)
	require.Equal(t, 0, res.code, res.stderr)

	script, err := os.ReadFile(filepath.Join(repo, ".git", "hooks", "pre-receive"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "pre-receive")

	res = execute(t, "", "install", "--mode", "post-receive", repo)
	assert.Equal(t, 1, res.code)
}

func TestVersion(t *testing.T) {
	res := execute(t, "", "version")

	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, `"name": "gitgate"`)
}
