package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeHomeFixture(home))

	stdout, stderr, err := runTQ(t, binaryPath, home, "bots")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "@alpha_bot\thttps://example.test/hook")
	assert.Contains(t, stdout, "@beta_bot\t-")

	stdout, stderr, err = runTQ(t, binaryPath, home, "accounts")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "+15550001111\tno session")

	stdout, stderr, err = runTQ(t, binaryPath, home, "query", "show", "--bot", "@alpha_bot")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "query_id=ABC123\n", stdout)

	stdout, stderr, err = runTQ(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "+15550001111 (no session)")
}

func TestSmokeRunWithoutAccountsExitsNonZero(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runTQ(t, binaryPath, home, "run")
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, stderr, "no accounts configured")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "tq-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tq")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build tq binary: %s", string(output))
	return binaryPath
}

func runTQ(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, append([]string{"--home", home}, args...)...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeHomeFixture(home string) error {
	if err := writeFile(home, "phone.txt", "+15550001111\n"); err != nil {
		return err
	}
	if err := writeFile(home, "bot.txt", "@alpha_bot|https://example.test/hook\n@beta_bot\n"); err != nil {
		return err
	}
	return writeFile(home, filepath.Join("queries", "alpha_bot_query.txt"), "query_id=ABC123\nquery_id=OLDER\n")
}

func writeFile(home, name, content string) error {
	path := filepath.Join(home, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
