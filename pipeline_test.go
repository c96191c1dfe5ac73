package twitter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func pipelineConfig(t *testing.T) Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Output.Dir = filepath.Join(cfg.Output.Dir, "pipeline")
	cfg.Credentials = Credentials{Username: "bot", Password: "secret"}
	return cfg
}

func twoPostPlatform() *fakePlatform {
	return &fakePlatform{
		verified: true,
		fakeSource: fakeSource{
			profile: Profile{Username: "degenspartan", ExpectedCount: 2},
			batches: []fakeBatch{
				{records: []RawRecord{raw("1", 1), raw("2", 2), {ID: "9", Text: "RT @x: y", CreatedAt: day(9)}}},
			},
		},
	}
}

func runPipeline(t *testing.T, cfg Config, client PlatformClient) (*Pipeline, Result, error) {
	t.Helper()
	p := NewPipeline(cfg, client, zaptest.NewLogger(t)).WithPacer(NoPacer{})
	res, err := p.Run(context.Background())
	return p, res, err
}

// ---------------------------------------------------------------------------
// Success path
// ---------------------------------------------------------------------------

func TestPipelineRun_Success(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	client := twoPostPlatform()

	p, res, err := runPipeline(t, cfg, client)
	require.NoError(t, err)
	if p.State() != StateLoggedOut {
		t.Errorf("expected final state %v, got %v", StateLoggedOut, p.State())
	}
	if diff := cmp.Diff([]string{"2", "1"}, ids(res.Records)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if res.Entries != 2 {
		t.Errorf("expected 2 fine-tuning entries, got %d", res.Entries)
	}

	for _, path := range []string{res.URLsPath, res.RecordsPath, res.FineTuningPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
	if res.RecordsPath != filepath.Join(cfg.Output.Dir, "degenspartan-records.json") {
		t.Errorf("unexpected records path %q", res.RecordsPath)
	}

	want := []string{"login:bot", "is_logged_in", "profile", "logout"}
	if diff := cmp.Diff(want, client.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineRun_LogoutFailureTolerated(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	client := twoPostPlatform()
	client.logoutErr = errors.New("session already expired")

	p, _, err := runPipeline(t, cfg, client)
	require.NoError(t, err)
	if p.State() != StateLoggedOut {
		t.Errorf("expected %v, got %v", StateLoggedOut, p.State())
	}
}

// ---------------------------------------------------------------------------
// Failure paths
// ---------------------------------------------------------------------------

func TestPipelineRun_MissingPassword(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	cfg.Credentials.Password = ""
	client := twoPostPlatform()

	p, _, err := runPipeline(t, cfg, client)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	if diff := cmp.Diff([]string{EnvPassword}, cfgErr.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no client activity, got %v", client.calls)
	}
	if p.State() != StateFailed {
		t.Errorf("expected %v, got %v", StateFailed, p.State())
	}
}

func TestPipelineRun_LoginNotVerified(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	client := twoPostPlatform()
	client.verified = false

	p, _, err := runPipeline(t, cfg, client)
	require.ErrorIs(t, err, ErrAuthentication)
	if p.State() != StateFailed {
		t.Errorf("expected %v, got %v", StateFailed, p.State())
	}
	want := []string{"login:bot", "is_logged_in"}
	if diff := cmp.Diff(want, client.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineRun_LoginError(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	client := twoPostPlatform()
	client.loginErr = errors.New("challenge required")

	_, _, err := runPipeline(t, cfg, client)
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestPipelineRun_CollectionFailureLogsOut(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	client := twoPostPlatform()
	client.batches = []fakeBatch{{err: errors.New("timeline unavailable")}}

	p, _, err := runPipeline(t, cfg, client)
	require.ErrorIs(t, err, ErrFetch)
	if p.State() != StateFailed {
		t.Errorf("expected %v, got %v", StateFailed, p.State())
	}
	if client.calls[len(client.calls)-1] != "logout" {
		t.Errorf("expected logout after a failed collection, got %v", client.calls)
	}
	if _, err := os.Stat(cfg.RecordsPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no records file, got %v", err)
	}
}

func TestPipelineRun_OutputDirBlocked(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	require.NoError(t, os.WriteFile(cfg.Output.Dir, []byte("file, not dir"), 0600))

	p, _, err := runPipeline(t, cfg, twoPostPlatform())
	require.ErrorIs(t, err, ErrPersistence)
	if p.State() != StateFailed {
		t.Errorf("expected %v, got %v", StateFailed, p.State())
	}
}

// ---------------------------------------------------------------------------
// Session reuse
// ---------------------------------------------------------------------------

func TestPipelineRun_ReusesSavedSession(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	cfg.Session.CookieFile = filepath.Join(t.TempDir(), "cookies.json")
	fp := twoPostPlatform()
	fp.restorable = true

	_, _, err := runPipeline(t, cfg, sessionPlatform{fp})
	require.NoError(t, err)
	want := []string{"load_session", "is_logged_in", "profile", "logout"}
	if diff := cmp.Diff(want, fp.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineRun_SavesSessionAfterLogin(t *testing.T) {
	t.Parallel()
	cfg := pipelineConfig(t)
	cfg.Session.CookieFile = filepath.Join(t.TempDir(), "cookies.json")
	fp := twoPostPlatform()
	fp.loadErr = os.ErrNotExist

	_, _, err := runPipeline(t, cfg, sessionPlatform{fp})
	require.NoError(t, err)
	want := []string{"load_session", "login:bot", "is_logged_in", "save_session", "profile", "logout"}
	if diff := cmp.Diff(want, fp.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fp.savedPath != cfg.Session.CookieFile {
		t.Errorf("expected session saved to %q, got %q", cfg.Session.CookieFile, fp.savedPath)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	if StateCollecting.String() != "collecting" {
		t.Errorf("unexpected %q", StateCollecting.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unexpected %q", State(42).String())
	}
}
