package playbook

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{}, func(*File) error { return nil })
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{FilePath: "playbooks.yaml"}, nil)
	assert.Error(t, err)
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := writeCatalog(t, minimalCatalog)

	delivered := make(chan *File, 4)
	w, err := NewWatcher(WatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *File) error {
		delivered <- f
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	select {
	case f := <-delivered:
		assert.Equal(t, "v1", f.SchemaVersion)
	case <-time.After(2 * time.Second):
		t.Fatal("initial catalog not delivered")
	}
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	path := writeCatalog(t, minimalCatalog)

	delivered := make(chan *File, 4)
	w, err := NewWatcher(WatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *File) error {
		delivered <- f
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Drain the initial delivery.
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("initial catalog not delivered")
	}

	updated := `schema_version: v1
playbooks:
  unknown:
    immediate_actions:
      - Page the on-call engineer
    investigation_steps:
      - Check the status page
    escalation_criteria: Escalate immediately
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	select {
	case f := <-delivered:
		assert.Equal(t, "Escalate immediately", f.Playbooks["unknown"].EscalationCriteria)
	case <-time.After(5 * time.Second):
		t.Fatal("updated catalog not delivered")
	}
}

func TestWatcher_KeepsPreviousOnInvalidReload(t *testing.T) {
	path := writeCatalog(t, minimalCatalog)

	delivered := make(chan *File, 4)
	w, err := NewWatcher(WatcherConfig{FilePath: path, DebounceMillis: 50}, func(f *File) error {
		delivered <- f
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("initial catalog not delivered")
	}

	// An invalid catalog must not be delivered.
	require.NoError(t, os.WriteFile(path, []byte("schema_version: v999\n"), 0644))

	select {
	case f := <-delivered:
		t.Fatalf("invalid catalog was delivered: %+v", f)
	case <-time.After(1 * time.Second):
	}

	// The watcher survives and picks up the next valid write.
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0644))

	select {
	case f := <-delivered:
		assert.Equal(t, "v1", f.SchemaVersion)
	case <-time.After(5 * time.Second):
		t.Fatal("valid catalog after invalid one not delivered")
	}
}
