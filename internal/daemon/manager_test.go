package daemon

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabcurator/tabcurator/internal/config"
)

type fakeComponent struct {
	name    string
	deps    []string
	inits   *[]string
	stops   *[]string
	initErr error
}

func (f *fakeComponent) Name() string           { return f.name }
func (f *fakeComponent) Dependencies() []string { return f.deps }

func (f *fakeComponent) Init(ctx context.Context) error {
	if f.inits != nil {
		*f.inits = append(*f.inits, f.name)
	}
	return f.initErr
}

func (f *fakeComponent) Start(ctx context.Context) error { return nil }

func (f *fakeComponent) Stop(ctx context.Context) error {
	if f.stops != nil {
		*f.stops = append(*f.stops, f.name)
	}
	return nil
}

func (f *fakeComponent) Health(ctx context.Context) (*ComponentHealth, error) {
	return &ComponentHealth{Name: f.name, Healthy: true}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 8732
	cfg.Daemon.StatePath = t.TempDir()
	return cfg
}

func TestResolveInitOrderFollowsDependencies(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	var inits []string
	d.AddComponent(&fakeComponent{name: "C", deps: []string{"B"}, inits: &inits})
	d.AddComponent(&fakeComponent{name: "A", inits: &inits})
	d.AddComponent(&fakeComponent{name: "B", deps: []string{"A"}, inits: &inits})

	require.NoError(t, d.initComponents(context.Background()))
	require.Equal(t, []string{"A", "B", "C"}, inits)
}

func TestCircularDependencyDetected(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	d.AddComponent(&fakeComponent{name: "A", deps: []string{"B"}})
	d.AddComponent(&fakeComponent{name: "B", deps: []string{"A"}})

	err = d.initComponents(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "circular dependency")
}

func TestMissingDependencyRejected(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	d.AddComponent(&fakeComponent{name: "A", deps: []string{"Ghost"}})

	err = d.initComponents(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestInitFailurePropagates(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	d.AddComponent(&fakeComponent{name: "A", initErr: fmt.Errorf("boom")})

	err = d.initComponents(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "component A init failed")
}

func TestStopRunsInReverseRegistrationOrder(t *testing.T) {
	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	var stops []string
	d.AddComponent(&fakeComponent{name: "A", stops: &stops})
	d.AddComponent(&fakeComponent{name: "B", stops: &stops})
	d.AddComponent(&fakeComponent{name: "C", stops: &stops})

	d.stopComponents(context.Background())
	require.Equal(t, []string{"C", "B", "A"}, stops)
	require.Equal(t, StatusStopped, d.Health())
}

func TestInstanceLockExcludesSecondDaemon(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, first.acquireInstanceLock())
	defer first.releaseInstanceLock()

	second, err := NewDaemon(cfg)
	require.NoError(t, err)
	err = second.acquireInstanceLock()
	require.Error(t, err, "a second daemon on the same state path must be rejected")
}

func TestValidateConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.Error(t, d.validateConfig())

	cfg.Server.Port = 8732
	require.NoError(t, d.validateConfig())
}
