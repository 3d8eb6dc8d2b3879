package wavetesting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/require"
)

type TestContext struct {
	Log logger.Logger
	T   *testing.T
	// Dir is removed when the test ends.
	Dir string
}

type TestConfig struct {
	TestLabelPrefix string
	// LogLevel defaults to NOOP, set INFO or DEBUG to see component logs.
	LogLevel string
}

func NewTestContext(t *testing.T, cfg TestConfig) TestContext {
	level := cfg.LogLevel
	if level == "" {
		level = "NOOP"
	}
	logger.New(level)
	t.Cleanup(logger.OnExit)

	return TestContext{
		T:   t,
		Log: logger.Sugar.WithServiceName(cfg.TestLabelPrefix),
		Dir: t.TempDir(),
	}
}

// Path returns a path under the test directory.
func (c *TestContext) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

// WriteTrace writes a generated trace under the test directory and returns
// its path.
func (c *TestContext) WriteTrace(name string, trace []byte) string {
	path := c.Path(name)
	require.NoError(c.T, os.WriteFile(path, trace, 0o600))
	return path
}
