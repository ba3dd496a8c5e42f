package treetesting

import (
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/require"
)

// AzuriteEnv enables the tests that need the blob store emulator. The
// connection details come from the usual azblob dev environment.
const AzuriteEnv = "BATCHEDMERKLE_AZURITE"

type TestContext struct {
	Log  logger.Logger
	T    *testing.T
	Rand *rand.Rand

	container string
	storer    *azblob.Storer
}

type TestConfig struct {
	// We seed the RNG with Seed. It is normal to force it to some fixed
	// value so that the generated data is the same from run to run.
	Seed            int64
	TestLabelPrefix string
	Container       string // can be "" defaults to TestLabelPrefix
}

func NewTestContext(t *testing.T, cfg TestConfig) *TestContext {
	c := &TestContext{
		T:    t,
		Rand: rand.New(rand.NewSource(cfg.Seed)),
	}
	logger.New("NOOP")
	c.Log = logger.Sugar.WithServiceName(cfg.TestLabelPrefix)

	c.container = cfg.Container
	if c.container == "" {
		c.container = cfg.TestLabelPrefix
	}
	return c
}

func (c *TestContext) GetLog() logger.Logger { return c.Log }

// GetStorer connects to the blob store emulator on first use. The test is
// skipped when AzuriteEnv is not set.
func (c *TestContext) GetStorer() *azblob.Storer {
	if c.storer != nil {
		return c.storer
	}
	if os.Getenv(AzuriteEnv) == "" {
		c.T.Skipf("%s not set", AzuriteEnv)
	}
	var err error
	c.storer, err = azblob.NewDev(azblob.NewDevConfigFromEnv(), c.container)
	if err != nil {
		c.T.Fatalf("failed to connect to blob store emulator: %v", err)
	}
	client := c.storer.GetServiceClient()
	// Note: we expect a 'already exists' error here and  ignore it.
	_, _ = client.CreateContainer(context.Background(), c.container, nil)
	return c.storer
}

func (c *TestContext) DeleteBlobsByPrefix(blobPrefixPath string) {
	storer := c.GetStorer()

	var blobs []string
	var marker azblob.ListMarker
	for {
		r, err := storer.List(
			context.Background(),
			azblob.WithListPrefix(blobPrefixPath), azblob.WithListMarker(marker))
		require.NoError(c.T, err)

		for _, i := range r.Items {
			blobs = append(blobs, *i.Name)
		}
		if len(r.Items) == 0 || r.Marker == nil {
			break
		}
		marker = r.Marker
	}
	for _, blobPath := range blobs {
		err := storer.Delete(context.Background(), blobPath)
		require.NoError(c.T, err)
	}
}
