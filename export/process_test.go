package export

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugRulesMirrorsGitlog(t *testing.T) {
	inTempDir(t)

	p, err := startProcess("R", &Options{DryRun: true, DebugRules: true})
	require.NoError(t, err)

	require.NoError(t, p.writeString("commit refs/heads/master\n"))
	require.NoError(t, p.writeNoLog([]byte("blob payload")))
	require.NoError(t, p.writeString("progress done\n"))
	require.NoError(t, p.close())

	data, err := os.ReadFile(gitlogFileName("R"))
	require.NoError(t, err)
	// close appends its checkpoint; the blob payload stays out of the mirror.
	assert.Equal(t, "commit refs/heads/master\nprogress done\ncheckpoint\n", string(data))
}

func TestNoGitlogWithoutDebugRules(t *testing.T) {
	inTempDir(t)

	p, err := startProcess("R", &Options{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, p.writeString("commit refs/heads/master\n"))
	require.NoError(t, p.close())

	_, err = os.Stat(gitlogFileName("R"))
	assert.True(t, os.IsNotExist(err))
}

func TestBlobSinkBypassesGitlog(t *testing.T) {
	inTempDir(t)

	p, err := startProcess("blobs", &Options{DryRun: true, DebugRules: true})
	require.NoError(t, err)

	sink := blobSink{p}
	n, err := sink.Write([]byte("binary\x00bytes"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	require.NoError(t, p.close())

	data, err := os.ReadFile(gitlogFileName("blobs"))
	require.NoError(t, err)
	assert.Equal(t, "checkpoint\n", string(data))
}

func TestSanitizedFileNames(t *testing.T) {
	assert.Equal(t, "marks-a_b", marksFileName("a/b"))
	assert.Equal(t, "log-a_b", logFileName("a/b"))
	assert.Equal(t, "gitlog-a_b", gitlogFileName("a/b"))
}
