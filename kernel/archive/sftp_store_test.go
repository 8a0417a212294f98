package archive

import (
	"net"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/model"
)

func TestSftpStore(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go func() { _ = server.Serve() }()
	defer func() { _ = server.Close() }()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)

	require.NoError(t, client.MkdirAll("/archives"))
	store := NewSftpStore(client, "/archives", "pipe", nil)
	defer func() { _ = store.Close() }()

	exerciseStore(t, store)
}

func TestSftpClientConfig(t *testing.T) {
	_, err := clientConfig(model.ArchiveSftpConfig{Host: "h", User: "u"})
	assert.True(t, model.IsConfigurationError(err))

	config, err := clientConfig(model.ArchiveSftpConfig{Host: "h", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", config.User)
	assert.Len(t, config.Auth, 1)
}
