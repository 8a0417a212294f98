package archive

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SftpStore keeps archives as <dir>/<folder>/<name> on an SSH server.
type SftpStore struct {
	Dir    string
	host   string
	conn   *ssh.Client
	client *sftp.Client
}

func DialSftpStore(ctx context.Context, cfg model.ArchiveSftpConfig) (*SftpStore, error) {
	if err := model.RequireAll(model.EnvArchiveSftpHost, cfg.Host, model.EnvArchiveSftpUser, cfg.User); err != nil {
		return nil, err
	}
	config, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var dialer net.Dialer
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to reach '%s'", addr)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, config)
	if err != nil {
		_ = rawConn.Close()
		return nil, errors.Wrapf(err, "ssh handshake with '%s' failed", addr)
	}
	conn := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "sftp client creation failed")
	}
	return NewSftpStore(client, cfg.Dir, addr, conn), nil
}

// NewSftpStore wraps an established client. conn may be nil.
func NewSftpStore(client *sftp.Client, dir, host string, conn *ssh.Client) *SftpStore {
	return &SftpStore{Dir: dir, host: host, conn: conn, client: client}
}

func clientConfig(cfg model.ArchiveSftpConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read key '%s'", cfg.KeyFile)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse key '%s'", cfg.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, model.NewConfigurationError(model.EnvArchiveSftpKeyFile, "no key file nor password")
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		callback, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to load known hosts '%s'", cfg.KnownHosts)
		}
		hostKeys = callback
	} else {
		logrus.Warnf("%s not set, host key of '%s' is not verified", model.EnvArchiveSftpKnownHosts, cfg.Host)
	}
	return &ssh.ClientConfig{User: cfg.User, Auth: auth, HostKeyCallback: hostKeys}, nil
}

func (s *SftpStore) Upload(_ context.Context, localPath, folder, name string) error {
	dir := path.Join(s.Dir, folder)
	target := path.Join(dir, name)
	if _, err := s.client.Stat(target); err == nil {
		return errors.Errorf("an archive named '%s' already exists in folder '%s'", name, folder)
	}
	if err := s.client.MkdirAll(dir); err != nil {
		return errors.Wrapf(err, "unable to create remote folder '%s'", dir)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "unable to open '%s'", localPath)
	}
	defer func() { _ = src.Close() }()

	dst, err := s.client.Create(target)
	if err != nil {
		return errors.Wrapf(err, "unable to create remote file '%s'", target)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		_ = s.client.Remove(target)
		return errors.Wrapf(err, "unable to upload '%s'", target)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, "unable to close remote file '%s'", target)
	}
	logrus.Infof("uploaded %d bytes to '%s'", n, target)
	return nil
}

func (s *SftpStore) List(_ context.Context) ([]Entry, error) {
	root := s.Dir
	if root == "" {
		root = "."
	}
	folders, err := s.client.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list remote '%s'", root)
	}
	var entries []Entry
	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		files, err := s.client.ReadDir(path.Join(root, folder.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list remote folder '%s'", folder.Name())
		}
		for _, f := range files {
			if f.IsDir() || !isArchive(f.Name()) {
				continue
			}
			entries = append(entries, Entry{Name: f.Name(), Folder: folder.Name(), Size: f.Size()})
		}
	}
	return entries, nil
}

func (s *SftpStore) Download(_ context.Context, entry Entry, localPath string) error {
	source := path.Join(s.Dir, entry.Key())
	src, err := s.client.Open(source)
	if err != nil {
		return errors.Wrapf(err, "unable to open remote file '%s'", source)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create '%s'", localPath)
	}
	if _, err := src.WriteTo(dst); err != nil {
		_ = dst.Close()
		return errors.Wrapf(err, "unable to download '%s'", source)
	}
	return errors.Wrapf(dst.Close(), "unable to close '%s'", localPath)
}

func (s *SftpStore) Describe() map[string]string {
	return map[string]string{"backend": model.ArchiveBackendSftp, "host": s.host, "dir": s.Dir}
}

func (s *SftpStore) Close() error {
	err := s.client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
