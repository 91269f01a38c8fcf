package sshutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/sftp"
)

// FileSystem abstracts the file operations providers need to manage a
// remote configuration file. Tests substitute an in-memory fake.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)
}

// SFTPFileSystem implements FileSystem over SFTP.
type SFTPFileSystem struct {
	client *Client
	logger *slog.Logger

	mu         sync.RWMutex
	sftpClient *sftp.Client
}

// SFTPOption is a functional option for configuring the SFTPFileSystem.
type SFTPOption func(*SFTPFileSystem)

// WithSFTPLogger sets a custom logger for SFTP operations.
func WithSFTPLogger(logger *slog.Logger) SFTPOption {
	return func(fs *SFTPFileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewSFTPFileSystem creates a new SFTP-based FileSystem.
// The underlying SSH client must be connected before use.
func NewSFTPFileSystem(client *Client, opts ...SFTPOption) *SFTPFileSystem {
	fs := &SFTPFileSystem{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Connect establishes the SFTP session over the SSH connection.
// The SSH client must be connected before calling this method.
func (fs *SFTPFileSystem) Connect(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient != nil {
		return nil
	}

	sshConn, err := fs.client.GetConnection()
	if err != nil {
		return fmt.Errorf("getting SSH connection: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		return fmt.Errorf("creating SFTP client: %w", err)
	}

	fs.sftpClient = sftpClient
	fs.logger.Debug("SFTP session established")
	return nil
}

// Close closes the SFTP session. Safe to call multiple times.
// Does not close the underlying SSH connection.
func (fs *SFTPFileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient == nil {
		return nil
	}

	err := fs.sftpClient.Close()
	fs.sftpClient = nil

	fs.logger.Debug("SFTP session closed")
	return err
}

// getSFTP returns the SFTP client, ensuring it's connected.
func (fs *SFTPFileSystem) getSFTP() (*sftp.Client, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.sftpClient == nil {
		return nil, ErrNotConnected
	}
	return fs.sftpClient, nil
}

// ReadFile reads the contents of a file from the remote system.
func (fs *SFTPFileSystem) ReadFile(path string) ([]byte, error) {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return nil, err
	}

	file, err := sftpClient.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	fs.logger.Debug("file read",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// WriteFile writes data to a file on the remote system, creating it if
// needed and truncating any existing content.
func (fs *SFTPFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return err
	}

	file, err := sftpClient.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("opening file %s for write: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	n, err := file.Write(data)
	if err != nil {
		return fmt.Errorf("writing to file %s: %w", path, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write to file %s: wrote %d of %d bytes", path, n, len(data))
	}

	if err := sftpClient.Chmod(path, perm); err != nil {
		// The content made it; a permissions mismatch is survivable.
		fs.logger.Warn("failed to set file permissions",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	fs.logger.Debug("file written",
		slog.String("path", path),
		slog.Int("bytes", n),
	)
	return nil
}

// Rename renames/moves a file on the remote system.
func (fs *SFTPFileSystem) Rename(oldPath, newPath string) error {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return err
	}

	if err := sftpClient.PosixRename(oldPath, newPath); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Stat returns file info for a path on the remote system.
func (fs *SFTPFileSystem) Stat(path string) (os.FileInfo, error) {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return nil, err
	}

	info, err := sftpClient.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}
