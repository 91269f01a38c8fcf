package sshutil

import (
	"context"
	"errors"
	"testing"
)

func TestSFTPFileSystemNotConnected(t *testing.T) {
	fs := NewSFTPFileSystem(disconnectedClient(t))

	if _, err := fs.ReadFile("/etc/dnsmasq.conf"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadFile = %v, want ErrNotConnected", err)
	}
	if err := fs.WriteFile("/etc/dnsmasq.conf", []byte("x"), 0o644); !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteFile = %v, want ErrNotConnected", err)
	}
	if err := fs.Rename("/a", "/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Rename = %v, want ErrNotConnected", err)
	}
	if _, err := fs.Stat("/etc/dnsmasq.conf"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Stat = %v, want ErrNotConnected", err)
	}
}

func TestSFTPFileSystemConnectWithoutSSH(t *testing.T) {
	fs := NewSFTPFileSystem(disconnectedClient(t))

	if err := fs.Connect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Connect = %v, want ErrNotConnected", err)
	}
}

func TestSFTPFileSystemCloseIdempotent(t *testing.T) {
	fs := NewSFTPFileSystem(disconnectedClient(t))

	if err := fs.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
