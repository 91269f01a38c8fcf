package dnsmasq

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// fakeFS is an in-memory file system standing in for SFTP.
type fakeFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string][]byte)}
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (f *fakeFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
	return nil
}

func (f *fakeFS) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[oldPath]
	if !ok {
		return os.ErrNotExist
	}
	f.files[newPath] = data
	delete(f.files, oldPath)
	return nil
}

func (f *fakeFS) Stat(string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}

func (f *fakeFS) content(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.files[path])
}

// fakeRunner records reload invocations.
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *fakeRunner) Run(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func testConfig() provider.Config {
	return provider.Config{
		Name: "home-dns",
		Auth: provider.SSH{User: "root", Password: "secret"},
		Params: map[string]string{
			"host": "dns.home.example.org",
		},
	}
}

func testProvider(t *testing.T) (*Provider, *fakeFS, *fakeRunner) {
	t.Helper()
	fs := newFakeFS()
	runner := &fakeRunner{}
	p, err := New(testConfig(), WithFileSystem(fs), WithRunner(runner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, fs, runner
}

func TestNewIdentityAndDefaults(t *testing.T) {
	p, _, _ := testProvider(t)
	if p.Name() != "home-dns" || p.Type() != TypeName {
		t.Errorf("identity = %s/%s", p.Name(), p.Type())
	}
	if p.config.ConfFile != DefaultConfFile {
		t.Errorf("conf_file = %q", p.config.ConfFile)
	}
	if p.config.ReloadCommand != DefaultReloadCommand {
		t.Errorf("reload_command = %q", p.config.ReloadCommand)
	}
}

func TestNewRejectsWrongAuthVariant(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = provider.APIToken{Token: "tok"}
	if _, err := New(cfg); err == nil || !strings.Contains(err.Error(), "requires ssh") {
		t.Errorf("expected auth variant rejection, got %v", err)
	}
}

func TestNewRequiresHost(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Params, "host")
	if _, err := New(cfg); err == nil {
		t.Error("expected error for missing host param")
	}
}

func TestConfigParams(t *testing.T) {
	cfg := testConfig()
	cfg.Params["port"] = "2222"
	cfg.Params["conf_file"] = "/etc/dnsmasq.d/records.conf"
	cfg.Params["reload_command"] = "kill -HUP $(pidof dnsmasq)"
	cfg.Params["timeout"] = "5"

	c, err := configFromProvider(cfg)
	if err != nil {
		t.Fatalf("configFromProvider: %v", err)
	}
	if c.Port != 2222 || c.ConfFile != "/etc/dnsmasq.d/records.conf" || c.Timeout != 5 {
		t.Errorf("config = %+v", c)
	}
	if c.toSSHConfig().Timeout != 5*time.Second {
		t.Errorf("ssh timeout = %v", c.toSSHConfig().Timeout)
	}

	cfg.Params["port"] = "99999"
	if _, err := configFromProvider(cfg); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestAuthenticateWithInjectedSeams(t *testing.T) {
	p, _, _ := testProvider(t)
	if err := p.Authenticate(context.Background()); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
}

func TestListRecordsMissingFile(t *testing.T) {
	p, _, _ := testProvider(t)
	records, err := p.ListRecords(context.Background(), "home.example.org", provider.RecordTypeA, "nas.home.example.org")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %+v", records)
	}
}

func TestCreateListUpdateDelete(t *testing.T) {
	ctx := context.Background()
	p, fs, runner := testProvider(t)

	rec := provider.Record{Type: provider.RecordTypeA, Name: "nas.home.example.org", Content: "192.168.1.10"}
	if err := p.CreateRecord(ctx, "home.example.org", rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if got := fs.content(DefaultConfFile); !strings.Contains(got, "host-record=nas.home.example.org,192.168.1.10") {
		t.Errorf("conf after create:\n%s", got)
	}
	if runner.count() != 1 {
		t.Errorf("reloads after create = %d", runner.count())
	}

	live, err := p.ListRecords(ctx, "home.example.org", provider.RecordTypeA, "nas.home.example.org")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(live) != 1 || live[0].Content != "192.168.1.10" {
		t.Fatalf("live = %+v", live)
	}

	updated := rec
	updated.Content = "192.168.1.20"
	if err := p.UpdateRecord(ctx, "home.example.org", live[0].ID, updated); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	got := fs.content(DefaultConfFile)
	if strings.Contains(got, "192.168.1.10") || !strings.Contains(got, "192.168.1.20") {
		t.Errorf("conf after update:\n%s", got)
	}

	live, err = p.ListRecords(ctx, "home.example.org", provider.RecordTypeA, "nas.home.example.org")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if err := p.DeleteRecord(ctx, "home.example.org", live[0].ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if got := fs.content(DefaultConfFile); strings.Contains(got, "host-record=") {
		t.Errorf("conf after delete:\n%s", got)
	}
	if runner.count() != 3 {
		t.Errorf("reloads = %d, want 3", runner.count())
	}
}

func TestDeleteAbsentSkipsReload(t *testing.T) {
	p, _, runner := testProvider(t)

	id := recordID(confRecord{provider.RecordTypeA, "gone.home.example.org", "192.168.1.99"})
	if err := p.DeleteRecord(context.Background(), "home.example.org", id); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if runner.count() != 0 {
		t.Errorf("reloads = %d, want 0", runner.count())
	}
}

func TestWritesRejectOutOfZoneNames(t *testing.T) {
	p, _, _ := testProvider(t)

	rec := provider.Record{Type: provider.RecordTypeA, Name: "www.other.example", Content: "192.0.2.1"}
	err := p.CreateRecord(context.Background(), "home.example.org", rec)
	if provider.Classify(err) != provider.ClassPermanent {
		t.Errorf("expected permanent failure, got %v", err)
	}
}

func TestRewritePreservesForeignDirectives(t *testing.T) {
	ctx := context.Background()
	p, fs, _ := testProvider(t)

	seed := "server=1.1.1.1\ndhcp-range=192.168.1.100,192.168.1.200\n"
	if err := fs.WriteFile(DefaultConfFile, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := provider.Record{Type: provider.RecordTypeA, Name: "nas.home.example.org", Content: "192.168.1.10"}
	if err := p.CreateRecord(ctx, "home.example.org", rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	got := fs.content(DefaultConfFile)
	if !strings.Contains(got, "server=1.1.1.1") || !strings.Contains(got, "dhcp-range=") {
		t.Errorf("foreign directives lost:\n%s", got)
	}
}

func TestRecordIDRoundTrip(t *testing.T) {
	want := confRecord{provider.RecordTypeTXT, "home.example.org", "v=spf1 -all"}
	got, err := parseRecordID(recordID(want))
	if err != nil {
		t.Fatalf("parseRecordID: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	if _, err := parseRecordID("garbage"); err == nil {
		t.Error("expected error for malformed id")
	}
}
