// Package dnsmasq implements the provider adapter for dnsmasq servers
// reached over SSH. Records are lines in a dedicated configuration
// file; every change rewrites the file and runs a reload command.
package dnsmasq

import (
	"bufio"
	"fmt"
	"net/netip"
	"strings"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// confRecord is one managed directive in the configuration file.
type confRecord struct {
	Type    provider.RecordType
	Name    string
	Content string
}

// confFile is the parsed configuration file. Unmanaged lines (other
// directives, comments, blanks) survive rewrites verbatim in their
// original positions; managed records append at the end.
type confFile struct {
	lines []confLine
}

type confLine struct {
	raw    string
	record *confRecord
}

// parseConfFile splits the file into managed records and passthrough
// lines. A directive we manage but cannot parse stays as passthrough
// so a rewrite never destroys it.
func parseConfFile(content string) (*confFile, error) {
	f := &confFile{}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		raw := scanner.Text()
		rec := parseDirective(strings.TrimSpace(raw))
		f.lines = append(f.lines, confLine{raw: raw, record: rec})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning configuration: %w", err)
	}

	return f, nil
}

// parseDirective recognizes the directives this tool manages. Returns
// nil for everything else.
func parseDirective(line string) *confRecord {
	switch {
	case strings.HasPrefix(line, "host-record="):
		// host-record=name,address
		rest := strings.TrimPrefix(line, "host-record=")
		name, addr, ok := strings.Cut(rest, ",")
		if !ok {
			return nil
		}
		ip, err := netip.ParseAddr(strings.TrimSpace(addr))
		if err != nil {
			return nil
		}
		rtype := provider.RecordTypeA
		if !ip.Is4() && !ip.Is4In6() {
			rtype = provider.RecordTypeAAAA
		}
		return &confRecord{Type: rtype, Name: strings.TrimSpace(name), Content: ip.String()}

	case strings.HasPrefix(line, "cname="):
		// cname=alias,target
		rest := strings.TrimPrefix(line, "cname=")
		name, target, ok := strings.Cut(rest, ",")
		if !ok {
			return nil
		}
		return &confRecord{
			Type:    provider.RecordTypeCNAME,
			Name:    strings.TrimSpace(name),
			Content: strings.TrimSpace(target),
		}

	case strings.HasPrefix(line, "txt-record="):
		// txt-record=name,"text"
		rest := strings.TrimPrefix(line, "txt-record=")
		name, text, ok := strings.Cut(rest, ",")
		if !ok {
			return nil
		}
		text = strings.TrimSpace(text)
		text = strings.TrimPrefix(text, `"`)
		text = strings.TrimSuffix(text, `"`)
		return &confRecord{
			Type:    provider.RecordTypeTXT,
			Name:    strings.TrimSpace(name),
			Content: text,
		}
	}

	return nil
}

// formatDirective renders a managed record as a configuration line.
func formatDirective(rec confRecord) (string, error) {
	switch rec.Type {
	case provider.RecordTypeA, provider.RecordTypeAAAA:
		return fmt.Sprintf("host-record=%s,%s", rec.Name, rec.Content), nil
	case provider.RecordTypeCNAME:
		return fmt.Sprintf("cname=%s,%s", rec.Name, rec.Content), nil
	case provider.RecordTypeTXT:
		return fmt.Sprintf("txt-record=%s,%q", rec.Name, rec.Content), nil
	default:
		return "", fmt.Errorf("%w: dnsmasq cannot express %s records", provider.ErrBadRecord, rec.Type)
	}
}

// records returns the managed records in file order.
func (f *confFile) records() []confRecord {
	var out []confRecord
	for _, line := range f.lines {
		if line.record != nil {
			out = append(out, *line.record)
		}
	}
	return out
}

// add appends a managed record.
func (f *confFile) add(rec confRecord) error {
	raw, err := formatDirective(rec)
	if err != nil {
		return err
	}
	f.lines = append(f.lines, confLine{raw: raw, record: &rec})
	return nil
}

// remove drops every managed line equal to rec. Returns how many lines
// went away.
func (f *confFile) remove(rec confRecord) int {
	var (
		kept    []confLine
		removed int
	)
	for _, line := range f.lines {
		if line.record != nil && *line.record == rec {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	f.lines = kept
	return removed
}

// render serializes the file back to text.
func (f *confFile) render() string {
	if len(f.lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range f.lines {
		b.WriteString(line.raw)
		b.WriteByte('\n')
	}
	return b.String()
}

// inZone reports whether name falls under the zone suffix.
func inZone(name, zone string) bool {
	return name == zone || strings.HasSuffix(name, "."+zone)
}
