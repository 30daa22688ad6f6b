package repomd

import (
	"strings"
	"testing"
)

const sampleRepomd = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1372700000</revision>
  <data type="primary">
    <checksum type="sha256">abc123</checksum>
    <location href="repodata/abc123-primary.xml.gz"/>
    <size>12345</size>
    <open-checksum type="sha256">def456</open-checksum>
    <open-size>54321</open-size>
  </data>
  <data type="other">
    <checksum type="sha256">fff000</checksum>
    <location href="repodata/fff000-other.xml.gz"/>
  </data>
</repomd>
`

func TestParse(t *testing.T) {
	rp, err := Parse(strings.NewReader(sampleRepomd))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rp.Revision != "1372700000" {
		t.Errorf("Revision = %q", rp.Revision)
	}
	if len(rp.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(rp.Entries))
	}
	primary := rp.Entries[0]
	if primary.Type != "primary" || primary.Href != "repodata/abc123-primary.xml.gz" {
		t.Errorf("unexpected primary entry: %+v", primary)
	}
	if primary.Checksum.Algorithm != "sha256" || primary.Checksum.Hex != "abc123" || primary.Checksum.Length != 12345 {
		t.Errorf("unexpected primary checksum: %+v", primary.Checksum)
	}
	if primary.OpenChecksum == nil || primary.OpenChecksum.Hex != "def456" || primary.OpenChecksum.Length != 54321 {
		t.Errorf("unexpected open checksum: %+v", primary.OpenChecksum)
	}

	href, ok := rp.PrimaryHref()
	if !ok || href != "repodata/abc123-primary.xml.gz" {
		t.Errorf("PrimaryHref() = %q, %v", href, ok)
	}
}

func TestParseMissingChecksum(t *testing.T) {
	const doc = `<repomd><data type="primary"><location href="x"/></data></repomd>`
	_, err := Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected a parse error for missing checksum")
	}
}

func TestParseMissingHref(t *testing.T) {
	const doc = `<repomd><data type="primary"><checksum type="sha256">abc</checksum></data></repomd>`
	_, err := Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected a parse error for missing location href")
	}
}

const samplePrimary = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="2">
  <package type="rpm">
    <name>bash</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="4.2.46" rel="30.el7"/>
    <checksum type="sha256" pkgid="YES">9f9f9f</checksum>
    <location href="Packages/b/bash-4.2.46-30.el7.x86_64.rpm"/>
    <size package="1048576"/>
    <format>
      <rpm:sourcerpm>bash-4.2.46-30.el7.src.rpm</rpm:sourcerpm>
    </format>
  </package>
  <package type="rpm">
    <name>coreutils</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="8.22" rel="24.el7"/>
    <checksum type="sha256" pkgid="YES">0a0a0a</checksum>
    <location href="Packages/c/coreutils-8.22-24.el7.x86_64.rpm"/>
    <size package="2097152"/>
    <format>
      <rpm:sourcerpm>coreutils-8.22-24.el7.src.rpm</rpm:sourcerpm>
    </format>
  </package>
</metadata>
`

func TestPackages(t *testing.T) {
	var got []*Package
	for pkg, err := range Packages(strings.NewReader(samplePrimary)) {
		if err != nil {
			t.Fatalf("Packages: %v", err)
		}
		got = append(got, pkg)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Name != "bash" || got[0].Version != "4.2.46" || got[0].Release != "30.el7" {
		t.Errorf("unexpected first package: %+v", got[0])
	}
	if got[0].SourceRPM != "bash-4.2.46-30.el7.src.rpm" {
		t.Errorf("SourceRPM = %q", got[0].SourceRPM)
	}
	if got[0].Checksum.Length != 1048576 {
		t.Errorf("Checksum.Length = %d", got[0].Checksum.Length)
	}
	if got[1].Name != "coreutils" {
		t.Errorf("unexpected second package: %+v", got[1])
	}
}

func TestPackagesMissingSize(t *testing.T) {
	const doc = `<metadata>
  <package type="rpm">
    <name>x</name>
    <arch>noarch</arch>
    <version ver="1" rel="1"/>
    <checksum type="sha256">abc</checksum>
    <location href="x.rpm"/>
  </package>
</metadata>`
	for _, err := range Packages(strings.NewReader(doc)) {
		if err == nil {
			t.Fatal("expected a parse error for missing <size>")
		}
		return
	}
	t.Fatal("expected at least one yielded value")
}
