package rpmpkg

import (
	"fmt"

	"github.com/release-engineering/symboldb/internal/rpmhdr"
)

// Sense flag bits from rpm's header layout, used to recover the
// comparison operator and the pre/build flags for a single dependency
// entry (spec §3.2's package_dependency row).
const (
	senseLess     uint32 = 1 << 1
	senseGreater  uint32 = 1 << 2
	senseEqual    uint32 = 1 << 3
	sensePreReq   uint32 = 1 << 6
	senseScript   uint32 = 1 << 8 // same bit as rpmhdr.SenseTriggerPrein
	senseRPMLib   uint32 = 1 << 24
	senseBuild    uint32 = 1 << 25 // build-time dependency marker (pseudo; interp-specific)
)

func flagOp(f uint32) string {
	switch {
	case f&senseLess != 0 && f&senseEqual != 0:
		return "<="
	case f&senseGreater != 0 && f&senseEqual != 0:
		return ">="
	case f&senseLess != 0:
		return "<"
	case f&senseGreater != 0:
		return ">"
	case f&senseEqual != 0:
		return "="
	default:
		return ""
	}
}

func readDepSet(h *rpmhdr.Header, nameTag, versionTag, flagTag rpmhdr.Tag, kind DependencyKind) ([]Dependency, error) {
	names, err := h.Strings(nameTag)
	if err != nil {
		return nil, fmt.Errorf("rpmpkg: reading %v: %w", nameTag, err)
	}
	versions, _ := h.Strings(versionTag)
	flags, _ := h.Int32s(flagTag)

	deps := make([]Dependency, 0, len(names))
	for i, name := range names {
		var v string
		if i < len(versions) {
			v = versions[i]
		}
		var f uint32
		if i < len(flags) {
			f = uint32(flags[i])
		}
		deps = append(deps, Dependency{
			Kind:       kind,
			Capability: name,
			Op:         flagOp(f),
			Version:    v,
			Pre:        f&sensePreReq != 0,
			Build:      f&senseRPMLib != 0,
		})
	}
	return deps, nil
}

// Dependencies returns the package's requires/provides/obsoletes rows.
func (p *Package) Dependencies() ([]Dependency, error) {
	var all []Dependency
	for _, set := range []struct {
		name, ver, flag rpmhdr.Tag
		kind            DependencyKind
	}{
		{rpmhdr.TagRequireName, rpmhdr.TagRequireVersion, rpmhdr.TagRequireFlags, DepRequires},
		{rpmhdr.TagProvideName, rpmhdr.TagProvideVersion, rpmhdr.TagProvideFlags, DepProvides},
		{rpmhdr.TagObsoleteName, rpmhdr.TagObsoleteVersion, rpmhdr.TagObsoleteFlags, DepObsoletes},
	} {
		deps, err := readDepSet(p.hdr, set.name, set.ver, set.flag, set.kind)
		if err != nil {
			return nil, err
		}
		all = append(all, deps...)
	}
	return all, nil
}

// Scripts returns the pre/post install/uninstall script bodies present
// in the header.
func (p *Package) Scripts() ([]Script, error) {
	var out []Script
	for _, set := range []struct {
		kind       ScriptKind
		bodyTag    rpmhdr.Tag
		interpTag  rpmhdr.Tag
	}{
		{ScriptPreInstall, rpmhdr.TagPreInstall, rpmhdr.TagPreInstallProg},
		{ScriptPostInstall, rpmhdr.TagPostInstall, rpmhdr.TagPostInstallProg},
		{ScriptPreUninstall, rpmhdr.TagPreUninstall, rpmhdr.TagPreUninstallProg},
		{ScriptPostUninstall, rpmhdr.TagPostUninstall, rpmhdr.TagPostUninstallProg},
	} {
		if !p.hdr.Has(set.bodyTag) {
			continue
		}
		out = append(out, Script{
			Kind:        set.kind,
			Body:        p.hdr.String(set.bodyTag),
			Interpreter: firstOr(p.hdr, set.interpTag, "/bin/sh"),
		})
	}
	return out, nil
}

func firstOr(h *rpmhdr.Header, tag rpmhdr.Tag, def string) string {
	ss, err := h.Strings(tag)
	if err != nil || len(ss) == 0 {
		return def
	}
	return ss[0]
}

// Triggers returns the package's triggerin/triggerun scripts, each
// paired with the (name, version) conditions that arm it (spec §4.8).
func (p *Package) Triggers() ([]Trigger, error) {
	if !p.hdr.Has(rpmhdr.TagTriggerScripts) {
		return nil, nil
	}
	scripts, err := p.hdr.Strings(rpmhdr.TagTriggerScripts)
	if err != nil {
		return nil, fmt.Errorf("rpmpkg: reading trigger scripts: %w", err)
	}
	interps, _ := p.hdr.Strings(rpmhdr.TagTriggerScriptProg)
	names, _ := p.hdr.Strings(rpmhdr.TagTriggerName)
	versions, _ := p.hdr.Strings(rpmhdr.TagTriggerVersion)
	indexes, _ := p.hdr.Int32s(rpmhdr.TagTriggerIndex)

	triggers := make([]Trigger, len(scripts))
	for i, s := range scripts {
		triggers[i].Script = s
		if i < len(interps) {
			triggers[i].Interpreter = interps[i]
		} else {
			triggers[i].Interpreter = "/bin/sh"
		}
	}
	for i, idx := range indexes {
		if int(idx) < 0 || int(idx) >= len(triggers) || i >= len(names) {
			continue
		}
		var v string
		if i < len(versions) {
			v = versions[i]
		}
		triggers[idx].Conditions = append(triggers[idx].Conditions, TriggerCondition{Name: names[i], Version: v})
	}
	return triggers, nil
}
