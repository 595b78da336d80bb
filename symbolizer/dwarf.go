// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package symbolizer // import "go.opentelemetry.io/mixedstack/symbolizer"

import (
	"debug/dwarf"
	"errors"
	"io"
	"sort"
	"sync"
)

// pcRange is an address range covered by a DWARF entry.
type pcRange struct {
	low   uint64
	high  uint64
	entry *dwarf.Entry
}

// searchRanges returns the entry of the range containing pc. ranges must be
// sorted by low and not overlap.
func searchRanges(ranges []pcRange, pc uint64) *dwarf.Entry {
	i := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].high > pc
	})
	if i < len(ranges) && ranges[i].low <= pc {
		return ranges[i].entry
	}
	return nil
}

// dwarfIndex answers address lookups against the DWARF data of one module.
// Compile unit ranges are indexed up front. Line tables and subprogram ranges
// are parsed on first use of a compile unit.
type dwarfIndex struct {
	// mu guards the per unit caches. Lookups of parsed units share it.
	mu sync.RWMutex

	data  *dwarf.Data
	units []pcRange

	lines       map[dwarf.Offset][]dwarf.LineEntry
	subprograms map[dwarf.Offset][]pcRange
}

func newDWARFIndex(data *dwarf.Data) (*dwarfIndex, error) {
	d := &dwarfIndex{
		data:        data,
		lines:       make(map[dwarf.Offset][]dwarf.LineEntry),
		subprograms: make(map[dwarf.Offset][]pcRange),
	}
	r := data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		ranges, err := data.Ranges(entry)
		if err != nil {
			continue
		}
		for _, rng := range ranges {
			d.units = append(d.units, pcRange{low: rng[0], high: rng[1], entry: entry})
		}
		r.SkipChildren()
	}
	sort.Slice(d.units, func(i, j int) bool {
		return d.units[i].low < d.units[j].low
	})
	return d, nil
}

// lookup returns the innermost function covering pc and the source position
// of pc.
func (d *dwarfIndex) lookup(pc uint64) (symbolInfo, bool) {
	cu := searchRanges(d.units, pc)
	if cu == nil {
		return symbolInfo{}, false
	}

	var info symbolInfo
	if entry, ok := d.lineEntry(cu, pc); ok {
		if entry.File != nil {
			info.file = entry.File.Name
		}
		info.line = uint(entry.Line)
	}

	if fn := searchRanges(d.subprogramRanges(cu), pc); fn != nil {
		info.function = d.innermostName(fn, pc)
	}
	return info, info.function != "" || info.file != ""
}

func (d *dwarfIndex) lineEntry(cu *dwarf.Entry, pc uint64) (dwarf.LineEntry, bool) {
	entries := d.unitLines(cu)
	// Last entry at or below pc. An end of sequence entry marks a hole.
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Address > pc
	})
	if i == 0 || entries[i-1].EndSequence || entries[i-1].Line == 0 {
		return dwarf.LineEntry{}, false
	}
	return entries[i-1], true
}

// unitLines returns the line table of cu, parsing it on first use.
func (d *dwarfIndex) unitLines(cu *dwarf.Entry) []dwarf.LineEntry {
	d.mu.RLock()
	entries, ok := d.lines[cu.Offset]
	d.mu.RUnlock()
	if ok {
		return entries
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if entries, ok = d.lines[cu.Offset]; !ok {
		entries = d.parseLines(cu)
		d.lines[cu.Offset] = entries
	}
	return entries
}

func (d *dwarfIndex) parseLines(cu *dwarf.Entry) []dwarf.LineEntry {
	lr, err := d.data.LineReader(cu)
	if err != nil || lr == nil {
		return nil
	}
	var entries []dwarf.LineEntry
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			if !errors.Is(err, io.EOF) {
				return nil
			}
			break
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Address < entries[j].Address
	})
	return entries
}

// subprogramRanges returns the sorted function ranges of cu, parsing them on
// first use.
func (d *dwarfIndex) subprogramRanges(cu *dwarf.Entry) []pcRange {
	d.mu.RLock()
	subs, ok := d.subprograms[cu.Offset]
	d.mu.RUnlock()
	if ok {
		return subs
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if subs, ok = d.subprograms[cu.Offset]; !ok {
		subs = d.parseSubprograms(cu)
		d.subprograms[cu.Offset] = subs
	}
	return subs
}

func (d *dwarfIndex) parseSubprograms(cu *dwarf.Entry) []pcRange {
	var subs []pcRange
	r := d.data.Reader()
	r.Seek(cu.Offset)
	if _, err := r.Next(); err != nil {
		return nil
	}
	for {
		entry, err := r.Next()
		if err != nil || entry == nil || entry.Tag == 0 {
			break
		}
		if entry.Tag == dwarf.TagSubprogram {
			if ranges, err := d.data.Ranges(entry); err == nil {
				for _, rng := range ranges {
					subs = append(subs, pcRange{low: rng[0], high: rng[1], entry: entry})
				}
			}
		}
		if entry.Children {
			r.SkipChildren()
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].low < subs[j].low
	})
	return subs
}

// innermostName walks the inlined subroutines of fn that cover pc and returns
// the name of the deepest one, or the name of fn if pc is not inlined code.
func (d *dwarfIndex) innermostName(fn *dwarf.Entry, pc uint64) string {
	die := fn
	if fn.Children {
		r := d.data.Reader()
		r.Seek(fn.Offset)
		if _, err := r.Next(); err == nil {
			if inlined := d.coveringInlined(r, pc); inlined != nil {
				die = inlined
			}
		}
	}
	return d.entryName(die)
}

// coveringInlined scans the children at the reader position and returns the
// deepest inlined subroutine covering pc.
func (d *dwarfIndex) coveringInlined(r *dwarf.Reader, pc uint64) *dwarf.Entry {
	for {
		entry, err := r.Next()
		if err != nil || entry == nil || entry.Tag == 0 {
			return nil
		}
		if !d.covers(entry, pc) {
			if entry.Children {
				r.SkipChildren()
			}
			continue
		}
		if !entry.Children {
			if entry.Tag == dwarf.TagInlinedSubroutine {
				return entry
			}
			continue
		}
		inner := d.coveringInlined(r, pc)
		if inner != nil {
			return inner
		}
		if entry.Tag == dwarf.TagInlinedSubroutine {
			return entry
		}
	}
}

func (d *dwarfIndex) covers(entry *dwarf.Entry, pc uint64) bool {
	ranges, err := d.data.Ranges(entry)
	if err != nil {
		return false
	}
	for _, rng := range ranges {
		if pc >= rng[0] && pc < rng[1] {
			return true
		}
	}
	return false
}

// entryName prefers the linkage name over the plain name and follows
// abstract origin references of inlined and out-of-line instances.
func (d *dwarfIndex) entryName(die *dwarf.Entry) string {
	for range 4 {
		if name, ok := die.Val(dwarf.AttrLinkageName).(string); ok {
			return name
		}
		if name, ok := die.Val(dwarf.AttrName).(string); ok {
			return name
		}
		ref, ok := die.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		if !ok {
			ref, ok = die.Val(dwarf.AttrSpecification).(dwarf.Offset)
		}
		if !ok {
			return ""
		}
		r := d.data.Reader()
		r.Seek(ref)
		origin, err := r.Next()
		if err != nil || origin == nil {
			return ""
		}
		die = origin
	}
	return ""
}
