package planner

import (
	"path/filepath"
	"sort"

	"github.com/yuya-takeyama/hardcopy/internal/walker"
)

// Phase1Compare sorts source items by what the listing alone tells: absent
// remotely, present with another size, or present with the same size and
// in need of a checksum comparison. Remote-only objects are left alone.
func Phase1Compare(source []ItemMetadata, dest []ItemMetadata) Phase1Result {
	destMap := make(map[string]ItemMetadata, len(dest))
	for _, item := range dest {
		destMap[item.Path] = item
	}

	result := Phase1Result{
		NewItems:     []ItemRef{},
		SizeMismatch: []ItemRef{},
		NeedChecksum: []ItemRef{},
	}

	for _, srcItem := range source {
		ref := ItemRef{Path: srcItem.Path, Size: srcItem.Size}
		destItem, exists := destMap[srcItem.Path]
		switch {
		case !exists:
			result.NewItems = append(result.NewItems, ref)
		case srcItem.Size != destItem.Size:
			result.SizeMismatch = append(result.SizeMismatch, ref)
		default:
			result.NeedChecksum = append(result.NeedChecksum, ref)
		}
	}

	sortPhase1Result(&result)
	return result
}

// Phase3GeneratePlan turns the comparisons into upload and skip items,
// sorted by action and key.
func Phase3GeneratePlan(phase1 Phase1Result, checksums []ChecksumData, localBase string, prefix string) []Item {
	items := []Item{}

	add := func(action Action, ref ItemRef, reason string) {
		items = append(items, Item{
			Action:    action,
			LocalPath: filepath.Join(localBase, filepath.FromSlash(ref.Path)),
			Key:       walker.JoinKey(prefix, ref.Path),
			Size:      ref.Size,
			Reason:    reason,
		})
	}

	for _, ref := range phase1.NewItems {
		add(ActionUpload, ref, "new file")
	}

	for _, ref := range phase1.SizeMismatch {
		add(ActionUpload, ref, "size differs")
	}

	checksumMap := make(map[string]ChecksumData)
	for _, cs := range checksums {
		checksumMap[cs.ItemRef.Path] = cs
	}

	for _, ref := range phase1.NeedChecksum {
		cs, exists := checksumMap[ref.Path]
		switch {
		case !exists, !cs.DestKnown:
			add(ActionUpload, ref, "no stored checksum")
		case !cs.SourceChecksum.Equal(cs.DestChecksum):
			add(ActionUpload, ref, "checksum differs")
		default:
			add(ActionSkip, ref, "identical")
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Action != items[j].Action {
			return items[i].Action > items[j].Action
		}
		return items[i].Key < items[j].Key
	})

	return items
}

func sortPhase1Result(result *Phase1Result) {
	sortItemRefs := func(refs []ItemRef) {
		sort.Slice(refs, func(i, j int) bool {
			return refs[i].Path < refs[j].Path
		})
	}

	sortItemRefs(result.NewItems)
	sortItemRefs(result.SizeMismatch)
	sortItemRefs(result.NeedChecksum)
}
