package overlay

import (
	"fmt"

	"github.com/djvang/pdftron-sign-app/interfaces"
)

// Layer is one signer's overlay, applied on top of the base in ledger order.
type Layer struct {
	Author interfaces.Identity
	Doc    *Document
}

// FieldCollision describes a layer contribution that Merge ignored.
type FieldCollision struct {
	// Layer is the index of the offending layer in the slice given to Merge.
	Layer  int
	Author interfaces.Identity
	// Name is a field name or an annotation key.
	Name   string
	Reason string
}

func (c FieldCollision) Error() string {
	return fmt.Sprintf("%s: layer %d by %s: %s: %s", interfaces.ErrFieldCollision, c.Layer, c.Author.Hex(), c.Name, c.Reason)
}

func (c FieldCollision) Unwrap() error {
	return interfaces.ErrFieldCollision
}

// Merge applies layers onto base in order and returns the merged document with
// the contributions it ignored. Neither base nor the layers are modified.
//
// Fields tagged with a signer may only be filled by a layer of that signer.
// A field that already has a value keeps it. Annotations are keyed by
// Element.Key; an annotation already present is kept. Re-stating identical
// content is not a collision.
func Merge(base *Document, layers []Layer) (*Document, []FieldCollision) {
	merged := base.Clone()
	var collisions []FieldCollision

	annotIndex := make(map[string]int, len(merged.Annots))
	for i, a := range merged.Annots {
		annotIndex[a.Key()] = i
	}

	for i, layer := range layers {
		if layer.Doc == nil {
			continue
		}
		collide := func(name, reason string) {
			collisions = append(collisions, FieldCollision{Layer: i, Author: layer.Author, Name: name, Reason: reason})
		}

		for _, f := range layer.Doc.Fields {
			current, exists := merged.Field(f.Name)
			if exists && current.Value == f.Value {
				continue
			}
			// Clearing a declared field is a no-op.
			if exists && !f.Filled() {
				continue
			}
			if owner, tagged := FieldOwner(f.Name); tagged && owner != layer.Author {
				collide(f.Name, "field is owned by "+interfaces.IdentityTag(owner))
				continue
			}
			if !f.Filled() {
				merged.Fields = append(merged.Fields, f)
				continue
			}
			if exists && current.Filled() {
				collide(f.Name, "field is already filled")
				continue
			}
			merged.SetField(f.Name, f.Value)
		}

		for _, a := range layer.Doc.Annots {
			key := a.Key()
			if idx, exists := annotIndex[key]; exists {
				if !merged.Annots[idx].Equal(a) {
					collide(key, "annotation already present")
				}
				continue
			}
			if owner, tagged := a.Owner(); tagged && owner != layer.Author {
				collide(key, "annotation targets a field owned by "+interfaces.IdentityTag(owner))
				continue
			}
			annotIndex[key] = len(merged.Annots)
			merged.Annots = append(merged.Annots, *a.clone())
		}

		if merged.PDFInfo == nil {
			merged.PDFInfo = layer.Doc.PDFInfo.clone()
		}
		if merged.Pages == nil {
			merged.Pages = layer.Doc.Pages.clone()
		}
	}

	return merged, collisions
}
