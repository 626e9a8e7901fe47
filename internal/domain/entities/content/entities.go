// Package content provides entry types for CMS-sourced structured documents
package content

// Entry is a CMS content entry: an immutable per-request snapshot of a
// structured document, keyed by field name. Variant-specific field
// overrides arrive already merged by the CMS, so personalized and plain
// entries share one shape.
type Entry map[string]any

// UID returns the entry's uid, or "" when absent.
func (e Entry) UID() string {
	return e.String("uid")
}

// Title returns the entry's title field, or "" when absent.
func (e Entry) Title() string {
	return e.String("title")
}

// String returns the named field as a string, or "" when absent or not
// a string.
func (e Entry) String(field string) string {
	if v, ok := e[field].(string); ok {
		return v
	}
	return ""
}

// ReferenceUIDs returns the uids of a reference field. CMS reference
// fields are arrays of {uid, _content_type_uid} objects.
func (e Entry) ReferenceUIDs(field string) []string {
	raw, ok := e[field].([]any)
	if !ok {
		return nil
	}
	uids := make([]string, 0, len(raw))
	for _, item := range raw {
		ref, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if uid, ok := ref["uid"].(string); ok && uid != "" {
			uids = append(uids, uid)
		}
	}
	return uids
}

// FirstReferenceUID returns the uid of the first reference in a
// reference field, or "" when the field is empty.
func (e Entry) FirstReferenceUID(field string) string {
	uids := e.ReferenceUIDs(field)
	if len(uids) == 0 {
		return ""
	}
	return uids[0]
}

// Clone returns a shallow copy; used when a resolution step annotates
// an entry without mutating the fetched snapshot.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e)+2)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Content type uids used by the product.
const (
	TypePage        = "page"
	TypeStock       = "stock"
	TypeSector      = "sector"
	TypeHeroSection = "hero_section"
	TypeNavbar      = "navbar"
	TypeFooter      = "footer"
)

// Page denormalization fields written by the page-resolution routine.
const (
	FieldHeroSection        = "hero_section"
	FieldFeaturedStocks     = "featured_stocks"
	FieldHeroSectionData    = "hero_section_data"
	FieldFeaturedStocksData = "featured_stocks_data"
	FieldSector             = "sector"
	FieldSectorName         = "sector_name"
)

// UnknownSector is the sector annotation used when a stock references a
// sector that no longer exists.
const UnknownSector = "Unknown"

// StockList is the result of a paginated stock listing, each stock
// annotated with its resolved sector name.
type StockList struct {
	Stocks []Entry `json:"stocks"`
	Count  int     `json:"count"`
}

// AssetURL extracts a usable URL from a CMS asset field, which may be a
// bare string or an asset object carrying url/href.
func AssetURL(asset any) string {
	switch v := asset.(type) {
	case string:
		return v
	case map[string]any:
		if url, ok := v["url"].(string); ok && url != "" {
			return url
		}
		if href, ok := v["href"].(string); ok {
			return href
		}
	}
	return ""
}
