package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredItem is one structured-data item harvested from the page,
// normalized regardless of source format (JSON-LD, microdata, RDFa).
type StructuredItem struct {
	Context string
	Type    string
	ID      string // @id, or a derived identifier when absent
	Fields  map[string]string
}

// HarvestStructuredData parses JSON-LD script blocks, itemscope/itemprop
// microdata, and typeof/property RDFa, normalizing every item found into a
// flat {@context, @type, fields...} shape.
func HarvestStructuredData(rawHTML string) ([]StructuredItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse html for structured data: %w", err)
	}

	var items []StructuredItem
	items = append(items, harvestJSONLD(doc)...)
	items = append(items, harvestMicrodata(doc)...)
	items = append(items, harvestRDFa(doc)...)
	return items, nil
}

func harvestJSONLD(doc *goquery.Document) []StructuredItem {
	var items []StructuredItem
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var generic interface{}
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			return // malformed JSON-LD block; skip rather than fail the whole ingest
		}

		switch v := generic.(type) {
		case map[string]interface{}:
			items = append(items, normalizeJSONLDObject(v))
		case []interface{}:
			for _, el := range v {
				if obj, ok := el.(map[string]interface{}); ok {
					items = append(items, normalizeJSONLDObject(obj))
				}
			}
		}
	})
	return items
}

func normalizeJSONLDObject(obj map[string]interface{}) StructuredItem {
	item := StructuredItem{Fields: make(map[string]string)}
	for k, v := range obj {
		switch k {
		case "@context":
			item.Context = fmt.Sprintf("%v", v)
		case "@type":
			item.Type = fmt.Sprintf("%v", v)
		case "@id":
			item.ID = fmt.Sprintf("%v", v)
		default:
			item.Fields[k] = stringifyJSONValue(v)
		}
	}
	if item.ID == "" {
		item.ID = deriveID(item.Type, item.Fields)
	}
	return item
}

func stringifyJSONValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}

func harvestMicrodata(doc *goquery.Document) []StructuredItem {
	var items []StructuredItem
	doc.Find("[itemscope]").Each(func(i int, s *goquery.Selection) {
		item := StructuredItem{Fields: make(map[string]string)}
		if t, ok := s.Attr("itemtype"); ok {
			item.Type = t
		}
		if id, ok := s.Attr("itemid"); ok {
			item.ID = id
		}
		s.Find("[itemprop]").Each(func(j int, prop *goquery.Selection) {
			name, ok := prop.Attr("itemprop")
			if !ok {
				return
			}
			item.Fields[name] = microdataValue(prop)
		})
		if len(item.Fields) == 0 {
			return
		}
		if item.ID == "" {
			item.ID = deriveID(item.Type, item.Fields)
		}
		items = append(items, item)
	})
	return items
}

func microdataValue(s *goquery.Selection) string {
	if content, ok := s.Attr("content"); ok {
		return content
	}
	if href, ok := s.Attr("href"); ok {
		return href
	}
	if src, ok := s.Attr("src"); ok {
		return src
	}
	return strings.TrimSpace(s.Text())
}

func harvestRDFa(doc *goquery.Document) []StructuredItem {
	var items []StructuredItem
	doc.Find("[typeof]").Each(func(i int, s *goquery.Selection) {
		item := StructuredItem{Fields: make(map[string]string)}
		item.Type, _ = s.Attr("typeof")
		if about, ok := s.Attr("about"); ok {
			item.ID = about
		}
		s.Find("[property]").Each(func(j int, prop *goquery.Selection) {
			name, ok := prop.Attr("property")
			if !ok {
				return
			}
			item.Fields[name] = microdataValue(prop)
		})
		if len(item.Fields) == 0 {
			return
		}
		if item.ID == "" {
			item.ID = deriveID(item.Type, item.Fields)
		}
		items = append(items, item)
	})
	return items
}

// deriveID synthesizes a stable-enough subject identifier for items that
// carry no explicit @id/itemid/about, from their type and field values.
func deriveID(typ string, fields map[string]string) string {
	if typ == "" {
		typ = "Thing"
	}
	if name, ok := fields["name"]; ok && name != "" {
		return typ + ":" + name
	}
	return typ + ":anonymous"
}
