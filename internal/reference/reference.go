// Package reference loads the read-only lookup tables the bot cannot run
// without: the house directory and the work catalog. Both are produced by
// external spreadsheet conversion scripts and loaded once per process.
package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/nusakov/remontbot/core/logger"
	"log/slog"
)

// HouseDirectory maps a normalized house number to the ordered list of full
// postal addresses sharing that number. Immutable after load.
type HouseDirectory struct {
	byNumber map[string][]string
	// numbers keeps the key order of the source file; the "valid house
	// numbers" re-prompt enumerates them in this order.
	numbers []string
}

// WorkItem is one entry of the work catalog. Field names follow the JSON
// produced by the spreadsheet converter.
type WorkItem struct {
	Name string `json:"Наименование"`
	Data string `json:"Данные"`
}

// WorkCatalog is the ordered list of work types; order defines menu numbering.
type WorkCatalog []WorkItem

// Normalize strips punctuation, trims whitespace, and upper-cases the input.
// House numbers are matched exactly against normalized keys; no fuzzy matching.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(strings.TrimSpace(b.String()))
}

// LoadHouses reads the house directory JSON object. The object's key order is
// preserved. An absent, malformed, or empty file is an error: the bot has no
// usable menu without it.
func LoadHouses(path string) (*HouseDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference: read house directory %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("reference: house directory %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("reference: house directory %s: expected a JSON object", path)
	}

	dir := &HouseDirectory{byNumber: make(map[string][]string)}
	var parseErr error
	root.ForEach(func(key, value gjson.Result) bool {
		number := Normalize(key.String())
		if number == "" {
			parseErr = fmt.Errorf("reference: house directory %s: empty house number key", path)
			return false
		}
		if !value.IsArray() {
			parseErr = fmt.Errorf("reference: house directory %s: entry %q is not an address list", path, key.String())
			return false
		}
		var addresses []string
		for _, addr := range value.Array() {
			s := strings.TrimSpace(addr.String())
			if s == "" {
				continue
			}
			addresses = append(addresses, s)
		}
		if len(addresses) == 0 {
			parseErr = fmt.Errorf("reference: house directory %s: entry %q has no addresses", path, key.String())
			return false
		}
		if _, dup := dir.byNumber[number]; dup {
			parseErr = fmt.Errorf("reference: house directory %s: duplicate house number %q", path, number)
			return false
		}
		dir.byNumber[number] = addresses
		dir.numbers = append(dir.numbers, number)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(dir.numbers) == 0 {
		return nil, fmt.Errorf("reference: house directory %s is empty", path)
	}

	logger.SVCReference.Info("house directory loaded",
		slog.String("event", "reference.houses"),
		slog.String("path", path),
		slog.Int("count", len(dir.numbers)),
	)
	return dir, nil
}

// Lookup returns the address list for a normalized house number.
func (d *HouseDirectory) Lookup(number string) ([]string, bool) {
	addrs, ok := d.byNumber[number]
	return addrs, ok
}

// Numbers returns all house numbers in source-file order.
func (d *HouseDirectory) Numbers() []string {
	return d.numbers
}

// Len reports how many house numbers the directory holds.
func (d *HouseDirectory) Len() int {
	return len(d.numbers)
}

// LoadWorkCatalog reads the ordered work catalog JSON array. Duplicate or
// blank names and an empty catalog are errors.
func LoadWorkCatalog(path string) (WorkCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference: read work catalog %s: %w", path, err)
	}
	var catalog WorkCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("reference: parse work catalog %s: %w", path, err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("reference: work catalog %s is empty", path)
	}
	seen := make(map[string]struct{}, len(catalog))
	for i, item := range catalog {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("reference: work catalog %s: item %d has an empty name", path, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("reference: work catalog %s: duplicate work type %q", path, name)
		}
		seen[name] = struct{}{}
		catalog[i].Name = name
	}

	logger.SVCReference.Info("work catalog loaded",
		slog.String("event", "reference.works"),
		slog.String("path", path),
		slog.Int("count", len(catalog)),
	)
	return catalog, nil
}

// At returns the catalog item for a 1-based menu index.
func (c WorkCatalog) At(index int) (WorkItem, bool) {
	if index < 1 || index > len(c) {
		return WorkItem{}, false
	}
	return c[index-1], true
}
