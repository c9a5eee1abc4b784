package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// Category is one curated category.
type Category struct {
	// Name is the canonical category name as the user wrote it.
	Name string `json:"name" koanf:"name"`

	// Color is an optional display color, e.g. "#4f94cd".
	Color string `json:"color,omitempty" koanf:"color"`
}

// registryFile mirrors the YAML layout.
type registryFile struct {
	Categories []Category          `koanf:"categories"`
	Files      map[string][]string `koanf:"files"`
}

// Registry is the in-memory curation table. Safe for concurrent use: reads
// take a shared lock and reloads swap the whole table under the write
// lock.
type Registry struct {
	mu         sync.RWMutex
	categories []Category
	canonical  map[string]string   // lowercase name -> canonical name
	byFile     map[string][]string // file id -> canonical categories
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		canonical: make(map[string]string),
		byFile:    make(map[string][]string),
		logger:    logger,
	}
}

// Load reads the registry file and replaces the current table. A missing
// file loads as empty curation; a malformed file is an error and leaves
// the current table untouched.
func (r *Registry) Load(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.replace(registryFile{})
			return nil
		}
		return fmt.Errorf("reading category registry: %w", err)
	}

	parsed, err := parseRegistry(content)
	if err != nil {
		return err
	}

	r.replace(parsed)
	r.logger.Info("category registry loaded",
		zap.String("path", path),
		zap.Int("categories", len(parsed.Categories)),
		zap.Int("curated_files", len(parsed.Files)))
	return nil
}

func parseRegistry(content []byte) (registryFile, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return registryFile{}, fmt.Errorf("parsing category registry: %w", err)
	}

	var parsed registryFile
	if err := k.Unmarshal("", &parsed); err != nil {
		return registryFile{}, fmt.Errorf("decoding category registry: %w", err)
	}
	return parsed, nil
}

func (r *Registry) replace(parsed registryFile) {
	canonical := make(map[string]string, len(parsed.Categories))
	for _, cat := range parsed.Categories {
		if cat.Name == "" {
			continue
		}
		key := strings.ToLower(cat.Name)
		if _, dup := canonical[key]; !dup {
			canonical[key] = cat.Name
		}
	}

	byFile := make(map[string][]string, len(parsed.Files))
	for fileID, names := range parsed.Files {
		if fileID == "" || len(names) == 0 {
			continue
		}
		cats := make([]string, 0, len(names))
		for _, name := range names {
			if name == "" {
				continue
			}
			// File assignments may predate the vocabulary; keep
			// unknown names as written.
			if canon, ok := canonical[strings.ToLower(name)]; ok {
				name = canon
			}
			cats = append(cats, name)
		}
		if len(cats) > 0 {
			byFile[fileID] = cats
		}
	}

	r.mu.Lock()
	r.categories = parsed.Categories
	r.canonical = canonical
	r.byFile = byFile
	r.mu.Unlock()
}

// ManualCategories returns the categories manually assigned to a file.
// Implements convergence.CategorySource. Returns nil for uncurated files.
func (r *Registry) ManualCategories(fileID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cats, ok := r.byFile[fileID]
	if !ok {
		return nil
	}
	out := make([]string, len(cats))
	copy(out, cats)
	return out
}

// Canonicalize maps a submitted category name onto the curated vocabulary,
// case-insensitively. Unknown names are returned as given.
func (r *Registry) Canonicalize(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if canon, ok := r.canonical[strings.ToLower(name)]; ok {
		return canon
	}
	return name
}

// CanonicalizeAll maps a slice of category names. Nil-safe.
func (r *Registry) CanonicalizeAll(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = r.Canonicalize(name)
	}
	return out
}

// Categories returns the curated vocabulary in file order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Counts returns how many curated files carry each category, sorted by
// name for stable output.
func (r *Registry) Counts() []CategoryCount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, cats := range r.byFile {
		for _, cat := range cats {
			counts[cat]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Files: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CategoryCount pairs a category with the number of curated files carrying
// it.
type CategoryCount struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
}

// CuratedFiles returns the number of files with manual categories.
func (r *Registry) CuratedFiles() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFile)
}
