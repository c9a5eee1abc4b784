// Package knowledge holds the user-curated category registry.
//
// The registry is the engine's read-only view of manual curation: the
// category vocabulary the user maintains and the categories they assigned
// to individual files. The category-alignment scorer consumes it through
// the convergence.CategorySource interface; files without curation score a
// neutral alignment, so an empty registry is always safe.
//
// Curation lives in one YAML file:
//
//	categories:
//	  - name: ai/ml
//	    color: "#4f94cd"
//	  - name: strategy
//	files:
//	  report-final.md: [ai/ml, strategy]
//	  notes/meeting.md: [strategy]
//
// Load it once with Load, or keep it live with Watch, which reloads the
// registry whenever the file changes on disk. A reload swaps the whole
// table atomically; a broken edit keeps the last good state.
package knowledge
