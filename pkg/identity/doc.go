// Package identity links external record identifiers to internal file IDs.
//
// Collaborating tools rarely agree on how a knowledge file is named: one
// exports UUID point IDs with the filename buried in a payload field,
// another uses the path, a third slugs the title. The resolver builds a
// lookup table from whatever identifier material each record carries and
// answers queries through a three-stage chain:
//
//  1. Exact: the query matches a registered key byte-for-byte.
//  2. Normalized: the lower-cased query matches a case-folded,
//     extension-stripped, or basename variant of a registered key.
//  3. Fuzzy: every registered key is scored by basename equality,
//     extension-stripped equality, Jaccard character-set similarity, and
//     normalized edit-distance similarity; the best score above the
//     threshold wins, ties going to the earlier-registered key.
//
// A failed lookup is a NoMatch result, not an error: callers degrade to
// neutral defaults rather than failing the surrounding operation.
//
// Mappings are immutable once built. The Resolver swaps the whole mapping
// atomically on Resolve, so lookups stay safe and consistent while a new
// record batch is being indexed.
package identity
