// Package normalize rescales raw similarity scores from the vector search
// collaborator into the internal 0-100 confidence domain.
//
// Raw scores arrive in an open-ended range whose shape depends on the
// embedding model; the calibration (min, max, median) captures the range
// actually observed in production. Two methods are supported:
//
//   - Linear: proportional rescaling across [min, max].
//   - Percentile: the median anchors 50, and each half of the range is
//     rescaled independently. This is the default, since raw scores skew
//     heavily toward the low end.
//
// The Service composes identity resolution with normalization: an
// external identifier is resolved through the [identity] package, the
// matched record's raw score is rescaled, and the result carries the
// match kind and similarity so consumers can audit fuzzy matches. A miss
// returns the fixed Unscored default rather than an error, because
// lookups typically run over long lists where one unknown record must
// not fail the batch.
package normalize
