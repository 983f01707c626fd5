// Package normalize turns resolved entry input into tags.
//
// ResolveEntries settles every deferred value (getters, promises) of the
// entries a pass consumes, concurrently across entries. Extract expands each
// entry's fields into candidates in a fixed field order, and NormaliseTag
// converts a candidate into an ir.Tag with attribute-string props.
//
// Errors are per entry: a *NormalizationError or *UnresolvedAsyncTimeoutError
// names the entry whose tags the pipeline drops for that pass.
package normalize
