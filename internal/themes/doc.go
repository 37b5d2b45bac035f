// Package themes turns MyAnimeList theme annotations into songs.
//
// Annotations look like `#1: "Title" by Artist (eps 1-12)` but the upstream
// formatting is inconsistent. A [Parser] runs an ordered list of [Rule]s; the
// first rule whose predicate matches and whose extractor produces a non-empty
// title wins. Entries no rule can handle are skipped and logged at debug level,
// never reported as errors.
//
// Known ambiguity: an unquoted title containing " by " splits at the first
// occurrence, so `Stand by Me by Ben E. King` yields the title "Stand".
package themes
