// Package tasks builds playlists from anime theme songs with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Themes] : Read a MyAnimeList watch list
//     - Filters entries by watch status
//     - Parses each selected opening/ending annotation into a song
//
//  2. [Engine.Generate] : Create a playlist
//     - Creates the playlist (collaborative playlists are private)
//     - Uploads an optional JPEG cover, logging failures
//     - Resolves and appends every song
//
//  3. [Engine.Update] : Extend an existing playlist
//     - Rejects playlists the user neither owns nor collaborates on
//     - Pages through the current contents and appends only new tracks
//
// # Reconciliation
//
// [Reconciler] resolves songs through a [CatalogSearch], collects the
// playlist's current URIs through a [PlaylistPager] using the lazy [Pages]
// sequence, and submits the difference to a [PlaylistAppender] in batches of
// [MaxBatchSize]. A song without a match is dropped; any other search error
// aborts the run. A failed batch surfaces as an [AppendBatchError]. Searches
// may run on several workers, but results keep song order.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
