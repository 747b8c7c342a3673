// Package assets resolves image references found in a rendered widget tree.
//
// Gather walks the tree once, starts one task per image-bearing node and
// joins them all before returning. Each node gets exactly one outcome:
// bytes on success, a *FetchError otherwise. A failing node never fails the
// render; the host decides how to present it.
//
// Bundled references ("asset:icons/x.png") are read from the plugin's asset
// directory through a Store. Remote references are fetched by a Fetcher,
// once by default, with per-origin circuit breaking and an optional rate
// limit. Nothing is cached across renders.
package assets
