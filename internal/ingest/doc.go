// Package ingest turns loosely structured restaurant/menu documents into
// deduplicated catalog rows and reports what happened.
//
// This package holds the import logic independent of any transport. The web
// handlers and the menuimport CLI both go through [Service].
//
// # Stages
//
// A run is strictly sequential and stops at the first failed stage:
//
//  1. Decode the payload (JSON, or YAML for the CLI) into generic values.
//  2. [Canonicalize] normalizes the values into []RestaurantRecord and
//     collects structural [AdapterError]s. It never fails.
//  3. [Validate] walks the canonical tree and collects path-addressed
//     [ValidationError]s. Any error-severity entry fails the batch.
//  4. [Importer] writes each restaurant subtree in its own store
//     transaction, recording a status per restaurant, menu and item.
//
// [Pipeline] sequences the stages and shapes the [Report]. Every stage
// appends to one log trail which is returned in the report and mirrored
// to slog.
//
// # Menu items
//
// Menu items are shared across every menu of every restaurant and keyed
// by name alone. An item seen again with a different price is updated in
// place, so the last price in document order wins.
package ingest
