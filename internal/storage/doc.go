// Package storage persists bot prompts and generated posts.
//
// It backs both sides of the pipeline:
//   - prompt lookup (random prompt per bot/type, full listing for rotation seeding)
//   - post persistence (id assignment + echo of the stored body)
//
// Drivers: "file" (JSON Lines, no external database) and "sqlite".
package storage
