// Package botgen holds the shared vocabulary of the bot posting pipeline:
// post types, request options, generated content, post bodies, the error
// taxonomy and the per-type prompt templates.
//
// The pipeline itself lives in subpackages:
//   - content:  one generator per post type, validating collaborator output
//   - post:     CreatePost, the N-iteration assembler
//   - rotation: the fair, reshuffling pull sequence over (bot, options) pairs
package botgen
