package storage

import (
	"context"
	"errors"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

var (
	ErrDisabled        = errors.New("storage disabled")
	ErrClosed          = errors.New("storage closed")
	ErrDuplicatePrompt = errors.New("prompt already exists for bot")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path (<prefix>.prompts.jsonl, <prefix>.posts.jsonl)
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the pipeline and the CLI.
type Store interface {
	// GetBotPrompt returns a uniformly random prompt among botID's prompts of type t.
	// It returns "" and no error when the bot has none.
	GetBotPrompt(ctx context.Context, botID string, t botgen.PostType) (string, error)
	// GetAllPrompts returns every stored prompt. The slice is never nil on success.
	GetAllPrompts(ctx context.Context) ([]botgen.PromptRecord, error)
	// AddPrompt stores a prompt, assigning ID and CreatedAt when empty.
	// It fails with ErrDuplicatePrompt when (BotID, PromptText) exists.
	AddPrompt(ctx context.Context, r botgen.PromptRecord) (botgen.PromptRecord, error)

	// AddPost persists a post body and returns it with an id.
	AddPost(ctx context.Context, body botgen.PostBody) (botgen.Post, error)
	// ListPosts returns the latest posts, newest first. Empty botID lists all bots.
	ListPosts(ctx context.Context, botID string, limit int) ([]botgen.Post, error)

	Close() error
}

func validatePromptQuery(botID string, t botgen.PostType) error {
	if botID == "" {
		return botgen.ErrBotIDFalsey
	}
	if t == "" {
		return botgen.ErrPostTypeFalsey
	}
	return nil
}

func validatePrompt(r botgen.PromptRecord) error {
	if r.BotID == "" {
		return botgen.ErrBotIDFalsey
	}
	if r.PromptText == "" {
		return botgen.ErrPromptFalsey
	}
	if !r.ContentType.Valid() {
		return botgen.UnknownPostType(string(r.ContentType))
	}
	return nil
}
