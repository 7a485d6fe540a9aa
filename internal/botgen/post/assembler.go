// Package post assembles and persists generated posts for a bot.
package post

import (
	"context"
	"strings"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// PromptSource returns a random stored prompt of type t for a bot.
type PromptSource interface {
	GetBotPrompt(ctx context.Context, botID string, t botgen.PostType) (string, error)
}

// Store persists post bodies.
type Store interface {
	AddPost(ctx context.Context, body botgen.PostBody) (botgen.Post, error)
}

// Generator produces content for a post type. *content.Generators implements it.
type Generator interface {
	Generate(ctx context.Context, t botgen.PostType, prompt string, count int) (botgen.Content, error)
	GenerateText(ctx context.Context, prompt string) (botgen.Content, error)
}

// Assembler runs the create-post pipeline: resolve prompt, generate, merge,
// stamp schedule, persist. It performs no recovery; the first error aborts
// the remaining iterations and already persisted posts stay persisted.
type Assembler struct {
	prompts PromptSource
	store   Store
	gen     Generator
	log     logx.Logger
	bus     eventbus.Bus
}

func New(prompts PromptSource, store Store, gen Generator, log logx.Logger, bus eventbus.Bus) *Assembler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Assembler{
		prompts: prompts,
		store:   store,
		gen:     gen,
		log:     log.With(logx.String("comp", "post")),
		bus:     bus,
	}
}

// CreatePost generates and persists opts.NumberOfPosts posts for botID.
//
// An explicit opts.Prompt is reused verbatim for every iteration. Without
// one, each iteration fetches a fresh prompt and applies the type template.
// On error the posts persisted so far are returned alongside it.
func (a *Assembler) CreatePost(ctx context.Context, botID string, opts botgen.Options) ([]botgen.Post, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, botgen.ErrBotIDFalsey
	}
	opts = opts.WithDefaults()
	if !opts.PostType.Valid() {
		return nil, botgen.UnknownPostType(string(opts.PostType))
	}

	posts := make([]botgen.Post, 0, opts.NumberOfPosts)
	for i := 0; i < opts.NumberOfPosts; i++ {
		p, err := a.createOne(ctx, botID, opts, i)
		if err != nil {
			a.log.Debug("create post failed",
				logx.String("bot_id", botID),
				logx.String("type", opts.PostType.String()),
				logx.Int("index", i),
				logx.Int("persisted", len(posts)),
				logx.Err(err),
			)
			return posts, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (a *Assembler) createOne(ctx context.Context, botID string, opts botgen.Options, i int) (post botgen.Post, err error) {
	start := time.Now()
	eventbus.Emit(a.bus, eventbus.TypePostStart, eventbus.PostData{BotID: botID, PostType: opts.PostType, Index: i})
	defer func() {
		d := eventbus.PostData{BotID: botID, PostType: opts.PostType, Index: i, Err: err, Duration: time.Since(start)}
		if err == nil {
			p := post
			d.Post = &p
		}
		eventbus.Emit(a.bus, eventbus.TypePostEnd, d)
	}()

	prompt, err := a.resolvePrompt(ctx, botID, opts, i)
	if err != nil {
		return botgen.Post{}, err
	}

	body := botgen.PostBody{CreatedByID: botID}

	c, err := a.generateField(ctx, botID, opts, i, fieldName(opts.PostType), func() (botgen.Content, error) {
		return a.gen.Generate(ctx, opts.PostType, prompt, opts.NumberOfImages)
	})
	if err != nil {
		return botgen.Post{}, err
	}
	body.Merge(c)

	if opts.AddTextToContent && (opts.PostType == botgen.PostImage || opts.PostType == botgen.PostVideo) {
		c, err := a.generateField(ctx, botID, opts, i, "text", func() (botgen.Content, error) {
			return a.gen.GenerateText(ctx, prompt)
		})
		if err != nil {
			return botgen.Post{}, err
		}
		body.Text = c.Text
	}

	if opts.Schedule != nil {
		s := *opts.Schedule
		body.Schedule = &s
	}

	post, err = a.store.AddPost(ctx, body)
	if err != nil {
		return botgen.Post{}, err
	}
	a.log.Debug("post created",
		logx.String("bot_id", botID),
		logx.String("post_id", post.ID),
		logx.String("type", opts.PostType.String()),
		logx.Int("index", i),
	)
	return post, nil
}

func (a *Assembler) resolvePrompt(ctx context.Context, botID string, opts botgen.Options, i int) (prompt string, err error) {
	explicit := opts.Prompt != ""
	eventbus.Emit(a.bus, eventbus.TypePromptStart, eventbus.PromptData{BotID: botID, PostType: opts.PostType, Index: i, Explicit: explicit})
	defer func() {
		eventbus.Emit(a.bus, eventbus.TypePromptEnd, eventbus.PromptData{BotID: botID, PostType: opts.PostType, Index: i, Explicit: explicit, Err: err})
	}()

	if explicit {
		return opts.Prompt, nil
	}
	raw, err := a.prompts.GetBotPrompt(ctx, botID, opts.PostType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", botgen.ErrPromptFalsey
	}
	return botgen.ApplyTemplate(raw, opts.PostType), nil
}

func (a *Assembler) generateField(ctx context.Context, botID string, opts botgen.Options, i int, field string, fn func() (botgen.Content, error)) (c botgen.Content, err error) {
	eventbus.Emit(a.bus, eventbus.TypeFieldStart, eventbus.FieldData{BotID: botID, PostType: opts.PostType, Index: i, Field: field})
	defer func() {
		eventbus.Emit(a.bus, eventbus.TypeFieldEnd, eventbus.FieldData{BotID: botID, PostType: opts.PostType, Index: i, Field: field, Err: err})
	}()
	return fn()
}

func fieldName(t botgen.PostType) string {
	switch t {
	case botgen.PostPoll:
		return "poll"
	case botgen.PostImage:
		return "imgs"
	case botgen.PostVideo, botgen.PostSongReview:
		return "videoUrl"
	default:
		return "text"
	}
}
