package eventbus

import (
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

// Pipeline lifecycle event types.
const (
	TypeBatchStart  = "batch.start"
	TypeBatchEnd    = "batch.end"
	TypePostStart   = "post.start"
	TypePostEnd     = "post.end"
	TypePromptStart = "prompt.start"
	TypePromptEnd   = "prompt.end"
	TypeFieldStart  = "field.start"
	TypeFieldEnd    = "field.end"
	TypeItemFailed  = "item.failed"
)

// BatchData is attached to batch.start and batch.end.
type BatchData struct {
	Seq       uint64
	Size      int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// PostData is attached to post.start and post.end. Post is set on a
// successful post.end only.
type PostData struct {
	BotID    string
	PostType botgen.PostType
	Index    int
	Post     *botgen.Post
	Err      error
	Duration time.Duration
}

// PromptData is attached to prompt.start and prompt.end.
type PromptData struct {
	BotID    string
	PostType botgen.PostType
	Index    int
	Explicit bool
	Err      error
}

// FieldData is attached to field.start and field.end. Field names the
// generated content (text, poll, imgs, videoUrl).
type FieldData struct {
	BotID    string
	PostType botgen.PostType
	Index    int
	Field    string
	Err      error
}

// ItemFailedData is attached to item.failed.
type ItemFailedData struct {
	BatchSeq uint64
	Item     int
	BotID    string
	PostType botgen.PostType
	Message  string
	Kind     botgen.Kind
}

// Emit publishes an event on bus. A nil bus is a no-op.
func Emit(bus Bus, typ string, data any) {
	if bus == nil {
		return
	}
	bus.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}
