package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// fileStore keeps prompts and posts in memory, backed by append-only files:
//   - <prefix>.prompts.jsonl
//   - <prefix>.posts.jsonl
//
// Both files are replayed on open.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	promptFile *os.File
	postFile   *os.File

	prompts []botgen.PromptRecord
	byBot   map[string]map[string]struct{} // botID -> prompt text
	posts   []botgen.Post

	now func() time.Time
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	promptPath := prefix + ".prompts.jsonl"
	postPath := prefix + ".posts.jsonl"

	s := &fileStore{
		log:   log,
		byBot: map[string]map[string]struct{}{},
		now:   time.Now,
	}
	if err := replayJSONL(promptPath, func(r botgen.PromptRecord) { s.indexPrompt(r) }); err != nil {
		return nil, err
	}
	if err := replayJSONL(postPath, func(p botgen.Post) { s.posts = append(s.posts, p) }); err != nil {
		return nil, err
	}

	pf, err := os.OpenFile(promptPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	sf, err := os.OpenFile(postPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = pf.Close()
		return nil, err
	}
	s.promptFile = pf
	s.postFile = sf

	log.Debug("file store opened", logx.Int("prompts", len(s.prompts)), logx.Int("posts", len(s.posts)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.promptFile != nil {
		err1 = s.promptFile.Close()
		s.promptFile = nil
	}
	if s.postFile != nil {
		err2 = s.postFile.Close()
		s.postFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) indexPrompt(r botgen.PromptRecord) bool {
	texts, ok := s.byBot[r.BotID]
	if !ok {
		texts = map[string]struct{}{}
		s.byBot[r.BotID] = texts
	}
	if _, dup := texts[r.PromptText]; dup {
		return false
	}
	texts[r.PromptText] = struct{}{}
	s.prompts = append(s.prompts, r)
	return true
}

func (s *fileStore) GetBotPrompt(ctx context.Context, botID string, t botgen.PostType) (string, error) {
	_ = ctx
	if err := validatePromptQuery(botID, t); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []string
	for _, r := range s.prompts {
		if r.BotID == botID && r.ContentType == t {
			matches = append(matches, r.PromptText)
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[rand.IntN(len(matches))], nil
}

func (s *fileStore) GetAllPrompts(ctx context.Context) ([]botgen.PromptRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]botgen.PromptRecord, 0, len(s.prompts)), s.prompts...), nil
}

func (s *fileStore) AddPrompt(ctx context.Context, r botgen.PromptRecord) (botgen.PromptRecord, error) {
	_ = ctx
	if err := validatePrompt(r); err != nil {
		return botgen.PromptRecord{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promptFile == nil {
		return botgen.PromptRecord{}, ErrClosed
	}
	if _, dup := s.byBot[r.BotID][r.PromptText]; dup {
		return botgen.PromptRecord{}, ErrDuplicatePrompt
	}
	if err := json.NewEncoder(s.promptFile).Encode(r); err != nil {
		return botgen.PromptRecord{}, err
	}
	s.indexPrompt(r)
	return r, nil
}

func (s *fileStore) AddPost(ctx context.Context, body botgen.PostBody) (botgen.Post, error) {
	_ = ctx
	p := botgen.Post{ID: uuid.NewString(), CreatedAt: s.now().UTC(), PostBody: body}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postFile == nil {
		return botgen.Post{}, ErrClosed
	}
	if err := json.NewEncoder(s.postFile).Encode(p); err != nil {
		return botgen.Post{}, err
	}
	s.posts = append(s.posts, p)
	return p, nil
}

func (s *fileStore) ListPosts(ctx context.Context, botID string, limit int) ([]botgen.Post, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]botgen.Post, 0)
	for i := len(s.posts) - 1; i >= 0; i-- {
		p := s.posts[i]
		if botID != "" && p.CreatedByID != botID {
			continue
		}
		out = append(out, p)
	}
	// Appends are chronological, but replayed files may interleave writers.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func replayJSONL[T any](path string, fn func(T)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			// Torn trailing write; skip.
			continue
		}
		fn(v)
	}
	return sc.Err()
}
