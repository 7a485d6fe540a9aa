package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// Fixed-width so that lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, now: time.Now}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetBotPrompt(ctx context.Context, botID string, t botgen.PostType) (string, error) {
	if err := validatePromptQuery(botID, t); err != nil {
		return "", err
	}
	var prompt string
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt FROM bot_prompts WHERE bot_id = ? AND type = ? ORDER BY RANDOM() LIMIT 1`,
		botID, string(t),
	).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prompt, nil
}

func (s *sqliteStore) GetAllPrompts(ctx context.Context) ([]botgen.PromptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, bot_id, prompt, type, created_at FROM bot_prompts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]botgen.PromptRecord, 0)
	for rows.Next() {
		var (
			r       botgen.PromptRecord
			typ     string
			created string
		)
		if err := rows.Scan(&r.ID, &r.BotID, &r.PromptText, &typ, &created); err != nil {
			return nil, err
		}
		r.ContentType = botgen.PostType(typ)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddPrompt(ctx context.Context, r botgen.PromptRecord) (botgen.PromptRecord, error) {
	if err := validatePrompt(r); err != nil {
		return botgen.PromptRecord{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_prompts(id, bot_id, prompt, type, created_at) VALUES(?,?,?,?,?)`,
		r.ID, r.BotID, r.PromptText, string(r.ContentType), r.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: bot_prompts.bot_id") {
			return botgen.PromptRecord{}, ErrDuplicatePrompt
		}
		return botgen.PromptRecord{}, err
	}
	return r, nil
}

func (s *sqliteStore) AddPost(ctx context.Context, body botgen.PostBody) (botgen.Post, error) {
	p := botgen.Post{ID: uuid.NewString(), CreatedAt: s.now().UTC(), PostBody: body}

	poll, err := jsonOrNull(body.Poll != nil, body.Poll)
	if err != nil {
		return botgen.Post{}, err
	}
	imgs, err := jsonOrNull(len(body.Imgs) > 0, body.Imgs)
	if err != nil {
		return botgen.Post{}, err
	}
	var schedule any
	if body.Schedule != nil {
		schedule = body.Schedule.UTC().Format(timeLayout)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts(id, created_by_id, created_at, text, poll, imgs, video_url, schedule)
		 VALUES(?,?,?,?,?,?,?,?)`,
		p.ID, body.CreatedByID, p.CreatedAt.Format(timeLayout),
		nullStr(body.Text), poll, imgs, nullStr(body.VideoURL), schedule,
	)
	if err != nil {
		return botgen.Post{}, err
	}
	return p, nil
}

func (s *sqliteStore) ListPosts(ctx context.Context, botID string, limit int) ([]botgen.Post, error) {
	q := `SELECT id, created_by_id, created_at, text, poll, imgs, video_url, schedule FROM posts`
	args := []any{}
	if botID != "" {
		q += ` WHERE created_by_id = ?`
		args = append(args, botID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]botgen.Post, 0)
	for rows.Next() {
		var p botgen.Post
		var created string
		var text, poll, imgs, video, sched sql.NullString
		if err := rows.Scan(&p.ID, &p.CreatedByID, &created, &text, &poll, &imgs, &video, &sched); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		p.Text = text.String
		p.VideoURL = video.String
		if poll.Valid {
			p.Poll = &botgen.Poll{}
			if err := json.Unmarshal([]byte(poll.String), p.Poll); err != nil {
				return nil, fmt.Errorf("post %s: decode poll: %w", p.ID, err)
			}
		}
		if imgs.Valid {
			if err := json.Unmarshal([]byte(imgs.String), &p.Imgs); err != nil {
				return nil, fmt.Errorf("post %s: decode imgs: %w", p.ID, err)
			}
		}
		if sched.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, sched.String); err == nil {
				p.Schedule = &ts
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func jsonOrNull(present bool, v any) (any, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
