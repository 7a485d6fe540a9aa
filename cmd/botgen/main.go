package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/EshelEyni/Chirper-sub001/internal/app"
	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

func main() {
	var (
		cfgPath    string
		importPath string
		botID      string
		postType   string
		count      int
		prompt     string
		images     int
		addText    bool
		schedule   string
	)
	flag.StringVar(&cfgPath, "config", "./botgen.yaml", "path to config (yaml or json)")
	flag.StringVar(&importPath, "import", "", "import prompts from a yaml/json file and exit")
	flag.StringVar(&botID, "bot", "", "create posts for this bot id and exit")
	flag.StringVar(&postType, "type", string(botgen.PostText), "post type: text, poll, image, video, song-review")
	flag.IntVar(&count, "n", 1, "number of posts")
	flag.StringVar(&prompt, "prompt", "", "explicit prompt, reused for every post")
	flag.IntVar(&images, "images", 1, "images per image post")
	flag.BoolVar(&addText, "add-text", false, "add generated text to image and video posts")
	flag.StringVar(&schedule, "schedule", "", "RFC3339 time stamped on every created post")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if importPath != "" || botID != "" {
		code := runCLI(ctx, a, importPath, botID, func() (botgen.Options, error) {
			opts := botgen.Options{
				Prompt:           prompt,
				NumberOfPosts:    count,
				PostType:         botgen.PostType(postType),
				NumberOfImages:   images,
				AddTextToContent: addText,
			}
			if schedule != "" {
				at, err := time.Parse(time.RFC3339, schedule)
				if err != nil {
					return opts, fmt.Errorf("-schedule: %w", err)
				}
				opts.Schedule = &at
			}
			return opts, nil
		})
		stop(a, app.StopCLIDone)
		os.Exit(code)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stop(a, app.StopFatalError)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}
	stop(a, reason)
	if err := a.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, a *app.App, importPath, botID string, options func() (botgen.Options, error)) int {
	if importPath != "" {
		rep, err := a.ImportPrompts(ctx, importPath)
		fmt.Printf("imported %d prompts (%d duplicates skipped)\n", rep.Added, rep.Duplicates)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			return 1
		}
	}
	if botID == "" {
		return 0
	}

	opts, err := options()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	posts, err := a.CreatePost(ctx, botID, opts)
	if len(posts) > 0 {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(posts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "create post: %v (%d posts persisted)\n", err, len(posts))
		return 1
	}
	return 0
}

func stop(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(ctx, reason)
}
