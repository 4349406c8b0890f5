package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// Runner executes a command and returns its stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command as a subprocess. stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return stdout.Bytes(), nil
}

// Item is a search hit
type Item struct {
	Title    string
	URL      string
	Duration time.Duration
}

// Request describes a download
type Request struct {
	URL       string
	AudioOnly bool
	Height    int // 0 means best available
	Name      string
	Dir       string
}

// Result is a finished download
type Result struct {
	Path  string
	Title string
}

// Client wraps the yt-dlp binary
type Client struct {
	binary string
	run    Runner
	log    *slog.Logger
}

// NewClient creates a client. run may be nil to use ExecRunner.
func NewClient(binary string, run Runner) *Client {
	if binary == "" {
		binary = "yt-dlp"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Client{binary: binary, run: run, log: logger.Component("ytdlp")}
}

// Search runs a provider search and returns up to limit items in order
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = domain.MaxSearchItems
	}
	args := []string{
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	}
	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	items := ParseSearchOutput(out)
	c.log.Debug("search finished", "query", query, logger.FieldCount, len(items))
	return items, nil
}

// ParseSearchOutput parses yt-dlp --dump-json output, one JSON object per line
func ParseSearchOutput(out []byte) []Item {
	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		res := gjson.ParseBytes(line)
		item := Item{
			Title:    res.Get("title").String(),
			Duration: time.Duration(res.Get("duration").Float() * float64(time.Second)),
		}
		switch {
		case res.Get("webpage_url").Exists():
			item.URL = res.Get("webpage_url").String()
		case strings.HasPrefix(res.Get("url").String(), "http"):
			item.URL = res.Get("url").String()
		case res.Get("id").Exists():
			item.URL = "https://www.youtube.com/watch?v=" + res.Get("id").String()
		}
		if item.URL == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// BuildDownloadArgs returns the yt-dlp arguments for a download
func BuildDownloadArgs(req Request) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--restrict-filenames",
		"--no-simulate",
		"--print", "title",
		"--print", "after_move:filepath",
		"-o", filepath.Join(req.Dir, "%(id)s.%(ext)s"),
	}
	switch {
	case req.AudioOnly:
		args = append(args, "-f", "bestaudio/best")
	case req.Height > 0:
		args = append(args,
			"-f", fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]", req.Height, req.Height),
			"--merge-output-format", "mp4")
	default:
		args = append(args, "-f", "bv*+ba/b", "--merge-output-format", "mp4")
	}
	return append(args, req.URL)
}

// Download fetches req.URL into req.Dir. The file is renamed to req.Name
// (or the sanitized provider title) keeping its extension.
func (c *Client) Download(ctx context.Context, req Request) (*Result, error) {
	out, err := c.run(ctx, c.binary, BuildDownloadArgs(req)...)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}

	lines := nonEmptyLines(string(out))
	if len(lines) == 0 {
		return nil, fmt.Errorf("download %s: no output file reported", req.URL)
	}
	path := lines[len(lines)-1]
	title := ""
	if len(lines) > 1 {
		title = lines[0]
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}

	name := req.Name
	if name == "" {
		name = domain.SanitizeTitle(title)
	}
	final := filepath.Join(filepath.Dir(path), name+filepath.Ext(path))
	if final != path {
		if err := os.Rename(path, final); err != nil {
			return nil, fmt.Errorf("rename download: %w", err)
		}
	}

	c.log.Debug("download finished", "url", req.URL, logger.FieldPath, final)
	return &Result{Path: final, Title: title}, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
