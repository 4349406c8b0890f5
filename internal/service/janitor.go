package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
	"github.com/DevRickLin/feishu-media-bridge/pkg/util"
)

// Janitor removes job scratch directories left behind by a crashed process.
// Live jobs remove their own directories; anything older than maxAge is an orphan.
type Janitor struct {
	workDir  string
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a janitor
func NewJanitor(workDir string, maxAge, interval time.Duration) *Janitor {
	return &Janitor{
		workDir:  workDir,
		maxAge:   maxAge,
		interval: interval,
		log:      logger.Component("janitor"),
	}
}

// Start sweeps once, then on every interval
func (j *Janitor) Start(ctx context.Context) {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.Sweep(time.Now())
	if j.interval <= 0 {
		j.log.Warn("janitor interval not positive, periodic sweep disabled", "interval", j.interval.String())
		return
	}

	j.wg.Add(1)
	util.SafeGo(func() {
		defer j.wg.Done()
		j.loop()
	})

	j.log.Info("janitor started", "interval", j.interval.String(), logger.FieldPath, j.workDir)
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.log.Info("janitor stopped")
}

func (j *Janitor) loop() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case now := <-ticker.C:
			j.Sweep(now)
		}
	}
}

// Sweep removes orphaned scratch directories and returns how many it removed
func (j *Janitor) Sweep(now time.Time) int {
	entries, err := os.ReadDir(j.workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.log.Warn("read work dir failed", logger.FieldPath, j.workDir, logger.FieldError, err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), usecase.ScratchPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < j.maxAge {
			continue
		}
		path := filepath.Join(j.workDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			j.log.Warn("remove orphan failed", logger.FieldPath, path, logger.FieldError, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.log.Info("orphaned scratch dirs removed", logger.FieldCount, removed)
	}
	return removed
}
