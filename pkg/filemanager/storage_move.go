package filemanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/storage"
	"github.com/shashiranjanraj/filemanager/pkg/workerpool"
)

// moveTree relocates every key under src to dst.
//
// Disks implementing storage.DirectoryMover do it in one call. Everything
// else is copied key by key with retries; the source prefix is removed only
// once every copy landed. When a copy keeps failing, the keys already copied
// are deleted from dst again so the tree is never split across both
// prefixes, and a *PartialFailureError names the keys involved.
func (a *StorageAdapter) moveTree(ctx context.Context, op, src, dst string) error {
	if mover, ok := a.disk.(storage.DirectoryMover); ok {
		if err := mover.MoveDirectory(src, dst); err != nil {
			return fmt.Errorf("filemanager/storage: %s %s: %w", op, src, err)
		}
		return nil
	}

	keys, err := a.disk.AllFiles(src)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("filemanager/storage: list %s: %w", src, err)
	}
	dirs, err := a.allDirs(src)
	if err != nil {
		return err
	}

	rebase := func(k string) string {
		return dst + strings.TrimPrefix(k, src)
	}

	// Directory markers first so empty folders survive the move.
	for _, d := range append([]string{src}, dirs...) {
		if err := a.disk.MakeDirectory(rebase(d)); err != nil {
			a.rollback(nil, rebase, dst)
			return fmt.Errorf("filemanager/storage: %s %s: %w", op, src, err)
		}
	}

	pool := a.opts.Pool
	if pool == nil {
		pool = workerpool.New(a.opts.MoveConcurrency)
		defer pool.Shutdown()
	}

	errs := pool.Each(ctx, len(keys), func(i int) error {
		return a.retry(ctx, func() error { return a.disk.Copy(keys[i], rebase(keys[i])) })
	})

	var failed, copied []string
	var firstErr error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, keys[i])
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		copied = append(copied, keys[i])
	}

	if len(failed) > 0 {
		perr := &PartialFailureError{
			Op:             op,
			From:           src,
			To:             dst,
			Total:          len(keys),
			Failed:         failed,
			RollbackFailed: a.rollback(copied, rebase, dst),
			Cause:          firstErr,
		}
		a.log.Error("folder prefix rewrite failed",
			"op", op, "from", src, "to", dst,
			"failed", perr.Failed, "rollback_failed", perr.RollbackFailed, "error", firstErr)
		return perr
	}

	if err := a.retry(ctx, func() error { return a.disk.DeleteDirectory(src) }); err != nil {
		left := []string{src}
		var derr *storage.DeleteError
		if errors.As(err, &derr) {
			left = derr.Failed
		}
		perr := &PartialFailureError{
			Op:     op + " cleanup",
			From:   src,
			To:     dst,
			Total:  len(keys),
			Failed: left,
			Cause:  err,
		}
		a.log.Error("old folder prefix could not be removed", "op", op, "from", src, "to", dst, "error", err)
		return perr
	}
	return nil
}

// rollback deletes copied keys from dst and returns the ones it could not
// remove. The destination prefix is dropped entirely when nothing remains.
func (a *StorageAdapter) rollback(copied []string, rebase func(string) string, dst string) []string {
	var left []string
	for _, k := range copied {
		if err := a.disk.Delete(rebase(k)); err != nil {
			left = append(left, rebase(k))
		}
	}
	if len(left) == 0 {
		if err := a.disk.DeleteDirectory(dst); err != nil {
			a.log.Warn("could not remove destination prefix after rollback", "to", dst, "error", err)
		}
	}
	return left
}

func (a *StorageAdapter) allDirs(dir string) ([]string, error) {
	subs, err := a.disk.Directories(dir)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("filemanager/storage: list %s: %w", dir, err)
	}
	out := append([]string(nil), subs...)
	for _, s := range subs {
		deeper, err := a.allDirs(s)
		if err != nil {
			return nil, err
		}
		out = append(out, deeper...)
	}
	return out, nil
}

// retry runs fn up to MoveRetries times with linear backoff.
func (a *StorageAdapter) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= a.opts.MoveRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == a.opts.MoveRetries {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * a.opts.RetryBackoff):
		}
	}
	return err
}
