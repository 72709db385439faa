package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/finder"
	"github.com/datallboy/bossfetch/internal/meta"
	"github.com/datallboy/bossfetch/internal/mirror"
)

// itemSource collects the remote paths named on the command line.
type itemSource struct {
	list  string
	where string
	full  bool
}

func (c *cli) collectItems(ctx context.Context, args []string, src itemSource) ([]domain.RemoteItem, error) {
	items := make([]domain.RemoteItem, 0, len(args))
	for _, arg := range args {
		items = append(items, domain.RemoteItem(arg))
	}

	if src.list != "" {
		listed, err := readListFile(src.list)
		if err != nil {
			return nil, usageError(err)
		}
		items = append(items, listed...)
	}

	if src.where != "" {
		queried, err := c.queryItems(ctx, src.where, !src.full)
		if err != nil {
			return nil, err
		}
		items = append(items, queried...)
	}

	return items, nil
}

func readListFile(path string) ([]domain.RemoteItem, error) {
	if path == "-" {
		return readList(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file: %w", err)
	}
	defer f.Close()
	return readList(f)
}

// readList reads one remote path per line. Blank lines and lines starting
// with # are skipped.
func readList(r io.Reader) ([]domain.RemoteItem, error) {
	var items []domain.RemoteItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, domain.RemoteItem(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	return items, nil
}

// queryItems selects observations from the metadata database and maps them
// to spectrum paths.
func (c *cli) queryItems(ctx context.Context, where string, lite bool) ([]domain.RemoteItem, error) {
	f, err := c.finder()
	if err != nil {
		return nil, err
	}

	db, err := c.openMeta(ctx, f)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var items []domain.RemoteItem
	err = db.SelectEach(ctx, "PLATE,MJD,FIBER", where, func(row meta.Row) error {
		plate, _ := row.Int("PLATE")
		mjd, _ := row.Int("MJD")
		fiber, _ := row.Int("FIBER")

		item, err := f.SpecPath(plate, mjd, fiber, lite)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}

	c.log.Info("Metadata query matched %d observations", len(items))
	return items, nil
}

// openMeta opens the lite metadata database, mirroring the lite spAll file
// and building the database first when it does not exist yet.
func (c *cli) openMeta(ctx context.Context, f *finder.Finder) (*meta.Database, error) {
	spAll := f.SpAllPath(true)

	dbPath, err := c.metaPath(spAll)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		if _, err := c.createMeta(ctx, spAll, dbPath); err != nil {
			return nil, err
		}
	}

	return meta.Open(ctx, dbPath)
}

func (c *cli) metaPath(spAll domain.RemoteItem) (string, error) {
	if c.cfg.Meta.DBPath != "" {
		return c.cfg.Meta.DBPath, nil
	}

	local := mirror.LocalPath(c.cfg.Mirror.LocalRoot, spAll)
	if local == "" {
		return "", usageError(errors.New("meta.db_path is required when the mirror is not a local directory"))
	}
	return meta.LitePath(local)
}

// createMeta mirrors spAll when needed and loads it into dbPath.
func (c *cli) createMeta(ctx context.Context, spAll domain.RemoteItem, dbPath string) (int, error) {
	if err := c.cfg.RequireLocalRoot(); err != nil {
		return 0, usageError(err)
	}

	local := mirror.LocalPath(c.cfg.Mirror.LocalRoot, spAll)
	if local == "" {
		return 0, usageError(errors.New("building the metadata database needs a local directory mirror"))
	}

	client, err := c.mirrorClient(ctx)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	c.log.Info("Fetching %s", spAll)
	if _, err := client.Fetch(ctx, spAll); err != nil {
		return 0, err
	}

	rows, err := meta.CreateLite(ctx, local, dbPath, c.log.Named("meta"))
	if err != nil {
		return 0, fmt.Errorf("failed to create metadata database: %w", err)
	}
	return rows, nil
}

func (c *cli) mirrorClient(ctx context.Context) (*mirror.Client, error) {
	client, err := mirror.Open(ctx, c.cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("failed to open local mirror: %w", err)
	}
	return client, nil
}
