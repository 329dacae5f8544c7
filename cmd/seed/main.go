// Command seed loads quiz definitions from a JSON file into the database.
// The file holds either one quiz or an array of quizzes in the upstream shape.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/mind-engage/secacademy-lms/internal/config"
	"github.com/mind-engage/secacademy-lms/internal/db"
	"github.com/mind-engage/secacademy-lms/internal/lib/slogcustom"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

func main() {
	cfg := config.FromEnv()
	file := pflag.StringP("file", "f", "", "path to a quiz JSON file")
	pflag.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver: sqlite or postgres")
	pflag.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database DSN")
	dryRun := pflag.Bool("dry-run", false, "validate only, do not write")
	pflag.Parse()

	log := slog.New(slogcustom.NewCustomHandler(os.Stderr, slogcustom.ParseLevel(cfg.LogLevel)))
	if *file == "" {
		log.Error("--file is required")
		os.Exit(2)
	}

	quizzes, err := load(*file)
	if err != nil {
		log.Error("load quizzes", "file", *file, "err", err)
		os.Exit(1)
	}
	if *dryRun {
		log.Info("quizzes are valid", "count", len(quizzes))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer dbh.Close()

	store := quiz.NewSQLStore(dbh, cfg.DBDriver)
	now := time.Now().Unix()
	for _, q := range quizzes {
		q.CreatedAt = now
		if err := store.PutQuiz(ctx, *q); err != nil {
			log.Error("store quiz", "quiz", q.ID, "err", err)
			os.Exit(1)
		}
		log.Info("seeded", "quiz", q.ID, "title", q.Title, "questions", len(q.Questions))
	}
}

func load(path string) ([]*quiz.Quiz, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []quiz.RawQuiz
	if b = bytes.TrimSpace(b); len(b) > 0 && b[0] == '[' {
		err = json.Unmarshal(b, &raws)
	} else {
		var one quiz.RawQuiz
		err = json.Unmarshal(b, &one)
		raws = append(raws, one)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*quiz.Quiz, 0, len(raws))
	for i, raw := range raws {
		if raw.ID == "" {
			return nil, fmt.Errorf("quiz %d: id is required", i)
		}
		q, err := quiz.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("quiz %s: %w", raw.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}
