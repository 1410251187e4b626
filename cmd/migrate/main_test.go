package main

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	"github.com/wolfman30/leasing-ai-platform/migrations"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	dirty   bool
	verErr  error
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.verErr }

func TestRunUpTreatsNoChangeAsSuccess(t *testing.T) {
	msg, err := run(&fakeMigrator{upErr: migrate.ErrNoChange}, nil)
	if err != nil || msg != "migrations complete" {
		t.Fatalf("run up = %q, %v", msg, err)
	}

	if _, err := run(&fakeMigrator{upErr: errors.New("boom")}, []string{"up"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunDownAndForce(t *testing.T) {
	m := &fakeMigrator{}
	if _, err := run(m, []string{"down", "2"}); err != nil {
		t.Fatalf("down: %v", err)
	}
	if len(m.steps) != 1 || m.steps[0] != -2 {
		t.Fatalf("steps = %v", m.steps)
	}
	if _, err := run(m, []string{"down", "zero"}); err == nil {
		t.Fatal("expected invalid step count error")
	}
	if _, err := run(m, []string{"force", "1"}); err != nil || m.forced != 1 {
		t.Fatalf("force: forced=%d err=%v", m.forced, err)
	}
	if _, err := run(m, []string{"force"}); err == nil {
		t.Fatal("expected missing version error")
	}
}

func TestRunVersion(t *testing.T) {
	msg, err := run(&fakeMigrator{verErr: migrate.ErrNilVersion}, []string{"version"})
	if err != nil || msg != "no migrations applied" {
		t.Fatalf("version = %q, %v", msg, err)
	}
	msg, err = run(&fakeMigrator{version: 2}, []string{"version"})
	if err != nil || msg != "version 2 (dirty=false)" {
		t.Fatalf("version = %q, %v", msg, err)
	}
	if _, err := run(&fakeMigrator{}, []string{"sideways"}); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("ups=%d downs=%d", ups, downs)
	}
}
