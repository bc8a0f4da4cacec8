package main

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), options{cmd: "sideways"})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRunCreateNeedsName(t *testing.T) {
	err := run(context.Background(), options{cmd: "create", dir: t.TempDir()})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRunCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	if err := run(context.Background(), options{cmd: "create", dir: dir, name: "pad notes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one migration file, got %v (%v)", entries, err)
	}
	if err := run(context.Background(), options{cmd: "validate", dir: dir}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRunValidateEmbedded(t *testing.T) {
	if err := run(context.Background(), options{cmd: "validate", embedded: true}); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}
